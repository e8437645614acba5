package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Name  string `arg:"" name:"name" help:"Page name"`
	Limit int    `short:"n" help:"Number of builds to show (0 for all)" default:"10"`
}

func (h *HistoryCmd) Run(g *Global, _ *CLI) error {
	if !g.Config.History.Enabled {
		return ferrors.ConfigError("build history is disabled").Build()
	}
	store, err := g.History()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	entries, err := store.Recent(ctx, h.Name, h.Limit)
	if err != nil {
		return err
	}
	stats, err := store.Stats(ctx, h.Name)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintf(g.Out, "No builds recorded for %s\n", h.Name)
		return nil
	}

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tVERSION\tTIMESTAMP\tSTATUS\tDURATION\tERROR")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Version,
			e.Timestamp,
			e.Status,
			time.Duration(e.DurationMS)*time.Millisecond,
			e.Error,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(g.Out, "\n%d builds: %d succeeded, %d failed, %d canceled\n",
		stats.Total, stats.Succeeded, stats.Failed, stats.Canceled)
	if stats.LastSuccess != nil {
		_, _ = fmt.Fprintf(g.Out, "Last success: %s@%s -> %s\n",
			h.Name, stats.LastSuccess.Version, stats.LastSuccess.Timestamp)
	}
	return nil
}
