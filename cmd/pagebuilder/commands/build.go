package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/pagebuilder/internal/build"
	"git.home.luguber.info/inful/pagebuilder/internal/build/queue"
	"git.home.luguber.info/inful/pagebuilder/internal/versionstore"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Ref       string `arg:"" name:"ref" help:"Page version to build, for example home@1.0"`
	Timestamp string `short:"t" required:"" help:"Name of the output directory under the page root"`
}

func (b *BuildCmd) Run(g *Global, _ *CLI) error {
	ref, err := versionstore.ParseRef(b.Ref)
	if err != nil {
		return err
	}
	svc, closeFn, err := g.Service()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := svc.Run(ctx, build.BuildRequest{
		Ref:       ref,
		Timestamp: b.Timestamp,
		Trigger:   string(queue.BuildTypeManual),
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Built %s into %s in %s\n", ref, result.OutputDir, result.Duration.Round(time.Millisecond))
	return nil
}
