package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/pagebuilder/internal/build"
	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/build/queue"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/versionstore"
	"git.home.luguber.info/inful/pagebuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Ref      string        `arg:"" name:"ref" help:"Page version to watch, for example home@1.0"`
	Every    time.Duration `help:"Also rebuild on this interval (0 disables)" default:"0s"`
	Debounce time.Duration `help:"Quiet period after the last change before rebuilding" default:"500ms"`
}

func (w *WatchCmd) Run(g *Global, _ *CLI) error {
	ref, err := versionstore.ParseRef(w.Ref)
	if err != nil {
		return err
	}
	svc, closeFn, err := g.Service()
	if err != nil {
		return err
	}
	defer closeFn()

	dir := svc.Store(ref.Name).VersionDir(ref.Version)
	if !svc.Store(ref.Name).Exists(ref.Version) {
		return builderrors.New(builderrors.ErrVersionNotFound,
			fmt.Sprintf("version %s does not exist", ref), nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One worker and one pending slot: changes arriving during a build
	// collapse into a single follow-up build.
	q := queue.New(1, 1, queue.BuilderFunc(func(ctx context.Context, job *queue.BuildJob) error {
		_, err := svc.Run(ctx, build.BuildRequest{
			Ref:       ref,
			Timestamp: build.NewTimestamp(time.Now()),
			Trigger:   string(job.Type),
		})
		return err
	}))
	q.SetLogger(g.Logger)
	q.Start(ctx)
	defer q.Stop(context.Background())

	enqueue := func(t queue.BuildType) {
		err := q.Enqueue(queue.NewJob(t))
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrQueueFull):
			g.Logger.Debug("Build already pending", logfields.Trigger(string(t)))
		default:
			g.Logger.Warn("Failed to enqueue build", logfields.Trigger(string(t)), logfields.Error(err))
		}
	}

	watcher, err := watch.NewWatcher(dir, w.Debounce, func() { enqueue(queue.BuildTypeChange) }, g.Logger)
	if err != nil {
		return err
	}

	if w.Every > 0 {
		sched, err := watch.NewScheduler(g.Logger)
		if err != nil {
			return err
		}
		if _, err := sched.Every(w.Every, "interval-build", func() { enqueue(queue.BuildTypeInterval) }); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				g.Logger.Warn("Failed to stop scheduler", logfields.Error(err))
			}
		}()
	}

	enqueue(queue.BuildTypeManual)
	_, _ = fmt.Fprintf(g.Out, "Watching %s (Ctrl+C to stop)\n", dir)
	return watcher.Run(ctx)
}
