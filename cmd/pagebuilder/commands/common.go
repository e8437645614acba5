package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagebuilder/internal/build"
	"git.home.luguber.info/inful/pagebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/history"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/metrics"
	"git.home.luguber.info/inful/pagebuilder/internal/observability"
	"git.home.luguber.info/inful/pagebuilder/internal/page"
)

// Global is the state shared by every subcommand once flags are parsed.
type Global struct {
	Logger *slog.Logger
	Config *config.Config
	Root   string
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"pagebuilder.yaml"`
	Root    string           `short:"r" help:"Apps root holding one directory per page" default:"."`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init       InitCmd    `cmd:"" help:"Write an example pagebuilder.yaml"`
	NewVersion VersionCmd `cmd:"" name:"version" help:"Create a page version (name@version)"`
	Build      BuildCmd   `cmd:"" help:"Build a page version once"`
	Watch      WatchCmd   `cmd:"" help:"Rebuild a page version on source changes and on an interval"`
	History    HistoryCmd `cmd:"" help:"Show recent builds of a page"`
	Clean      CleanCmd   `cmd:"" help:"Remove staging directories left by failed builds"`

	logger *slog.Logger
	cfg    *config.Config
	stderr io.Writer
}

// AfterApply runs after flag parsing; loads the configuration and sets up
// logging once.
func (c *CLI) AfterApply() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "load configuration").
			WithContext("path", c.Config).
			Build()
	}
	level := cfg.Logging.Level.Slog()
	if c.Verbose {
		level = slog.LevelDebug
	}
	w := c.stderr
	if w == nil {
		w = os.Stderr
	}
	c.logger = observability.NewLogger(w, level, string(cfg.Logging.Format))
	c.cfg = cfg
	slog.SetDefault(c.logger)
	return nil
}

// Logger returns the configured logger, or the default one before parsing.
func (c *CLI) Logger() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Global collects the parsed state handed to subcommands.
func (c *CLI) Global(out io.Writer) *Global {
	cfg := c.cfg
	if cfg == nil {
		cfg = config.Default()
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		root = c.Root
	}
	return &Global{Logger: c.Logger(), Config: cfg, Root: root, Out: out}
}

// Service wires a build service from the configuration. The returned func
// releases the history ledger.
func (g *Global) Service() (*build.DefaultBuildService, func(), error) {
	cfg := g.Config
	recorder := metrics.NewPrometheusRecorder(nil)
	svc := build.NewBuildService(g.Root).
		WithLogger(g.Logger).
		WithRecorder(recorder).
		WithCharset(cfg.Charset).
		WithTools(page.Tools{Lessc: cfg.Tools.Lessc, ModuleCompiler: cfg.Tools.ModuleCompiler}).
		WithCleanupOnFailure(cfg.Build.CleanupOnFailure).
		WithLauncherCommand(cfg.Launcher.Command)
	if cfg.Metrics.Textfile != "" {
		svc = svc.WithMetricsTextfile(cfg.Metrics.Textfile, recorder)
	}

	closeFn := func() {}
	if cfg.History.Enabled {
		store, err := g.History()
		if err != nil {
			return nil, nil, err
		}
		svc = svc.WithHistory(store)
		closeFn = func() {
			if err := store.Close(); err != nil {
				g.Logger.Warn("Failed to close build history", logfields.Error(err))
			}
		}
	}
	return svc, closeFn, nil
}

// History opens the build ledger configured for the apps root.
func (g *Global) History() (*history.SQLiteStore, error) {
	return history.Open(g.Config.HistoryPath(g.Root))
}
