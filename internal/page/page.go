package page

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/charset"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/manifest"
	"git.home.luguber.info/inful/pagebuilder/internal/metrics"
	"git.home.luguber.info/inful/pagebuilder/internal/observability"
	"git.home.luguber.info/inful/pagebuilder/internal/pagecfg"
	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
	"git.home.luguber.info/inful/pagebuilder/internal/versionstore"
	"git.home.luguber.info/inful/pagebuilder/internal/workspace"
)

// OutputBase is created inside every publish directory.
const OutputBase = "core"

// Option configures a Page.
type Option func(*Page)

// WithCharset sets the process charset used when a version names none.
func WithCharset(name string) Option {
	return func(p *Page) {
		if name != "" {
			p.charset = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Page) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Page) { p.recorder = metrics.OrNoop(r) }
}

// WithRegistry replaces the transform factories used on activation.
func WithRegistry(r *pipeline.Registry) Option {
	return func(p *Page) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithCleanupOnFailure removes the staging directories when a build fails.
func WithCleanupOnFailure(enabled bool) Option {
	return func(p *Page) { p.cleanupOnFailure = enabled }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Page) {
		if now != nil {
			p.now = now
		}
	}
}

// Page is one page project bound to its root directory.
type Page struct {
	Name    string
	RootDir string

	charset          string
	logger           *slog.Logger
	recorder         metrics.Recorder
	registry         *pipeline.Registry
	cleanupOnFailure bool
	now              func() time.Time

	store   *versionstore.Store
	staging *workspace.Manager

	building atomic.Bool

	mu       sync.RWMutex
	state    State
	version  string
	snapshot *pagecfg.Snapshot
	pipeline *pipeline.Pipeline
}

// New returns an idle, unactivated page rooted at rootDir.
func New(name, rootDir string, opts ...Option) (*Page, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ferrors.ValidationError("page name is required").Build()
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, builderrors.IO("resolve page root", rootDir, err)
	}

	p := &Page{
		Name:     name,
		RootDir:  abs,
		charset:  charset.Working,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = DefaultRegistry(Tools{})
	}
	p.logger = observability.WithContextHandler(p.logger)
	p.store = &versionstore.Store{Root: abs, Name: name, DefaultCharset: p.charset, Logger: p.logger}
	p.staging = workspace.NewManager(abs, p.logger.With(logfields.Page(name)))
	return p, nil
}

// SrcDir is the staging source directory.
func (p *Page) SrcDir() string { return p.staging.SrcDir() }

// DestDir is the staging destination directory.
func (p *Page) DestDir() string { return p.staging.DestDir() }

// OutputDir is the publish directory of a build stamped timestamp.
func (p *Page) OutputDir(timestamp string) string { return filepath.Join(p.RootDir, timestamp) }

// State returns the current lifecycle state.
func (p *Page) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Version returns the active version, empty before activation.
func (p *Page) Version() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Snapshot returns the activated configuration, nil before activation.
func (p *Page) Snapshot() *pagecfg.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Transforms lists the pipeline in execution order.
func (p *Page) Transforms() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pipeline == nil {
		return nil
	}
	return p.pipeline.Names()
}

func (p *Page) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Activate makes version the one built by Build. The version record is
// merged over the defaults, validated and frozen, and the pipeline is
// rebuilt. On error the page keeps its previous activation.
func (p *Page) Activate(ctx context.Context, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !versionstore.ValidVersion(version) {
		return builderrors.New(builderrors.ErrInvalidVersionFormat,
			fmt.Sprintf("version %q must look like 1.0", version), nil)
	}
	if p.building.Load() {
		return builderrors.New(builderrors.ErrBuildInProgress, "cannot activate while building", nil)
	}

	rec, err := p.store.Load(version)
	if err != nil {
		return err
	}
	snap, err := pagecfg.NewSnapshot(rec.WithDefaults(pagecfg.Defaults(p.charset)), p.charset)
	if err != nil {
		return err
	}

	pipe := pipeline.New(pipeline.WithRecorder(p.recorder))
	for _, step := range Steps {
		var settings map[string]any
		if step.Key != "" {
			settings = snap.Section(step.Key)
		}
		t, err := p.registry.Build(step.Name, settings)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "configure build pipeline").
				WithContext("transform", step.Name).
				WithContext("version", version).
				Build()
		}
		pipe.Use(t)
	}

	p.mu.Lock()
	p.version = version
	p.snapshot = snap
	p.pipeline = pipe
	p.state = StateIdle
	p.mu.Unlock()

	p.logger.InfoContext(observability.WithPage(ctx, p.Name, version), "Activated version",
		slog.String("input_charset", snap.InputCharset()),
		slog.String("output_charset", snap.OutputCharset()),
		slog.String("file_format", string(snap.FileFormat())))
	return nil
}

// Build stages, transforms and publishes the active version into
// <root>/<timestamp>. The manifest is written last; its presence marks a
// complete output directory.
func (p *Page) Build(ctx context.Context, timestamp string) (*manifest.BuildManifest, error) {
	if !p.building.CompareAndSwap(false, true) {
		return nil, builderrors.New(builderrors.ErrBuildInProgress,
			fmt.Sprintf("page %s is already building", p.Name), nil)
	}
	defer p.building.Store(false)

	p.mu.RLock()
	version, snap, pipe := p.version, p.snapshot, p.pipeline
	p.mu.RUnlock()

	if version == "" {
		return nil, builderrors.New(builderrors.ErrNotActivated,
			fmt.Sprintf("page %s has no active version", p.Name), nil)
	}
	if err := p.validateTimestamp(timestamp, version); err != nil {
		return nil, err
	}

	ctx = observability.WithPage(ctx, p.Name, version)
	log := p.logger.With(logfields.Timestamp(timestamp))
	outDir := p.OutputDir(timestamp)
	start := p.now()
	log.InfoContext(ctx, "Building page", logfields.Output(outDir))

	var m *manifest.BuildManifest
	err := p.runPhases(ctx, log,
		phase{StateStaging, func(ctx context.Context) error {
			return p.stage(ctx, log, version, snap, outDir)
		}},
		phase{StateExecuting, func(ctx context.Context) error {
			return pipe.Run(ctx, &pipeline.Input{
				Page:     p.Name,
				Version:  version,
				SrcDir:   p.SrcDir(),
				DestDir:  p.DestDir(),
				Settings: snap,
				Logger:   log,
				Recorder: p.recorder,
			})
		}},
		phase{StatePublishing, func(ctx context.Context) error {
			var err error
			m, err = p.publish(ctx, version, snap, outDir, start)
			return err
		}},
	)
	if err != nil {
		p.setState(StateFailed)
		if p.cleanupOnFailure {
			if cerr := p.staging.Cleanup(); cerr != nil {
				log.WarnContext(ctx, "Staging cleanup after failure failed", logfields.Error(cerr))
			}
		}
		log.ErrorContext(ctx, "Build failed", logfields.Error(err))
		return nil, err
	}

	p.setState(StateDone)
	log.InfoContext(ctx, "Build completed",
		logfields.Output(outDir),
		logfields.DurationMS(float64(m.BuildUsedTime)))
	return m, nil
}

type phase struct {
	state State
	run   func(context.Context) error
}

func (p *Page) runPhases(ctx context.Context, log *slog.Logger, phases ...phase) error {
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("build stopped before %s: %w", ph.state, err)
		}
		p.setState(ph.state)
		phaseCtx := observability.WithPhase(ctx, ph.state.Phase())
		log.DebugContext(phaseCtx, "Phase started")

		start := time.Now()
		err := ph.run(phaseCtx)
		elapsed := time.Since(start)
		p.recorder.ObservePhaseDuration(ph.state.Phase(), elapsed)
		if err != nil {
			return err
		}
		log.DebugContext(phaseCtx, "Phase completed",
			logfields.DurationMS(float64(elapsed.Microseconds())/1000))
	}
	return nil
}

func (p *Page) stage(ctx context.Context, log *slog.Logger, version string, snap *pagecfg.Snapshot, outDir string) error {
	if err := p.staging.Create(); err != nil {
		return err
	}
	src := charset.Endpoint{Path: p.store.VersionDir(version), Charset: snap.InputCharset()}
	dst := charset.Endpoint{Path: p.SrcDir(), Charset: charset.Working}
	if err := charset.Tree(ctx, src, dst); err != nil {
		return err
	}
	for _, dir := range []string{outDir, filepath.Join(outDir, OutputBase)} {
		created, err := workspace.EnsureDir(dir)
		if err != nil {
			return err
		}
		if !created {
			log.DebugContext(ctx, "Output directory exists", logfields.Path(dir))
		}
	}
	return nil
}

func (p *Page) publish(ctx context.Context, version string, snap *pagecfg.Snapshot, outDir string, start time.Time) (*manifest.BuildManifest, error) {
	if err := charset.Dir(ctx, p.DestDir(), charset.Working, outDir, snap.OutputCharset()); err != nil {
		return nil, err
	}
	if err := p.staging.Cleanup(); err != nil {
		return nil, err
	}
	m := manifest.New(version, start, p.now())
	if err := manifest.Write(outDir, m); err != nil {
		return nil, builderrors.IO("write build manifest", manifest.Path(outDir), err)
	}
	return m, nil
}

// validateTimestamp keeps the publish directory a direct child of the root
// that is neither a staging directory nor a version.
func (p *Page) validateTimestamp(timestamp, version string) error {
	if strings.TrimSpace(timestamp) == "" {
		return builderrors.New(builderrors.ErrMissingTimestamp, "a build timestamp is required", nil)
	}
	invalid := func(reason string) error {
		return builderrors.New(builderrors.ErrInvalidTimestamp,
			fmt.Sprintf("timestamp %q %s", timestamp, reason), nil)
	}
	switch {
	case timestamp == "." || timestamp == "..",
		strings.ContainsAny(timestamp, `/\`),
		filepath.Base(timestamp) != timestamp:
		return invalid("must be a single directory name")
	case workspace.IsStagingName(timestamp):
		return invalid("names a staging directory")
	case timestamp == version:
		return invalid("names the active version")
	case versionstore.ValidVersion(timestamp) && p.store.Exists(timestamp):
		return invalid("names an existing version")
	}
	return nil
}

// StaleStaging lists staging directories left on disk, typically by a
// failed build.
func (p *Page) StaleStaging() []string {
	return p.staging.Stale()
}

// CleanStaging removes the staging directories.
func (p *Page) CleanStaging() error {
	if p.building.Load() {
		return builderrors.New(builderrors.ErrBuildInProgress, "cannot clean staging while building", nil)
	}
	return p.staging.Cleanup()
}

// Store exposes the version store of the page.
func (p *Page) Store() *versionstore.Store { return p.store }
