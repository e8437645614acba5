package build

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pagebuilder/internal/history"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/metrics"
	"git.home.luguber.info/inful/pagebuilder/internal/observability"
	"git.home.luguber.info/inful/pagebuilder/internal/page"
	"git.home.luguber.info/inful/pagebuilder/internal/versionstore"
)

// TextfileWriter exports the collected metrics to a file.
type TextfileWriter interface {
	WriteTextfile(path string) error
}

// DefaultBuildService is the standard implementation of BuildService.
// It orchestrates page resolution → activation → build → bookkeeping.
type DefaultBuildService struct {
	appsRoot string

	charset          string
	tools            page.Tools
	cleanupOnFailure bool
	launcherCommand  string

	logger   *slog.Logger
	recorder metrics.Recorder
	history  history.Store

	textfilePath   string
	textfileWriter TextfileWriter

	newID func() string
	now   func() time.Time
}

// NewBuildService creates a service building the pages found under appsRoot.
func NewBuildService(appsRoot string) *DefaultBuildService {
	return &DefaultBuildService{
		appsRoot: appsRoot,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// WithLogger sets the logger handed to pages.
func (s *DefaultBuildService) WithLogger(l *slog.Logger) *DefaultBuildService {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithRecorder injects a metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	s.recorder = metrics.OrNoop(r)
	return s
}

// WithHistory sets the ledger every run is appended to. Nil disables history.
func (s *DefaultBuildService) WithHistory(h history.Store) *DefaultBuildService {
	s.history = h
	return s
}

// WithMetricsTextfile exports metrics through w to path after every run.
func (s *DefaultBuildService) WithMetricsTextfile(path string, w TextfileWriter) *DefaultBuildService {
	s.textfilePath = path
	s.textfileWriter = w
	return s
}

// WithCharset sets the process charset versions default to.
func (s *DefaultBuildService) WithCharset(name string) *DefaultBuildService {
	s.charset = name
	return s
}

// WithTools sets the external commands used by the transforms.
func (s *DefaultBuildService) WithTools(t page.Tools) *DefaultBuildService {
	s.tools = t
	return s
}

// WithCleanupOnFailure removes staging directories of failed builds.
func (s *DefaultBuildService) WithCleanupOnFailure(enabled bool) *DefaultBuildService {
	s.cleanupOnFailure = enabled
	return s
}

// WithLauncherCommand sets the command written into generated launchers.
func (s *DefaultBuildService) WithLauncherCommand(cmd string) *DefaultBuildService {
	s.launcherCommand = cmd
	return s
}

// WithIDGenerator overrides build id generation, for tests.
func (s *DefaultBuildService) WithIDGenerator(f func() string) *DefaultBuildService {
	if f != nil {
		s.newID = f
	}
	return s
}

// PageRoot returns the root directory of the named page.
func (s *DefaultBuildService) PageRoot(name string) string {
	return filepath.Join(s.appsRoot, name)
}

// Page returns an idle page configured like the pages this service builds.
func (s *DefaultBuildService) Page(name string) (*page.Page, error) {
	return page.New(name, s.PageRoot(name),
		page.WithCharset(s.charset),
		page.WithLogger(s.logger),
		page.WithRecorder(s.recorder),
		page.WithRegistry(page.DefaultRegistry(s.tools)),
		page.WithCleanupOnFailure(s.cleanupOnFailure),
	)
}

// Store returns the version store of the named page.
func (s *DefaultBuildService) Store(name string) *versionstore.Store {
	return &versionstore.Store{
		Root:            s.PageRoot(name),
		Name:            name,
		DefaultCharset:  s.charset,
		LauncherCommand: s.launcherCommand,
		Logger:          s.logger,
	}
}

// Run executes one complete build.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := s.now()
	result := &BuildResult{
		BuildID:   s.newID(),
		StartTime: start,
		OutputDir: filepath.Join(s.PageRoot(req.Ref.Name), req.Timestamp),
	}
	ctx = observability.WithBuildID(ctx, result.BuildID)

	err := s.build(ctx, req, result)

	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(start)
	result.Status = statusOf(err)

	s.recorder.ObserveBuildDuration(result.Duration)
	s.recorder.IncBuildOutcome(outcomeOf(result.Status))
	s.recordHistory(ctx, req, result, err)
	s.exportMetrics(ctx)

	attrs := []any{
		logfields.Page(req.Ref.Name),
		logfields.Version(req.Ref.Version),
		logfields.Timestamp(req.Timestamp),
		logfields.Status(string(result.Status)),
		logfields.DurationMS(float64(result.Duration.Microseconds()) / 1000),
	}
	if req.Trigger != "" {
		attrs = append(attrs, logfields.Trigger(req.Trigger))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Build run finished with error", append(attrs, logfields.Error(err))...)
		return result, err
	}
	s.logger.InfoContext(ctx, "Build run finished", attrs...)
	return result, nil
}

func (s *DefaultBuildService) build(ctx context.Context, req BuildRequest, result *BuildResult) error {
	p, err := s.Page(req.Ref.Name)
	if err != nil {
		return err
	}
	if err := p.Activate(ctx, req.Ref.Version); err != nil {
		return err
	}
	m, err := p.Build(ctx, req.Timestamp)
	if err != nil {
		return err
	}
	result.Manifest = m
	return nil
}

func (s *DefaultBuildService) recordHistory(ctx context.Context, req BuildRequest, result *BuildResult, buildErr error) {
	if s.history == nil {
		return
	}
	entry := history.Entry{
		BuildID:    result.BuildID,
		Page:       req.Ref.Name,
		Version:    req.Ref.Version,
		Timestamp:  req.Timestamp,
		Status:     string(result.Status),
		StartedAt:  result.StartTime,
		DurationMS: result.Duration.Milliseconds(),
	}
	if buildErr != nil {
		entry.Error = buildErr.Error()
	}
	// The ledger must not lose the entry of a canceled build.
	if err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.WarnContext(ctx, "Failed to record build history", logfields.Error(err))
	}
}

func (s *DefaultBuildService) exportMetrics(ctx context.Context) {
	if s.textfilePath == "" || s.textfileWriter == nil {
		return
	}
	if err := s.textfileWriter.WriteTextfile(s.textfilePath); err != nil {
		s.logger.WarnContext(ctx, "Failed to export metrics", logfields.Path(s.textfilePath), logfields.Error(err))
	}
}

func statusOf(err error) BuildStatus {
	switch {
	case err == nil:
		return BuildStatusSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return BuildStatusCanceled
	default:
		return BuildStatusFailed
	}
}

func outcomeOf(s BuildStatus) metrics.BuildOutcomeLabel {
	switch s {
	case BuildStatusSuccess:
		return metrics.BuildOutcomeSuccess
	case BuildStatusCanceled:
		return metrics.BuildOutcomeCanceled
	default:
		return metrics.BuildOutcomeFailed
	}
}

// Clean removes the staging directories left under the named page and
// returns the ones that existed.
func (s *DefaultBuildService) Clean(name string) ([]string, error) {
	p, err := s.Page(name)
	if err != nil {
		return nil, err
	}
	stale := p.StaleStaging()
	if len(stale) == 0 {
		return nil, nil
	}
	if err := p.CleanStaging(); err != nil {
		return nil, err
	}
	return stale, nil
}
