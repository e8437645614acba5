// Package pipeline runs the ordered transforms of a page build.
//
// Transforms run strictly one after another in registration order because
// each reads what the previous ones wrote into the staging directories. The
// first failure stops the pipeline.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/pagebuilder/internal/metrics"
	"git.home.luguber.info/inful/pagebuilder/internal/pagecfg"
)

// Input is the read-only view of a build handed to every transform.
type Input struct {
	Page     string
	Version  string
	SrcDir   string
	DestDir  string
	Settings *pagecfg.Snapshot
	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Log returns the input logger, falling back to the default logger.
func (in *Input) Log() *slog.Logger {
	if in.Logger == nil {
		return slog.Default()
	}
	return in.Logger
}

// Metrics returns the input recorder, falling back to NoopRecorder.
func (in *Input) Metrics() metrics.Recorder {
	return metrics.OrNoop(in.Recorder)
}

// Transform is one step of the pipeline.
type Transform interface {
	Name() string
	Apply(ctx context.Context, in *Input) error
}

// Func adapts a function to Transform. Its name is "func".
type Func func(ctx context.Context, in *Input) error

func (f Func) Name() string { return "func" }

func (f Func) Apply(ctx context.Context, in *Input) error { return f(ctx, in) }

type named struct {
	name string
	fn   Func
}

func (n named) Name() string { return n.name }

func (n named) Apply(ctx context.Context, in *Input) error { return n.fn(ctx, in) }

// Named wraps fn as a transform called name. A nil fn yields a nil Transform.
func Named(name string, fn Func) Transform {
	if fn == nil {
		return nil
	}
	return named{name: name, fn: fn}
}

// TransformError reports which step of the pipeline failed.
type TransformError struct {
	Name  string
	Index int
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s (step %d): %v", e.Name, e.Index+1, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
