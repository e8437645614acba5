package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"time"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/metrics"
)

// Pipeline is an ordered list of transforms.
type Pipeline struct {
	steps    []Transform
	recorder metrics.Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder sets the recorder that times each step.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = metrics.OrNoop(r)
	}
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Use appends t. Nil transforms, including typed nil values, are dropped
// without error.
func (p *Pipeline) Use(t Transform) *Pipeline {
	if isNil(t) {
		return p
	}
	p.steps = append(p.steps, t)
	return p
}

func isNil(t Transform) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Interface, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// Len returns the number of registered transforms.
func (p *Pipeline) Len() int { return len(p.steps) }

// Names returns the transform names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.steps))
	for i, t := range p.steps {
		names[i] = t.Name()
	}
	return names
}

// Run applies every transform in order. The first error stops the run and
// is returned as a TransformError classified under ErrTransformFailure.
func (p *Pipeline) Run(ctx context.Context, in *Input) error {
	log := in.Log()
	for i, t := range p.steps {
		name := t.Name()
		if err := ctx.Err(); err != nil {
			p.recorder.IncTransformResult(name, metrics.ResultCanceled)
			return fmt.Errorf("pipeline stopped before %s: %w", name, err)
		}

		log.DebugContext(ctx, "Running transform", logfields.Transform(name), logfields.Index(i))
		start := time.Now()
		err := t.Apply(ctx, in)
		elapsed := time.Since(start)
		p.recorder.ObserveTransformDuration(name, elapsed)

		if err != nil {
			p.recorder.IncTransformResult(name, metrics.ResultFailed)
			log.ErrorContext(ctx, "Transform failed",
				logfields.Transform(name),
				logfields.Index(i),
				logfields.Error(err))
			return builderrors.New(builderrors.ErrTransformFailure,
				fmt.Sprintf("transform %s failed", name),
				&TransformError{Name: name, Index: i, Err: err})
		}

		p.recorder.IncTransformResult(name, metrics.ResultSuccess)
		log.DebugContext(ctx, "Transform completed",
			logfields.Transform(name),
			logfields.DurationMS(float64(elapsed.Microseconds())/1000))
	}
	return nil
}
