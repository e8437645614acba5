package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/metrics"
)

type recordingRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	results map[string]metrics.ResultLabel
	timed   []string
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{results: map[string]metrics.ResultLabel{}}
}

func (r *recordingRecorder) ObserveTransformDuration(name string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timed = append(r.timed, name)
}

func (r *recordingRecorder) IncTransformResult(name string, result metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[name] = result
}

type nilPtrTransform struct{}

func (*nilPtrTransform) Name() string                        { return "nil" }
func (*nilPtrTransform) Apply(context.Context, *Input) error { return nil }

func TestRunStopsAtFirstFailure(t *testing.T) {
	var calls []string
	step := func(name string, err error) Transform {
		return Named(name, func(context.Context, *Input) error {
			calls = append(calls, name)
			return err
		})
	}

	boom := errors.New("lessc exited 1")
	rec := newRecordingRecorder()
	p := New(WithRecorder(rec)).
		Use(step("first", nil)).
		Use(step("second", boom)).
		Use(step("third", nil))

	err := p.Run(context.Background(), &Input{})
	require.Error(t, err)
	require.Equal(t, []string{"first", "second"}, calls, "third transform must never run")

	require.ErrorIs(t, err, builderrors.ErrTransformFailure)
	require.ErrorIs(t, err, boom)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryTransform))

	var te *TransformError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "second", te.Name)
	require.Equal(t, 1, te.Index)

	require.Equal(t, []string{"first", "second"}, rec.timed)
	require.Equal(t, metrics.ResultSuccess, rec.results["first"])
	require.Equal(t, metrics.ResultFailed, rec.results["second"])
	require.NotContains(t, rec.results, "third")
}

func TestUseDropsNilTransforms(t *testing.T) {
	var typedNil *nilPtrTransform
	p := New().
		Use(nil).
		Use(Func(nil)).
		Use(Named("nothing", nil)).
		Use(typedNil).
		Use(Named("kept", func(context.Context, *Input) error { return nil })).
		Use(Func(func(context.Context, *Input) error { return nil }))

	require.Equal(t, 2, p.Len())
	require.Equal(t, []string{"kept", "func"}, p.Names())
	require.NoError(t, p.Run(context.Background(), &Input{}))
}

func TestRunPassesInputInOrder(t *testing.T) {
	in := &Input{Page: "home", Version: "1.0", SrcDir: "/src", DestDir: "/dest"}
	var seen []string
	p := New()
	for _, name := range []string{"a", "b", "c"} {
		p.Use(Named(name, func(_ context.Context, got *Input) error {
			require.Same(t, in, got)
			seen = append(seen, name)
			return nil
		}))
	}

	require.NoError(t, p.Run(context.Background(), in))
	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestRunObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	p := New().
		Use(Named("cancel", func(context.Context, *Input) error {
			cancel()
			return nil
		})).
		Use(Named("after", func(context.Context, *Input) error {
			ran = true
			return nil
		}))

	err := p.Run(ctx, &Input{})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ran)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(settings map[string]any) (Transform, error) {
		if settings["bad"] == true {
			return nil, errors.New("bad settings")
		}
		return Named("concat", func(context.Context, *Input) error { return nil }), nil
	}

	require.NoError(t, r.Register("concat", factory))
	require.Error(t, r.Register("concat", factory))
	require.Error(t, r.Register("", factory))
	require.Error(t, r.Register("x", nil))
	require.Equal(t, []string{"concat"}, r.List())

	tr, err := r.Build("concat", nil)
	require.NoError(t, err)
	require.Equal(t, "concat", tr.Name())

	_, err = r.Build("concat", map[string]any{"bad": true})
	require.ErrorContains(t, err, "configure transform concat")

	_, err = r.Build("missing", nil)
	require.Error(t, err)

	require.Panics(t, func() { r.MustRegister("concat", factory) })
}
