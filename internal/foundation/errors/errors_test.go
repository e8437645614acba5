package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "fb.page.json").
			Build()

		require.Equal(t, CategoryConfig, err.Category())
		require.Equal(t, SeverityFatal, err.Severity())
		require.Equal(t, "invalid configuration", err.Message())

		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		require.Equal(t, "fb.page.json", file)
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		inner := ConfigError("test error").Build()
		wrapped := fmt.Errorf("activate: %w", inner)

		require.True(t, IsClassified(wrapped))
		require.True(t, HasCategory(wrapped, CategoryConfig))
		require.Equal(t, CategoryConfig, GetCategory(wrapped))
		require.Equal(t, SeverityFatal, GetSeverity(wrapped))
		require.True(t, inner.IsFatal())
	})

	t.Run("Unclassified defaults", func(t *testing.T) {
		plain := errors.New("plain")
		require.False(t, IsClassified(plain))
		require.Equal(t, CategoryInternal, GetCategory(plain))
		require.Equal(t, SeverityError, GetSeverity(plain))
	})
}

func TestErrorBuilder(t *testing.T) {
	sentinel := errors.New("sentinel")
	cause := fmt.Errorf("%w: disk full", sentinel)

	err := WrapError(cause, CategoryFileSystem, "write manifest").
		Warning().
		WithContext("path", "/tmp/x").
		Build()

	require.Equal(t, CategoryFileSystem, err.Category())
	require.Equal(t, SeverityWarning, err.Severity())
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, "[filesystem:warning] write manifest: sentinel: disk full", err.Error())

	extended := err.WithContext("attempt", 2)
	_, had := err.Context().Get("attempt")
	require.False(t, had, "WithContext must not mutate the receiver")
	v, ok := extended.Context().Get("attempt")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
	}{
		{"ConfigError", ConfigError("x"), CategoryConfig, SeverityFatal},
		{"ValidationError", ValidationError("x"), CategoryValidation, SeverityFatal},
		{"NotFoundError", NotFoundError("x"), CategoryNotFound, SeverityError},
		{"BuildError", BuildError("x"), CategoryBuild, SeverityFatal},
		{"TransformError", TransformError("x"), CategoryTransform, SeverityFatal},
		{"FileSystemError", FileSystemError("x"), CategoryFileSystem, SeverityError},
		{"CharsetError", CharsetError("x"), CategoryCharset, SeverityError},
		{"InternalError", InternalError("x"), CategoryInternal, SeverityFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Build()
			require.Equal(t, tt.category, err.Category())
			require.Equal(t, tt.severity, err.Severity())
		})
	}
}

func TestErrorContextMerge(t *testing.T) {
	ctx1 := ErrorContext{}.Set("key1", "value1").Set("shared", "original")
	ctx2 := ErrorContext{}.Set("key2", "value2").Set("shared", "overridden")

	merged := ctx1.Merge(ctx2)

	v1, _ := merged.GetString("key1")
	v2, _ := merged.GetString("key2")
	shared, _ := merged.GetString("shared")
	require.Equal(t, "value1", v1)
	require.Equal(t, "value2", v2)
	require.Equal(t, "overridden", shared)
}
