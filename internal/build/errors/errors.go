// Package errors provides the sentinel errors of the page build lifecycle.
//
// Sentinels are never returned bare: New wraps them in a ClassifiedError whose
// cause chain still matches the sentinel with errors.Is, so callers can branch
// on the condition while the CLI maps the category to an exit code.
package errors

import (
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
)

var (
	// ErrInvalidVersionFormat indicates a version string is not dotted digits (for example "1.0").
	ErrInvalidVersionFormat = errors.New("invalid version format")
	// ErrVersionNotFound indicates the version directory does not exist under the page root.
	ErrVersionNotFound = errors.New("version not found")
	// ErrConfigCorrupt indicates fb.page.json exists but cannot be parsed.
	ErrConfigCorrupt = errors.New("page config corrupt")
	// ErrInvalidFileFormat indicates an unrecognized fileFormat line-ending name.
	ErrInvalidFileFormat = errors.New("invalid file format")
	// ErrNotActivated indicates a build was requested before any version was activated.
	ErrNotActivated = errors.New("page not activated")
	// ErrMissingTimestamp indicates a build was requested without a timestamp.
	ErrMissingTimestamp = errors.New("missing build timestamp")
	// ErrInvalidTimestamp indicates a timestamp that cannot name a publish directory.
	ErrInvalidTimestamp = errors.New("invalid build timestamp")
	// ErrBuildInProgress indicates a build is already running on the same page.
	ErrBuildInProgress = errors.New("build already in progress")
	// ErrTransformFailure indicates a pipeline transform reported an error.
	ErrTransformFailure = errors.New("transform failed")
	// ErrIO indicates a filesystem operation failed during a build phase.
	ErrIO = errors.New("filesystem operation failed")
)

// CategoryOf returns the error category a sentinel is reported under.
func CategoryOf(sentinel error) ferrors.ErrorCategory {
	switch {
	case errors.Is(sentinel, ErrInvalidVersionFormat),
		errors.Is(sentinel, ErrInvalidTimestamp),
		errors.Is(sentinel, ErrMissingTimestamp):
		return ferrors.CategoryValidation
	case errors.Is(sentinel, ErrConfigCorrupt), errors.Is(sentinel, ErrInvalidFileFormat):
		return ferrors.CategoryConfig
	case errors.Is(sentinel, ErrVersionNotFound):
		return ferrors.CategoryNotFound
	case errors.Is(sentinel, ErrNotActivated), errors.Is(sentinel, ErrBuildInProgress):
		return ferrors.CategoryBuild
	case errors.Is(sentinel, ErrTransformFailure):
		return ferrors.CategoryTransform
	case errors.Is(sentinel, ErrIO):
		return ferrors.CategoryFileSystem
	default:
		return ferrors.CategoryInternal
	}
}

// New classifies a sentinel. cause may be nil; when set it is chained after
// the sentinel so both match errors.Is.
func New(sentinel error, message string, cause error) *ferrors.ClassifiedError {
	chain := sentinel
	if cause != nil {
		chain = fmt.Errorf("%w: %w", sentinel, cause)
	}
	b := ferrors.WrapError(chain, CategoryOf(sentinel), message)
	if CategoryOf(sentinel) != ferrors.CategoryNotFound {
		b = b.Fatal()
	}
	return b.Build()
}

// IO classifies a filesystem failure on path.
func IO(message, path string, cause error) *ferrors.ClassifiedError {
	return New(ErrIO, message, cause).WithContext("path", path)
}
