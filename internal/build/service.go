package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/pagebuilder/internal/manifest"
	"git.home.luguber.info/inful/pagebuilder/internal/versionstore"
)

// BuildService is the canonical interface for executing page builds.
type BuildService interface {
	// Run activates req.Ref and builds it into <root>/<name>/<timestamp>.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest names the version to build and the publish timestamp.
type BuildRequest struct {
	Ref       versionstore.Ref
	Timestamp string

	// Trigger describes what started the build (manual, change, interval).
	Trigger string
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	Status    BuildStatus
	BuildID   string
	Manifest  *manifest.BuildManifest
	OutputDir string

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time
}

// BuildStatus represents the final status of a build.
type BuildStatus string

const (
	BuildStatusSuccess  BuildStatus = "success"
	BuildStatusFailed   BuildStatus = "failed"
	BuildStatusCanceled BuildStatus = "canceled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}

// TimestampLayout formats generated build timestamps.
const TimestampLayout = "20060102150405"

// NewTimestamp returns a publish timestamp for t.
func NewTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
