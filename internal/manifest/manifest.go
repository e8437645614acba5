// Package manifest models build.json, the record written into a published
// output directory once its build succeeded.
package manifest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/pagebuilder/internal/jsonfile"
)

// FileName is the manifest file inside a published output directory.
const FileName = "build.json"

// TimeLayout renders build_time the way browsers print a Date.
const TimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// BuildManifest describes one successful build.
type BuildManifest struct {
	BuildVersion string `json:"build_version"`
	BuildTime    string `json:"build_time"`
	// BuildUsedTime is the elapsed build time in milliseconds, measured from
	// the start of staging.
	BuildUsedTime int64 `json:"build_used_time"`
}

// New returns the manifest of a build of version that started at start and
// finished at end.
func New(version string, start, end time.Time) *BuildManifest {
	used := end.Sub(start).Milliseconds()
	if used < 0 {
		used = 0
	}
	return &BuildManifest{
		BuildVersion:  version,
		BuildTime:     end.Format(TimeLayout),
		BuildUsedTime: used,
	}
}

// Duration returns BuildUsedTime as a time.Duration.
func (m *BuildManifest) Duration() time.Duration {
	return time.Duration(m.BuildUsedTime) * time.Millisecond
}

// ToJSON serializes the manifest to JSON.
func (m *BuildManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*BuildManifest, error) {
	var m BuildManifest
	if err := jsonfile.Decode(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Path returns the manifest location inside an output directory.
func Path(outputDir string) string {
	return filepath.Join(outputDir, FileName)
}

// Write stores m as outputDir/build.json.
func Write(outputDir string, m *BuildManifest) error {
	if err := jsonfile.Write(Path(outputDir), m, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Read loads outputDir/build.json.
func Read(outputDir string) (*BuildManifest, error) {
	var m BuildManifest
	if err := jsonfile.Read(Path(outputDir), &m); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return &m, nil
}
