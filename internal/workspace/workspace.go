package workspace

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
)

// Staging directory names under a page root.
const (
	SrcDirName  = "page_src_temp"
	DestDirName = "page_build_temp"
)

const dirPerm = 0o755

// Manager handles the staging directories of one page root.
type Manager struct {
	root    string
	srcDir  string
	destDir string
	logger  *slog.Logger
}

// NewManager creates a staging manager for root.
func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		root:    root,
		srcDir:  filepath.Join(root, SrcDirName),
		destDir: filepath.Join(root, DestDirName),
		logger:  logger,
	}
}

// SrcDir returns the staging source directory.
func (m *Manager) SrcDir() string { return m.srcDir }

// DestDir returns the staging destination directory.
func (m *Manager) DestDir() string { return m.destDir }

// IsStagingName reports whether name is reserved for a staging directory.
func IsStagingName(name string) bool {
	return name == SrcDirName || name == DestDirName
}

// Create recreates both staging directories empty, deleting any previous content.
func (m *Manager) Create() error {
	for _, dir := range []string{m.srcDir, m.destDir} {
		if err := os.RemoveAll(dir); err != nil {
			return builderrors.IO("remove staging directory", dir, err)
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return builderrors.IO("create staging directory", dir, err)
		}
	}
	m.logger.Debug("Created staging directories", logfields.Path(m.srcDir), logfields.Output(m.destDir))
	return nil
}

// Cleanup removes both staging directories. Missing directories are fine.
func (m *Manager) Cleanup() error {
	for _, dir := range []string{m.srcDir, m.destDir} {
		if err := os.RemoveAll(dir); err != nil {
			return builderrors.IO("remove staging directory", dir, err)
		}
	}
	m.logger.Debug("Removed staging directories", logfields.Path(m.root))
	return nil
}

// Stale lists staging directories that currently exist on disk.
func (m *Manager) Stale() []string {
	var found []string
	for _, dir := range []string{m.srcDir, m.destDir} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			found = append(found, dir)
		}
	}
	return found
}

// EnsureDir creates path (and parents) if absent. It reports whether the
// directory was created; an already existing directory is not an error.
func EnsureDir(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil:
		return false, builderrors.IO("path exists and is not a directory", path, fs.ErrExist)
	case !errors.Is(err, fs.ErrNotExist):
		return false, builderrors.IO("stat directory", path, err)
	}
	if err := os.MkdirAll(path, dirPerm); err != nil {
		// A concurrent creator winning the race is benign.
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return false, nil
		}
		return false, builderrors.IO("create directory", path, err)
	}
	return true, nil
}
