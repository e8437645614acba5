// Package versionstore creates and reads the numbered versions of a page.
//
// A version is a directory named like "1.0" or "2.1.3" under the page root
// holding the sources (core, mods, test), the fb.page.json record and two
// generated launcher scripts.
package versionstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	builderrors "git.home.luguber.info/inful/pagebuilder/internal/build/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/jsonfile"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/pagecfg"
	"git.home.luguber.info/inful/pagebuilder/internal/workspace"
)

// Launcher script names and the fixed source subdirectories of a version.
const (
	ShellLauncher = "fb-build.sh"
	BatchLauncher = "fb-build.bat"
)

// SourceDirs are created beneath every version directory.
var SourceDirs = []string{"core", "mods", "test"}

const launcherPerm = 0o777

var (
	versionPattern = regexp.MustCompile(`^(\d+\.)+\d+$`)
	refPattern     = regexp.MustCompile(`^(\w[\w\-~]*)[@/\\](\d+(?:\.\d+)+)$`)
)

// ValidVersion reports whether v is dotted digits with at least two groups.
func ValidVersion(v string) bool {
	return versionPattern.MatchString(v)
}

// Ref identifies one version of one page.
type Ref struct {
	Name    string
	Version string
}

func (r Ref) String() string { return r.Name + "@" + r.Version }

// ParseRef parses "name@1.0", "name/1.0" or `name\1.0`.
func ParseRef(s string) (Ref, error) {
	m := refPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Ref{}, builderrors.New(builderrors.ErrInvalidVersionFormat,
			fmt.Sprintf("%q is not <name>@<version>, expected for example home@1.0", s), nil)
	}
	return Ref{Name: m[1], Version: m[2]}, nil
}

// Store reads and writes the versions of one page.
type Store struct {
	Root            string
	Name            string
	DefaultCharset  string
	LauncherCommand string
	Logger          *slog.Logger
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Store) defaultCharset() string {
	if s.DefaultCharset == "" {
		return "utf8"
	}
	return s.DefaultCharset
}

func (s *Store) launcherCommand() string {
	if s.LauncherCommand == "" {
		return "pagebuilder"
	}
	return s.LauncherCommand
}

// VersionDir returns the directory of version.
func (s *Store) VersionDir(version string) string {
	return filepath.Join(s.Root, version)
}

// RecordPath returns the fb.page.json location of version.
func (s *Store) RecordPath(version string) string {
	return filepath.Join(s.VersionDir(version), pagecfg.FileName)
}

// Exists reports whether the version directory is present.
func (s *Store) Exists(version string) bool {
	info, err := os.Stat(s.VersionDir(version))
	return err == nil && info.IsDir()
}

// Create lays out version on disk. Every step tolerates earlier runs: the
// directories and launchers are only created when missing and an existing
// record is merged with the defaults, its own keys taking precedence.
func (s *Store) Create(ctx context.Context, version string) (pagecfg.Record, error) {
	if !ValidVersion(version) {
		return nil, builderrors.New(builderrors.ErrInvalidVersionFormat,
			fmt.Sprintf("version %q must look like 1.0", version), nil)
	}
	log := s.logger().With(logfields.Page(s.Name), logfields.Version(version))
	versionDir := s.VersionDir(version)

	created, err := workspace.EnsureDir(versionDir)
	if err != nil {
		return nil, err
	}
	if !created {
		log.Info("Version directory exists", logfields.Path(versionDir))
	}
	for _, name := range SourceDirs {
		dir := filepath.Join(versionDir, name)
		created, err := workspace.EnsureDir(dir)
		if err != nil {
			return nil, err
		}
		if !created {
			log.Debug("Source directory exists, skipped", logfields.Path(dir))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.writeRecord(version)
	if err != nil {
		return nil, err
	}

	ref := Ref{Name: s.Name, Version: version}
	launchers := []struct{ name, content string }{
		{ShellLauncher, fmt.Sprintf("#!/bin/sh\n%s build %s/%s -t 000000", s.launcherCommand(), ref.Name, ref.Version)},
		{BatchLauncher, fmt.Sprintf("%s build %s -t 000000", s.launcherCommand(), ref)},
	}
	for _, l := range launchers {
		if err := writeLauncher(filepath.Join(versionDir, l.name), l.content, log); err != nil {
			return nil, err
		}
	}

	log.Info("Version ready", logfields.Path(versionDir))
	return record, nil
}

func (s *Store) writeRecord(version string) (pagecfg.Record, error) {
	path := s.RecordPath(version)
	defaults := pagecfg.Defaults(s.defaultCharset())

	record := defaults
	existing, err := jsonfile.ReadObject(path)
	switch {
	case err == nil:
		record = pagecfg.Record(existing).WithDefaults(defaults)
	case errors.Is(err, jsonfile.ErrDecode):
		return nil, builderrors.New(builderrors.ErrConfigCorrupt,
			fmt.Sprintf("%s exists but is not a valid JSON object, fix it and retry", path), err)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, builderrors.IO("read page config", path, err)
	}

	if err := jsonfile.Write(path, record, 0o644); err != nil {
		return nil, builderrors.IO("write page config", path, err)
	}
	return record, nil
}

func writeLauncher(path, content string, log *slog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		log.Info("Launcher exists, skipped", logfields.Path(path))
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return builderrors.IO("stat launcher", path, err)
	}
	if err := os.WriteFile(path, []byte(content), launcherPerm); err != nil {
		return builderrors.IO("write launcher", path, err)
	}
	// WriteFile is subject to the umask.
	if err := os.Chmod(path, launcherPerm); err != nil {
		return builderrors.IO("chmod launcher", path, err)
	}
	return nil
}

// Load reads the record of an existing version.
func (s *Store) Load(version string) (pagecfg.Record, error) {
	if !s.Exists(version) {
		return nil, builderrors.New(builderrors.ErrVersionNotFound,
			fmt.Sprintf("%s@%s does not exist", s.Name, version), nil)
	}
	path := s.RecordPath(version)
	obj, err := jsonfile.ReadObject(path)
	switch {
	case err == nil:
		return pagecfg.Record(obj), nil
	case errors.Is(err, jsonfile.ErrDecode), errors.Is(err, fs.ErrNotExist):
		return nil, builderrors.New(builderrors.ErrConfigCorrupt, "cannot read "+path, err)
	default:
		return nil, builderrors.IO("read page config", path, err)
	}
}

// Versions lists the version directories under the root, oldest first.
func (s *Store) Versions() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, builderrors.IO("list versions", s.Root, err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && ValidVersion(e.Name()) {
			versions = append(versions, e.Name())
		}
	}
	slices.SortFunc(versions, CompareVersions)
	return versions, nil
}

// CompareVersions orders dotted versions numerically ("1.10" after "1.9").
func CompareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, _ := strconv.Atoi(as[i])
		bi, _ := strconv.Atoi(bs[i])
		if ai != bi {
			if ai < bi {
				return -1
			}
			return 1
		}
	}
	return len(as) - len(bs)
}
