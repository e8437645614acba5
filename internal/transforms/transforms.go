// Package transforms holds what the file transforms of a page build share:
// option decoding, file selection and external tool invocation.
package transforms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultBase is the directory, relative to the staging directories, the
// transforms work on.
const DefaultBase = "core"

// Placeholders substituted in external commands.
const (
	PlaceholderIn  = "{in}"
	PlaceholderOut = "{out}"
)

var (
	// ErrToolNotFound is returned when an external command is not on PATH.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolFailed is returned when an external command exits unsuccessfully.
	ErrToolFailed = errors.New("tool execution failed")
)

// Options is the common configuration of a transform. It is decoded from the
// transform's section of fb.page.json, with Base defaulting to DefaultBase.
type Options struct {
	Base    string
	Command []string
	Suffix  string
}

// DecodeOptions reads base, command and suffix from settings. command may be
// a list of strings or a single whitespace separated string.
func DecodeOptions(settings map[string]any) (Options, error) {
	opts := Options{Base: DefaultBase}
	if v, ok := settings["base"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return Options{}, fmt.Errorf("base must be a string, got %T", v)
		}
		if strings.TrimSpace(s) != "" {
			opts.Base = strings.TrimSpace(s)
		}
	}
	if filepath.IsAbs(opts.Base) || strings.HasPrefix(filepath.Clean(filepath.FromSlash(opts.Base)), "..") {
		return Options{}, fmt.Errorf("base %q must stay inside the staging directory", opts.Base)
	}

	switch v := settings["command"].(type) {
	case nil:
	case string:
		opts.Command = strings.Fields(v)
	case []string:
		opts.Command = slices.Clone(v)
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return Options{}, fmt.Errorf("command entries must be strings, got %T", item)
			}
			opts.Command = append(opts.Command, s)
		}
	default:
		return Options{}, fmt.Errorf("command must be a string or a list, got %T", v)
	}

	if v, ok := settings["suffix"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return Options{}, fmt.Errorf("suffix must be a string, got %T", v)
		}
		opts.Suffix = s
	}
	return opts, nil
}

// Files lists the regular files directly inside dir whose extension is ext,
// sorted by name. A missing dir yields no files.
func Files(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

// ReplaceExt swaps the extension of name for ext.
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// CopyFile copies src to dst, creating the parent directory of dst.
func CopyFile(src, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// Expand substitutes the {in} and {out} placeholders in argv.
func Expand(argv []string, in, out string) []string {
	r := strings.NewReplacer(PlaceholderIn, in, PlaceholderOut, out)
	expanded := make([]string, len(argv))
	for i, a := range argv {
		expanded[i] = r.Replace(a)
	}
	return expanded
}

// RunTool runs argv with the placeholders substituted. When no argument
// mentions {out}, the tool's standard output becomes the content of out.
// Diagnostics are logged and, on failure, attached to the returned error.
func RunTool(ctx context.Context, log *slog.Logger, argv []string, in, out string) (err error) {
	if len(argv) == 0 {
		return fmt.Errorf("%w: empty command", ErrToolNotFound)
	}
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrToolNotFound, err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}

	args := Expand(argv[1:], in, out)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if !slices.ContainsFunc(argv[1:], func(a string) bool { return strings.Contains(a, PlaceholderOut) }) {
		f, ferr := os.Create(out)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		cmd.Stdout = f
	}
	log.DebugContext(ctx, "Invoking tool", "command", argv[0], "args", args)

	err = cmd.Run()

	outStr := strings.TrimSpace(stdout.String())
	errStr := strings.TrimSpace(stderr.String())
	if outStr != "" {
		log.DebugContext(ctx, "tool stdout", "command", argv[0], "output", outStr)
	}
	if errStr != "" {
		log.WarnContext(ctx, "tool stderr", "command", argv[0], "error_output", errStr)
	}
	if err != nil {
		output := errStr
		if output == "" {
			output = outStr
		}
		if output != "" {
			return fmt.Errorf("%w: %s: %w: %s", ErrToolFailed, argv[0], err, output)
		}
		return fmt.Errorf("%w: %s: %w", ErrToolFailed, argv[0], err)
	}
	return nil
}
