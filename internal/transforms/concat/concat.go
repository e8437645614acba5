// Package concat merges configured groups of staged files into single
// outputs.
//
// The "concat" key of fb.page.json maps an output path (relative to the
// staging destination) to the ordered list of inputs (relative to the
// staging source). Every input is streamed into the output followed by the
// line separator of the page fileFormat, the last file included.
package concat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/pagecfg"
	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
)

// Name is the transform name.
const Name = "concat"

const bufferSize = 32 * 1024

// Job is one output file and its ordered inputs, all resolved to absolute paths.
type Job struct {
	Output  string
	Files   []string
	LineEnd string
}

// Transform implements pipeline.Transform.
type Transform struct{}

// New returns the concat transform.
func New() *Transform { return &Transform{} }

// Factory adapts New to pipeline.Factory. concat takes no sub-configuration.
func Factory(map[string]any) (pipeline.Transform, error) { return New(), nil }

func (*Transform) Name() string { return Name }

// Apply runs every job concurrently. Within a job files are written strictly
// in order. The first error is returned once all started jobs have finished.
func (t *Transform) Apply(ctx context.Context, in *pipeline.Input) error {
	log := in.Log().With(logfields.Transform(Name))

	jobs, err := Jobs(ctx, in)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		log.DebugContext(ctx, "No concat jobs configured")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			n, err := run(gctx, job)
			in.Metrics().AddConcatBytes(n)
			if err != nil {
				return fmt.Errorf("concat %s: %w", job.Output, err)
			}
			log.DebugContext(ctx, "Concatenated files", logfields.Output(job.Output), logfields.Files(len(job.Files)))
			return nil
		})
	}
	return g.Wait()
}

// Jobs derives the concat jobs of a build from its settings. Entries with an
// empty output key or without any usable input are skipped with a warning.
func Jobs(ctx context.Context, in *pipeline.Input) ([]Job, error) {
	log := in.Log().With(logfields.Transform(Name))
	if in.Settings == nil {
		return nil, nil
	}
	raw, ok := in.Settings.Get(pagecfg.KeyConcat)
	if !ok || raw == nil {
		return nil, nil
	}
	entries, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object mapping output paths to file lists, got %T", pagecfg.KeyConcat, raw)
	}

	outputs := make([]string, 0, len(entries))
	for out := range entries {
		outputs = append(outputs, out)
	}
	slices.Sort(outputs)

	lineEnd := in.Settings.LineEnd()
	seen := make(map[string]string, len(entries))
	jobs := make([]Job, 0, len(entries))
	for _, out := range outputs {
		if strings.TrimSpace(out) == "" {
			log.WarnContext(ctx, "Concat entry without output path skipped")
			continue
		}
		files := inputFiles(entries[out])
		if len(files) == 0 {
			log.WarnContext(ctx, "Concat entry without input files skipped", logfields.Output(out))
			continue
		}

		target, err := resolve(in.DestDir, out)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[target]; dup {
			return nil, fmt.Errorf("concat outputs %q and %q resolve to the same file %s", prev, out, target)
		}
		seen[target] = out

		job := Job{Output: target, LineEnd: lineEnd, Files: make([]string, 0, len(files))}
		for _, f := range files {
			src, err := resolve(in.SrcDir, f)
			if err != nil {
				return nil, err
			}
			job.Files = append(job.Files, src)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// inputFiles keeps the non-blank strings of a list value.
func inputFiles(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	files := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			files = append(files, s)
		}
	}
	return files
}

// resolve joins rel onto base and rejects results outside base.
func resolve(base, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative", rel)
	}
	p := filepath.Join(base, filepath.FromSlash(rel))
	r, err := filepath.Rel(base, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, base)
	}
	return p, nil
}

// run writes one job and returns the number of bytes written.
func run(ctx context.Context, job Job) (written int64, err error) {
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(job.Output)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, bufferSize)
	sep := []byte(job.LineEnd)
	for _, file := range job.Files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := appendFile(out, file, buf)
		written += n
		if err != nil {
			return written, err
		}
		m, err := out.Write(sep)
		written += int64(m)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func appendFile(w io.Writer, path string, buf []byte) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return io.CopyBuffer(w, f, buf)
}
