// Package csscombo inlines local @import rules of stylesheets.
package csscombo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms"
)

// Name is the transform name.
const Name = "csscombo"

var (
	importRule  = regexp.MustCompile(`@import\s+(?:url\(\s*["']?([^"')]+?)["']?\s*\)|["']([^"']+)["'])\s*;[ \t]*\r?\n?`)
	charsetRule = regexp.MustCompile(`(?i)^\s*@charset\s+["'][^"']*["']\s*;[ \t]*\r?\n?`)
)

// Transform implements pipeline.Transform.
type Transform struct {
	opts transforms.Options
}

// New returns the transform for opts. An empty Base means transforms.DefaultBase.
func New(opts transforms.Options) *Transform {
	if opts.Base == "" {
		opts.Base = transforms.DefaultBase
	}
	return &Transform{opts: opts}
}

// Factory adapts New to pipeline.Factory.
func Factory(settings map[string]any) (pipeline.Transform, error) {
	opts, err := transforms.DecodeOptions(settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	return New(opts), nil
}

func (*Transform) Name() string { return Name }

func (t *Transform) Apply(ctx context.Context, in *pipeline.Input) error {
	log := in.Log().With(logfields.Transform(Name))
	dstDir := filepath.Join(in.DestDir, t.opts.Base)

	files, err := transforms.Files(filepath.Join(in.SrcDir, t.opts.Base), ".css")
	if err != nil {
		return err
	}
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := &combiner{root: in.SrcDir, active: map[string]bool{}, done: map[string]bool{}}
		out, err := c.combine(src)
		if err != nil {
			return fmt.Errorf("combine %s: %w", filepath.Base(src), err)
		}
		if err := os.MkdirAll(dstDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dstDir, filepath.Base(src)), out, 0o644); err != nil {
			return err
		}
		log.DebugContext(ctx, "Stylesheet combined", logfields.Path(src), "imports", len(c.done)-1)
	}
	return nil
}

// combiner inlines the imports of one entry stylesheet. Each file is
// inlined at most once; an import of a file still being expanded is a cycle.
type combiner struct {
	root   string
	active map[string]bool
	done   map[string]bool
}

func (c *combiner) combine(path string) ([]byte, error) {
	if c.active[path] {
		return nil, fmt.Errorf("import cycle through %s", path)
	}
	c.active[path] = true
	defer delete(c.active, path)
	c.done[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	last := 0
	for _, m := range importRule.FindAllSubmatchIndex(data, -1) {
		ref := submatch(data, m, 1)
		if ref == "" {
			ref = submatch(data, m, 2)
		}
		if remote(ref) {
			continue
		}
		target, err := c.resolve(filepath.Dir(path), ref)
		if err != nil {
			return nil, err
		}

		buf.Write(data[last:m[0]])
		last = m[1]
		if c.done[target] && !c.active[target] {
			continue
		}
		inner, err := c.combine(target)
		if err != nil {
			return nil, err
		}
		inner = charsetRule.ReplaceAll(inner, nil)
		buf.Write(inner)
		if len(inner) > 0 && inner[len(inner)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(data[last:])
	return buf.Bytes(), nil
}

func (c *combiner) resolve(dir, ref string) (string, error) {
	ref, _, _ = strings.Cut(ref, "?")
	target := filepath.Join(dir, filepath.FromSlash(ref))
	rel, err := filepath.Rel(c.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("import %q escapes the page sources", ref)
	}
	return target, nil
}

func submatch(data []byte, m []int, group int) string {
	if m[2*group] < 0 {
		return ""
	}
	return strings.TrimSpace(string(data[m[2*group]:m[2*group+1]]))
}

func remote(ref string) bool {
	return strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") || strings.HasPrefix(ref, "data:") ||
		filepath.IsAbs(ref) || strings.HasPrefix(ref, "/")
}
