// Package minify writes minified copies of the staged scripts and
// stylesheets next to the originals.
package minify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms"
)

// Transform names.
const (
	NameJS  = "jsmin"
	NameCSS = "cssmin"
)

// DefaultSuffix is inserted between the base name and the extension of the
// minified copy.
const DefaultSuffix = "-min"

const (
	mediaJS  = "application/javascript"
	mediaCSS = "text/css"
)

// Transform minifies one kind of file.
type Transform struct {
	name      string
	ext       string
	mediaType string
	opts      transforms.Options
	m         *tdminify.M
}

func newTransform(name, ext, mediaType string, opts transforms.Options) *Transform {
	if opts.Base == "" {
		opts.Base = transforms.DefaultBase
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	m := tdminify.New()
	m.AddFunc(mediaJS, js.Minify)
	m.AddFunc(mediaCSS, css.Minify)
	return &Transform{name: name, ext: ext, mediaType: mediaType, opts: opts, m: m}
}

// NewJS returns the JavaScript minifier.
func NewJS(opts transforms.Options) *Transform {
	return newTransform(NameJS, ".js", mediaJS, opts)
}

// NewCSS returns the stylesheet minifier.
func NewCSS(opts transforms.Options) *Transform {
	return newTransform(NameCSS, ".css", mediaCSS, opts)
}

// JSFactory adapts NewJS to pipeline.Factory.
func JSFactory(settings map[string]any) (pipeline.Transform, error) {
	opts, err := transforms.DecodeOptions(settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NameJS, err)
	}
	return NewJS(opts), nil
}

// CSSFactory adapts NewCSS to pipeline.Factory.
func CSSFactory(settings map[string]any) (pipeline.Transform, error) {
	opts, err := transforms.DecodeOptions(settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", NameCSS, err)
	}
	return NewCSS(opts), nil
}

func (t *Transform) Name() string { return t.name }

// MinifiedName returns the file name of the minified copy of name.
func (t *Transform) MinifiedName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + t.opts.Suffix + filepath.Ext(name)
}

// Apply minifies every top-level file of the base directory in the staging
// destination, skipping files that already are minified copies.
func (t *Transform) Apply(ctx context.Context, in *pipeline.Input) error {
	log := in.Log().With(logfields.Transform(t.name))
	dir := filepath.Join(in.DestDir, t.opts.Base)

	files, err := transforms.Files(dir, t.ext)
	if err != nil {
		return err
	}
	count := 0
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		base := filepath.Base(src)
		if strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), t.opts.Suffix) {
			continue
		}
		if err := t.minifyFile(src, filepath.Join(dir, t.MinifiedName(base))); err != nil {
			return fmt.Errorf("minify %s: %w", base, err)
		}
		count++
	}
	log.DebugContext(ctx, "Files minified", logfields.Files(count))
	return nil
}

func (t *Transform) minifyFile(src, dst string) (err error) {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return t.m.Minify(t.mediaType, w, r)
}
