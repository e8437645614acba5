// Package lesscss compiles LESS stylesheets with an external compiler.
package lesscss

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms"
)

// Name is the transform name.
const Name = "lesscss"

// DefaultCommand is used when neither the tool config nor the page names a
// compiler.
var DefaultCommand = []string{"lessc", transforms.PlaceholderIn, transforms.PlaceholderOut}

// Transform implements pipeline.Transform.
type Transform struct {
	opts transforms.Options
}

// New returns the transform for opts. Empty fields take their defaults.
func New(opts transforms.Options) *Transform {
	if opts.Base == "" {
		opts.Base = transforms.DefaultBase
	}
	if len(opts.Command) == 0 {
		opts.Command = slices.Clone(DefaultCommand)
	}
	return &Transform{opts: opts}
}

// NewFactory returns a pipeline.Factory falling back to defaultCommand when
// the page settings name no command.
func NewFactory(defaultCommand []string) pipeline.Factory {
	return func(settings map[string]any) (pipeline.Transform, error) {
		opts, err := transforms.DecodeOptions(settings)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", Name, err)
		}
		if len(opts.Command) == 0 {
			opts.Command = slices.Clone(defaultCommand)
		}
		return New(opts), nil
	}
}

func (*Transform) Name() string { return Name }

// Apply compiles every top-level .less file of the base directory into a
// .css file of the same name in the staging destination.
func (t *Transform) Apply(ctx context.Context, in *pipeline.Input) error {
	log := in.Log().With(logfields.Transform(Name))

	files, err := transforms.Files(filepath.Join(in.SrcDir, t.opts.Base), ".less")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.DebugContext(ctx, "No LESS sources")
		return nil
	}

	dstDir := filepath.Join(in.DestDir, t.opts.Base)
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(dstDir, transforms.ReplaceExt(filepath.Base(src), ".css"))
		if err := transforms.RunTool(ctx, log, t.opts.Command, src, dst); err != nil {
			return fmt.Errorf("compile %s: %w", filepath.Base(src), err)
		}
	}
	log.DebugContext(ctx, "LESS compiled", logfields.Files(len(files)))
	return nil
}
