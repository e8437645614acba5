// Package modulecompiler prepares the JavaScript modules of a page.
//
// Each top-level script of the base directory is either handed to the
// configured module compiler or, without one, copied unchanged into the
// staging destination.
package modulecompiler

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
const Name = "modulecompiler"

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

// NewFactory returns a pipeline.Factory whose transforms fall back to
// defaultCommand when the page settings name no command.
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

func (t *Transform) Apply(ctx context.Context, in *pipeline.Input) error {
	log := in.Log().With(logfields.Transform(Name))
	srcDir := filepath.Join(in.SrcDir, t.opts.Base)
	dstDir := filepath.Join(in.DestDir, t.opts.Base)

	files, err := transforms.Files(srcDir, ".js")
	if err != nil {
		return err
	}
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(dstDir, filepath.Base(src))
		if len(t.opts.Command) == 0 {
			err = transforms.CopyFile(src, dst)
		} else {
			err = transforms.RunTool(ctx, log, t.opts.Command, src, dst)
		}
		if err != nil {
			return fmt.Errorf("module %s: %w", filepath.Base(src), err)
		}
	}
	log.DebugContext(ctx, "Modules prepared", logfields.Files(len(files)))
	return nil
}
