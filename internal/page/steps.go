package page

import (
	"git.home.luguber.info/inful/pagebuilder/internal/pagecfg"
	"git.home.luguber.info/inful/pagebuilder/internal/pipeline"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms/concat"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms/csscombo"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms/lesscss"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms/minify"
	"git.home.luguber.info/inful/pagebuilder/internal/transforms/modulecompiler"
)

// Step names a transform of the build pipeline and the fb.page.json key
// holding its sub-configuration. An empty Key means the transform reads the
// snapshot directly.
type Step struct {
	Name string
	Key  string
}

// Steps is the fixed pipeline order installed on activation.
var Steps = []Step{
	{Name: modulecompiler.Name, Key: pagecfg.KeyModuleCompiler},
	{Name: csscombo.Name, Key: pagecfg.KeyCSSCombo},
	{Name: lesscss.Name, Key: pagecfg.KeyLess},
	{Name: concat.Name},
	{Name: minify.NameJS, Key: pagecfg.KeyUglify},
	{Name: minify.NameCSS, Key: pagecfg.KeyCSSMin},
}

// Tools are the external commands configured for the build host.
type Tools struct {
	Lessc          []string
	ModuleCompiler []string
}

// DefaultRegistry registers a factory for every Step.
func DefaultRegistry(tools Tools) *pipeline.Registry {
	lessc := tools.Lessc
	if len(lessc) == 0 {
		lessc = lesscss.DefaultCommand
	}
	return pipeline.NewRegistry().
		MustRegister(modulecompiler.Name, modulecompiler.NewFactory(tools.ModuleCompiler)).
		MustRegister(csscombo.Name, csscombo.Factory).
		MustRegister(lesscss.Name, lesscss.NewFactory(lessc)).
		MustRegister(concat.Name, concat.Factory).
		MustRegister(minify.NameJS, minify.JSFactory).
		MustRegister(minify.NameCSS, minify.CSSFactory)
}
