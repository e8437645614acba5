package commands

import (
	"fmt"

	"git.home.luguber.info/inful/pagebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	return RunInit(g, root.Config, i.Force)
}

func RunInit(g *Global, configPath string, force bool) error {
	_, _ = fmt.Fprintf(g.Out, "Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "initialization failed").
			WithContext("path", configPath).
			Build()
	}
	_, _ = fmt.Fprintln(g.Out, "initialized successfully")
	return nil
}
