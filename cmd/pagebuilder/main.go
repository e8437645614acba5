package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagebuilder/cmd/pagebuilder/commands"
	ferrors "git.home.luguber.info/inful/pagebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("pagebuilder"),
		kong.Description("Build versioned static pages: compile, combine and minify front-end sources."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	if err != nil {
		ferrors.NewCLIErrorAdapter(false, nil).HandleError(ferrors.InternalError(err.Error()).Build())
		return
	}

	ctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		// Configuration failures from AfterApply are classified; anything
		// else is a usage error.
		if _, ok := ferrors.AsClassified(err); ok {
			ferrors.NewCLIErrorAdapter(cli.Verbose, cli.Logger()).HandleError(err)
			return
		}
		parser.FatalIfErrorf(err)
	}

	err = ctx.Run(cli.Global(os.Stdout), cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, cli.Logger()).HandleError(err)
}
