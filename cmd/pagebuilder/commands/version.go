package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/pagebuilder/internal/versionstore"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct {
	Ref string `arg:"" name:"ref" help:"Page version to create, for example home@1.0"`
}

func (v *VersionCmd) Run(g *Global, _ *CLI) error {
	ref, err := versionstore.ParseRef(v.Ref)
	if err != nil {
		return err
	}
	svc, closeFn, err := g.Service()
	if err != nil {
		return err
	}
	defer closeFn()

	store := svc.Store(ref.Name)
	if _, err := store.Create(context.Background(), ref.Version); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "Version %s ready in %s\n", ref, store.VersionDir(ref.Version))
	return nil
}
