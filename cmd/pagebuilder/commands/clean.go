package commands

import "fmt"

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Name string `arg:"" name:"name" help:"Page name"`
}

func (c *CleanCmd) Run(g *Global, _ *CLI) error {
	svc, closeFn, err := g.Service()
	if err != nil {
		return err
	}
	defer closeFn()

	removed, err := svc.Clean(c.Name)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		_, _ = fmt.Fprintln(g.Out, "Nothing to clean")
		return nil
	}
	for _, dir := range removed {
		_, _ = fmt.Fprintf(g.Out, "Removed %s\n", dir)
	}
	return nil
}
