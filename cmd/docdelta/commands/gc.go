package commands

import (
	"context"
	"fmt"
)

// GCCmd implements the 'gc' command.
type GCCmd struct{}

func (c *GCCmd) Run(g *Global, root *CLI) error {
	cfg, logger, err := root.load()
	if err != nil {
		return err
	}
	rt, err := openState(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	removed, err := rt.store.GC(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "removed %d unreferenced objects\n", removed)
	return nil
}
