package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// SessionsPrune deletes expired sessions from the configured store.
func (r *Runner) SessionsPrune(ctx context.Context, cmd *cli.Command) error {
	backend, err := r.openSessionStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s session store: %w", r.config.Session.Backend, err)
	}
	defer backend.close()

	n, err := backend.store.Prune(ctx, r.now())
	if err != nil {
		return err
	}

	r.logger.Info("pruned expired sessions", "backend", r.config.Session.Backend, "count", n)
	return r.writePlain("✓ Removed %d expired sessions\n", n)
}
