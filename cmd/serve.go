package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/quietriver/waveplan/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP status server over the persisted plan until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := server.Serve(ctx, addr, r.planPath(cmd), r.logger)
	if err == context.Canceled {
		return nil
	}
	return err
}
