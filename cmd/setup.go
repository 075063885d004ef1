package main

import (
	"context"

	"github.com/quietriver/waveplan/internal/repositories"
	"github.com/quietriver/waveplan/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates a starter config file and initializes the metadata cache.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("config file not created", "path", path, "err", err)
	} else {
		r.logger.Info("config file created", "path", path)
		if err := r.writePlain("Created %s; fill in your Spotify credentials and sources.\n", path); err != nil {
			return err
		}
	}

	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	if r.config.Cache.Path == "" {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Cache.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.Migrate(db); err != nil {
		return err
	}
	r.logger.Info("metadata cache initialized", "path", r.config.Cache.Path)

	return r.writePlain("Metadata cache ready at %s.\n", r.config.Cache.Path)
}
