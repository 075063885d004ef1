package main

import (
	"context"
	"fmt"

	"github.com/quietriver/waveplan/internal/formatter"
	"github.com/quietriver/waveplan/internal/pipeline"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/urfave/cli/v3"
)

// Download generates a plan from configured sources and executes it.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	p, err := r.generatePlan(ctx)
	if err != nil {
		return err
	}
	if p.Len() == 0 {
		return r.writePlain("No sources configured; nothing to download.\n")
	}

	stats, exec, err := r.executePlan(ctx, cmd, p)
	if err != nil {
		return err
	}

	return r.writeStats(cmd, stats, exec.Interrupted())
}

// Resume loads the persisted plan and executes its remaining pending items.
func (r *Runner) Resume(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	path := r.planPath(cmd)
	p, err := plan.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load plan from %s: %w", path, err)
	}

	// Loaded plans may predate this run's config or carry duplicates from
	// merged sources; the optimizer passes apply to them as well.
	p, err = r.optimizePlan(ctx, p)
	if err != nil {
		return err
	}

	stats, exec, err := r.executePlan(ctx, cmd, p)
	if err != nil {
		return err
	}

	return r.writeStats(cmd, stats, exec.Interrupted())
}

// writeStats renders a run summary as JSON or styled text.
func (r *Runner) writeStats(cmd *cli.Command, stats pipeline.Stats, interrupted bool) error {
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"stats":       stats,
			"interrupted": interrupted,
		}, true)
	}
	return r.writePlain("%s", formatter.FormatStats(stats, interrupted))
}
