package main

import (
	"context"
	"fmt"

	"github.com/quietriver/waveplan/internal/formatter"
	"github.com/quietriver/waveplan/internal/pipeline"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/urfave/cli/v3"
)

// PlanGenerate resolves sources into a plan and persists it without
// downloading anything.
func (r *Runner) PlanGenerate(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	p, err := r.generatePlan(ctx)
	if err != nil {
		return err
	}

	path := r.planPath(cmd)
	if err := p.Save(path); err != nil {
		return fmt.Errorf("failed to persist plan to %s: %w", path, err)
	}
	r.logger.Info("plan persisted", "path", path, "items", p.Len())

	return r.writePlanListing(cmd, p)
}

// PlanShow prints the persisted plan.
func (r *Runner) PlanShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	path := r.planPath(cmd)
	p, err := plan.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load plan from %s: %w", path, err)
	}

	return r.writePlanListing(cmd, p)
}

// Status prints the track tally of the persisted plan.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	path := r.planPath(cmd)
	p, err := plan.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load plan from %s: %w", path, err)
	}

	counts := p.CountByStatus(plan.TypeTrack)
	stats := pipeline.Stats{
		Completed:  counts[plan.StatusCompleted],
		Failed:     counts[plan.StatusFailed],
		Pending:    counts[plan.StatusPending],
		InProgress: counts[plan.StatusInProgress],
	}
	stats.Total = stats.Completed + stats.Failed + stats.Pending + stats.InProgress

	if cmd.Bool("json") {
		data, err := formatter.StatsJSON(stats)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}
	return r.writePlain("%s", formatter.FormatStats(stats, false))
}

func (r *Runner) writePlanListing(cmd *cli.Command, p *plan.Plan) error {
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"items":      p.Items,
			"created_at": p.CreatedAt,
			"metadata":   p.Metadata,
		}, true)
	}
	return r.writePlain("%s", formatter.FormatPlan(p))
}
