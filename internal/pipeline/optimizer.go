package pipeline

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/quietriver/waveplan/internal/audio"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/quietriver/waveplan/internal/services"
	"github.com/quietriver/waveplan/internal/shared"
)

// Optimizer prunes and orders a generated or loaded plan before execution.
//
// It runs three passes: collapse items that share an external id, pre-check
// the output directory for already-downloaded tracks under the configured
// overwrite policy, and sort the plan for display. The generator never emits
// duplicates within a single run, so the collapse pass matters for plans
// loaded from disk or merged across runs.
type Optimizer struct {
	metadata services.MetadataSource
	template string
	policy   string
	logger   *log.Logger
}

// OptimizerOpts configures an Optimizer.
type OptimizerOpts struct {
	// Metadata resolves track records for the existence pre-check.
	Metadata services.MetadataSource
	// Template is the output path template tracks materialize under.
	Template string
	// Policy is one of the shared.Overwrite* overwrite policies.
	Policy string
	Logger *log.Logger
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(opts OptimizerOpts) *Optimizer {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Optimizer{
		metadata: opts.Metadata,
		template: opts.Template,
		policy:   opts.Policy,
		logger:   shared.WithLogger(logger, "stage", "optimizer"),
	}
}

// Optimize mutates p in place and returns it. The returned error is only
// non-nil when the context is cancelled mid pre-check.
func (o *Optimizer) Optimize(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	p.SetPhase("optimizing")

	removed := o.collapseDuplicates(p)
	if removed > 0 {
		o.logger.Info("collapsed duplicate items", "removed", removed)
	}

	if err := o.precheckExisting(ctx, p); err != nil {
		return p, err
	}

	p.Sort()
	return p, nil
}

// collapseDuplicates removes items sharing another item's (type, external id)
// pair, keeping the first occurrence and rewriting child references so no
// container loses a member. Returns the number of items removed.
func (o *Optimizer) collapseDuplicates(p *plan.Plan) int {
	type key struct {
		t  plan.ItemType
		id string
	}

	survivors := map[key]*plan.Item{}
	var dupes [][2]string // duplicate id, survivor id

	for _, it := range p.Items {
		if it.SpotifyID == "" {
			continue
		}
		k := key{it.Type, it.SpotifyID}
		if surv, ok := survivors[k]; ok {
			dupes = append(dupes, [2]string{it.ID, surv.ID})
			continue
		}
		survivors[k] = it
	}

	for _, d := range dupes {
		dupID, survID := d[0], d[1]

		// The duplicate may carry children of its own; they belong to the
		// survivor now.
		if dup, ok := p.Get(dupID); ok {
			if surv, ok := p.Get(survID); ok {
				for _, cid := range dup.ChildIDs {
					if cid != survID {
						surv.ChildIDs = appendUnique(surv.ChildIDs, cid)
					}
				}
			}
		}

		o.rewriteChildRefs(p, dupID, survID)
		p.Remove(dupID)
	}

	// Reparent children whose ParentID pointed at a removed duplicate.
	for _, d := range dupes {
		dupID, survID := d[0], d[1]
		for _, it := range p.Items {
			if it.ParentID == dupID {
				it.ParentID = survID
			}
		}
	}

	return len(dupes)
}

// rewriteChildRefs replaces references to oldID with newID in every item's
// ChildIDs, dropping the reference instead when newID is already present.
func (o *Optimizer) rewriteChildRefs(p *plan.Plan, oldID, newID string) {
	for _, it := range p.Items {
		for i, cid := range it.ChildIDs {
			if cid != oldID {
				continue
			}
			if containsID(it.ChildIDs, newID) {
				it.ChildIDs = append(it.ChildIDs[:i], it.ChildIDs[i+1:]...)
			} else {
				it.ChildIDs[i] = newID
			}
			break
		}
	}
}

// precheckExisting resolves each pending track's destination path and applies
// the overwrite policy when the file already exists: skip marks the item
// Skipped up front, metadata-update leaves it pending but flags it so the
// executor refreshes tags instead of re-downloading. The overwrite policy
// never checks the disk at all.
func (o *Optimizer) precheckExisting(ctx context.Context, p *plan.Plan) error {
	if o.policy != shared.OverwriteSkip && o.policy != shared.OverwriteMetadata {
		return nil
	}

	for _, it := range p.ByType(plan.TypeTrack) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.Status != plan.StatusPending || it.SpotifyID == "" {
			continue
		}

		track, err := o.metadata.FetchTrack(ctx, it.SpotifyID)
		if err != nil {
			// Leave the item pending; the executor surfaces the real failure.
			o.logger.Debug("pre-check fetch failed", "id", it.SpotifyID, "err", err)
			continue
		}

		path := audio.ResolvePath(o.template, track)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		switch o.policy {
		case shared.OverwriteSkip:
			p.Skip(it, "file already exists", path)
			o.logger.Debug("skipping existing file", "path", path)
		case shared.OverwriteMetadata:
			it.FilePath = path
			it.SetMeta(metaMetadataOnly, true)
			o.logger.Debug("marking for metadata refresh", "path", path)
		}
	}

	return nil
}

func appendUnique(ids []string, id string) []string {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
