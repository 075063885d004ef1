// Package plan models a download run as a hierarchical graph of work items.
//
// A [Plan] owns a flat, ordered collection of [Item] nodes linked by id-based
// parent/child edges: tracks nest under albums, artists and playlists, and
// each playlist owns one derived playlist-file artifact. The plan is built by
// the generator, pruned and ordered by the optimizer, executed by the
// executor, and persisted as a JSON snapshot consumed by the status server.
//
// During execution the plan's collection is shared between track workers and
// the control goroutine. All status mutations and multi-item status reads
// must happen while holding the plan lock ([Plan.Lock]) so a reconciliation
// pass never observes a torn snapshot of a container's children.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidPlan marks structural errors: duplicate ids, unknown enum values
// and malformed snapshots. A structurally invalid plan cannot be reconciled,
// so these fail loudly instead of being recorded on an item.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan is the full work graph for one run plus run-level metadata.
type Plan struct {
	mu sync.Mutex

	// Items holds every node in generation order until the optimizer
	// re-sorts them. The slice is append/remove-mutated only before
	// execution; during execution only item fields change.
	Items []*Item

	CreatedAt float64
	Metadata  map[string]any

	index map[string]*Item
}

// New creates an empty plan stamped with the current time.
func New() *Plan {
	return &Plan{
		CreatedAt: nowStamp(),
		Metadata:  map[string]any{},
		index:     map[string]*Item{},
	}
}

// Lock acquires the plan's status lock. Workers and the reconciler hold it
// around every status mutation and every read-then-decide pass over a set of
// children.
func (p *Plan) Lock() { p.mu.Lock() }

// Unlock releases the plan's status lock.
func (p *Plan) Unlock() { p.mu.Unlock() }

// Add appends an item to the plan. Item ids are unique within a plan.
func (p *Plan) Add(it *Item) error {
	if it.ID == "" {
		return fmt.Errorf("%w: item has no id", ErrInvalidPlan)
	}
	if _, ok := p.index[it.ID]; ok {
		return fmt.Errorf("%w: duplicate item id %q", ErrInvalidPlan, it.ID)
	}
	p.Items = append(p.Items, it)
	p.index[it.ID] = it
	return nil
}

// Get looks up an item by id.
func (p *Plan) Get(id string) (*Item, bool) {
	it, ok := p.index[id]
	return it, ok
}

// Has reports whether an item with the given id exists.
func (p *Plan) Has(id string) bool {
	_, ok := p.index[id]
	return ok
}

// Len returns the number of items in the plan.
func (p *Plan) Len() int {
	return len(p.Items)
}

// Remove deletes the item with the given id from the plan. References to the
// removed id inside other items' ChildIDs are the caller's responsibility
// (see the optimizer's duplicate collapse).
func (p *Plan) Remove(id string) bool {
	if _, ok := p.index[id]; !ok {
		return false
	}
	delete(p.index, id)
	for i, it := range p.Items {
		if it.ID == id {
			p.Items = append(p.Items[:i], p.Items[i+1:]...)
			break
		}
	}
	return true
}

// ByType returns all items of the given type in plan order.
func (p *Plan) ByType(t ItemType) []*Item {
	var out []*Item
	for _, it := range p.Items {
		if it.Type == t {
			out = append(out, it)
		}
	}
	return out
}

// Containers returns all album, artist and playlist items in plan order.
func (p *Plan) Containers() []*Item {
	var out []*Item
	for _, it := range p.Items {
		if it.Type.IsContainer() {
			out = append(out, it)
		}
	}
	return out
}

// Children resolves a parent's ChildIDs to items, dropping references that no
// longer resolve.
func (p *Plan) Children(parent *Item) []*Item {
	var out []*Item
	for _, id := range parent.ChildIDs {
		if child, ok := p.index[id]; ok {
			out = append(out, child)
		}
	}
	return out
}

// Link records child as a child of parent, without duplicating an existing
// reference. The child's single ParentID is only set when it has none yet;
// linking an item under an additional container keeps its original parent.
func (p *Plan) Link(parent, child *Item) {
	parent.addChild(child.ID)
	if child.ParentID == "" {
		child.ParentID = parent.ID
	}
}

// Sort stable-sorts items by (type rank, name) ascending: tracks, albums,
// artists, playlists, playlist files. Display order only; execution order is
// phase-driven.
func (p *Plan) Sort() {
	sort.SliceStable(p.Items, func(i, j int) bool {
		a, b := p.Items[i], p.Items[j]
		if a.Type != b.Type {
			return a.Type.rank() < b.Type.rank()
		}
		return a.Name < b.Name
	})
}

// SetPhase records the run's current phase in the plan metadata.
func (p *Plan) SetPhase(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata["phase"] = phase
}

// SetRateLimit records active rate-limit backoff info in the plan metadata,
// or clears it when info is nil.
func (p *Plan) SetRateLimit(info map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	if info == nil {
		delete(p.Metadata, "rate_limit")
		return
	}
	p.Metadata["rate_limit"] = info
}

// Start marks a Pending item InProgress under the plan lock.
func (p *Plan) Start(it *Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it.MarkStarted()
}

// Complete finalizes an item as Completed under the plan lock.
func (p *Plan) Complete(it *Item, filePath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it.MarkCompleted(filePath)
}

// Fail finalizes an item as Failed under the plan lock.
func (p *Plan) Fail(it *Item, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it.MarkFailed(msg)
}

// Skip finalizes a Pending item as Skipped under the plan lock.
func (p *Plan) Skip(it *Item, reason, filePath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it.MarkSkipped(reason, filePath)
}

// CountByStatus tallies items of the given type per status. Pass an empty
// type to count every item.
func (p *Plan) CountByStatus(t ItemType) map[Status]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := map[Status]int{}
	for _, it := range p.Items {
		if t != "" && it.Type != t {
			continue
		}
		counts[it.Status]++
	}
	return counts
}

// rebuildIndex recreates the id index from the item slice, failing on
// duplicate or missing ids.
func (p *Plan) rebuildIndex() error {
	p.index = make(map[string]*Item, len(p.Items))
	for _, it := range p.Items {
		if it.ID == "" {
			return fmt.Errorf("%w: item %q has no id", ErrInvalidPlan, it.Name)
		}
		if _, ok := p.index[it.ID]; ok {
			return fmt.Errorf("%w: duplicate item id %q", ErrInvalidPlan, it.ID)
		}
		p.index[it.ID] = it
	}
	return nil
}
