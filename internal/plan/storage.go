package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// snapshot is the on-disk JSON shape of a plan. The same document is read by
// the status server, so the field layout is part of the external interface.
type snapshot struct {
	Items     []*Item        `json:"items"`
	CreatedAt float64        `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Save atomically writes the plan as JSON to path using a temp file + rename.
// The plan lock is held while marshaling so a snapshot taken mid-execution is
// internally consistent.
func (p *Plan) Save(path string) error {
	p.mu.Lock()
	data, err := json.MarshalIndent(snapshot{
		Items:     p.Items,
		CreatedAt: p.CreatedAt,
		Metadata:  p.Metadata,
	}, "", "  ")
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create plan directory: %w", err)
		}
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Load reads a persisted plan snapshot and reconstructs an equivalent graph.
// Structural problems (unknown enum values, duplicate or missing ids) fail
// loudly with [ErrInvalidPlan]: a malformed plan cannot be safely reconciled.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	p := &Plan{
		Items:     snap.Items,
		CreatedAt: snap.CreatedAt,
		Metadata:  snap.Metadata,
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}

	for _, it := range p.Items {
		if !it.Type.Valid() {
			return nil, fmt.Errorf("%w: item %q has no type", ErrInvalidPlan, it.ID)
		}
		if !it.Status.Valid() {
			return nil, fmt.Errorf("%w: item %q has no status", ErrInvalidPlan, it.ID)
		}
	}

	if err := p.rebuildIndex(); err != nil {
		return nil, err
	}

	return p, nil
}
