package plan

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemType identifies the kind of work a plan item represents.
type ItemType string

const (
	TypeTrack        ItemType = "track"
	TypeAlbum        ItemType = "album"
	TypeArtist       ItemType = "artist"
	TypePlaylist     ItemType = "playlist"
	TypePlaylistFile ItemType = "playlist_file"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case TypeTrack, TypeAlbum, TypeArtist, TypePlaylist, TypePlaylistFile:
		return true
	}
	return false
}

// IsContainer reports whether items of this type aggregate child items.
func (t ItemType) IsContainer() bool {
	switch t {
	case TypeAlbum, TypeArtist, TypePlaylist:
		return true
	}
	return false
}

// rank orders item types for display sorting: tracks first, playlist files last.
func (t ItemType) rank() int {
	switch t {
	case TypeTrack:
		return 0
	case TypeAlbum:
		return 1
	case TypeArtist:
		return 2
	case TypePlaylist:
		return 3
	case TypePlaylistFile:
		return 4
	}
	return 5
}

// UnmarshalJSON rejects unknown item types at the deserialization boundary.
func (t *ItemType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := ItemType(s)
	if !v.Valid() {
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidPlan, s)
	}
	*t = v
	return nil
}

// Status is the lifecycle state of a plan item.
//
// Leaf items move Pending -> InProgress -> {Completed, Failed}, or directly
// Pending -> Skipped for pre-flight skips. Completed, Failed and Skipped are
// terminal for leaves; containers are re-evaluated across reconciliation
// passes until all their children are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown statuses at the deserialization boundary.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	v := Status(str)
	if !v.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPlan, str)
	}
	*s = v
	return nil
}

// Item is one node in the plan's work graph.
//
// Parent/child linkage is id-based: the plan owns all items, and ChildIDs
// reference siblings by id rather than by pointer. Fields are mutated in
// place by whichever stage currently owns the item; during execution all
// status mutations go through the owning [Plan] so snapshots stay coherent.
type Item struct {
	ID          string         `json:"item_id"`
	Type        ItemType       `json:"item_type"`
	SpotifyID   string         `json:"spotify_id,omitempty"`
	SpotifyURL  string         `json:"spotify_url,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	ChildIDs    []string       `json:"child_ids,omitempty"`
	CreatedAt   float64        `json:"created_at"`
	StartedAt   float64        `json:"started_at,omitempty"`
	CompletedAt float64        `json:"completed_at,omitempty"`
	Progress    float64        `json:"progress"`
}

// ItemID builds the namespaced plan-wide id for an item kind and external id.
func ItemID(t ItemType, externalID string) string {
	return string(t) + ":" + externalID
}

// NewItem creates a Pending item with its creation timestamp set.
func NewItem(t ItemType, externalID, name string) *Item {
	id := ItemID(t, externalID)
	return &Item{
		ID:        id,
		Type:      t,
		SpotifyID: externalID,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: nowStamp(),
	}
}

// SetMeta records a metadata key on the item, allocating the map on first use.
func (it *Item) SetMeta(key string, value any) {
	if it.Metadata == nil {
		it.Metadata = map[string]any{}
	}
	it.Metadata[key] = value
}

// Meta returns the metadata value for key, or nil.
func (it *Item) Meta(key string) any {
	if it.Metadata == nil {
		return nil
	}
	return it.Metadata[key]
}

// addChild appends childID to ChildIDs if not already present.
func (it *Item) addChild(childID string) {
	for _, id := range it.ChildIDs {
		if id == childID {
			return
		}
	}
	it.ChildIDs = append(it.ChildIDs, childID)
}

// MarkStarted flips a Pending item to InProgress. StartedAt is set once and
// never cleared. During execution the caller must hold the plan lock.
func (it *Item) MarkStarted() {
	if it.Status != StatusPending {
		return
	}
	it.Status = StatusInProgress
	if it.StartedAt == 0 {
		it.StartedAt = nowStamp()
	}
}

// MarkCompleted finalizes an item as Completed, recording the artifact path.
// During execution the caller must hold the plan lock.
func (it *Item) MarkCompleted(filePath string) {
	it.Status = StatusCompleted
	if filePath != "" {
		it.FilePath = filePath
	}
	it.Error = ""
	it.Progress = 1.0
	if it.CompletedAt == 0 {
		it.CompletedAt = nowStamp()
	}
}

// MarkFailed finalizes an item as Failed with a human-readable message.
// During execution the caller must hold the plan lock.
func (it *Item) MarkFailed(msg string) {
	it.Status = StatusFailed
	it.Error = msg
	if it.CompletedAt == 0 {
		it.CompletedAt = nowStamp()
	}
}

// MarkSkipped finalizes a Pending item as Skipped, without passing through
// InProgress. The reason is recorded on the error field and filePath, when
// known, points at the pre-existing artifact.
func (it *Item) MarkSkipped(reason, filePath string) {
	it.Status = StatusSkipped
	it.Error = reason
	if filePath != "" {
		it.FilePath = filePath
	}
	if it.CompletedAt == 0 {
		it.CompletedAt = nowStamp()
	}
}

// nowStamp returns the current time as fractional epoch seconds, the unit the
// persisted snapshot format uses.
func nowStamp() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
