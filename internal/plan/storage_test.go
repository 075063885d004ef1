package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPlanPersistence(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		p := New()
		p.SetPhase("executing_tracks")

		track := NewItem(TypeTrack, "t1", "Song")
		track.SpotifyURL = "https://open.spotify.com/track/t1"
		track.SetMeta("artist", "Someone")
		track.MarkStarted()
		track.MarkCompleted("/music/song.mp3")

		album := NewItem(TypeAlbum, "alb1", "Album")
		album.ChildIDs = []string{track.ID}
		track.ParentID = album.ID

		skipped := NewItem(TypeTrack, "t2", "Existing")
		skipped.MarkSkipped("file already exists", "/music/existing.mp3")

		for _, it := range []*Item{track, album, skipped} {
			if err := p.Add(it); err != nil {
				t.Fatal(err)
			}
		}

		path := filepath.Join(t.TempDir(), "plan.json")
		if err := p.Save(path); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		loaded, err := Load(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}

		if loaded.Len() != 3 {
			t.Fatalf("expected 3 items, got %d", loaded.Len())
		}
		if loaded.Metadata["phase"] != "executing_tracks" {
			t.Errorf("phase not preserved: %v", loaded.Metadata["phase"])
		}

		got, ok := loaded.Get("track:t1")
		if !ok {
			t.Fatal("track:t1 missing after round trip")
		}
		if got.Status != StatusCompleted {
			t.Errorf("status not preserved: %s", got.Status)
		}
		if got.FilePath != "/music/song.mp3" {
			t.Errorf("file path not preserved: %s", got.FilePath)
		}
		if got.ParentID != "album:alb1" {
			t.Errorf("parent id not preserved: %s", got.ParentID)
		}
		if got.StartedAt == 0 || got.CompletedAt == 0 {
			t.Error("timestamps not preserved")
		}
		if got.Meta("artist") != "Someone" {
			t.Errorf("metadata not preserved: %v", got.Meta("artist"))
		}

		gotAlbum, _ := loaded.Get("album:alb1")
		if len(gotAlbum.ChildIDs) != 1 || gotAlbum.ChildIDs[0] != "track:t1" {
			t.Errorf("child ids not preserved: %v", gotAlbum.ChildIDs)
		}

		gotSkipped, _ := loaded.Get("track:t2")
		if gotSkipped.Status != StatusSkipped || gotSkipped.Error != "file already exists" {
			t.Errorf("skip reason not preserved: %s %q", gotSkipped.Status, gotSkipped.Error)
		}
	})

	t.Run("SaveCreatesParentDirs", func(t *testing.T) {
		p := New()
		path := filepath.Join(t.TempDir(), "nested", "dir", "plan.json")

		if err := p.Save(path); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("plan file should exist: %v", err)
		}
	})

	t.Run("RejectsUnknownStatus", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plan.json")
		doc := `{"items": [{"item_id": "track:t1", "item_type": "track", "name": "X", "status": "exploded", "created_at": 1, "progress": 0}], "created_at": 1}`
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := Load(path); err == nil {
			t.Fatal("expected error for unknown status")
		}
	})

	t.Run("RejectsUnknownType", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plan.json")
		doc := `{"items": [{"item_id": "x:1", "item_type": "mixtape", "name": "X", "status": "pending", "created_at": 1, "progress": 0}], "created_at": 1}`
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := Load(path); err == nil {
			t.Fatal("expected error for unknown item type")
		}
	})

	t.Run("RejectsDuplicateIDs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plan.json")
		doc := `{"items": [
			{"item_id": "track:t1", "item_type": "track", "name": "A", "status": "pending", "created_at": 1, "progress": 0},
			{"item_id": "track:t1", "item_type": "track", "name": "B", "status": "pending", "created_at": 1, "progress": 0}
		], "created_at": 1}`
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := Load(path)
		if err == nil {
			t.Fatal("expected error for duplicate ids")
		}
		if !errors.Is(err, ErrInvalidPlan) {
			t.Errorf("expected ErrInvalidPlan, got %v", err)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		if err == nil {
			t.Fatal("expected error for missing file")
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist in chain, got %v", err)
		}
	})
}
