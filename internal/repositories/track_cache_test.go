package repositories

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/quietriver/waveplan/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return db
}

func TestTrackCache(t *testing.T) {
	track := &models.Track{
		ID:          "t1",
		Name:        "Cached Song",
		URL:         "https://open.spotify.com/track/t1",
		Artists:     []string{"Lead", "Feature"},
		AlbumID:     "alb1",
		AlbumName:   "Album",
		AlbumArtist: "Lead",
		TrackNumber: 4,
		DiscNumber:  1,
		DurationMS:  200000,
		ReleaseDate: "2018-06-01",
		ISRC:        "USRC11111111",
		CoverURL:    "https://img.example/c.jpg",
		Explicit:    true,
	}

	t.Run("RoundTrip", func(t *testing.T) {
		cache := NewTrackCache(newTestDB(t))

		if err := cache.PutTrack(track); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, ok := cache.GetTrack("t1")
		if !ok {
			t.Fatal("expected cache hit")
		}
		if got.Name != track.Name || got.ISRC != track.ISRC {
			t.Errorf("fields lost: %+v", got)
		}
		if len(got.Artists) != 2 || got.Artists[0] != "Lead" {
			t.Errorf("artists lost: %v", got.Artists)
		}
		if !got.Explicit {
			t.Error("explicit flag lost")
		}
		if got.TrackNumber != 4 || got.DurationMS != 200000 {
			t.Errorf("numeric fields lost: %+v", got)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		cache := NewTrackCache(newTestDB(t))

		if _, ok := cache.GetTrack("absent"); ok {
			t.Error("expected cache miss")
		}
	})

	t.Run("DuplicatePutIsNoop", func(t *testing.T) {
		cache := NewTrackCache(newTestDB(t))

		if err := cache.PutTrack(track); err != nil {
			t.Fatal(err)
		}

		changed := *track
		changed.Name = "Renamed"
		if err := cache.PutTrack(&changed); err != nil {
			t.Fatalf("second put should not error: %v", err)
		}

		got, _ := cache.GetTrack("t1")
		if got.Name != "Cached Song" {
			t.Errorf("first write should win, got %q", got.Name)
		}
	})

	t.Run("MigrateIsIdempotent", func(t *testing.T) {
		db := newTestDB(t)
		if err := Migrate(db); err != nil {
			t.Errorf("second migration failed: %v", err)
		}
	})
}
