package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quietriver/waveplan/internal/models"
)

// TrackCache implements services.TrackCacher over a SQLite database.
//
// Writes deduplicate on the primary key: caching the same track twice is a
// no-op rather than an error.
type TrackCache struct {
	db *sql.DB
}

// NewTrackCache creates a TrackCache over an open database. Run [Migrate]
// first.
func NewTrackCache(db *sql.DB) *TrackCache {
	return &TrackCache{db: db}
}

// GetTrack returns the cached record for a catalog ID, if present.
func (c *TrackCache) GetTrack(id string) (*models.Track, bool) {
	row := c.db.QueryRow(`
		SELECT id, name, url, artists, album_id, album_name, album_artist,
		       track_number, disc_number, duration_ms, release_date, isrc,
		       cover_url, explicit
		FROM tracks WHERE id = ?`, id)

	var t models.Track
	var artistsJSON string
	var explicit int
	err := row.Scan(
		&t.ID, &t.Name, &t.URL, &artistsJSON, &t.AlbumID, &t.AlbumName,
		&t.AlbumArtist, &t.TrackNumber, &t.DiscNumber, &t.DurationMS,
		&t.ReleaseDate, &t.ISRC, &t.CoverURL, &explicit,
	)
	if err != nil {
		return nil, false
	}

	if err := json.Unmarshal([]byte(artistsJSON), &t.Artists); err != nil {
		return nil, false
	}
	t.Explicit = explicit != 0

	return &t, true
}

// PutTrack stores a record, silently ignoring duplicates.
func (c *TrackCache) PutTrack(t *models.Track) error {
	artistsJSON, err := json.Marshal(t.Artists)
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}

	explicit := 0
	if t.Explicit {
		explicit = 1
	}

	_, err = c.db.Exec(`
		INSERT OR IGNORE INTO tracks (
			id, name, url, artists, album_id, album_name, album_artist,
			track_number, disc_number, duration_ms, release_date, isrc,
			cover_url, explicit, cached_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.URL, string(artistsJSON), t.AlbumID, t.AlbumName,
		t.AlbumArtist, t.TrackNumber, t.DiscNumber, t.DurationMS,
		t.ReleaseDate, t.ISRC, t.CoverURL, explicit,
		float64(time.Now().UnixNano())/float64(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to cache track: %w", err)
	}

	return nil
}
