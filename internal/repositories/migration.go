package repositories

import (
	"database/sql"
	"fmt"
)

// trackSchema is the cache table for catalog track records. Artists are
// stored JSON-encoded since SQLite has no array type.
const trackSchema = `
CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	artists TEXT NOT NULL,
	album_id TEXT,
	album_name TEXT,
	album_artist TEXT,
	track_number INTEGER,
	disc_number INTEGER,
	duration_ms INTEGER,
	release_date TEXT,
	isrc TEXT,
	cover_url TEXT,
	explicit INTEGER NOT NULL DEFAULT 0,
	cached_at REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tracks_isrc ON tracks(isrc);
`

// Migrate creates the cache schema if it does not exist.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(trackSchema); err != nil {
		return fmt.Errorf("failed to run cache migration: %w", err)
	}
	return nil
}
