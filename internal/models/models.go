package models

import "strings"

// Track represents a single song resolved from the metadata source.
type Track struct {
	ID          string   // External catalog ID
	Name        string   // Track title
	URL         string   // Canonical external URL
	Artists     []string // All credited artists, primary first
	AlbumID     string   // Owning album ID
	AlbumName   string   // Owning album title
	AlbumArtist string   // Album-level artist credit
	TrackNumber int      // 1-based position on the disc
	DiscNumber  int      // 1-based disc number
	DurationMS  int      // Duration in milliseconds
	ReleaseDate string   // Album release date (YYYY or YYYY-MM-DD)
	ISRC        string   // International Standard Recording Code
	CoverURL    string   // Album cover image URL
	Explicit    bool
}

// Artist returns the primary artist credit, or an empty string.
func (t Track) Artist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// JoinedArtists returns all artist credits joined for display.
func (t Track) JoinedArtists() string {
	return strings.Join(t.Artists, ", ")
}

// Display returns the "Artist - Title" form used in playlist files and logs.
func (t Track) Display() string {
	if t.Artist() == "" {
		return t.Name
	}
	return t.Artist() + " - " + t.Name
}

// Album represents an album with its full track listing.
type Album struct {
	ID          string
	Name        string
	URL         string
	Artist      string
	AlbumGroup  string // "album", "single", "compilation" or "appears_on"
	ReleaseDate string
	TotalTracks int
	CoverURL    string
	Tracks      []Track
}

// Artist represents an artist from the metadata source.
type Artist struct {
	ID     string
	Name   string
	URL    string
	Genres []string
}

// Playlist represents playlist metadata. The track listing is paged and
// retrieved separately via [PlaylistPage].
type Playlist struct {
	ID          string
	Name        string
	URL         string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
}

// PlaylistEntry is a single position in a playlist. Entries added from a
// user's local files have no underlying catalog track and cannot be resolved.
type PlaylistEntry struct {
	Track   *Track // nil when the entry has no underlying track
	IsLocal bool
}

// PlaylistPage is one page of a playlist's track listing.
type PlaylistPage struct {
	Items  []PlaylistEntry
	Total  int
	Offset int
	Limit  int
}

// HasNext reports whether another page follows this one.
func (p PlaylistPage) HasNext() bool {
	return p.Offset+len(p.Items) < p.Total
}
