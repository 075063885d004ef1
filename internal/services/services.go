// package services defines the collaborator interfaces the plan pipeline
// consumes: the catalog metadata source, the audio provider and the track
// downloader that combines them.
package services

import (
	"context"

	"github.com/quietriver/waveplan/internal/models"
)

// MetadataSource is the narrow interface to the catalog metadata service.
//
// Every method returns a structured record or an error; implementations
// handle their own authentication, rate limiting and caching and must be
// safe for concurrent use from multiple workers.
type MetadataSource interface {
	// FetchTrack retrieves a single track by catalog ID.
	FetchTrack(ctx context.Context, id string) (*models.Track, error)

	// FetchAlbum retrieves an album by ID including its full track listing.
	FetchAlbum(ctx context.Context, id string) (*models.Album, error)

	// FetchPlaylist retrieves playlist metadata by ID, without tracks.
	FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error)

	// FetchPlaylistTracks retrieves one page of a playlist's track listing.
	FetchPlaylistTracks(ctx context.Context, id string, offset, limit int) (*models.PlaylistPage, error)

	// FetchArtist retrieves an artist by ID.
	FetchArtist(ctx context.Context, id string) (*models.Artist, error)

	// FetchArtistAlbums retrieves the artist's studio albums and singles,
	// excluding compilations and appears-on entries. Track listings are not
	// populated; fetch each album separately.
	FetchArtistAlbums(ctx context.Context, id string) ([]models.Album, error)
}

// AudioProvider locates and fetches audio for a track.
type AudioProvider interface {
	// Download searches the provider for query (an "Artist - Title" string or
	// a direct URL) and writes the audio to destination. Returns the final
	// file path, which may differ from destination in extension.
	Download(ctx context.Context, query, destination string) (string, error)
}

// TrackCacher caches track records between runs so repeated plan passes do
// not re-fetch metadata. Implementations must be safe for concurrent use.
type TrackCacher interface {
	// GetTrack returns the cached record for a catalog ID, if present.
	GetTrack(id string) (*models.Track, bool)

	// PutTrack stores a record, silently ignoring duplicates.
	PutTrack(t *models.Track) error
}
