package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// API and provider errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrRateLimited      = fmt.Errorf("rate limited by API")
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrAlbumNotFound    = fmt.Errorf("album not found")
	ErrArtistNotFound   = fmt.Errorf("artist not found")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrDownloadFailed   = fmt.Errorf("download failed")

	// Input validation errors
	ErrInvalidSource = fmt.Errorf("invalid source URL")
)
