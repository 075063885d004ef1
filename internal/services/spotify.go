// Spotify implementation of [MetadataSource]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/quietriver/waveplan/internal/models"
	"github.com/quietriver/waveplan/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	spotifyOpenURL  = "https://open.spotify.com"

	// Page sizes the API allows per listing endpoint.
	playlistPageLimit = 100
	albumPageLimit    = 50
)

// spotifyImage represents an image resource.
type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// spotifyArtist represents an artist record.
type spotifyArtist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	ExternalURLs externalURLs `json:"external_urls"`
}

// spotifyAlbum represents an album record; the tracks field is only present
// on the full-album endpoint.
type spotifyAlbum struct {
	ID           string                           `json:"id"`
	Name         string                           `json:"name"`
	Artists      []spotifyArtist                  `json:"artists"`
	AlbumGroup   string                           `json:"album_group"`
	AlbumType    string                           `json:"album_type"`
	ReleaseDate  string                           `json:"release_date"`
	TotalTracks  int                              `json:"total_tracks"`
	Images       []spotifyImage                   `json:"images"`
	ExternalURLs externalURLs                     `json:"external_urls"`
	Tracks       *spotifyPage[spotifySimpleTrack] `json:"tracks,omitempty"`
}

// spotifyTrack represents a full track record with album context.
type spotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []spotifyArtist `json:"artists"`
	Album        spotifyAlbum    `json:"album"`
	TrackNumber  int             `json:"track_number"`
	DiscNumber   int             `json:"disc_number"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	IsLocal      bool            `json:"is_local"`
}

// spotifySimpleTrack is the reduced track shape on album track listings.
type spotifySimpleTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []spotifyArtist `json:"artists"`
	TrackNumber  int             `json:"track_number"`
	DiscNumber   int             `json:"disc_number"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// spotifyPlaylist represents a playlist record.
type spotifyPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Public bool `json:"public"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
	ExternalURLs externalURLs `json:"external_urls"`
}

// spotifyPlaylistEntry is one position of a playlist track listing.
type spotifyPlaylistEntry struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *spotifyTrack `json:"track"`
}

// spotifyPage is a generic paginated listing response.
type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// SpotifyClient implements [MetadataSource] against the Spotify Web API using
// the client-credentials flow. Requests are rate limited and 429 responses
// honor Retry-After; active backoff is reported through OnRateLimit so the
// run can surface it in the plan metadata.
type SpotifyClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      TrackCacher
	logger     *log.Logger

	// OnRateLimit, when set, is called with backoff info when the API
	// throttles us, and with nil once requests resume.
	OnRateLimit func(info map[string]any)
}

// SpotifyClientOpts configures a [SpotifyClient].
type SpotifyClientOpts struct {
	ClientID     string
	ClientSecret string
	RateLimit    float64      // requests per second, default 5
	Cache        TrackCacher  // optional track record cache
	Logger       *log.Logger  // optional
	HTTPClient   *http.Client // overrides the oauth2 client, used in tests
}

// NewSpotifyClient creates a new Spotify metadata client.
func NewSpotifyClient(opts SpotifyClientOpts) (*SpotifyClient, error) {
	if opts.HTTPClient == nil {
		if opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
		}
		conf := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     spotifyTokenURL,
		}
		opts.HTTPClient = conf.Client(context.Background())
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SpotifyClient{
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		cache:      opts.Cache,
		logger:     shared.WithLogger(opts.Logger, "service", "spotify"),
	}, nil
}

// doRequest performs a rate-limited GET against the Spotify API, decoding the
// JSON response into result. 429 responses are retried after the server's
// Retry-After interval.
func (s *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	apiURL := spotifyBaseURL + endpoint

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()

			s.logger.Warn("rate limited", "endpoint", endpoint, "retry_after", retryAfter)
			s.reportRateLimit(map[string]any{
				"retry_after_seconds": retryAfter.Seconds(),
				"until":               float64(time.Now().Add(retryAfter).Unix()),
			})

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", shared.ErrRateLimited, ctx.Err())
			case <-time.After(retryAfter):
			}
			continue
		}

		s.reportRateLimit(nil)

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return fmt.Errorf("%w: spotify API status 404 for %s", shared.ErrAPIRequest, endpoint)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

func (s *SpotifyClient) reportRateLimit(info map[string]any) {
	if s.OnRateLimit != nil {
		s.OnRateLimit(info)
	}
}

// parseRetryAfter interprets a Retry-After header value in seconds. A missing
// or malformed header still backs off a little.
func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 2 * time.Second
}

// FetchTrack retrieves a single track by ID, consulting the cache first.
func (s *SpotifyClient) FetchTrack(ctx context.Context, id string) (*models.Track, error) {
	if s.cache != nil {
		if t, ok := s.cache.GetTrack(id); ok {
			return t, nil
		}
	}

	var st spotifyTrack
	if err := s.doRequest(ctx, fmt.Sprintf("/tracks/%s", id), &st); err != nil {
		return nil, fmt.Errorf("%w (%s): %v", shared.ErrTrackNotFound, id, err)
	}

	t := trackFromFull(st)
	if s.cache != nil {
		if err := s.cache.PutTrack(t); err != nil {
			s.logger.Warn("failed to cache track", "id", id, "err", err)
		}
	}
	return t, nil
}

// FetchAlbum retrieves an album with its complete track listing, paging
// through the album-tracks endpoint as needed.
func (s *SpotifyClient) FetchAlbum(ctx context.Context, id string) (*models.Album, error) {
	var sa spotifyAlbum
	if err := s.doRequest(ctx, fmt.Sprintf("/albums/%s", id), &sa); err != nil {
		return nil, fmt.Errorf("%w (%s): %v", shared.ErrAlbumNotFound, id, err)
	}

	album := albumFromRecord(sa)

	var simple []spotifySimpleTrack
	if sa.Tracks != nil {
		simple = append(simple, sa.Tracks.Items...)
	}
	for offset := len(simple); offset < sa.TotalTracks; {
		var page spotifyPage[spotifySimpleTrack]
		endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d&offset=%d", id, albumPageLimit, offset)
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("%w (%s): %v", shared.ErrAlbumNotFound, id, err)
		}
		if len(page.Items) == 0 {
			break
		}
		simple = append(simple, page.Items...)
		offset += len(page.Items)
	}

	for _, st := range simple {
		album.Tracks = append(album.Tracks, trackFromSimple(st, album))
	}

	return album, nil
}

// FetchPlaylist retrieves playlist metadata by ID.
func (s *SpotifyClient) FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var sp spotifyPlaylist
	if err := s.doRequest(ctx, fmt.Sprintf("/playlists/%s", id), &sp); err != nil {
		return nil, fmt.Errorf("%w (%s): %v", shared.ErrPlaylistNotFound, id, err)
	}

	owner := sp.Owner.DisplayName
	if owner == "" {
		owner = sp.Owner.ID
	}

	return &models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		URL:         urlOrOpen(sp.ExternalURLs.Spotify, "playlist", sp.ID),
		Description: sp.Description,
		Owner:       owner,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}, nil
}

// FetchPlaylistTracks retrieves one page of a playlist's track listing.
func (s *SpotifyClient) FetchPlaylistTracks(ctx context.Context, id string, offset, limit int) (*models.PlaylistPage, error) {
	if limit <= 0 || limit > playlistPageLimit {
		limit = playlistPageLimit
	}

	var page spotifyPage[spotifyPlaylistEntry]
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", id, limit, offset)
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, fmt.Errorf("%w (%s): %v", shared.ErrPlaylistNotFound, id, err)
	}

	out := &models.PlaylistPage{
		Total:  page.Total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}
	for _, entry := range page.Items {
		e := models.PlaylistEntry{IsLocal: entry.IsLocal}
		if entry.Track != nil && !entry.Track.IsLocal && entry.Track.ID != "" {
			e.Track = trackFromFull(*entry.Track)
		}
		out.Items = append(out.Items, e)
	}
	return out, nil
}

// FetchArtist retrieves an artist by ID.
func (s *SpotifyClient) FetchArtist(ctx context.Context, id string) (*models.Artist, error) {
	var sa spotifyArtist
	if err := s.doRequest(ctx, fmt.Sprintf("/artists/%s", id), &sa); err != nil {
		return nil, fmt.Errorf("%w (%s): %v", shared.ErrArtistNotFound, id, err)
	}

	return &models.Artist{
		ID:     sa.ID,
		Name:   sa.Name,
		URL:    urlOrOpen(sa.ExternalURLs.Spotify, "artist", sa.ID),
		Genres: sa.Genres,
	}, nil
}

// FetchArtistAlbums retrieves the artist's studio albums and singles,
// paginating through the listing. Compilations and appears-on entries are
// excluded by the include_groups filter; the album_group field is double
// checked since the API occasionally leaks extra entries.
func (s *SpotifyClient) FetchArtistAlbums(ctx context.Context, id string) ([]models.Album, error) {
	var albums []models.Album
	offset := 0

	for {
		var page spotifyPage[spotifyAlbum]
		endpoint := fmt.Sprintf("/artists/%s/albums?include_groups=album,single&limit=%d&offset=%d", id, albumPageLimit, offset)
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("%w (%s): %v", shared.ErrArtistNotFound, id, err)
		}

		for _, sa := range page.Items {
			group := sa.AlbumGroup
			if group == "" {
				group = sa.AlbumType
			}
			if group != "album" && group != "single" {
				continue
			}
			albums = append(albums, *albumFromRecord(sa))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return albums, nil
}

// trackFromFull converts a full API track record.
func trackFromFull(st spotifyTrack) *models.Track {
	t := &models.Track{
		ID:          st.ID,
		Name:        st.Name,
		URL:         urlOrOpen(st.ExternalURLs.Spotify, "track", st.ID),
		AlbumID:     st.Album.ID,
		AlbumName:   st.Album.Name,
		TrackNumber: st.TrackNumber,
		DiscNumber:  st.DiscNumber,
		DurationMS:  st.DurationMS,
		ReleaseDate: st.Album.ReleaseDate,
		ISRC:        st.ExternalIDs.ISRC,
		Explicit:    st.Explicit,
	}
	for _, a := range st.Artists {
		t.Artists = append(t.Artists, a.Name)
	}
	if len(st.Album.Artists) > 0 {
		t.AlbumArtist = st.Album.Artists[0].Name
	}
	if len(st.Album.Images) > 0 {
		t.CoverURL = st.Album.Images[0].URL
	}
	return t
}

// trackFromSimple converts an album-listing track record, filling album-level
// fields from the owning album.
func trackFromSimple(st spotifySimpleTrack, album *models.Album) models.Track {
	t := models.Track{
		ID:          st.ID,
		Name:        st.Name,
		URL:         urlOrOpen(st.ExternalURLs.Spotify, "track", st.ID),
		AlbumID:     album.ID,
		AlbumName:   album.Name,
		AlbumArtist: album.Artist,
		TrackNumber: st.TrackNumber,
		DiscNumber:  st.DiscNumber,
		DurationMS:  st.DurationMS,
		ReleaseDate: album.ReleaseDate,
		CoverURL:    album.CoverURL,
		Explicit:    st.Explicit,
	}
	for _, a := range st.Artists {
		t.Artists = append(t.Artists, a.Name)
	}
	return t
}

func albumFromRecord(sa spotifyAlbum) *models.Album {
	album := &models.Album{
		ID:          sa.ID,
		Name:        sa.Name,
		URL:         urlOrOpen(sa.ExternalURLs.Spotify, "album", sa.ID),
		AlbumGroup:  sa.AlbumGroup,
		ReleaseDate: sa.ReleaseDate,
		TotalTracks: sa.TotalTracks,
	}
	if album.AlbumGroup == "" {
		album.AlbumGroup = sa.AlbumType
	}
	if len(sa.Artists) > 0 {
		album.Artist = sa.Artists[0].Name
	}
	if len(sa.Images) > 0 {
		album.CoverURL = sa.Images[0].URL
	}
	return album
}

// urlOrOpen prefers the API-provided external URL, falling back to the
// canonical open.spotify.com form.
func urlOrOpen(url, kind, id string) string {
	if url != "" {
		return url
	}
	return fmt.Sprintf("%s/%s/%s", spotifyOpenURL, kind, id)
}

var spotifyIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// ParseSpotifyID extracts the catalog ID of the given kind ("track",
// "album", "artist" or "playlist") from an open.spotify.com URL, a
// spotify: URI or a bare ID.
func ParseSpotifyID(kind, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty source", shared.ErrInvalidSource)
	}

	// spotify:track:<id> URIs
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[1] == kind && spotifyIDPattern.MatchString(parts[2]) {
			return parts[2], nil
		}
		return "", fmt.Errorf("%w: %q is not a %s URI", shared.ErrInvalidSource, raw, kind)
	}

	// open.spotify.com/<kind>/<id>[?si=...]
	if strings.Contains(raw, "open.spotify.com/") {
		idx := strings.Index(raw, kind+"/")
		if idx < 0 {
			return "", fmt.Errorf("%w: %q is not a %s URL", shared.ErrInvalidSource, raw, kind)
		}
		id := raw[idx+len(kind)+1:]
		if q := strings.IndexAny(id, "?/#"); q >= 0 {
			id = id[:q]
		}
		if !spotifyIDPattern.MatchString(id) {
			return "", fmt.Errorf("%w: malformed id in %q", shared.ErrInvalidSource, raw)
		}
		return id, nil
	}

	if spotifyIDPattern.MatchString(raw) {
		return raw, nil
	}

	return "", fmt.Errorf("%w: %q", shared.ErrInvalidSource, raw)
}
