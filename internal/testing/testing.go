// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/quietriver/waveplan/internal/models"
)

// MockMetadataSource is a test double for [services.MetadataSource]. Each
// field overrides one method; unset methods return a not-found error.
type MockMetadataSource struct {
	TrackFn          func(ctx context.Context, id string) (*models.Track, error)
	AlbumFn          func(ctx context.Context, id string) (*models.Album, error)
	PlaylistFn       func(ctx context.Context, id string) (*models.Playlist, error)
	PlaylistTracksFn func(ctx context.Context, id string, offset, limit int) (*models.PlaylistPage, error)
	ArtistFn         func(ctx context.Context, id string) (*models.Artist, error)
	ArtistAlbumsFn   func(ctx context.Context, id string) ([]models.Album, error)
}

var errMockNotConfigured = errors.New("mock method not configured")

func (m *MockMetadataSource) FetchTrack(ctx context.Context, id string) (*models.Track, error) {
	if m.TrackFn == nil {
		return nil, errMockNotConfigured
	}
	return m.TrackFn(ctx, id)
}

func (m *MockMetadataSource) FetchAlbum(ctx context.Context, id string) (*models.Album, error) {
	if m.AlbumFn == nil {
		return nil, errMockNotConfigured
	}
	return m.AlbumFn(ctx, id)
}

func (m *MockMetadataSource) FetchPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	if m.PlaylistFn == nil {
		return nil, errMockNotConfigured
	}
	return m.PlaylistFn(ctx, id)
}

func (m *MockMetadataSource) FetchPlaylistTracks(ctx context.Context, id string, offset, limit int) (*models.PlaylistPage, error) {
	if m.PlaylistTracksFn == nil {
		return nil, errMockNotConfigured
	}
	return m.PlaylistTracksFn(ctx, id, offset, limit)
}

func (m *MockMetadataSource) FetchArtist(ctx context.Context, id string) (*models.Artist, error) {
	if m.ArtistFn == nil {
		return nil, errMockNotConfigured
	}
	return m.ArtistFn(ctx, id)
}

func (m *MockMetadataSource) FetchArtistAlbums(ctx context.Context, id string) ([]models.Album, error) {
	if m.ArtistAlbumsFn == nil {
		return nil, errMockNotConfigured
	}
	return m.ArtistAlbumsFn(ctx, id)
}

// MockDownloader is a test double for [pipeline.Downloader].
type MockDownloader struct {
	DownloadFn func(ctx context.Context, spotifyURL string) (string, error)
	UpdateFn   func(ctx context.Context, spotifyURL, path string) error
}

func (m *MockDownloader) Download(ctx context.Context, spotifyURL string) (string, error) {
	if m.DownloadFn == nil {
		return "", errMockNotConfigured
	}
	return m.DownloadFn(ctx, spotifyURL)
}

func (m *MockDownloader) UpdateMetadata(ctx context.Context, spotifyURL, path string) error {
	if m.UpdateFn == nil {
		return errMockNotConfigured
	}
	return m.UpdateFn(ctx, spotifyURL, path)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter forwards the first n writes to w and fails afterwards,
// used to exercise partial-write error paths.
type LimitedWriter struct {
	remaining int
	w         io.Writer
}

func NewLimitedWriter(n int, w io.Writer) *LimitedWriter {
	return &LimitedWriter{remaining: n, w: w}
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.remaining <= 0 {
		return 0, errors.New("write limit reached")
	}
	l.remaining--
	return l.w.Write(p)
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	RoundTripFn func(*http.Request) (*http.Response, error)

	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.RoundTripFn != nil {
		return m.RoundTripFn(req)
	}
	return m.response, m.err
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

// DiscardBody drains and closes a response body in tests that only check
// status handling.
func DiscardBody(t *testing.T, body io.ReadCloser) {
	t.Helper()
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
