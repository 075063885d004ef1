package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/quietriver/waveplan/internal/models"
	"github.com/quietriver/waveplan/internal/shared"
	tu "github.com/quietriver/waveplan/internal/testing"
)

const testID = "4iV5W9uYEdYUVa79Axb7Rh"

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, rt http.RoundTripper) *SpotifyClient {
	t.Helper()
	client, err := NewSpotifyClient(SpotifyClientOpts{
		HTTPClient: &http.Client{Transport: rt},
		RateLimit:  1000,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestParseSpotifyID(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare id", "track", testID, testID, false},
		{"spotify uri", "track", "spotify:track:" + testID, testID, false},
		{"open url", "track", "https://open.spotify.com/track/" + testID, testID, false},
		{"open url with query", "track", "https://open.spotify.com/track/" + testID + "?si=xyz", testID, false},
		{"playlist url", "playlist", "https://open.spotify.com/playlist/" + testID, testID, false},
		{"artist uri", "artist", "spotify:artist:" + testID, testID, false},
		{"kind mismatch uri", "album", "spotify:track:" + testID, "", true},
		{"kind mismatch url", "track", "https://open.spotify.com/album/" + testID, "", true},
		{"short id", "track", "tooShort", "", true},
		{"empty", "track", "", "", true},
		{"garbage", "track", "not a spotify thing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpotifyID(tt.kind, tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if !errors.Is(err, shared.ErrInvalidSource) {
					t.Errorf("expected ErrInvalidSource, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpotifyClient_FetchTrack(t *testing.T) {
	trackJSON := `{
		"id": "` + testID + `",
		"name": "Test Song",
		"duration_ms": 210000,
		"track_number": 2,
		"disc_number": 1,
		"explicit": true,
		"artists": [{"id": "a1", "name": "Lead"}, {"id": "a2", "name": "Feature"}],
		"album": {
			"id": "alb1",
			"name": "Test Album",
			"release_date": "2020-01-15",
			"artists": [{"id": "a1", "name": "Lead"}],
			"images": [{"url": "https://img.example/cover.jpg"}]
		},
		"external_ids": {"isrc": "USRC12345678"},
		"external_urls": {"spotify": "https://open.spotify.com/track/` + testID + `"}
	}`

	t.Run("DecodesFullRecord", func(t *testing.T) {
		client := newTestClient(t, tu.NewMockRoundTripper(jsonResponse(200, trackJSON), nil))

		track, err := client.FetchTrack(context.Background(), testID)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}

		if track.Name != "Test Song" {
			t.Errorf("name = %q", track.Name)
		}
		if track.Artist() != "Lead" {
			t.Errorf("primary artist = %q", track.Artist())
		}
		if track.JoinedArtists() != "Lead, Feature" {
			t.Errorf("joined artists = %q", track.JoinedArtists())
		}
		if track.AlbumName != "Test Album" || track.AlbumArtist != "Lead" {
			t.Errorf("album fields = %q / %q", track.AlbumName, track.AlbumArtist)
		}
		if track.DurationMS != 210000 || track.TrackNumber != 2 {
			t.Errorf("numeric fields = %d / %d", track.DurationMS, track.TrackNumber)
		}
		if track.ISRC != "USRC12345678" {
			t.Errorf("isrc = %q", track.ISRC)
		}
		if track.CoverURL != "https://img.example/cover.jpg" {
			t.Errorf("cover = %q", track.CoverURL)
		}
		if !track.Explicit {
			t.Error("explicit flag lost")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		client := newTestClient(t, tu.NewMockRoundTripper(jsonResponse(404, `{"error": {"status": 404}}`), nil))

		_, err := client.FetchTrack(context.Background(), testID)
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("RetriesAfterRateLimit", func(t *testing.T) {
		var calls int64
		rt := &tu.MockRoundTripper{
			RoundTripFn: func(req *http.Request) (*http.Response, error) {
				if atomic.AddInt64(&calls, 1) == 1 {
					resp := jsonResponse(429, "")
					resp.Header.Set("Retry-After", "0")
					return resp, nil
				}
				return jsonResponse(200, trackJSON), nil
			},
		}
		client := newTestClient(t, rt)

		var backoffs []map[string]any
		client.OnRateLimit = func(info map[string]any) {
			backoffs = append(backoffs, info)
		}

		track, err := client.FetchTrack(context.Background(), testID)
		if err != nil {
			t.Fatalf("fetch after retry failed: %v", err)
		}
		if track.ID != testID {
			t.Errorf("wrong track %q", track.ID)
		}
		if atomic.LoadInt64(&calls) != 2 {
			t.Errorf("expected 2 requests, got %d", calls)
		}

		// One backoff report, then a nil once requests resume.
		if len(backoffs) != 2 {
			t.Fatalf("expected 2 rate limit reports, got %d", len(backoffs))
		}
		if backoffs[0] == nil {
			t.Error("first report should carry backoff info")
		}
		if backoffs[1] != nil {
			t.Error("second report should clear the backoff")
		}
	})

	t.Run("ServesFromCache", func(t *testing.T) {
		cached := &models.Track{ID: testID, Name: "From Cache"}
		rt := &tu.MockRoundTripper{
			RoundTripFn: func(req *http.Request) (*http.Response, error) {
				t.Error("cached fetch should not hit the API")
				return jsonResponse(500, ""), nil
			},
		}
		client, err := NewSpotifyClient(SpotifyClientOpts{
			HTTPClient: &http.Client{Transport: rt},
			RateLimit:  1000,
			Cache:      &staticCache{track: cached},
		})
		if err != nil {
			t.Fatal(err)
		}

		track, err := client.FetchTrack(context.Background(), testID)
		if err != nil {
			t.Fatal(err)
		}
		if track.Name != "From Cache" {
			t.Errorf("expected cached record, got %q", track.Name)
		}
	})
}

// staticCache serves one fixed track.
type staticCache struct {
	track *models.Track
}

func (c *staticCache) GetTrack(id string) (*models.Track, bool) {
	if c.track != nil && c.track.ID == id {
		return c.track, true
	}
	return nil, false
}

func (c *staticCache) PutTrack(t *models.Track) error { return nil }

func TestSpotifyClient_FetchArtistAlbums(t *testing.T) {
	pageJSON := `{
		"items": [
			{"id": "alb1", "name": "Studio", "album_group": "album", "artists": [{"name": "Band"}]},
			{"id": "alb2", "name": "Single", "album_group": "single", "artists": [{"name": "Band"}]},
			{"id": "alb3", "name": "Leaked Comp", "album_group": "compilation", "artists": [{"name": "Various"}]}
		],
		"total": 3,
		"limit": 50,
		"offset": 0,
		"next": null
	}`
	client := newTestClient(t, tu.NewMockRoundTripper(jsonResponse(200, pageJSON), nil))

	albums, err := client.FetchArtistAlbums(context.Background(), testID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if len(albums) != 2 {
		t.Fatalf("expected compilations filtered out, got %d albums", len(albums))
	}
	if albums[0].ID != "alb1" || albums[1].ID != "alb2" {
		t.Errorf("unexpected albums: %+v", albums)
	}
	if albums[0].Artist != "Band" {
		t.Errorf("album artist = %q", albums[0].Artist)
	}
}

func TestSpotifyClient_FetchPlaylistTracks(t *testing.T) {
	pageJSON := `{
		"items": [
			{"is_local": false, "track": {"id": "t1", "name": "One", "artists": [{"name": "A"}], "album": {"id": "alb", "name": "Alb"}}},
			{"is_local": true, "track": null},
			{"is_local": false, "track": null}
		],
		"total": 5,
		"limit": 3,
		"offset": 0
	}`
	client := newTestClient(t, tu.NewMockRoundTripper(jsonResponse(200, pageJSON), nil))

	page, err := client.FetchPlaylistTracks(context.Background(), testID, 0, 3)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if len(page.Items) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(page.Items))
	}
	if page.Items[0].Track == nil || page.Items[0].Track.Name != "One" {
		t.Error("streamable entry not decoded")
	}
	if !page.Items[1].IsLocal {
		t.Error("local flag lost")
	}
	if page.Items[2].Track != nil {
		t.Error("withdrawn entry should have nil track")
	}
	if !page.HasNext() {
		t.Error("expected another page (3 of 5)")
	}
}
