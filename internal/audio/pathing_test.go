package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quietriver/waveplan/internal/models"
)

func TestResolvePath(t *testing.T) {
	track := &models.Track{
		Name:        "My Song",
		Artists:     []string{"The Band", "Guest"},
		AlbumName:   "The Album",
		AlbumArtist: "The Band",
		TrackNumber: 3,
		ReleaseDate: "2019-05-01",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "standard template",
			template: "music/{artist}/{album}/{title}.mp3",
			want:     "music/The Band/The Album/My Song.mp3",
		},
		{
			name:     "track number is zero padded",
			template: "out/{album}/{track_number} - {title}.mp3",
			want:     "out/The Album/03 - My Song.mp3",
		},
		{
			name:     "year truncates full dates",
			template: "music/{year}/{title}.mp3",
			want:     "music/2019/My Song.mp3",
		},
		{
			name:     "album artist placeholder",
			template: "music/{album_artist}/{title}.mp3",
			want:     "music/The Band/My Song.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.template, track); got != tt.want {
				t.Errorf("ResolvePath() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("album artist falls back to primary artist", func(t *testing.T) {
		noAlbumArtist := &models.Track{Name: "X", Artists: []string{"Solo"}}
		got := ResolvePath("m/{album_artist}/{title}.mp3", noAlbumArtist)
		if got != "m/Solo/X.mp3" {
			t.Errorf("ResolvePath() = %q", got)
		}
	})

	t.Run("unsafe characters are sanitized", func(t *testing.T) {
		dirty := &models.Track{
			Name:      "AC/DC: Live?",
			Artists:   []string{"AC/DC"},
			AlbumName: "Back<in>Black",
		}
		got := ResolvePath("music/{artist}/{album}/{title}.mp3", dirty)
		if strings.Contains(filepath.Base(got), "/") || strings.ContainsAny(got, "<>?:") {
			t.Errorf("unsafe characters survived: %q", got)
		}
	})
}

func TestSanitizeComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain Name", "Plain Name"},
		{"a/b\\c", "a-b-c"},
		{"what?*", "what"},
		{`say "hi"`, "say 'hi'"},
		{"  padded  ", "padded"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		if got := SanitizeComponent(tt.in); got != tt.want {
			t.Errorf("SanitizeComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBaseDir(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"music/{artist}/{album}/{title}.mp3", "music"},
		{"out/downloads/{title}.mp3", "out/downloads"},
		{"{artist}/{title}.mp3", "."},
		{"music/flat.mp3", "music"},
	}

	for _, tt := range tests {
		if got := BaseDir(tt.template); got != tt.want {
			t.Errorf("BaseDir(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestEnsureUnique(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.m3u")

	if got := EnsureUnique(path); got != path {
		t.Errorf("free path should be returned unchanged, got %q", got)
	}

	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	got := EnsureUnique(path)
	want := filepath.Join(dir, "file (1).m3u")
	if got != want {
		t.Errorf("expected first numeric variant %q, got %q", want, got)
	}

	if err := os.WriteFile(want, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	got = EnsureUnique(path)
	if got != filepath.Join(dir, "file (2).m3u") {
		t.Errorf("expected second numeric variant, got %q", got)
	}
}
