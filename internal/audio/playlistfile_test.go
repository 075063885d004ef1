package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreatePlaylistFile(t *testing.T) {
	t.Run("WritesExtendedM3U", func(t *testing.T) {
		dir := t.TempDir()
		entries := []PlaylistEntry{
			{Display: "Artist - One", DurationSec: 180, Path: "/music/one.mp3"},
			{Display: "Artist - Two", DurationSec: 0, Path: "/music/two.mp3"},
		}

		path, err := CreatePlaylistFile(dir, "Road Trip", entries)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if filepath.Base(path) != "Road Trip.m3u" {
			t.Errorf("unexpected file name %q", filepath.Base(path))
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}

		want := "#EXTM3U\n" +
			"#EXTINF:180,Artist - One\n/music/one.mp3\n" +
			"#EXTINF:0,Artist - Two\n/music/two.mp3\n"
		if string(data) != want {
			t.Errorf("content mismatch:\ngot  %q\nwant %q", data, want)
		}
	})

	t.Run("CollisionGetsNumericSuffix", func(t *testing.T) {
		dir := t.TempDir()
		entries := []PlaylistEntry{{Display: "A - B", DurationSec: 1, Path: "/a.mp3"}}

		first, err := CreatePlaylistFile(dir, "Mix", entries)
		if err != nil {
			t.Fatal(err)
		}
		second, err := CreatePlaylistFile(dir, "Mix", entries)
		if err != nil {
			t.Fatal(err)
		}

		if first == second {
			t.Errorf("second file should not overwrite the first")
		}
		if !strings.Contains(filepath.Base(second), "(1)") {
			t.Errorf("expected numeric suffix, got %q", second)
		}
	})

	t.Run("NameIsSanitized", func(t *testing.T) {
		dir := t.TempDir()
		path, err := CreatePlaylistFile(dir, "mix/with:specials?", nil)
		if err != nil {
			t.Fatal(err)
		}
		if strings.ContainsAny(filepath.Base(path), "/:?") {
			t.Errorf("unsafe characters in file name %q", path)
		}
	})

	t.Run("CreatesBaseDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "output")
		if _, err := CreatePlaylistFile(dir, "Mix", nil); err != nil {
			t.Fatalf("create with missing base dir failed: %v", err)
		}
	})
}
