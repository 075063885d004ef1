package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PlaylistEntry is one line pair in a playlist file: a display credit and the
// absolute path of the audio file it points at.
type PlaylistEntry struct {
	Display     string // "Artist - Title" form
	DurationSec int
	Path        string // absolute path to the audio file
}

// CreatePlaylistFile writes an extended M3U index for the given entries under
// baseDir, named after the playlist. The format is one header line followed
// by two lines per track: an EXTINF display line and the absolute file path.
// File name collisions resolve via [EnsureUnique]. Returns the written path.
func CreatePlaylistFile(baseDir, name string, entries []PlaylistEntry) (string, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create playlist directory: %w", err)
	}

	path := EnsureUnique(filepath.Join(baseDir, SanitizeComponent(name)+".m3u"))

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("#EXTINF:%d,%s\n", e.DurationSec, e.Display))
		sb.WriteString(e.Path + "\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write playlist file: %w", err)
	}

	return path, nil
}
