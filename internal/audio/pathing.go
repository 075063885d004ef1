package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/quietriver/waveplan/internal/models"
)

// maxCollisionSuffix bounds the numeric suffix search before falling back to
// a random suffix.
const maxCollisionSuffix = 100

// ResolvePath expands an output path template for a track. Supported
// placeholders: {artist}, {album_artist}, {album}, {title}, {track_number}
// and {year}. Each expansion is sanitized for filesystem use. The same
// function backs the optimizer's existence pre-check and the executor's
// download destination, so both always agree on a track's output path.
func ResolvePath(template string, t *models.Track) string {
	year := t.ReleaseDate
	if len(year) > 4 {
		year = year[:4]
	}

	replacer := strings.NewReplacer(
		"{artist}", SanitizeComponent(t.Artist()),
		"{album_artist}", SanitizeComponent(albumArtistOr(t)),
		"{album}", SanitizeComponent(t.AlbumName),
		"{title}", SanitizeComponent(t.Name),
		"{track_number}", fmt.Sprintf("%02d", t.TrackNumber),
		"{year}", SanitizeComponent(year),
	)

	return filepath.Clean(replacer.Replace(template))
}

// albumArtistOr falls back to the primary artist when the album-level credit
// is missing.
func albumArtistOr(t *models.Track) string {
	if t.AlbumArtist != "" {
		return t.AlbumArtist
	}
	return t.Artist()
}

// BaseDir derives the run's base output directory from a template by
// stripping everything from the first placeholder onward.
func BaseDir(template string) string {
	idx := strings.Index(template, "{")
	if idx < 0 {
		return filepath.Dir(template)
	}

	prefix := template[:idx]
	if prefix == "" {
		return "."
	}
	if strings.HasSuffix(prefix, "/") || strings.HasSuffix(prefix, string(filepath.Separator)) {
		return filepath.Clean(prefix)
	}
	return filepath.Dir(prefix)
}

// SanitizeComponent strips characters that are unsafe in file names from a
// single path component.
func SanitizeComponent(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "'",
		"<", "",
		">", "",
		"|", "-",
		"\x00", "",
	)
	out := replacer.Replace(s)
	if out == "" {
		out = "unknown"
	}
	return out
}

// EnsureUnique returns path if nothing exists there, otherwise the first
// "name (n).ext" variant that is free. After exhausting numeric suffixes a
// random suffix guarantees termination.
func EnsureUnique(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	for i := 1; i <= maxCollisionSuffix; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}

	return fmt.Sprintf("%s-%s%s", stem, uuid.New().String()[:8], ext)
}
