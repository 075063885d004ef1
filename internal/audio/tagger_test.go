package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2"
	"github.com/quietriver/waveplan/internal/models"
)

func TestTaggerEmbed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
		t.Fatal(err)
	}

	track := &models.Track{
		Name:        "Tagged Song",
		Artists:     []string{"Lead", "Feature"},
		AlbumName:   "The Album",
		AlbumArtist: "Lead",
		TrackNumber: 7,
		DiscNumber:  1,
		ReleaseDate: "2021-03-09",
	}

	if err := NewTagger().Embed(path, track, []byte{0xFF, 0xD8}); err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer tag.Close()

	if tag.Title() != "Tagged Song" {
		t.Errorf("title = %q", tag.Title())
	}
	if tag.Artist() != "Lead, Feature" {
		t.Errorf("artist = %q", tag.Artist())
	}
	if tag.Album() != "The Album" {
		t.Errorf("album = %q", tag.Album())
	}
	if got := tag.GetTextFrame("TPE2").Text; got != "Lead" {
		t.Errorf("album artist frame = %q", got)
	}
	if got := tag.GetTextFrame("TRCK").Text; got != "7" {
		t.Errorf("track number frame = %q", got)
	}
	if got := tag.GetTextFrame("TYER").Text; got != "2021" {
		t.Errorf("year frame = %q", got)
	}

	pics := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(pics) != 1 {
		t.Errorf("expected 1 picture frame, got %d", len(pics))
	}
}

func TestTaggerEmbed_MissingFile(t *testing.T) {
	err := NewTagger().Embed(filepath.Join(t.TempDir(), "missing.mp3"), &models.Track{Name: "X"}, nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
