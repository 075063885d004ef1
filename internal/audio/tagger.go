package audio

import (
	"fmt"

	"github.com/bogem/id3v2"
	"github.com/quietriver/waveplan/internal/models"
)

// Tagger writes ID3v2 tags onto downloaded MP3 files from catalog metadata.
type Tagger struct{}

// NewTagger creates a new Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// Embed writes the track's metadata into the file at path: title, artists,
// album, album artist, track/disc number, recording date and optional cover
// art. Existing frames for these fields are replaced.
func (t *Tagger) Embed(path string, track *models.Track, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", path, err)
	}
	defer tag.Close()

	tag.SetTitle(track.Name)
	tag.SetArtist(track.JoinedArtists())
	tag.SetAlbum(track.AlbumName)

	if track.AlbumArtist != "" {
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, track.AlbumArtist)
	}
	if track.TrackNumber > 0 {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, fmt.Sprintf("%d", track.TrackNumber))
	}
	if track.DiscNumber > 0 {
		tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, fmt.Sprintf("%d", track.DiscNumber))
	}
	if track.ReleaseDate != "" {
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, track.ReleaseDate)
		if len(track.ReleaseDate) >= 4 {
			tag.AddTextFrame("TYER", id3v2.EncodingUTF8, track.ReleaseDate[:4])
		}
	}

	if artwork != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     artwork,
		})
	}

	return tag.Save()
}
