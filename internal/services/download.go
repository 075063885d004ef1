package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/quietriver/waveplan/internal/audio"
	"github.com/quietriver/waveplan/internal/models"
	"github.com/quietriver/waveplan/internal/shared"
)

// DownloadService fetches the audio for a single catalog URL: it resolves
// track metadata, computes the output path from the configured template,
// drives the audio provider, and embeds ID3 tags afterwards. It is the
// download collaborator the executor hands each track item to.
type DownloadService struct {
	metadata MetadataSource
	provider AudioProvider
	tagger   *audio.Tagger
	template string
	logger   *log.Logger

	httpClient *http.Client // for cover art
}

// NewDownloadService creates a DownloadService over the given collaborators.
func NewDownloadService(metadata MetadataSource, provider AudioProvider, template string, logger *log.Logger) *DownloadService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &DownloadService{
		metadata:   metadata,
		provider:   provider,
		tagger:     audio.NewTagger(),
		template:   template,
		logger:     shared.WithLogger(logger, "service", "download"),
		httpClient: http.DefaultClient,
	}
}

// Download fetches the audio for a track URL and returns the written path.
func (d *DownloadService) Download(ctx context.Context, spotifyURL string) (string, error) {
	track, err := d.resolve(ctx, spotifyURL)
	if err != nil {
		return "", err
	}

	dest := audio.ResolvePath(d.template, track)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path, err := d.provider.Download(ctx, track.Display(), dest)
	if err != nil {
		return "", err
	}

	if err := d.embedTags(ctx, path, track); err != nil {
		// A tagging failure leaves a playable file behind, so the download
		// still counts as succeeded.
		d.logger.Warn("failed to embed tags", "path", path, "err", err)
	}

	return path, nil
}

// UpdateMetadata re-embeds tags into an existing file without downloading,
// backing the metadata-update overwrite policy.
func (d *DownloadService) UpdateMetadata(ctx context.Context, spotifyURL, path string) error {
	track, err := d.resolve(ctx, spotifyURL)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrDownloadFailed, path, err)
	}

	return d.embedTags(ctx, path, track)
}

// resolve parses the track id out of a catalog URL and fetches its record.
func (d *DownloadService) resolve(ctx context.Context, spotifyURL string) (*models.Track, error) {
	id, err := ParseSpotifyID("track", spotifyURL)
	if err != nil {
		return nil, err
	}
	return d.metadata.FetchTrack(ctx, id)
}

// embedTags writes ID3 tags, fetching cover art when the record has one.
func (d *DownloadService) embedTags(ctx context.Context, path string, track *models.Track) error {
	var artwork []byte
	if track.CoverURL != "" {
		if art, err := d.fetchArtwork(ctx, track.CoverURL); err == nil {
			artwork = art
		} else {
			d.logger.Debug("failed to fetch cover art", "url", track.CoverURL, "err", err)
		}
	}

	return d.tagger.Embed(path, track, artwork)
}

func (d *DownloadService) fetchArtwork(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: artwork status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
