package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/quietriver/waveplan/internal/models"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/quietriver/waveplan/internal/services"
	"github.com/quietriver/waveplan/internal/shared"
)

// Item metadata keys written by the generator and optimizer and read back by
// the executor. Values survive a JSON round trip, so numbers come back as
// float64 on loaded plans.
const (
	metaArtist       = "artist"
	metaAlbum        = "album"
	metaDurationSec  = "duration_sec"
	metaPlaylistName = "playlist_name"
	metaSourceName   = "source_name"
	metaSourceURL    = "source_url"
	metaMetadataOnly = "metadata_only"
)

// Generator resolves configured sources into a plan.
//
// Sources are processed independently: a failure resolving one song, artist
// or playlist produces a single Failed item representing that source and the
// run continues. External ids are deduplicated across the whole run, first
// occurrence wins; a later path reaching an already-seen id links the
// existing item instead of appending a duplicate.
type Generator struct {
	metadata services.MetadataSource
	logger   *log.Logger

	seen map[string]bool
}

// NewGenerator creates a Generator over the given metadata source.
func NewGenerator(metadata services.MetadataSource, logger *log.Logger) *Generator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Generator{
		metadata: metadata,
		logger:   shared.WithLogger(logger, "stage", "generator"),
		seen:     map[string]bool{},
	}
}

// Generate produces a plan covering every configured source. The returned
// error is only non-nil when the context is cancelled; per-source failures
// are recorded on the plan itself.
func (g *Generator) Generate(ctx context.Context, sources shared.SourcesConfig) (*plan.Plan, error) {
	p := plan.New()
	p.SetPhase("generating")

	for _, src := range sources.Songs {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		if err := g.addSong(ctx, p, src); err != nil {
			g.failSource(p, plan.TypeTrack, src, err)
		}
	}

	for _, src := range sources.Artists {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		if err := g.addArtist(ctx, p, src); err != nil {
			g.failSource(p, plan.TypeArtist, src, err)
		}
	}

	for _, src := range sources.Playlists {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		if err := g.addPlaylist(ctx, p, src); err != nil {
			g.failSource(p, plan.TypePlaylist, src, err)
		}
	}

	g.logger.Info("plan generated", "items", p.Len())
	return p, nil
}

// addSong resolves a single configured song into a track item.
func (g *Generator) addSong(ctx context.Context, p *plan.Plan, src shared.Source) error {
	id, err := services.ParseSpotifyID("track", src.URL)
	if err != nil {
		return err
	}

	if g.seen[plan.ItemID(plan.TypeTrack, id)] {
		g.logger.Debug("skipping duplicate song", "id", id, "name", src.Name)
		return nil
	}

	track, err := g.metadata.FetchTrack(ctx, id)
	if err != nil {
		// Generation failures are isolated per source: record a failed track
		// item instead of aborting the run.
		it := plan.NewItem(plan.TypeTrack, id, src.Name)
		it.MarkFailed(fmt.Sprintf("failed to fetch track metadata: %v", err))
		g.seen[it.ID] = true
		return p.Add(it)
	}

	g.appendTrack(p, track, nil)
	return nil
}

// addArtist resolves an artist source: the artist item, its studio albums
// and singles, and their tracks.
func (g *Generator) addArtist(ctx context.Context, p *plan.Plan, src shared.Source) error {
	id, err := services.ParseSpotifyID("artist", src.URL)
	if err != nil {
		return err
	}

	if g.seen[plan.ItemID(plan.TypeArtist, id)] {
		g.logger.Debug("skipping duplicate artist", "id", id, "name", src.Name)
		return nil
	}

	artist, err := g.metadata.FetchArtist(ctx, id)
	if err != nil {
		return err
	}

	artistItem := plan.NewItem(plan.TypeArtist, artist.ID, artist.Name)
	artistItem.SpotifyURL = artist.URL
	if err := p.Add(artistItem); err != nil {
		return err
	}
	g.seen[artistItem.ID] = true

	albums, err := g.metadata.FetchArtistAlbums(ctx, artist.ID)
	if err != nil {
		return err
	}

	for _, album := range albums {
		albumID := plan.ItemID(plan.TypeAlbum, album.ID)
		if g.seen[albumID] {
			// Album already reached via another path: link the existing item
			// as an additional child rather than duplicating it.
			if existing, ok := p.Get(albumID); ok {
				p.Link(artistItem, existing)
			}
			continue
		}
		g.addAlbum(ctx, p, album.ID, album.Name, artistItem)
	}

	return nil
}

// addAlbum appends an album item under parent and recurses into its tracks.
// Fetch failures fail the album item alone.
func (g *Generator) addAlbum(ctx context.Context, p *plan.Plan, id, name string, parent *plan.Item) {
	albumItem := plan.NewItem(plan.TypeAlbum, id, name)
	if err := p.Add(albumItem); err != nil {
		g.logger.Warn("failed to add album item", "id", id, "err", err)
		return
	}
	g.seen[albumItem.ID] = true
	if parent != nil {
		p.Link(parent, albumItem)
	}

	album, err := g.metadata.FetchAlbum(ctx, id)
	if err != nil {
		albumItem.MarkFailed(fmt.Sprintf("failed to fetch album metadata: %v", err))
		return
	}
	albumItem.Name = album.Name
	albumItem.SpotifyURL = album.URL

	for i := range album.Tracks {
		track := &album.Tracks[i]
		trackID := plan.ItemID(plan.TypeTrack, track.ID)
		if g.seen[trackID] {
			if existing, ok := p.Get(trackID); ok {
				p.Link(albumItem, existing)
			}
			continue
		}
		g.appendTrack(p, track, albumItem)
	}
}

// addPlaylist resolves a playlist source: the playlist item, its streamable
// tracks page by page, and exactly one playlist-file child.
func (g *Generator) addPlaylist(ctx context.Context, p *plan.Plan, src shared.Source) error {
	id, err := services.ParseSpotifyID("playlist", src.URL)
	if err != nil {
		return err
	}

	if g.seen[plan.ItemID(plan.TypePlaylist, id)] {
		g.logger.Debug("skipping duplicate playlist", "id", id, "name", src.Name)
		return nil
	}

	playlist, err := g.metadata.FetchPlaylist(ctx, id)
	if err != nil {
		return err
	}

	playlistItem := plan.NewItem(plan.TypePlaylist, playlist.ID, playlist.Name)
	playlistItem.SpotifyURL = playlist.URL
	if err := p.Add(playlistItem); err != nil {
		return err
	}
	g.seen[playlistItem.ID] = true

	offset := 0
	for {
		page, err := g.metadata.FetchPlaylistTracks(ctx, playlist.ID, offset, 0)
		if err != nil {
			return err
		}

		for _, entry := range page.Items {
			// Local files and withdrawn tracks have no streamable record.
			if entry.IsLocal || entry.Track == nil {
				continue
			}
			trackID := plan.ItemID(plan.TypeTrack, entry.Track.ID)
			if g.seen[trackID] {
				if existing, ok := p.Get(trackID); ok {
					p.Link(playlistItem, existing)
				}
				continue
			}
			g.appendTrack(p, entry.Track, playlistItem)
		}

		offset += len(page.Items)
		if !page.HasNext() || len(page.Items) == 0 {
			break
		}
	}

	// Every playlist owns exactly one playlist-file child, regardless of
	// whether any tracks resolved; the executor decides whether it produces
	// output.
	fileItem := plan.NewItem(plan.TypePlaylistFile, playlist.ID, playlist.Name)
	fileItem.SpotifyID = ""
	fileItem.SetMeta(metaPlaylistName, playlist.Name)
	if err := p.Add(fileItem); err != nil {
		return err
	}
	p.Link(playlistItem, fileItem)

	return nil
}

// appendTrack adds a track item for a resolved record, marking it seen and
// linking it under parent when given.
func (g *Generator) appendTrack(p *plan.Plan, t *models.Track, parent *plan.Item) {
	it := plan.NewItem(plan.TypeTrack, t.ID, t.Name)
	it.SpotifyURL = t.URL
	it.SetMeta(metaArtist, t.Artist())
	it.SetMeta(metaAlbum, t.AlbumName)
	it.SetMeta(metaDurationSec, t.DurationMS/1000)

	if err := p.Add(it); err != nil {
		g.logger.Warn("failed to add track item", "id", t.ID, "err", err)
		return
	}
	g.seen[it.ID] = true

	if parent != nil {
		p.Link(parent, it)
	}
}

// failSource records one Failed item representing a source that could not be
// processed at all.
func (g *Generator) failSource(p *plan.Plan, t plan.ItemType, src shared.Source, err error) {
	g.logger.Error("failed to process source", "type", t, "name", src.Name, "err", err)

	// Synthetic id: the source never resolved to an external id.
	it := plan.NewItem(t, "", src.Name)
	it.ID = "failed:" + shared.GenerateID()
	it.SetMeta(metaSourceName, src.Name)
	it.SetMeta(metaSourceURL, src.URL)
	it.MarkFailed(err.Error())

	if addErr := p.Add(it); addErr != nil {
		g.logger.Warn("failed to record source failure", "name", src.Name, "err", addErr)
	}
}
