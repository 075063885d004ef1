package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/quietriver/waveplan/internal/audio"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/quietriver/waveplan/internal/shared"
	"golang.org/x/sync/errgroup"
)

// Run phases recorded in the plan metadata so external observers (the status
// server, a resumed run) can tell where a snapshot was taken.
const (
	PhaseTracks        = "executing_tracks"
	PhaseReconciling   = "reconciling_containers"
	PhasePlaylistFiles = "writing_playlist_files"
	PhaseDone          = "done"
	PhaseInterrupted   = "interrupted"
)

// defaultFlushInterval is how often the executor persists the plan while the
// track wave is running.
const defaultFlushInterval = 5 * time.Second

// Downloader fetches and tags audio for a single track URL. Implementations
// must be safe for concurrent use; the executor calls it from every worker.
type Downloader interface {
	// Download resolves the URL, fetches the audio and returns the final
	// on-disk path.
	Download(ctx context.Context, spotifyURL string) (string, error)
	// UpdateMetadata refreshes the embedded tags of an existing file without
	// re-downloading audio.
	UpdateMetadata(ctx context.Context, spotifyURL, path string) error
}

// ProgressFunc observes an item after a status transition. Callbacks run on
// executor goroutines; panics are contained and never abort the run.
type ProgressFunc func(*plan.Item)

// Stats summarizes a run over its track items. Skipped tracks are excluded
// from every field, Total included: a fully skipped plan reports zero work.
type Stats struct {
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Total      int `json:"total"`
}

// ExecutorOpts configures an Executor.
type ExecutorOpts struct {
	// Workers bounds the number of concurrent track downloads. Values below 1
	// fall back to 1.
	Workers int
	// PlanPath, when set, is where snapshots are persisted at phase
	// boundaries and on the flush ticker.
	PlanPath string
	// FlushInterval overrides the periodic persistence cadence.
	FlushInterval time.Duration
	// BaseDir is the directory playlist files are written into. Derive it
	// from the output template with [audio.BaseDir].
	BaseDir string
	// OnProgress, when set, observes every status transition.
	OnProgress ProgressFunc
	Logger     *log.Logger
}

// Executor drives a plan to completion: pending tracks through a bounded
// worker pool, then container reconciliation, playlist-file materialization
// and a final reconciliation pass.
//
// SIGINT/SIGTERM trigger a cooperative shutdown: in-flight downloads run to
// their own completion, queued tracks stay Pending, and no post-download
// phase begins. The partially executed plan persists and a later run resumes
// it.
type Executor struct {
	downloader Downloader
	opts       ExecutorOpts
	logger     *log.Logger

	interrupted atomic.Bool
}

// NewExecutor creates an Executor over the given downloader.
func NewExecutor(d Downloader, opts ExecutorOpts) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Executor{
		downloader: d,
		opts:       opts,
		logger:     shared.WithLogger(logger, "stage", "executor"),
	}
}

// Interrupted reports whether a shutdown signal arrived during Execute.
func (e *Executor) Interrupted() bool {
	return e.interrupted.Load()
}

// Execute runs the plan and returns its final track stats. Persistence
// failures are logged and never fail the run; the returned error is reserved
// for context cancellation.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) (Stats, error) {
	guard := installSignalGuard(func(sig os.Signal) {
		e.logger.Warn("shutdown signal received, finishing in-flight downloads", "signal", sig)
		e.interrupted.Store(true)
	})
	defer guard.Release()

	p.SetPhase(PhaseTracks)
	e.persist(p)

	// runTracks only errors on context cancellation; both cancellation and a
	// shutdown signal end the run here, with the partial state persisted for
	// resumption.
	if err := e.runTracks(ctx, p); err != nil || e.interrupted.Load() {
		p.SetPhase(PhaseInterrupted)
		e.persist(p)
		return e.stats(p), err
	}

	p.SetPhase(PhaseReconciling)
	e.reconcileContainers(p)
	e.persist(p)

	if !e.interrupted.Load() {
		p.SetPhase(PhasePlaylistFiles)
		e.materializePlaylistFiles(p)
		e.persist(p)
	}

	// The second pass finalizes containers the first pass saw as still open
	// and keeps reconciliation idempotent over already-terminal ones. A
	// signal between phases stops it: partial state persists for resumption.
	if !e.interrupted.Load() {
		e.reconcileContainers(p)
	}

	if e.interrupted.Load() {
		p.SetPhase(PhaseInterrupted)
	} else {
		p.SetPhase(PhaseDone)
	}
	e.persist(p)

	return e.stats(p), nil
}

// runTracks pushes every pending track through the worker pool, flushing the
// plan on a ticker until the wave drains.
func (e *Executor) runTracks(ctx context.Context, p *plan.Plan) error {
	pending := e.pendingTracks(p)
	if len(pending) == 0 {
		e.logger.Info("no pending tracks")
		return ctx.Err()
	}

	e.logger.Info("starting downloads", "tracks", len(pending), "workers", e.opts.Workers)

	flushDone := make(chan struct{})
	go e.flushLoop(p, flushDone)
	defer close(flushDone)

	// The group context is deliberately not used for the download calls:
	// interruption must let in-flight work finish, so cancellation is
	// checked only between tasks.
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Workers)

	for _, it := range pending {
		it := it
		g.Go(func() error {
			if e.interrupted.Load() || ctx.Err() != nil {
				return nil
			}
			e.runTrack(ctx, p, it)
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

// runTrack executes a single track item end to end.
func (e *Executor) runTrack(ctx context.Context, p *plan.Plan, it *plan.Item) {
	p.Start(it)
	e.notify(it)

	if it.SpotifyURL == "" {
		p.Fail(it, "track has no source URL")
		e.notify(it)
		return
	}

	var path string
	var err error
	if e.metadataOnly(it) {
		path = it.FilePath
		err = e.downloader.UpdateMetadata(ctx, it.SpotifyURL, it.FilePath)
	} else {
		path, err = e.downloader.Download(ctx, it.SpotifyURL)
	}

	if err != nil {
		e.logger.Error("track failed", "name", it.Name, "err", err)
		p.Fail(it, err.Error())
	} else {
		e.logger.Info("track completed", "name", it.Name, "path", path)
		p.Complete(it, path)
	}
	e.notify(it)
}

// pendingTracks snapshots the pending track items under the plan lock.
func (e *Executor) pendingTracks(p *plan.Plan) []*plan.Item {
	p.Lock()
	defer p.Unlock()

	var out []*plan.Item
	for _, it := range p.ByType(plan.TypeTrack) {
		if it.Status == plan.StatusPending {
			out = append(out, it)
		}
	}
	return out
}

// metadataOnly reports whether the optimizer flagged the item for a tag
// refresh. The flag round-trips through JSON, so accept any truthy encoding.
func (e *Executor) metadataOnly(it *plan.Item) bool {
	v, ok := it.Meta(metaMetadataOnly).(bool)
	return ok && v && it.FilePath != ""
}

// reconcileContainers recomputes container statuses from their children,
// iterating until no container changes so nested hierarchies (artist over
// albums) settle regardless of plan order. Terminal containers are left
// alone, which makes the whole pass idempotent.
func (e *Executor) reconcileContainers(p *plan.Plan) {
	containers := p.Containers()
	for range containers {
		if !e.reconcilePass(p, containers) {
			return
		}
	}
}

// reconcilePass runs one sweep over the containers and reports whether any
// status changed. The evaluation of one container runs under the plan lock
// so it never acts on a torn snapshot of its children.
//
// Containers are judged by their track children; a container with none (an
// artist over albums) is judged by all children except playlist files, whose
// outcome is an artifact of the playlist, not a membership signal.
func (e *Executor) reconcilePass(p *plan.Plan, containers []*plan.Item) bool {
	anyChanged := false
	for _, c := range containers {
		p.Lock()

		if c.Status.Terminal() {
			p.Unlock()
			continue
		}

		children := p.Children(c)
		if len(children) == 0 {
			if len(c.ChildIDs) == 0 {
				c.MarkFailed("container has no child items")
			} else {
				c.MarkFailed("all child references are invalid")
			}
			p.Unlock()
			anyChanged = true
			e.notify(c)
			continue
		}

		pool := childPool(children)
		if len(pool) == 0 {
			// Only playlist-file children resolve; no basis for a verdict.
			p.Unlock()
			continue
		}

		var completed, skipped, failed, open int
		for _, child := range pool {
			switch child.Status {
			case plan.StatusCompleted:
				completed++
			case plan.StatusSkipped:
				skipped++
			case plan.StatusFailed:
				failed++
			default:
				open++
			}
		}

		before := c.Status
		switch {
		case open == 0 && failed == 0:
			c.MarkCompleted("")
		case open == 0:
			c.MarkFailed(fmt.Sprintf("%d of %d children failed (%d completed, %d skipped)",
				failed, len(pool), completed, skipped))
		default:
			c.MarkStarted()
			c.Progress = float64(completed+skipped) / float64(len(pool))
		}
		changed := c.Status != before

		p.Unlock()
		if changed {
			anyChanged = true
			e.notify(c)
		}
	}
	return anyChanged
}

// childPool selects the children a container's status derives from: its
// tracks when it has any, otherwise every non-playlist-file child.
func childPool(children []*plan.Item) []*plan.Item {
	var tracks []*plan.Item
	for _, c := range children {
		if c.Type == plan.TypeTrack {
			tracks = append(tracks, c)
		}
	}
	if len(tracks) > 0 {
		return tracks
	}

	var rest []*plan.Item
	for _, c := range children {
		if c.Type != plan.TypePlaylistFile {
			rest = append(rest, c)
		}
	}
	return rest
}

// materializePlaylistFiles writes an m3u artifact for every pending
// playlist-file item from its playlist's available tracks. Items already past
// Pending (a prior partial run) are left alone.
func (e *Executor) materializePlaylistFiles(p *plan.Plan) {
	for _, pf := range p.ByType(plan.TypePlaylistFile) {
		if e.interrupted.Load() {
			return
		}
		if pf.Status != plan.StatusPending {
			continue
		}

		p.Start(pf)
		e.notify(pf)

		entries := e.playlistEntries(p, pf)
		if len(entries) == 0 {
			p.Fail(pf, "no downloaded tracks available for playlist file")
			e.notify(pf)
			continue
		}

		name := pf.Name
		if v, ok := pf.Meta(metaPlaylistName).(string); ok && v != "" {
			name = v
		}

		path, err := audio.CreatePlaylistFile(e.opts.BaseDir, name, entries)
		if err != nil {
			e.logger.Error("playlist file failed", "name", name, "err", err)
			p.Fail(pf, err.Error())
		} else {
			e.logger.Info("playlist file written", "name", name, "path", path)
			p.Complete(pf, path)
		}
		e.notify(pf)
	}
}

// playlistEntries collects the playable entries for a playlist-file item: the
// parent playlist's track children that finished with a file that is still on
// disk. The snapshot of child statuses is taken under the plan lock; the disk
// checks run outside it.
func (e *Executor) playlistEntries(p *plan.Plan, pf *plan.Item) []audio.PlaylistEntry {
	p.Lock()
	parent, ok := p.Get(pf.ParentID)
	if !ok {
		p.Unlock()
		return nil
	}

	type candidate struct {
		display  string
		duration int
		path     string
	}
	var candidates []candidate
	for _, child := range p.Children(parent) {
		if child.Type != plan.TypeTrack || child.FilePath == "" {
			continue
		}
		if child.Status != plan.StatusCompleted && child.Status != plan.StatusSkipped {
			continue
		}
		candidates = append(candidates, candidate{
			display:  trackDisplay(child),
			duration: metaInt(child, metaDurationSec),
			path:     child.FilePath,
		})
	}
	p.Unlock()

	var entries []audio.PlaylistEntry
	for _, c := range candidates {
		if _, err := os.Stat(c.path); err != nil {
			continue
		}
		abs, err := filepath.Abs(c.path)
		if err != nil {
			abs = c.path
		}
		entries = append(entries, audio.PlaylistEntry{
			Display:     c.display,
			DurationSec: c.duration,
			Path:        abs,
		})
	}
	return entries
}

// flushLoop persists the plan on a ticker until done is closed, then once
// more so the snapshot reflects the full track wave.
func (e *Executor) flushLoop(p *plan.Plan, done <-chan struct{}) {
	ticker := time.NewTicker(e.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.persist(p)
		case <-done:
			e.persist(p)
			return
		}
	}
}

// persist saves a snapshot when a plan path is configured. Failures are
// logged and swallowed; losing a snapshot must not fail the run.
func (e *Executor) persist(p *plan.Plan) {
	if e.opts.PlanPath == "" {
		return
	}
	if err := p.Save(e.opts.PlanPath); err != nil {
		e.logger.Warn("failed to persist plan", "path", e.opts.PlanPath, "err", err)
	}
}

// notify invokes the progress callback, containing any panic it raises.
func (e *Executor) notify(it *plan.Item) {
	if e.opts.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("progress callback panicked", "item", it.ID, "panic", r)
		}
	}()
	e.opts.OnProgress(it)
}

// stats tallies the run's track items, excluding skipped tracks entirely.
func (e *Executor) stats(p *plan.Plan) Stats {
	counts := p.CountByStatus(plan.TypeTrack)

	s := Stats{
		Completed:  counts[plan.StatusCompleted],
		Failed:     counts[plan.StatusFailed],
		Pending:    counts[plan.StatusPending],
		InProgress: counts[plan.StatusInProgress],
	}
	s.Total = s.Completed + s.Failed + s.Pending + s.InProgress
	return s
}

// trackDisplay formats "Artist - Title" for playlist file lines, falling back
// to the bare name when the artist metadata is missing.
func trackDisplay(it *plan.Item) string {
	if artist, ok := it.Meta(metaArtist).(string); ok && artist != "" {
		return artist + " - " + it.Name
	}
	return it.Name
}

// metaInt reads a numeric metadata value, tolerating the float64 a JSON round
// trip produces.
func metaInt(it *plan.Item, key string) int {
	switch v := it.Meta(key).(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
