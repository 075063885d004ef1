package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/quietriver/waveplan/internal/audio"
	"github.com/quietriver/waveplan/internal/pipeline"
	"github.com/quietriver/waveplan/internal/plan"
	"github.com/quietriver/waveplan/internal/repositories"
	"github.com/quietriver/waveplan/internal/services"
	"github.com/quietriver/waveplan/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	metadata   services.MetadataSource
	provider   services.AudioProvider
	spotify    *services.SpotifyClient
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner. Metadata
// and Provider override the clients built from config, used in tests.
type RunnerOpts struct {
	Config     *shared.Config
	Metadata   services.MetadataSource
	Provider   services.AudioProvider
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		metadata:   opts.Metadata,
		provider:   opts.Provider,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		downloadCommand, planCommand, resumeCommand, statusCommand, serveCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reloads configuration from the command's --config flag when the
// file exists, keeping the in-memory defaults otherwise.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	r.config = config
	// Clients derived from the previous config are stale.
	r.metadata = nil
	r.provider = nil
	r.spotify = nil
	return nil
}

// ensureServices builds the metadata and provider clients from config unless
// test doubles were injected.
func (r *Runner) ensureServices() error {
	if r.metadata == nil {
		var cache services.TrackCacher
		if r.config.Cache.Path != "" {
			db, err := shared.NewDatabase(r.config.Cache.Path)
			if err != nil {
				r.logger.Warn("metadata cache unavailable", "path", r.config.Cache.Path, "err", err)
			} else {
				shared.ConfigureDatabase(db, r.config.Cache.MaxOpenConns, r.config.Cache.MaxIdleConns)
				if err := repositories.Migrate(db); err != nil {
					r.logger.Warn("metadata cache migration failed", "err", err)
				} else {
					cache = repositories.NewTrackCache(db)
				}
			}
		}

		spotify, err := services.NewSpotifyClient(services.SpotifyClientOpts{
			ClientID:     r.config.Spotify.ClientID,
			ClientSecret: r.config.Spotify.ClientSecret,
			RateLimit:    r.config.Download.RateLimit,
			Cache:        cache,
			Logger:       r.logger,
		})
		if err != nil {
			return err
		}
		r.spotify = spotify
		r.metadata = spotify
	}

	if r.provider == nil {
		if r.config.Audio.ProviderURL == "" {
			return fmt.Errorf("%w: audio.provider_url is required", shared.ErrMissingConfig)
		}
		r.provider = services.NewAudioClient(r.config.Audio.ProviderURL, r.config.Audio.Format, r.httpClient)
	}

	return nil
}

// generatePlan runs the generator and optimizer over the configured sources.
func (r *Runner) generatePlan(ctx context.Context) (*plan.Plan, error) {
	if err := r.ensureServices(); err != nil {
		return nil, err
	}

	gen := pipeline.NewGenerator(r.metadata, r.logger)
	p, err := gen.Generate(ctx, r.config.Sources)
	if err != nil {
		return nil, err
	}

	return r.optimizePlan(ctx, p)
}

// optimizePlan runs the optimizer passes over an existing plan.
func (r *Runner) optimizePlan(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	if err := r.ensureServices(); err != nil {
		return nil, err
	}

	opt := pipeline.NewOptimizer(pipeline.OptimizerOpts{
		Metadata: r.metadata,
		Template: r.config.Download.OutputTemplate,
		Policy:   r.config.Download.Overwrite,
		Logger:   r.logger,
	})
	return opt.Optimize(ctx, p)
}

// executePlan drives a plan through the executor, wiring rate-limit backoff
// reports into the persisted metadata.
func (r *Runner) executePlan(ctx context.Context, cmd *cli.Command, p *plan.Plan) (pipeline.Stats, *pipeline.Executor, error) {
	if err := r.ensureServices(); err != nil {
		return pipeline.Stats{}, nil, err
	}

	downloader := services.NewDownloadService(r.metadata, r.provider, r.config.Download.OutputTemplate, r.logger)

	workers := r.config.Download.Workers
	if cmd.Int("workers") > 0 {
		workers = int(cmd.Int("workers"))
	}

	if r.spotify != nil {
		r.spotify.OnRateLimit = p.SetRateLimit
		defer func() { r.spotify.OnRateLimit = nil }()
	}

	exec := pipeline.NewExecutor(downloader, pipeline.ExecutorOpts{
		Workers:  workers,
		PlanPath: r.planPath(cmd),
		BaseDir:  audio.BaseDir(r.config.Download.OutputTemplate),
		Logger:   r.logger,
		OnProgress: func(it *plan.Item) {
			r.logger.Debug("progress", "item", it.ID, "status", it.Status)
		},
	})

	stats, err := exec.Execute(ctx, p)
	return stats, exec, err
}

// planPath resolves the plan snapshot path: the --plan flag when given,
// otherwise the configured default.
func (r *Runner) planPath(cmd *cli.Command) string {
	if path := cmd.String("plan"); path != "" {
		return path
	}
	return r.config.Download.PlanPath
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
