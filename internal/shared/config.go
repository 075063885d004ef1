package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Overwrite policies controlling how existing output files are handled.
const (
	OverwriteForce    = "overwrite"
	OverwriteSkip     = "skip"
	OverwriteMetadata = "metadata-update"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Audio    AudioConfig    `toml:"audio"`
	Download DownloadConfig `toml:"download"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`
	Sources  SourcesConfig  `toml:"sources"`
}

// SpotifyConfig contains Spotify API credentials for the client-credentials flow.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// AudioConfig contains settings for the audio provider service.
type AudioConfig struct {
	ProviderURL string `toml:"provider_url"`
	Format      string `toml:"format"`
}

// DownloadConfig contains settings for plan execution and output layout.
type DownloadConfig struct {
	// OutputTemplate is the output path template, e.g.
	// "music/{artist}/{album}/{title}.mp3". Everything before the first
	// placeholder is the base output directory.
	OutputTemplate string `toml:"output_template"`

	// Overwrite is one of "overwrite", "skip" or "metadata-update".
	Overwrite string `toml:"overwrite"`

	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
	PlanPath  string  `toml:"plan_path"`
}

// CacheConfig contains settings for the local metadata cache database.
type CacheConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP status server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Source is a single configured download source: a display name plus a
// Spotify URL or bare ID.
type Source struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// SourcesConfig lists all configured sources grouped by kind.
type SourcesConfig struct {
	Songs     []Source `toml:"songs"`
	Artists   []Source `toml:"artists"`
	Playlists []Source `toml:"playlists"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks structural requirements that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Download.Overwrite {
	case OverwriteForce, OverwriteSkip, OverwriteMetadata:
	default:
		return fmt.Errorf("%w: unknown overwrite policy %q", ErrInvalidConfig, c.Download.Overwrite)
	}

	if c.Download.OutputTemplate == "" {
		return fmt.Errorf("%w: download.output_template is required", ErrInvalidConfig)
	}
	if c.Download.Workers <= 0 {
		return fmt.Errorf("%w: download.workers must be positive", ErrInvalidConfig)
	}

	return nil
}
