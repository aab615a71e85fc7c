// Package config provides the configuration for the vexo CLI.
//
// Configuration is stored under os.UserConfigDir()/vexo/:
//
//	~/Library/Application Support/vexo/   (macOS)
//	~/.config/vexo/                       (Linux)
//	%AppData%/vexo/                       (Windows)
//
// Layout:
//
//	vexo/
//	├── config.yaml     # agent settings
//	└── playlist.yaml   # fallback playlist (optional)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "vexo"

	configFile   = "config.yaml"
	playlistFile = "playlist.yaml"
)

// Config holds the agent settings. Durations are YAML strings in
// time.ParseDuration syntax ("15s", "2m").
type Config struct {
	// Dir is the configuration directory the config was loaded from.
	// Not serialized.
	Dir string `yaml:"-"`

	// DataDir is where the Badger database lives.
	DataDir string `yaml:"data_dir"`

	// LibraryDir holds raw PCM tracks for the local file resolver.
	LibraryDir string `yaml:"library_dir"`

	// FallbackPlaylist names the playlist used when discovery has
	// nothing better.
	FallbackPlaylist string `yaml:"fallback_playlist"`

	// DefaultVolume is the playback gain in [0, 1].
	DefaultVolume float64 `yaml:"default_volume"`

	// Temperature controls selection randomness; 0 is greedy.
	Temperature float64 `yaml:"temperature"`

	// TopK is the reasoning-trace depth.
	TopK int `yaml:"top_k"`

	// PrefetchThreshold is the remaining playtime that triggers
	// prefetching the next track.
	PrefetchThreshold string `yaml:"prefetch_threshold"`

	// ResolveTimeout bounds each track resolution attempt.
	ResolveTimeout string `yaml:"resolve_timeout"`

	// ResolveRetries is how many extra candidates are tried after a
	// failed resolution.
	ResolveRetries int `yaml:"resolve_retries"`

	// HistoryWindow is how many recent plays feed the candidate pool.
	HistoryWindow int `yaml:"history_window"`

	// ExclusionWindow is how many recent plays are barred from
	// reselection.
	ExclusionWindow int `yaml:"exclusion_window"`

	// OpenAIAPIKey enables track embedding through the OpenAI API.
	// Empty disables embedding; tracks without cached embeddings are
	// then skipped by discovery.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIBaseURL overrides the API endpoint, for proxies.
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// Default returns the default configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Dir:               dir,
		DataDir:           filepath.Join(dir, "data"),
		LibraryDir:        filepath.Join(dir, "library"),
		FallbackPlaylist:  "default",
		DefaultVolume:     0.5,
		Temperature:       0.3,
		TopK:              5,
		PrefetchThreshold: "15s",
		ResolveTimeout:    "10s",
		ResolveRetries:    3,
		HistoryWindow:     50,
		ExclusionWindow:   10,
	}
}

// Load loads the configuration from the default location. A missing
// config file yields the defaults.
func Load() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine config directory: %w", err)
	}
	return LoadFrom(filepath.Join(base, appDir))
}

// LoadFrom loads the configuration from a specific directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	cfg.Dir = dir
	return cfg, nil
}

// Save writes the configuration to its directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(c.Dir, configFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// PrefetchDuration parses PrefetchThreshold, falling back to 15s.
func (c *Config) PrefetchDuration() time.Duration {
	return parseDuration(c.PrefetchThreshold, 15*time.Second)
}

// ResolveDuration parses ResolveTimeout, falling back to 10s.
func (c *Config) ResolveDuration() time.Duration {
	return parseDuration(c.ResolveTimeout, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
