// Package config handles TOML configuration loading with environment
// variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig             `toml:"server"`
	Database      DatabaseConfig           `toml:"database"`
	Libraries     []LibraryConfig          `toml:"libraries"`
	Quality       QualityConfig            `toml:"quality"`
	Indexers      map[string]IndexerConfig `toml:"indexers"`
	Downloaders   DownloadersConfig        `toml:"downloaders"`
	Search        SearchConfig             `toml:"search"`
	Import        ImportConfig             `toml:"import"`
	Notifications NotificationsConfig      `toml:"notifications"`
}

type ServerConfig struct {
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"` // empty means stdout
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LibraryConfig describes one library root directory.
type LibraryConfig struct {
	Root      string `toml:"root"`
	Type      string `toml:"type"` // movies, series, mixed, music, books, adult
	Monitored bool   `toml:"monitored"`
}

type QualityConfig struct {
	Default  string                    `toml:"default"`
	Profiles map[string]QualityProfile `toml:"profiles"`
}

// QualityProfile is a user-defined ranking preference set.
// Resolutions is ordered most-preferred first. Exclusive means releases
// outside the resolution list are hard-rejected rather than scored low.
type QualityProfile struct {
	Resolutions []string `toml:"resolutions"`
	Exclusive   bool     `toml:"exclusive"`
	Codecs      []string `toml:"codecs"`
	Audio       []string `toml:"audio"`
	Sources     []string `toml:"sources"`
	PreferHDR   bool     `toml:"prefer_hdr"`
	MinSeeders  int      `toml:"min_seeders"`
	MinSizeMB   int64    `toml:"min_size_mb"`
	MaxSizeMB   int64    `toml:"max_size_mb"`
	Blocked     []string `toml:"blocked"`
	Preferred   []string `toml:"preferred"`
}

type IndexerConfig struct {
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	Protocol string `toml:"protocol"` // torrent or usenet, default usenet
}

type DownloadersConfig struct {
	Torrent   *TorrentConfig   `toml:"torrent"`
	Usenet    *UsenetConfig    `toml:"usenet"`
	Blackhole *BlackholeConfig `toml:"blackhole"`
	HTTP      *HTTPFetchConfig `toml:"http"`
}

type TorrentConfig struct {
	URL              string `toml:"url"`
	Username         string `toml:"username"`
	Password         string `toml:"password"`
	Category         string `toml:"category"`
	RemoveOnComplete bool   `toml:"remove_on_complete"`
}

type UsenetConfig struct {
	URL              string `toml:"url"`
	APIKey           string `toml:"api_key"`
	Category         string `toml:"category"`
	RemoveOnComplete bool   `toml:"remove_on_complete"`
}

type BlackholeConfig struct {
	WatchDir     string `toml:"watch_dir"`
	CompletedDir string `toml:"completed_dir"`
}

type HTTPFetchConfig struct {
	SpoolDir string `toml:"spool_dir"`
}

// SearchConfig governs the automated search loop.
// A ceiling of 0 means unbounded.
type SearchConfig struct {
	MaxPerRun    int           `toml:"max_per_run"`
	MaxPerShow   int           `toml:"max_per_show"`
	MaxPerSeason int           `toml:"max_per_season"`
	SearchDelay  time.Duration `toml:"search_delay"`
	MinSeeders   int           `toml:"min_seeders"`
	Interval     time.Duration `toml:"interval"`
}

type ImportConfig struct {
	UseHardlinks bool `toml:"use_hardlinks"`
	MoveFiles    bool `toml:"move_files"`
}

type NotificationsConfig struct {
	MediaServer *MediaServerConfig `toml:"media_server"`
}

type MediaServerConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/mydia.db"
	}
	if cfg.Search.Interval == 0 {
		cfg.Search.Interval = time.Hour
	}
	if cfg.Search.MinSeeders == 0 {
		cfg.Search.MinSeeders = 1
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}
