package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is the sentinel wrapped by all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

var validLibraryTypes = map[string]bool{
	"movies": true,
	"series": true,
	"mixed":  true,
	"music":  true,
	"books":  true,
	"adult":  true,
}

// Validate checks the configuration for problems that would only surface
// later at runtime. It names the offending section explicitly.
func (c *Config) Validate() error {
	for i, lib := range c.Libraries {
		if lib.Root == "" {
			return fmt.Errorf("%w: libraries[%d]: root is required", ErrInvalidConfig, i)
		}
		if !validLibraryTypes[lib.Type] {
			return fmt.Errorf("%w: libraries[%d]: unknown type %q", ErrInvalidConfig, i, lib.Type)
		}
	}

	for name, p := range c.Quality.Profiles {
		if len(p.Resolutions) == 0 {
			return fmt.Errorf("%w: quality profile %q: at least one resolution required", ErrInvalidConfig, name)
		}
		if p.MinSizeMB > 0 && p.MaxSizeMB > 0 && p.MinSizeMB > p.MaxSizeMB {
			return fmt.Errorf("%w: quality profile %q: min_size_mb exceeds max_size_mb", ErrInvalidConfig, name)
		}
	}

	if c.Quality.Default != "" {
		if _, ok := c.Quality.Profiles[c.Quality.Default]; !ok {
			return fmt.Errorf("%w: default quality profile %q not defined", ErrInvalidConfig, c.Quality.Default)
		}
	}

	for name, idx := range c.Indexers {
		if idx.URL == "" {
			return fmt.Errorf("%w: indexer %q: url is required", ErrInvalidConfig, name)
		}
		if idx.Protocol != "" && idx.Protocol != "torrent" && idx.Protocol != "usenet" {
			return fmt.Errorf("%w: indexer %q: protocol must be torrent or usenet", ErrInvalidConfig, name)
		}
	}

	if bh := c.Downloaders.Blackhole; bh != nil {
		if bh.WatchDir == "" || bh.CompletedDir == "" {
			return fmt.Errorf("%w: blackhole downloader needs watch_dir and completed_dir", ErrInvalidConfig)
		}
	}

	return nil
}
