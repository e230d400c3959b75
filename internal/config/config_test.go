package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `
[server]
log_level = "debug"

[database]
path = "/tmp/test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "/tmp/test.db", cfg.Database.Path)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "./data/mydia.db", cfg.Database.Path)
	require.Equal(t, 1, cfg.Search.MinSeeders)
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("MYDIA_TEST_KEY", "secret123")
	path := writeConfig(t, `
[indexers.main]
url = "https://indexer.example.com"
api_key = "${MYDIA_TEST_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "secret123", cfg.Indexers["main"].APIKey)
}

func TestLoad_FullPipelineConfig(t *testing.T) {
	path := writeConfig(t, `
[[libraries]]
root = "/srv/media/movies"
type = "movies"
monitored = true

[[libraries]]
root = "/srv/media/tv"
type = "series"
monitored = true

[quality]
default = "hd"

[quality.profiles.hd]
resolutions = ["1080p", "720p"]
codecs = ["x265", "x264"]
min_seeders = 5
min_size_mb = 500
max_size_mb = 8000

[search]
max_per_run = 50
max_per_show = 10
max_per_season = 5

[downloaders.blackhole]
watch_dir = "/srv/blackhole/watch"
completed_dir = "/srv/blackhole/done"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Libraries, 2)
	require.Equal(t, "series", cfg.Libraries[1].Type)
	require.Equal(t, []string{"1080p", "720p"}, cfg.Quality.Profiles["hd"].Resolutions)
	require.Equal(t, 50, cfg.Search.MaxPerRun)
	require.NotNil(t, cfg.Downloaders.Blackhole)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"library missing root",
			"[[libraries]]\ntype = \"movies\"\n",
		},
		{
			"library bad type",
			"[[libraries]]\nroot = \"/x\"\ntype = \"podcasts\"\n",
		},
		{
			"profile without resolutions",
			"[quality.profiles.bad]\ncodecs = [\"x264\"]\n",
		},
		{
			"default profile undefined",
			"[quality]\ndefault = \"nope\"\n",
		},
		{
			"indexer missing url",
			"[indexers.main]\napi_key = \"k\"\n",
		},
		{
			"blackhole missing dirs",
			"[downloaders.blackhole]\nwatch_dir = \"/x\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
