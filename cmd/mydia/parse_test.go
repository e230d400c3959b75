package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadReleaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releases.txt")
	content := `# nightly batch
The.Matrix.1999.1080p.BluRay.x264-GRP

Heat.1995.2160p.UHD.BluRay.x265-GRP
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	names, err := readReleaseFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{
		"The.Matrix.1999.1080p.BluRay.x264-GRP",
		"Heat.1995.2160p.UHD.BluRay.x265-GRP",
	}, names)
}

func TestReadReleaseFileMissing(t *testing.T) {
	_, err := readReleaseFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}
