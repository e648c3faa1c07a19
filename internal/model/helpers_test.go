package model

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeCheckpoint writes a minimal torch.save style zip archive.
func writeCheckpoint(t *testing.T, dir, name string, entries ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e)
		require.NoError(t, err)
		_, err = w.Write([]byte("payload:" + e))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return path
}
