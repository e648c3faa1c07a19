package dryrun

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}
