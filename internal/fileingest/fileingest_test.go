package fileingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("ProgramName\n"), 0o600))
}

func TestDiscoverCSVFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.csv"))
	touch(t, filepath.Join(root, "a.CSV"))
	touch(t, filepath.Join(root, "a_categorized.csv"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "lv", "riga.csv"))
	touch(t, filepath.Join(root, ".cache", "hidden.csv"))

	files, err := DiscoverCSVFiles(context.Background(), root)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
		assert.Positive(t, f.Size)
	}
	assert.Equal(t, []string{"a.CSV", "b.csv", "riga.csv"}, names)
}

func TestDiscoverCSVFiles_Errors(t *testing.T) {
	_, err := DiscoverCSVFiles(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	root := t.TempDir()
	touch(t, filepath.Join(root, "a.csv"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DiscoverCSVFiles(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsOutputFile(t *testing.T) {
	assert.True(t, IsOutputFile("vouchers_categorized.csv"))
	assert.False(t, IsOutputFile("vouchers.csv"))
	assert.False(t, IsOutputFile("categorized_vouchers.csv"))
}
