package fsutil

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_CreatesParentsAndReplaces(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, WriteFileAtomic(fs, "a/b/out.yaml", []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(fs, "a/b/out.yaml", []byte("two"), 0o644))

	got, err := afero.ReadFile(fs, "a/b/out.yaml")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := afero.ReadDir(fs, "a/b")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "x", []byte("1"), 0o644))

	ok, err := Exists(fs, "x")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(fs, "y")
	require.NoError(t, err)
	assert.False(t, ok)
}
