package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "nested")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenBackend(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestScanPrefixAndDeletePrefix(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	journal, err := NewLabelJournal(backend)
	require.NoError(t, err)
	ctx := t.Context()
	require.NoError(t, journal.AppendLabel(ctx, "ds", 1, 2, "b"))
	require.NoError(t, journal.AppendLabel(ctx, "ds", 1, 1, "a"))
	require.NoError(t, journal.AppendLabel(ctx, "ds", 10, 1, "other unit"))

	var keys []string
	err = backend.ScanPrefix(makePartialLabelKey("ds", 1), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lblprt:ds:1:00000001", "lblprt:ds:1:00000002"}, keys)

	require.NoError(t, backend.DeletePrefix(makePartialLabelKey("ds", 1)))

	keys = nil
	err = backend.ScanPrefix([]byte(labelJournalPrefix), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lblprt:ds:10:00000001"}, keys)
}

func TestParseLabelIndex(t *testing.T) {
	index, err := parseLabelIndex(makeLabelKey("gemma-2-2b", 3, 16383))
	require.NoError(t, err)
	assert.Equal(t, 16383, index)

	_, err = parseLabelIndex([]byte("nocolon"))
	assert.Error(t, err)
}
