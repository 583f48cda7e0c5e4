package chat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreAppendAndReadAll(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Append("general", "alices: hello\n"))
	require.NoError(t, store.Append("general", "bobj: hi back\n"))

	got, err := store.ReadAll("general")
	require.NoError(t, err)
	assert.Equal(t, "alices: hello\nbobj: hi back\n", got)
}

func TestFileStoreReadAllCreatesEmptyTranscript(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	got, err := store.ReadAll("fresh")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = os.Stat(filepath.Join(dir, "fresh.txt"))
	assert.NoError(t, err)
}

func TestFileStoreSanitizesChannelNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Append("../evil/../../name", "x\n"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "..")
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestGormStoreAppendAndReadAll(t *testing.T) {
	store, err := NewGormStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)

	got, err := store.ReadAll("general")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Append("general", "alices: hello\n"))
	require.NoError(t, store.Append("general", "bobj: hi back\n"))
	require.NoError(t, store.Append("random", "carolb: elsewhere\n"))

	got, err = store.ReadAll("general")
	require.NoError(t, err)
	assert.Equal(t, "alices: hello\nbobj: hi back\n", got)

	got, err = store.ReadAll("random")
	require.NoError(t, err)
	assert.Equal(t, "carolb: elsewhere\n", got)
}
