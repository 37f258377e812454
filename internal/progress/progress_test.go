package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	store := NewStore(path)

	require.NoError(t, store.Save(4217, 960))

	m, ok := store.Load()
	assert.True(t, ok)
	assert.Equal(t, 4217, m.LastMessageID)
	assert.Equal(t, 960, m.TotalProcessed)
}

func TestStore_MissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))

	m, ok := store.Load()
	assert.False(t, ok)
	assert.Zero(t, m.LastMessageID)
	assert.Zero(t, m.TotalProcessed)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	m, ok := NewStore(path).Load()
	assert.False(t, ok)
	assert.Zero(t, m.LastMessageID)
}

func TestStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	store := NewStore(path)

	require.NoError(t, store.Save(100, 10))
	require.NoError(t, store.Save(250, 30))

	m, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, 250, m.LastMessageID)
	assert.Equal(t, 30, m.TotalProcessed)

	// whole-file rewrite, no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_PartialKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"last_message_id": 77}`), 0644))

	m, ok := NewStore(path).Load()
	assert.True(t, ok)
	assert.Equal(t, 77, m.LastMessageID)
	assert.Zero(t, m.TotalProcessed)
}
