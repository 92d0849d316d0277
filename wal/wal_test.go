package wal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, w.Append(EntryObserved, "module.a", map[string]string{"region": "us-east-1"}))
	require.NoError(t, w.Append(EntryImported, "module.a", map[string]string{"natural_key": "det-1"}))
	require.NoError(t, w.AppendError(EntryFailed, "module.b", nil, errors.New("timeout")))
	require.NoError(t, w.Close())

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, EntryObserved, entries[0].Type)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, "module.a", entries[0].Address)

	assert.Equal(t, EntryImported, entries[1].Type)
	assert.Equal(t, int64(2), entries[1].Sequence)

	assert.Equal(t, EntryFailed, entries[2].Type)
	assert.Equal(t, "timeout", entries[2].Error)
}

func TestReadAllEmptyDir(t *testing.T) {
	entries, err := ReadAll(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSequenceIncrements(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Append(EntrySkipped, "module.x", nil))
	}

	require.NoError(t, w.Close())
	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, int64(5), entries[4].Sequence)
}
