package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/atomo/backend"
)

func openedMemory(t *testing.T) backend.Backend {
	t.Helper()
	b := backend.NewMemory()
	require.NoError(t, b.Open([]backend.TableSchema{{ID: 0, Name: "widgets", Iter: true}}))
	return b
}

func TestMemoryCommitThenSnapshotSeesWrite(t *testing.T) {
	b := openedMemory(t)
	require.NoError(t, b.Commit(backend.Batch{
		0: {"a": backend.Entry{Value: []byte("1")}},
	}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	v, ok := snap.Get(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestMemorySnapshotIsImmutableAcrossLaterCommits(t *testing.T) {
	b := openedMemory(t)
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("1")}}}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("2")}}}))

	v, ok := snap.Get(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v, "a snapshot taken before a commit must not observe it")

	fresh, err := b.Snapshot()
	require.NoError(t, err)
	defer fresh.Release()
	v, ok = fresh.Get(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("2"), v)
}

func TestMemoryTombstoneRemovesKey(t *testing.T) {
	b := openedMemory(t)
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("1")}}}))
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Tombstone: true}}}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	_, ok := snap.Get(0, []byte("a"))
	assert.False(t, ok)
}

func TestMemoryIterateVisitsKeysInAscendingOrder(t *testing.T) {
	b := openedMemory(t)
	require.NoError(t, b.Commit(backend.Batch{0: {
		"c": backend.Entry{Value: []byte("3")},
		"a": backend.Entry{Value: []byte("1")},
		"b": backend.Entry{Value: []byte("2")},
	}}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	var seen []string
	snap.Iterate(0, func(key []byte) bool {
		seen = append(seen, string(key))
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestMemoryIterateStopsEarly(t *testing.T) {
	b := openedMemory(t)
	require.NoError(t, b.Commit(backend.Batch{0: {
		"a": backend.Entry{Value: []byte("1")},
		"b": backend.Entry{Value: []byte("2")},
		"c": backend.Entry{Value: []byte("3")},
	}}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	var seen []string
	snap.Iterate(0, func(key []byte) bool {
		seen = append(seen, string(key))
		return len(seen) < 2
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}
