package backend_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/atomo/backend"
)

func openedBolt(t *testing.T) *backend.Bolt {
	t.Helper()
	b, err := backend.OpenBolt(filepath.Join(t.TempDir(), "atomo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.Open([]backend.TableSchema{{ID: 0, Name: "widgets", Iter: true}}))
	return b
}

func TestBoltCommitThenSnapshotSeesWrite(t *testing.T) {
	b := openedBolt(t)
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("1")}}}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	v, ok := snap.Get(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}

func TestBoltSnapshotIsStableAcrossLaterCommits(t *testing.T) {
	b := openedBolt(t)
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("1")}}}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("2")}}}))

	v, ok := snap.Get(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v, "a read transaction begun before a later commit must not observe it")
}

func TestBoltTombstoneRemovesKey(t *testing.T) {
	b := openedBolt(t)
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("1")}}}))
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Tombstone: true}}}))

	snap, err := b.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	_, ok := snap.Get(0, []byte("a"))
	assert.False(t, ok)
}

func TestBoltIterateVisitsKeysInAscendingOrder(t *testing.T) {
	b := openedBolt(t)
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

func TestBoltReopenPersistsCommittedData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atomo.db")

	b, err := backend.OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Open([]backend.TableSchema{{ID: 0, Name: "widgets", Iter: true}}))
	require.NoError(t, b.Commit(backend.Batch{0: {"a": backend.Entry{Value: []byte("1")}}}))
	require.NoError(t, b.Close())

	reopened, err := backend.OpenBolt(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Open([]backend.TableSchema{{ID: 0, Name: "widgets", Iter: true}}))

	snap, err := reopened.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	v, ok := snap.Get(0, []byte("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)
}
