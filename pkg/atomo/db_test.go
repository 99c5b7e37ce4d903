package atomo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/atomo/backend"
)

const (
	tableWidgets = "widgets"
	tableCounts  = "counts"
)

func newTestDB(t *testing.T) *atomo.DB {
	t.Helper()
	b := atomo.NewBuilder(backend.NewMemory())
	b.AddTable(tableWidgets, atomo.WithIter())
	b.AddTable(tableCounts)
	db, err := b.Build()
	require.NoError(t, err)
	return db
}

func TestTableInsertGetRemove(t *testing.T) {
	db := newTestDB(t)

	err := db.Run(func(ts *atomo.TableSelector) error {
		widgets := atomo.GetTable[string, int](ts, tableWidgets)
		widgets.Insert("a", 1)
		widgets.Insert("b", 2)
		return nil
	})
	require.NoError(t, err)

	h := db.Query()
	defer h.Release()
	err = h.Run(func(ts *atomo.TableSelector) error {
		widgets := atomo.GetTable[string, int](ts, tableWidgets)
		v, ok := widgets.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		assert.True(t, widgets.Contains("b"))
		assert.False(t, widgets.Contains("c"))
		return nil
	})
	require.NoError(t, err)

	err = db.Run(func(ts *atomo.TableSelector) error {
		atomo.GetTable[string, int](ts, tableWidgets).Remove("a")
		return nil
	})
	require.NoError(t, err)

	h2 := db.Query()
	defer h2.Release()
	err = h2.Run(func(ts *atomo.TableSelector) error {
		_, ok := atomo.GetTable[string, int](ts, tableWidgets).Get("a")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

// TestSnapshotIsolation checks that a QueryHandle acquired before a
// commit never observes it until Refresh is called, even though a fresh
// DB.Query taken after the commit does.
func TestSnapshotIsolation(t *testing.T) {
	db := newTestDB(t)

	pinned := db.Query()
	defer pinned.Release()

	err := db.Run(func(ts *atomo.TableSelector) error {
		atomo.GetTable[string, int](ts, tableCounts).Insert("x", 42)
		return nil
	})
	require.NoError(t, err)

	err = pinned.Run(func(ts *atomo.TableSelector) error {
		_, ok := atomo.GetTable[string, int](ts, tableCounts).Get("x")
		assert.False(t, ok, "pinned handle must not see a commit made after it was acquired")
		return nil
	})
	require.NoError(t, err)

	fresh := db.Query()
	defer fresh.Release()
	err = fresh.Run(func(ts *atomo.TableSelector) error {
		v, ok := atomo.GetTable[string, int](ts, tableCounts).Get("x")
		assert.True(t, ok)
		assert.Equal(t, 42, v)
		return nil
	})
	require.NoError(t, err)

	pinned.Refresh()
	err = pinned.Run(func(ts *atomo.TableSelector) error {
		v, ok := atomo.GetTable[string, int](ts, tableCounts).Get("x")
		assert.True(t, ok, "refreshed handle must see the commit")
		assert.Equal(t, 42, v)
		return nil
	})
	require.NoError(t, err)
}

// TestRunMutationErrorDoesNotCommit verifies that when the mutation
// closure returns a non-nil error, none of its staged writes become
// visible to later readers.
func TestRunMutationErrorDoesNotCommit(t *testing.T) {
	db := newTestDB(t)

	sentinel := assert.AnError
	err := db.Run(func(ts *atomo.TableSelector) error {
		atomo.GetTable[string, int](ts, tableCounts).Insert("never", 1)
		return sentinel
	})
	assert.Equal(t, sentinel, err)

	h := db.Query()
	defer h.Release()
	err = h.Run(func(ts *atomo.TableSelector) error {
		_, ok := atomo.GetTable[string, int](ts, tableCounts).Get("never")
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestKeysIterationRequiresWithIter(t *testing.T) {
	db := newTestDB(t)
	err := db.Run(func(ts *atomo.TableSelector) error {
		atomo.GetTable[string, int](ts, tableWidgets).Insert("a", 1)
		atomo.GetTable[string, int](ts, tableWidgets).Insert("b", 2)
		return nil
	})
	require.NoError(t, err)

	h := db.Query()
	defer h.Release()
	var seen []string
	err = h.Run(func(ts *atomo.TableSelector) error {
		atomo.GetTable[string, int](ts, tableWidgets).Keys(func(k string) bool {
			seen = append(seen, k)
			return true
		})
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, seen)

	assert.Panics(t, func() {
		h.Run(func(ts *atomo.TableSelector) error {
			atomo.GetTable[string, int](ts, tableCounts).Keys(func(string) bool { return true })
			return nil
		})
	}, "counts was declared without WithIter")
}

func TestGetTablePanicsOnUndeclaredName(t *testing.T) {
	db := newTestDB(t)
	h := db.Query()
	defer h.Release()
	assert.Panics(t, func() {
		h.Run(func(ts *atomo.TableSelector) error {
			atomo.GetTable[string, int](ts, "nonexistent")
			return nil
		})
	})
}

func TestQueryHandleRunRejectsWrites(t *testing.T) {
	db := newTestDB(t)
	h := db.Query()
	defer h.Release()
	assert.Panics(t, func() {
		h.Run(func(ts *atomo.TableSelector) error {
			atomo.GetTable[string, int](ts, tableCounts).Insert("x", 1)
			return nil
		})
	})
}

func TestSubSelectorDiscardsUnlessFlushed(t *testing.T) {
	db := newTestDB(t)

	err := db.Run(func(ts *atomo.TableSelector) error {
		counts := atomo.GetTable[string, int](ts, tableCounts)
		sub := ts.Sub()
		atomo.GetTable[string, int](sub, tableCounts).Insert("discarded", 1)
		// sub never flushed
		_, ok := counts.Get("discarded")
		assert.False(t, ok, "unflushed sub writes must stay invisible to the parent")
		return nil
	})
	require.NoError(t, err)

	err = db.Run(func(ts *atomo.TableSelector) error {
		counts := atomo.GetTable[string, int](ts, tableCounts)
		sub := ts.Sub()
		atomo.GetTable[string, int](sub, tableCounts).Insert("kept", 2)
		sub.Flush()
		v, ok := counts.Get("kept")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
		return nil
	})
	require.NoError(t, err)
}

func TestCloneSharesSamePin(t *testing.T) {
	db := newTestDB(t)
	h := db.Query()
	defer h.Release()
	clone := h.Clone()
	defer clone.Release()

	err := db.Run(func(ts *atomo.TableSelector) error {
		atomo.GetTable[string, int](ts, tableCounts).Insert("later", 1)
		return nil
	})
	require.NoError(t, err)

	err = clone.Run(func(ts *atomo.TableSelector) error {
		_, ok := atomo.GetTable[string, int](ts, tableCounts).Get("later")
		assert.False(t, ok, "a clone taken before a commit shares its parent's pinned snapshot")
		return nil
	})
	require.NoError(t, err)
}
