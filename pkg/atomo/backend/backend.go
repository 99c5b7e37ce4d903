// Package backend defines the storage-backend contract atomo builds on: a
// mapping from a small integer table id to a mapping from opaque byte keys
// to opaque byte values, plus atomic batch commit and point-in-time
// snapshots. Two implementations are provided: Memory (tests) and Bolt
// (single-file production backend, grounded on the teacher's own bbolt
// usage in its cluster store).
package backend

// TableSchema describes one table as declared at open time.
type TableSchema struct {
	ID   int
	Name string
	Iter bool
}

// Entry is one staged write: either an insert carrying Value, or a
// tombstone when Tombstone is set.
type Entry struct {
	Value     []byte
	Tombstone bool
}

// Batch is the per-table set of staged writes committed atomically.
type Batch map[int]map[string]Entry

// Snapshot is a read-only, point-in-time view of the backend. It must
// remain stable regardless of commits that happen after it was taken,
// until Release is called.
type Snapshot interface {
	Get(tableID int, key []byte) ([]byte, bool)
	// Iterate calls fn for every key in the table in ascending byte order,
	// stopping early if fn returns false. It may be called for any table:
	// atomo's typed Table.Keys is limited to tables declared with
	// Iter == true, but raw full-table scans (TableSelector.RawRows,
	// ClearTableUnsafe) iterate every table.
	Iterate(tableID int, fn func(key []byte) bool)
	Release()
}

// Backend is the storage engine atomo.DB drives.
type Backend interface {
	// Open creates or validates the declared tables. Called once, before
	// any Commit or Snapshot call.
	Open(tables []TableSchema) error
	// Commit applies batch atomically: callers observe either every
	// insert/remove in batch, or none of them.
	Commit(batch Batch) error
	// Snapshot captures the current committed state.
	Snapshot() (Snapshot, error)
	Close() error
}
