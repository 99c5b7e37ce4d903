package atomo

import "github.com/lumenetwork/corestate/pkg/atomo/backend"

// selector is the common read/write surface Table[K,V] drives. TableSelector
// implements it directly against a snapshot and a top-level batch;
// SubSelector implements it by layering a private batch over a parent
// selector, so nested writes are invisible to the parent until Flush.
type selector interface {
	owner() *DB
	isReadOnly() bool
	getRaw(tableID int, key []byte) ([]byte, bool)
	setRaw(tableID int, key []byte, e batchEntry)
	iterRaw(tableID int, fn func(key []byte) bool)
}

// Selector is an exported alias for the unexported selector interface, so
// packages building typed accessors on top of GetTable (pkg/executor's
// table helpers, for instance) can name it as a parameter type without
// being able to author new implementations of it — only *TableSelector
// and *SubSelector ever satisfy it.
type Selector = selector

// TableSelector is the handle mutation and query functions receive: the
// set of declared tables, bound either to a writer's in-flight batch over
// a pinned snapshot (DB.Run) or to a read-only pinned snapshot
// (QueryHandle.Run).
type TableSelector struct {
	db       *DB
	snap     backend.Snapshot
	batch    batchMap // nil for read-only selectors
	readOnly bool
}

func (ts *TableSelector) owner() *DB       { return ts.db }
func (ts *TableSelector) isReadOnly() bool { return ts.readOnly }

func (ts *TableSelector) getRaw(tableID int, key []byte) ([]byte, bool) {
	if ts.batch != nil {
		if e, ok := ts.batch.get(tableID, key); ok {
			if e.removed {
				return nil, false
			}
			return e.value, true
		}
	}
	return ts.snap.Get(tableID, key)
}

func (ts *TableSelector) setRaw(tableID int, key []byte, e batchEntry) {
	if ts.readOnly {
		panic("atomo: write against a read-only table selector")
	}
	ts.batch.set(tableID, key, e)
}

// iterRaw yields committed keys (via the snapshot) filtered through any
// staged removals, followed by staged inserts that are new keys. Iteration
// order within each of those two passes is ascending for the snapshot
// pass and unspecified for the staged-insert pass; callers that need a
// single total order (state-tree rebuilds) sort the collected keys
// themselves rather than rely on this.
func (ts *TableSelector) iterRaw(tableID int, fn func(key []byte) bool) {
	tbl := ts.batch[tableID]
	stop := false
	ts.snap.Iterate(tableID, func(key []byte) bool {
		if e, ok := tbl[string(key)]; ok && e.removed {
			return true
		}
		if !fn(key) {
			stop = true
			return false
		}
		return true
	})
	if stop {
		return
	}
	for k, e := range tbl {
		if e.removed {
			continue
		}
		if _, existed := ts.snap.Get(tableID, []byte(k)); existed {
			continue
		}
		if !fn([]byte(k)) {
			return
		}
	}
}

// Sub returns a discardable sub-selector layered over ts: writes against it
// are invisible to ts (and to anything reading through ts) until Flush is
// called. The executor uses this to let a method body run to completion
// and then decide, based on its return value, whether to keep its writes
// (commit receipt) or throw them away (Revert receipt — the nonce bump
// still happens on ts directly, outside the sub-selector).
func (ts *TableSelector) Sub() *SubSelector {
	return &SubSelector{parent: ts, batch: make(batchMap)}
}

// SubSelector is a discardable overlay used for revertible method bodies.
type SubSelector struct {
	parent selector
	batch  batchMap
}

func (s *SubSelector) owner() *DB       { return s.parent.owner() }
func (s *SubSelector) isReadOnly() bool { return false }

func (s *SubSelector) getRaw(tableID int, key []byte) ([]byte, bool) {
	if e, ok := s.batch.get(tableID, key); ok {
		if e.removed {
			return nil, false
		}
		return e.value, true
	}
	return s.parent.getRaw(tableID, key)
}

func (s *SubSelector) setRaw(tableID int, key []byte, e batchEntry) {
	s.batch.set(tableID, key, e)
}

func (s *SubSelector) iterRaw(tableID int, fn func(key []byte) bool) {
	seen := make(map[string]bool)
	if tbl, ok := s.batch[tableID]; ok {
		for k, e := range tbl {
			seen[k] = true
			if e.removed {
				continue
			}
			if !fn([]byte(k)) {
				return
			}
		}
	}
	s.parent.iterRaw(tableID, func(key []byte) bool {
		if seen[string(key)] {
			return true
		}
		return fn(key)
	})
}

// Flush merges every staged write in s onto its parent selector. Calling
// Flush more than once, or not at all (discarding s), are both valid.
func (s *SubSelector) Flush() {
	switch p := s.parent.(type) {
	case *TableSelector:
		p.batch.merge(s.batch)
	case *SubSelector:
		p.batch.merge(s.batch)
	}
}

// Sub layers a further discardable overlay, for method bodies that
// recurse into helpers that themselves want revert points.
func (s *SubSelector) Sub() *SubSelector {
	return &SubSelector{parent: s, batch: make(batchMap)}
}
