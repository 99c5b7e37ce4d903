// Package atomo is the versioned key-value database the state engine is
// built on: typed tables declared up front via Builder, a single
// mutex-guarded writer permission (DB.Run), and cheaply cloneable,
// snapshot-isolated reader permissions (DB.Query / QueryHandle) backed by
// reference-counted point-in-time views of the storage backend.
package atomo

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lumenetwork/corestate/pkg/atomo/backend"
	"github.com/lumenetwork/corestate/internal/corelog"
)

// DB is a database opened against a declared table schema.
type DB struct {
	be     backend.Backend
	codec  Codec
	tables []TableMeta
	byName map[string]TableMeta

	writerMu sync.Mutex
	head     atomic.Pointer[snapshotRef]
}

func (db *DB) tableByName(name string) (TableMeta, bool) {
	m, ok := db.byName[name]
	return m, ok
}

// Tables returns every declared table, in declaration order.
func (db *DB) Tables() []TableMeta {
	return append([]TableMeta(nil), db.tables...)
}

// BackendUnsafe returns the underlying storage backend, for components
// (admin tooling, low-level recovery) that need to bypass the typed
// table API. Most callers should never need this.
func (db *DB) BackendUnsafe() backend.Backend { return db.be }

// Close releases the database's own hold on the current snapshot and
// closes the backend. It does not wait for outstanding QueryHandles.
func (db *DB) Close() error {
	if ref := db.head.Load(); ref != nil {
		ref.release()
	}
	return db.be.Close()
}

// snapshotRef reference-counts one backend snapshot across every
// QueryHandle (and the DB's own head pointer) that points at it, so the
// underlying backend resource (e.g. an open bbolt read transaction) is
// released exactly when the last holder is done with it.
type snapshotRef struct {
	db   *DB
	snap backend.Snapshot
	refs atomic.Int64
}

func (r *snapshotRef) retain() { r.refs.Add(1) }

func (r *snapshotRef) release() {
	if r.refs.Add(-1) == 0 {
		r.snap.Release()
	}
}

func (db *DB) currentSnapshot() *snapshotRef {
	ref := db.head.Load()
	ref.retain()
	return ref
}

func (db *DB) refreshSnapshot() error {
	snap, err := db.be.Snapshot()
	if err != nil {
		return err
	}
	next := &snapshotRef{db: db, snap: snap}
	next.refs.Store(1)
	old := db.head.Swap(next)
	old.release()
	return nil
}

// Run acquires the database's single writer permission, runs mutation
// against a table selector bound to the latest committed snapshot plus an
// in-flight batch, and — if mutation returns nil — commits that batch
// atomically and advances every future reader's view to include it.
//
// A non-nil return from mutation means nothing is committed, and Run
// returns that error unchanged (the executor returns one only when it
// cannot hash or encode the payload; validation failures and Revert
// outcomes are handled inside mutation, the latter by discarding a
// SubSelector). A codec failure inside mutation surfaces as a panic
// carrying a *FatalError, which Run recovers and returns; the writer loop
// treats a returned *FatalError as fatal. A failure to commit the batch,
// or to refresh the snapshot after committing it, is logged at Fatal
// level, which exits the process.
func (db *DB) Run(mutation func(*TableSelector) error) (err error) {
	db.writerMu.Lock()
	defer db.writerMu.Unlock()

	ref := db.currentSnapshot()
	defer ref.release()

	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*FatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()

	ts := &TableSelector{db: db, snap: ref.snap, batch: make(batchMap)}
	if mErr := mutation(ts); mErr != nil {
		return mErr
	}

	flat := make(backend.Batch, len(ts.batch))
	for id, tbl := range ts.batch {
		entries := make(map[string]backend.Entry, len(tbl))
		for k, e := range tbl {
			entries[k] = backend.Entry{Value: e.value, Tombstone: e.removed}
		}
		flat[id] = entries
	}
	if len(flat) == 0 {
		return nil
	}
	if cErr := db.be.Commit(flat); cErr != nil {
		wrapped := &FatalError{Err: fmt.Errorf("commit: %w", cErr)}
		corelog.WithComponent("atomo").Fatal().Err(wrapped).Msg("storage commit failed, writer cannot continue")
		return wrapped
	}
	if rErr := db.refreshSnapshot(); rErr != nil {
		wrapped := &FatalError{Err: fmt.Errorf("refresh snapshot after commit: %w", rErr)}
		corelog.WithComponent("atomo").Fatal().Err(wrapped).Msg("snapshot refresh failed after a successful commit")
		return wrapped
	}
	return nil
}

// QueryHandle is a reader permission pinned to the snapshot that was
// current at the moment it was acquired (DB.Query) or last re-acquired
// (Refresh). Every Run call against the same handle, and every handle
// returned by Clone, observes that same fixed point in time.
type QueryHandle struct {
	ref *snapshotRef
}

// Query acquires a reader permission pinned to the most recently
// committed snapshot.
func (db *DB) Query() *QueryHandle {
	return &QueryHandle{ref: db.currentSnapshot()}
}

// Clone returns a new handle sharing exactly h's pinned snapshot. Cheap:
// it only bumps a refcount.
func (h *QueryHandle) Clone() *QueryHandle {
	h.ref.retain()
	return &QueryHandle{ref: h.ref}
}

// Refresh re-pins h to the latest committed snapshot in place, releasing
// its previous one. Existing clones of h taken before Refresh keep the
// old pin.
func (h *QueryHandle) Refresh() {
	next := h.ref.db.currentSnapshot()
	h.ref.release()
	h.ref = next
}

// Release drops h's hold on its pinned snapshot. Safe to call once per
// handle returned by Query or Clone.
func (h *QueryHandle) Release() { h.ref.release() }

// Run executes query against h's pinned snapshot. Safe to call
// concurrently and repeatedly from multiple goroutines sharing h or its
// clones — no write access is exposed.
func (h *QueryHandle) Run(query func(*TableSelector) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*FatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()
	ts := &TableSelector{db: h.ref.db, snap: h.ref.snap, readOnly: true}
	return query(ts)
}
