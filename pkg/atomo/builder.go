package atomo

import (
	"fmt"

	"github.com/lumenetwork/corestate/pkg/atomo/backend"
)

// TableMeta describes one declared table.
type TableMeta struct {
	ID   int
	Name string
	Iter bool
}

// TableOption configures a table at declaration time.
type TableOption func(*TableMeta)

// WithIter marks a table as iteration-enabled, letting callers range over
// its keys via Table.Keys at the cost of a full backend scan per call.
func WithIter() TableOption {
	return func(m *TableMeta) { m.Iter = true }
}

// Builder declares a database's table schema before opening its backend.
// Tables are assigned ids in declaration order; that order becomes part of
// the backend's on-disk layout, so once a database has real data in it,
// tables must only ever be appended, never reordered or removed.
type Builder struct {
	be     backend.Backend
	codec  Codec
	tables []TableMeta
	names  map[string]bool
}

// NewBuilder starts a schema declaration against an unopened backend.
func NewBuilder(be backend.Backend) *Builder {
	return &Builder{be: be, codec: JSONCodec{}, names: make(map[string]bool)}
}

// WithCodec overrides the default JSON codec.
func (b *Builder) WithCodec(c Codec) *Builder {
	b.codec = c
	return b
}

// AddTable declares a table. It panics on a duplicate name: that is
// always a programming error in the caller's schema, never a runtime
// condition.
func (b *Builder) AddTable(name string, opts ...TableOption) *Builder {
	if b.names[name] {
		panic(fmt.Sprintf("atomo: table %q declared twice", name))
	}
	b.names[name] = true
	meta := TableMeta{ID: len(b.tables), Name: name}
	for _, opt := range opts {
		opt(&meta)
	}
	b.tables = append(b.tables, meta)
	return b
}

// Build opens the backend against the declared schema and returns a ready
// DB pinned to its first snapshot.
func (b *Builder) Build() (*DB, error) {
	schemas := make([]backend.TableSchema, len(b.tables))
	for i, t := range b.tables {
		schemas[i] = backend.TableSchema{ID: t.ID, Name: t.Name, Iter: t.Iter}
	}
	if err := b.be.Open(schemas); err != nil {
		return nil, fmt.Errorf("atomo: open backend: %w", err)
	}
	byName := make(map[string]TableMeta, len(b.tables))
	for _, t := range b.tables {
		byName[t.Name] = t
	}
	db := &DB{
		be:     b.be,
		codec:  b.codec,
		tables: append([]TableMeta(nil), b.tables...),
		byName: byName,
	}
	snap, err := b.be.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("atomo: initial snapshot: %w", err)
	}
	ref := &snapshotRef{db: db, snap: snap}
	ref.refs.Store(1)
	db.head.Store(ref)
	return db, nil
}
