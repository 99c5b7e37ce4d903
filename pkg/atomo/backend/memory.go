package backend

import (
	"sort"
	"sync"
)

// generation is one committed version of every table. Commit never
// mutates a generation in place: it builds the next generation by sharing
// untouched tables by reference and cloning only the tables a batch
// touched, so snapshots already handed out stay valid forever.
type generation struct {
	tables map[int]map[string][]byte
}

// Memory is an in-process backend with no persistence, intended for tests
// and for the "memory" storage mode of pkg/config. It provides the same
// snapshot-isolation contract as Bolt via copy-on-write generations rather
// than bbolt's page-level MVCC.
type Memory struct {
	mu  sync.RWMutex
	gen *generation
}

// NewMemory constructs an unopened Memory backend.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Open(tables []TableSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &generation{tables: make(map[int]map[string][]byte, len(tables))}
	for _, t := range tables {
		g.tables[t.ID] = make(map[string][]byte)
	}
	m.gen = g
	return nil
}

func (m *Memory) Commit(batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := &generation{tables: make(map[int]map[string][]byte, len(m.gen.tables))}
	for id, tbl := range m.gen.tables {
		next.tables[id] = tbl
	}
	for id, entries := range batch {
		src := next.tables[id]
		cloned := make(map[string][]byte, len(src)+len(entries))
		for k, v := range src {
			cloned[k] = v
		}
		for k, e := range entries {
			if e.Tombstone {
				delete(cloned, k)
			} else {
				cloned[k] = e.Value
			}
		}
		next.tables[id] = cloned
	}
	m.gen = next
	return nil
}

func (m *Memory) Snapshot() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &memSnapshot{gen: m.gen}, nil
}

func (m *Memory) Close() error { return nil }

type memSnapshot struct{ gen *generation }

func (s *memSnapshot) Get(tableID int, key []byte) ([]byte, bool) {
	v, ok := s.gen.tables[tableID][string(key)]
	return v, ok
}

func (s *memSnapshot) Iterate(tableID int, fn func(key []byte) bool) {
	tbl := s.gen.tables[tableID]
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k)) {
			return
		}
	}
}

func (s *memSnapshot) Release() {}
