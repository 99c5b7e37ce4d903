package backend

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lumenetwork/corestate/internal/corelog"
)

// Bolt is the production single-file backend, one bucket per table. It
// stands in for the RocksDB-backed store the original node uses: bbolt is
// the only embedded, transactional Go KV store available in the retrieved
// dependency set, and its copy-on-write B+tree already gives every open
// read transaction the same "stable as of acquisition" view atomo.DB's
// snapshots require, so no extra MVCC bookkeeping is needed at this layer.
type Bolt struct {
	db       *bolt.DB
	nameByID map[int]string
}

// lockRetryAttempts/lockRetryWait bound how long OpenBolt waits for another
// process to release the file lock before giving up: a node restarting
// right behind a still-shutting-down sibling (or a checkpoint tool racing
// the running node) should wait the lock out rather than fail immediately.
const (
	lockRetryAttempts = 10
	lockRetryWait     = 3 * time.Second
)

// OpenBolt opens (creating if absent) the database file at path. Each
// attempt waits up to lockRetryWait for the file lock via bbolt's own
// Options.Timeout; a still-locked file is retried up to lockRetryAttempts
// times before OpenBolt gives up, so the 3-second spacing falls out of
// the open call's own timeout rather than an extra sleep between tries.
func OpenBolt(path string) (*Bolt, error) {
	var lastErr error
	for attempt := 1; attempt <= lockRetryAttempts; attempt++ {
		db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockRetryWait})
		if err == nil {
			return &Bolt{db: db}, nil
		}
		lastErr = err
		corelog.WithComponent("backend").Warn().Err(err).Int("attempt", attempt).Str("path", path).Msg("bolt database locked, retrying open")
	}
	return nil, fmt.Errorf("backend: open bolt db: %w", lastErr)
}

func (b *Bolt) Open(tables []TableSchema) error {
	b.nameByID = make(map[int]string, len(tables))
	for _, t := range tables {
		b.nameByID[t.ID] = t.Name
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, t := range tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(t.Name)); err != nil {
				return fmt.Errorf("backend: create bucket %s: %w", t.Name, err)
			}
		}
		return nil
	})
}

func (b *Bolt) Commit(batch Batch) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for id, entries := range batch {
			name, ok := b.nameByID[id]
			if !ok {
				return fmt.Errorf("backend: unknown table id %d", id)
			}
			bucket := tx.Bucket([]byte(name))
			if bucket == nil {
				return fmt.Errorf("backend: missing bucket %s", name)
			}
			for k, e := range entries {
				if e.Tombstone {
					if err := bucket.Delete([]byte(k)); err != nil {
						return fmt.Errorf("backend: delete from %s: %w", name, err)
					}
					continue
				}
				if err := bucket.Put([]byte(k), e.Value); err != nil {
					return fmt.Errorf("backend: put into %s: %w", name, err)
				}
			}
		}
		return nil
	})
}

func (b *Bolt) Snapshot() (Snapshot, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("backend: begin read tx: %w", err)
	}
	return &boltSnapshot{tx: tx, nameByID: b.nameByID}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

type boltSnapshot struct {
	tx       *bolt.Tx
	nameByID map[int]string
}

func (s *boltSnapshot) Get(tableID int, key []byte) ([]byte, bool) {
	bucket := s.tx.Bucket([]byte(s.nameByID[tableID]))
	if bucket == nil {
		return nil, false
	}
	v := bucket.Get(key)
	if v == nil {
		return nil, false
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true
}

func (s *boltSnapshot) Iterate(tableID int, fn func(key []byte) bool) {
	bucket := s.tx.Bucket([]byte(s.nameByID[tableID]))
	if bucket == nil {
		return
	}
	c := bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		cp := make([]byte, len(k))
		copy(cp, k)
		if !fn(cp) {
			return
		}
	}
}

// Release rolls back the read-only transaction, which is the bbolt-idiomatic
// way to end one: it never wrote anything, so there is nothing to commit.
func (s *boltSnapshot) Release() { _ = s.tx.Rollback() }
