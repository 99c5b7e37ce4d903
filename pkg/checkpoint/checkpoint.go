// Package checkpoint loads a trusted committee-signed state snapshot into
// a fresh database and verifies the resulting state tree root against the
// checkpoint's claim, the bootstrap path a node takes instead of replaying
// the full transaction history from genesis.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/atomo/backend"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/txsig"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// TableSnapshot is every row of one application table, as raw
// codec-encoded key/value pairs — the unit a Checkpoint carries per
// table, since the receiving node may run a different merklize provider
// than the one that produced the checkpoint and must rebuild its own
// tree bookkeeping from scratch rather than copy the sender's.
type TableSnapshot struct {
	Table string
	Rows  []TableRow
}

// TableRow is one raw key/value pair.
type TableRow struct {
	Key   []byte
	Value []byte
}

// Checkpoint is a committee-signed snapshot of every application table
// plus the root it claims to commit to.
type Checkpoint struct {
	Epoch     txtypes.Epoch
	Root      [32]byte
	Tables    []TableSnapshot
	Signers   []txtypes.ConsensusPublicKey
	Signature []byte // BLS aggregate signature over Epoch||Root
}

// signingBytes is the canonical bytes VerifyAggregate checks Signature
// against: epoch, then root, fixed-width and unambiguous so no separate
// framing is needed.
func (c *Checkpoint) signingBytes() []byte {
	buf := make([]byte, 8+32)
	binary.BigEndian.PutUint64(buf[:8], uint64(c.Epoch))
	copy(buf[8:], c.Root[:])
	return buf
}

// Encode serializes c as a length-prefixed byte stream: epoch (8 bytes),
// root (32 bytes), signer count, each signer's consensus key, the
// signature, then the table count and, per table, its name, row count
// and rows. Counts are 4-byte big-endian integers; the signature, each
// table name, and each row key and value are prefixed by a 4-byte
// big-endian length. There is no upstream wire
// format to match (the original implementation leaves this unspecified),
// so this package defines its own, used symmetrically by Decode.
func (c *Checkpoint) Encode() []byte {
	var buf bytes.Buffer
	putUint64(&buf, uint64(c.Epoch))
	buf.Write(c.Root[:])
	putUint32(&buf, uint32(len(c.Signers)))
	for _, s := range c.Signers {
		buf.Write(s[:])
	}
	putBytes(&buf, c.Signature)
	putUint32(&buf, uint32(len(c.Tables)))
	for _, t := range c.Tables {
		putString(&buf, t.Table)
		putUint32(&buf, uint32(len(t.Rows)))
		for _, row := range t.Rows {
			putBytes(&buf, row.Key)
			putBytes(&buf, row.Value)
		}
	}
	return buf.Bytes()
}

// Decode parses the format Encode produces.
func Decode(data []byte) (*Checkpoint, error) {
	r := bytes.NewReader(data)
	epoch, err := getUint64(r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: epoch: %w", err)
	}
	var root [32]byte
	if _, err := io.ReadFull(r, root[:]); err != nil {
		return nil, fmt.Errorf("checkpoint: root: %w", err)
	}
	signerCount, err := getUint32(r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: signer count: %w", err)
	}
	signers := make([]txtypes.ConsensusPublicKey, signerCount)
	for i := range signers {
		if _, err := io.ReadFull(r, signers[i][:]); err != nil {
			return nil, fmt.Errorf("checkpoint: signer %d: %w", i, err)
		}
	}
	sig, err := getBytes(r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: signature: %w", err)
	}
	tableCount, err := getUint32(r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: table count: %w", err)
	}
	tables := make([]TableSnapshot, tableCount)
	for i := range tables {
		name, err := getString(r)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: table %d name: %w", i, err)
		}
		rowCount, err := getUint32(r)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: table %d row count: %w", i, err)
		}
		rows := make([]TableRow, rowCount)
		for j := range rows {
			key, err := getBytes(r)
			if err != nil {
				return nil, fmt.Errorf("checkpoint: table %d row %d key: %w", i, j, err)
			}
			value, err := getBytes(r)
			if err != nil {
				return nil, fmt.Errorf("checkpoint: table %d row %d value: %w", i, j, err)
			}
			rows[j] = TableRow{Key: key, Value: value}
		}
		tables[i] = TableSnapshot{Table: name, Rows: rows}
	}
	return &Checkpoint{Epoch: txtypes.Epoch(epoch), Root: root, Tables: tables, Signers: signers, Signature: sig}, nil
}

// BuildCheckpoint dumps every non-reserved application table out of db's
// current committed snapshot into a Checkpoint at the given epoch. The
// returned checkpoint is unsigned — the committee's consensus-key
// holders must sign Epoch||Root (the bytes VerifySignature checks) and
// set Signers/Signature before distributing it.
func BuildCheckpoint(db *atomo.DB, tree merklize.Provider, epoch txtypes.Epoch) (*Checkpoint, error) {
	c := &Checkpoint{Epoch: epoch}
	h := db.Query()
	defer h.Release()
	err := h.Run(func(ts *atomo.TableSelector) error {
		root, err := tree.GetStateRoot(ts)
		if err != nil {
			return err
		}
		c.Root = root
		for _, name := range ts.TableNames() {
			if executor.IsReservedTable(name) {
				continue
			}
			rows := ts.RawRows(name)
			snap := TableSnapshot{Table: name, Rows: make([]TableRow, len(rows))}
			for i, r := range rows {
				snap.Rows[i] = TableRow{Key: r.Key, Value: r.Value}
			}
			c.Tables = append(c.Tables, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: build: %w", err)
	}
	return c, nil
}

// VerifySignature checks c's aggregate signature against its claimed
// signer set.
func (c *Checkpoint) VerifySignature() error {
	return txsig.VerifyAggregate(c.signingBytes(), c.Signature, c.Signers)
}

// LoadFromCheckpoint overwrites every application table in db with c's
// contents, clears and rebuilds the merklize tree from scratch (skipping
// the tree's own reserved bookkeeping tables, which have nothing to
// restore), and asserts the rebuilt root matches c.Root. A mismatch is
// fatal: the checkpoint and the receiving node's tree implementation have
// disagreed about the state's canonical encoding, which no amount of
// retrying will fix.
func LoadFromCheckpoint(db *atomo.DB, tree merklize.Provider, c *Checkpoint) error {
	return db.Run(func(ts *atomo.TableSelector) error {
		if err := tree.ClearStateTreeUnsafe(ts); err != nil {
			return fmt.Errorf("checkpoint: clear state tree: %w", err)
		}
		var changes []merklize.Change
		for _, t := range c.Tables {
			if executor.IsReservedTable(t.Table) {
				continue
			}
			ts.ClearTableUnsafe(t.Table)
			rows := make([]atomo.RawRow, len(t.Rows))
			for i, row := range t.Rows {
				rows[i] = atomo.RawRow{Key: row.Key, Value: row.Value}
			}
			ts.ImportRawRows(t.Table, rows)
			for _, row := range t.Rows {
				changes = append(changes, merklize.Change{Table: t.Table, Key: row.Key, Value: row.Value})
			}
		}
		if err := tree.UpdateStateTree(ts, changes); err != nil {
			return fmt.Errorf("checkpoint: rebuild state tree: %w", err)
		}
		root, err := tree.GetStateRoot(ts)
		if err != nil {
			return fmt.Errorf("checkpoint: read rebuilt root: %w", err)
		}
		if root != c.Root {
			panic(&atomo.FatalError{Err: fmt.Errorf("checkpoint: rebuilt root %x does not match claimed root %x", root, c.Root)})
		}
		meta := atomo.GetTable[txtypes.MetadataKey, *txtypes.MetadataValue](ts, executor.TableMetadata)
		meta.Insert(txtypes.MetadataLastEpochHash, &txtypes.MetadataValue{Kind: txtypes.MetadataLastEpochHash, Hash: root})
		meta.Insert(txtypes.MetadataEpoch, &txtypes.MetadataValue{Kind: txtypes.MetadataEpoch, Epoch: c.Epoch})
		return nil
	})
}

// VerifyStateTreeUnsafe independently rebuilds the state tree from db's
// current application-table contents, in a scratch in-memory database,
// and reports whether the rebuilt root matches the one db's own
// incrementally-maintained tree currently commits to. A mismatch means
// the incremental UpdateStateTree calls made along the way have drifted
// from a full recompute — a correctness bug, not an operational one.
func VerifyStateTreeUnsafe(db *atomo.DB, tree merklize.Provider) (bool, error) {
	b := atomo.NewBuilder(backend.NewMemory())
	executor.RegisterTables(b)
	tree.RegisterTables(b)
	scratch, err := b.Build()
	if err != nil {
		return false, fmt.Errorf("checkpoint: build scratch database: %w", err)
	}
	defer scratch.Close()

	var liveRoot, rebuiltRoot [32]byte
	h := db.Query()
	defer h.Release()
	err = h.Run(func(liveTS *atomo.TableSelector) error {
		root, err := tree.GetStateRoot(liveTS)
		if err != nil {
			return err
		}
		liveRoot = root
		return scratch.Run(func(scratchTS *atomo.TableSelector) error {
			var changes []merklize.Change
			for _, name := range liveTS.TableNames() {
				if executor.IsReservedTable(name) {
					continue
				}
				for _, kv := range liveTS.RawRows(name) {
					changes = append(changes, merklize.Change{Table: name, Key: kv.Key, Value: kv.Value})
				}
			}
			if err := tree.UpdateStateTree(scratchTS, changes); err != nil {
				return err
			}
			got, err := tree.GetStateRoot(scratchTS)
			if err != nil {
				return err
			}
			rebuiltRoot = got
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return liveRoot == rebuiltRoot, nil
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putString(buf *bytes.Buffer, s string) { putBytes(buf, []byte(s)) }

func putBytes(buf *bytes.Buffer, b []byte) {
	putUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func getUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func getUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func getString(r *bytes.Reader) (string, error) {
	b, err := getBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	n, err := getUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}
