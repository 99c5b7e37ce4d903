package order

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// Decision is the total-order oracle's answer to one Submit call: the
// receipt coordinates the transaction has been assigned, agreed on by
// every member of the raft group applying log entries in the same
// order. internal/wire's writer loop feeds these straight into
// executor.Execute.
type Decision struct {
	BlockHash   [32]byte
	BlockNumber uint64
	TxIndex     uint32
}

// command is the raft log entry payload: one submitted transaction,
// JSON-encoded the same way txtypes.UpdatePayload signs itself, so the
// oracle never needs its own wire codec.
type command struct {
	Request txtypes.UpdateRequest
}

// Commit is one log entry's worth of work handed to the writer loop:
// the transaction, in the order every replica in the group agrees on,
// plus the receipt coordinates fsm.Apply assigned it.
type Commit struct {
	Decision Decision
	Request  txtypes.UpdateRequest
}

// fsm assigns one block to each committed log entry: TxIndex is always
// 0, BlockNumber is the number of entries applied so far, and BlockHash
// chains the previous block hash with this entry's payload hash, giving
// every replica of the raft group the same deterministic block
// identity without needing wall-clock time or a leader-only counter.
// Apply pushes each Commit onto commits, the channel internal/wire's
// single writer loop range-reads from — this runs on every replica
// applying the log, not just the leader, so every node's local state
// engine ends up executing the identical transaction sequence.
type fsm struct {
	mu      sync.Mutex
	height  uint64
	last    [32]byte
	commits chan<- Commit
}

func newFSM(commits chan<- Commit) *fsm {
	return &fsm{commits: commits}
}

// Apply is invoked by raft once a log entry is committed by a quorum of
// the group; every member computes the identical Decision from the
// identical sequence of prior commits, which is the total-order
// guarantee internal/order exists to provide.
func (f *fsm) Apply(log *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("order: decode committed entry: %w", err)
	}

	payloadHash, err := cmd.Request.Payload.Hash()
	if err != nil {
		return fmt.Errorf("order: hash committed payload: %w", err)
	}

	f.mu.Lock()
	f.height++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], f.height)
	h := sha256.New()
	h.Write(f.last[:])
	h.Write(buf[:])
	h.Write(payloadHash[:])
	var next [32]byte
	copy(next[:], h.Sum(nil))
	f.last = next
	decision := Decision{BlockHash: next, BlockNumber: f.height, TxIndex: 0}
	f.mu.Unlock()

	f.commits <- Commit{Decision: decision, Request: cmd.Request}
	return decision
}

// Snapshot captures the fsm's entire ordering state — just the running
// height and last block hash, unlike the teacher's full key/value dump,
// since that's all a replica needs to resume assigning consistent
// Decisions after a restore.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fsmSnapshot{height: f.height, last: f.last}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var snap struct {
		Height uint64
		Last   [32]byte
	}
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("order: decode snapshot: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = snap.Height
	f.last = snap.Last
	return nil
}

type fsmSnapshot struct {
	height uint64
	last   [32]byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		b, err := json.Marshal(struct {
			Height uint64
			Last   [32]byte
		}{Height: s.height, Last: s.last})
		if err != nil {
			return err
		}
		if _, err := sink.Write(b); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}
