// Package order stands in for "an external total-order oracle" (spec
// section 1's phrase for whatever assigns transactions their
// block/index coordinates before they reach the core). It is a single
// hashicorp/raft group whose FSM does nothing but count: every node
// in the group applies the same committed log of submitted
// transactions in the same order and derives the same Decision for
// each, which is exactly the guarantee internal/wire's single writer
// loop needs from its upstream before calling executor.Execute.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/lumenetwork/corestate/internal/corelog"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// Config controls how Oracle bootstraps its raft group.
type Config struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool // true for a single-node group standing in for the leader
	ApplyTimeout time.Duration
}

func (c Config) applyTimeout() time.Duration {
	if c.ApplyTimeout > 0 {
		return c.ApplyTimeout
	}
	return 5 * time.Second
}

// Oracle wraps one raft.Raft instance and the fsm it drives. Commits
// flows every committed entry, in order, to internal/wire's single
// writer loop; Resolve lets that loop hand a just-executed receipt
// back to whichever Submit call (possibly on this node, possibly
// forwarded from another) is waiting on it.
type Oracle struct {
	raft    *raft.Raft
	fsm     *fsm
	cfg     Config
	commits chan Commit

	mu      sync.Mutex
	pending map[[32]byte]chan txtypes.TransactionReceipt
}

// New bootstraps (or rejoins) a raft group the same way the teacher's
// own raft proof-of-concept does: TCP transport, a file snapshot
// store, and raft-boltdb for both the log and stable stores, all
// rooted at cfg.DataDir.
func New(cfg Config) (*Oracle, error) {
	log := corelog.WithComponent("order")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("order: create data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	commits := make(chan Commit, 256)
	f := newFSM(commits)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("order: resolve bind addr %q: %w", cfg.BindAddr, err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("order: create transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 3, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("order: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("order: open raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("order: open raft stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, f, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("order: start raft instance: %w", err)
	}

	if cfg.Bootstrap {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
		})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, fmt.Errorf("order: bootstrap cluster: %w", err)
		}
		log.Info().Str("node_id", cfg.NodeID).Msg("bootstrapped single-node total-order group")
	}

	return &Oracle{raft: r, fsm: f, cfg: cfg, commits: commits, pending: make(map[[32]byte]chan txtypes.TransactionReceipt)}, nil
}

// Commits is the ordered channel internal/wire's single writer loop
// range-reads from. Every Commit delivered here, across every replica
// in the group, is delivered in the same order.
func (o *Oracle) Commits() <-chan Commit { return o.commits }

// Submit proposes req to the group and blocks until the transaction
// has not only been committed and applied (assigned a Decision) but
// actually executed by the writer loop and a receipt posted back via
// Resolve, or until ctx is done. Only the leader may call Apply
// successfully; callers on a follower get raft.ErrNotLeader and should
// retry against whichever node LeaderAddr names.
func (o *Oracle) Submit(ctx context.Context, req txtypes.UpdateRequest) (txtypes.TransactionReceipt, error) {
	payloadHash, err := req.Payload.Hash()
	if err != nil {
		return txtypes.TransactionReceipt{}, fmt.Errorf("order: hash payload: %w", err)
	}

	wait := make(chan txtypes.TransactionReceipt, 1)
	o.mu.Lock()
	o.pending[payloadHash] = wait
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.pending, payloadHash)
		o.mu.Unlock()
	}()

	data, err := json.Marshal(command{Request: req})
	if err != nil {
		return txtypes.TransactionReceipt{}, fmt.Errorf("order: encode command: %w", err)
	}

	future := o.raft.Apply(data, o.cfg.applyTimeout())
	if err := future.Error(); err != nil {
		return txtypes.TransactionReceipt{}, fmt.Errorf("order: apply: %w", err)
	}
	if rerr, ok := future.Response().(error); ok {
		return txtypes.TransactionReceipt{}, fmt.Errorf("order: fsm rejected entry: %w", rerr)
	}

	select {
	case receipt := <-wait:
		return receipt, nil
	case <-ctx.Done():
		return txtypes.TransactionReceipt{}, ctx.Err()
	}
}

// Resolve hands a just-executed receipt back to whichever Submit call
// is waiting on its transaction hash. Called by internal/wire's writer
// loop after executor.Execute returns for a Commit pulled off Commits.
// A payload hash with no waiter (the commit originated on a different
// node, or the caller already gave up) is simply dropped.
func (o *Oracle) Resolve(payloadHash [32]byte, receipt txtypes.TransactionReceipt) {
	o.mu.Lock()
	wait, ok := o.pending[payloadHash]
	o.mu.Unlock()
	if !ok {
		return
	}
	select {
	case wait <- receipt:
	default:
	}
}

// IsLeader reports whether this node is currently the group's leader
// and therefore the one the single writer loop should be running
// Submit calls against.
func (o *Oracle) IsLeader() bool { return o.raft.State() == raft.Leader }

// LeaderAddr returns the raft bind address of the current leader, or
// empty if none is known.
func (o *Oracle) LeaderAddr() string {
	addr, _ := o.raft.LeaderWithID()
	return string(addr)
}

// Shutdown stops the raft instance, waiting for it to finish.
func (o *Oracle) Shutdown() error {
	return o.raft.Shutdown().Error()
}
