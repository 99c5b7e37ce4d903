// Package query is the read-only side of the state engine: typed getters
// over a pinned atomo.QueryHandle, plus SimulateTxn, which runs a
// transaction through the same executor pipeline against a throwaway
// sub-selector and reports what would have happened without committing
// anything.
package query

import (
	"sort"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// Runner answers read-only questions against a pinned snapshot of the
// database. A fresh Runner (via New) pins the latest committed snapshot;
// Refresh re-pins it in place.
type Runner struct {
	handle *atomo.QueryHandle
	tree   merklize.Provider
	ex     *executor.Executor
}

// New pins db's latest committed snapshot. ex is the same executor bound
// to db, reused read-only by SimulateTxn to dry-run a request through the
// real validation and dispatch pipeline.
func New(db *atomo.DB, tree merklize.Provider, ex *executor.Executor) *Runner {
	return &Runner{handle: db.Query(), tree: tree, ex: ex}
}

// Refresh re-pins the runner to the latest committed snapshot.
func (r *Runner) Refresh() { r.handle.Refresh() }

// Release drops the runner's hold on its pinned snapshot.
func (r *Runner) Release() { r.handle.Release() }

// NodeRegistryPage is one page of GetNodeRegistry's result.
type NodeRegistryPage struct {
	Nodes   map[txtypes.NodeIndex]*txtypes.Node
	HasMore bool
}

// EpochInfo summarizes the current epoch-change state machine.
type EpochInfo struct {
	Epoch           txtypes.Epoch
	Phase           txtypes.BeaconPhase
	PhaseStartBlock uint64
	ActiveNodeSet   []txtypes.NodeIndex
	Members         []txtypes.NodeIndex
}

// GetEpochInfo returns the current epoch's committee record.
func (r *Runner) GetEpochInfo() (EpochInfo, error) {
	var info EpochInfo
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		meta := atomo.GetTable[txtypes.MetadataKey, *txtypes.MetadataValue](ts, executor.TableMetadata)
		v, ok := meta.Get(txtypes.MetadataEpoch)
		epoch := txtypes.Epoch(0)
		if ok {
			epoch = v.Epoch
		}
		committee := atomo.GetTable[txtypes.Epoch, *txtypes.Committee](ts, executor.TableCommittee)
		c, ok := committee.Get(epoch)
		if !ok {
			info = EpochInfo{Epoch: epoch}
			return nil
		}
		info = EpochInfo{
			Epoch:           epoch,
			Phase:           c.Phase,
			PhaseStartBlock: c.PhaseStartBlock,
			ActiveNodeSet:   c.ActiveNodeSet,
			Members:         c.Members,
		}
		return nil
	})
	return info, err
}

// GetNodeRegistry pages through the node table in ascending index order,
// starting just after after (use 0 to start from the beginning) and
// returning at most limit entries.
func (r *Runner) GetNodeRegistry(after txtypes.NodeIndex, limit int) (NodeRegistryPage, error) {
	page := NodeRegistryPage{Nodes: map[txtypes.NodeIndex]*txtypes.Node{}}
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		nodes := atomo.GetTable[txtypes.NodeIndex, *txtypes.Node](ts, executor.TableNode)
		// Keys yields encoded-key order (10 before 2), so collect and sort
		// numerically before paging.
		var idxs []txtypes.NodeIndex
		for idx := range nodes.Keys {
			if idx > after {
				idxs = append(idxs, idx)
			}
		}
		sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
		for _, idx := range idxs {
			if len(page.Nodes) == limit {
				page.HasMore = true
				break
			}
			node, _ := nodes.Get(idx)
			page.Nodes[idx] = node
		}
		return nil
	})
	return page, err
}

// GetCommitteeMembers returns the committee recorded for epoch.
func (r *Runner) GetCommitteeMembers(epoch txtypes.Epoch) ([]txtypes.NodeIndex, error) {
	var members []txtypes.NodeIndex
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		committee := atomo.GetTable[txtypes.Epoch, *txtypes.Committee](ts, executor.TableCommittee)
		c, ok := committee.Get(epoch)
		if ok {
			members = c.Members
		}
		return nil
	})
	return members, err
}

// IsValidNode reports whether idx refers to a currently registered node.
func (r *Runner) IsValidNode(idx txtypes.NodeIndex) (bool, error) {
	var valid bool
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		nodes := atomo.GetTable[txtypes.NodeIndex, *txtypes.Node](ts, executor.TableNode)
		valid = nodes.Contains(idx)
		return nil
	})
	return valid, err
}

// GetNodeUptime returns idx's last-recomputed uptime percentage (0-100),
// written by the executor's epoch rollover from that epoch's reputation
// measurement log. A node never measured by its peers reports 0.
func (r *Runner) GetNodeUptime(idx txtypes.NodeIndex) (uint8, error) {
	var uptime uint8
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		uptimes := atomo.GetTable[txtypes.NodeIndex, uint8](ts, executor.TableUptime)
		uptime, _ = uptimes.Get(idx)
		return nil
	})
	return uptime, err
}

// GetAccount returns an account's balance/nonce state.
func (r *Runner) GetAccount(addr txtypes.Address) (*txtypes.Account, error) {
	var acct *txtypes.Account
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		accounts := atomo.GetTable[txtypes.Address, *txtypes.Account](ts, executor.TableAccount)
		a, ok := accounts.Get(addr)
		if !ok {
			a = txtypes.NewAccount()
		}
		acct = a
		return nil
	})
	return acct, err
}

// GetStateRoot returns the tree's current commitment root.
func (r *Runner) GetStateRoot() ([32]byte, error) {
	var root [32]byte
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		got, err := r.tree.GetStateRoot(ts)
		if err != nil {
			return err
		}
		root = got
		return nil
	})
	return root, err
}

// GetStateProof returns a commitment proof for table/key against the
// pinned snapshot.
func (r *Runner) GetStateProof(table string, key []byte) (*merklize.CommitmentProof, error) {
	var proof *merklize.CommitmentProof
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		p, err := r.tree.GetStateProof(ts, table, key)
		if err != nil {
			return err
		}
		proof = p
		return nil
	})
	return proof, err
}

// SimulateResult is SimulateTxn's outcome: what a real Execute call would
// have produced, without any of it having been committed.
type SimulateResult struct {
	WouldSucceed bool
	Revert       txtypes.ExecutionError
	Data         txtypes.ExecutionData
}

// SimulateTxn runs req through the executor's own Simulate entry point
// against the pinned read-only snapshot: sender resolution, signature,
// nonce, chain id, and the full method body, exactly as Execute would,
// with every write landing on a throwaway overlay instead of ts. The
// reported outcome is the real would-be TransactionResponse, not a
// partial stand-in — a bad signature, a stale nonce, or a failing method
// body all come back as the Revert a real submission would get.
func (r *Runner) SimulateTxn(req txtypes.UpdateRequest) (SimulateResult, error) {
	var result SimulateResult
	err := r.handle.Run(func(ts *atomo.TableSelector) error {
		resp, err := r.ex.Simulate(ts, req)
		if err != nil {
			return err
		}
		result = SimulateResult{WouldSucceed: resp.Success, Revert: resp.Revert, Data: resp.Data}
		return nil
	})
	return result, err
}
