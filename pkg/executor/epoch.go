package executor

import (
	"crypto/sha256"
	"fmt"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// hashReveal is the commitment function CommitteeSelectionBeaconCommit's
// Commit field and CommitteeSelectionBeaconReveal's Reveal preimage must
// agree on.
func (e *Executor) hashReveal(reveal []byte) [32]byte {
	return sha256.Sum256(reveal)
}

// maybeAdvanceEpoch runs the None -> Commit -> Reveal -> None state
// machine once per executed transaction, after its own effects (if any)
// have already been staged. Every write here goes directly against ts:
// epoch bookkeeping is never part of a revertible method body.
func (e *Executor) maybeAdvanceEpoch(ts *atomo.TableSelector, blockNumber uint64) {
	epoch := currentEpochValue(ts)
	committee := committeeTable(ts)
	c, ok := committee.Get(epoch)
	if !ok {
		c = &txtypes.Committee{ChangeEpochVotes: map[txtypes.NodeIndex]bool{}}
	}

	switch c.Phase {
	case txtypes.BeaconPhaseNone:
		if epochEndReached(ts, c) {
			c.Phase = txtypes.BeaconPhaseCommit
			c.PhaseStartBlock = blockNumber
			c.Beacons = map[txtypes.NodeIndex]*txtypes.Beacon{}
			committee.Insert(epoch, c)
		}
	case txtypes.BeaconPhaseCommit:
		commitDuration := paramUint(ts, txtypes.ParamCommitPhaseDuration, 180)
		if blockNumber-c.PhaseStartBlock >= commitDuration && len(c.Beacons) > 0 {
			c.Phase = txtypes.BeaconPhaseReveal
			c.PhaseStartBlock = blockNumber
			committee.Insert(epoch, c)
		}
	case txtypes.BeaconPhaseReveal:
		revealDuration := paramUint(ts, txtypes.ParamRevealPhaseDuration, 180)
		if blockNumber-c.PhaseStartBlock >= revealDuration {
			e.rollEpoch(ts, epoch, c)
		}
	}
}

// epochEndReached reports whether at least two thirds (rounded up) of
// ActiveNodeSet have voted to end the epoch. Only votes are counted: the
// committee's EpochEndTimestamp is not consulted here, and the engine has
// no wall-clock input of its own.
func epochEndReached(ts atomo.Selector, c *txtypes.Committee) bool {
	if len(c.ActiveNodeSet) == 0 {
		return false
	}
	needed := (len(c.ActiveNodeSet)*2 + 2) / 3
	votes := 0
	for _, n := range c.ActiveNodeSet {
		if c.ChangeEpochVotes[n] {
			votes++
		}
	}
	return votes >= needed
}

// rollEpoch computes the next committee from the XOR of all valid
// reveals, reseeds the active node set, moves served counters, recomputes
// reputation scores, clears the per-epoch digest log, and advances the
// epoch counter — the Reveal -> None transition's full side-effect list.
func (e *Executor) rollEpoch(ts *atomo.TableSelector, epoch txtypes.Epoch, c *txtypes.Committee) {
	var seed [32]byte
	for _, b := range c.Beacons {
		if b.Reveal == nil {
			continue
		}
		h := e.hashReveal(b.Reveal)
		for i := range seed {
			seed[i] ^= h[i]
		}
	}

	nodes := nodeTable(ts)
	minStake := paramUint(ts, txtypes.ParamMinimumNodeStake, 0)
	var active []txtypes.NodeIndex
	for idx := range nodes.Keys {
		node, _ := nodes.Get(idx)
		if node.ParticipationNext && node.Stake.Staked.Uint64() >= minStake {
			active = append(active, idx)
		}
	}

	next := epoch + 1
	nextCommittee := &txtypes.Committee{
		ActiveNodeSet:    active,
		Members:          selectCommitteeMembers(active, seed),
		ChangeEpochVotes: map[txtypes.NodeIndex]bool{},
		Phase:            txtypes.BeaconPhaseNone,
	}
	committeeTable(ts).Insert(next, nextCommittee)

	moveServedCounters(ts)
	recomputeReputationAndUptime(ts)

	digests := executedDigestsTable(ts)
	var stale [][32]byte
	for d := range digests.Keys {
		stale = append(stale, d)
	}
	for _, d := range stale {
		digests.Remove(d)
	}

	meta := metadataTable(ts)
	meta.Insert(txtypes.MetadataEpoch, &txtypes.MetadataValue{Kind: txtypes.MetadataEpoch, Epoch: next})

	// root reflects every block committed before this one: this
	// transaction's own staged changes (the rollover side effects above)
	// are only folded into the tree by flushStateTree after
	// maybeAdvanceEpoch returns, which is exactly "the state-root hash at
	// transition" spec section 4.3 calls for.
	root, err := e.tree.GetStateRoot(ts)
	if err != nil {
		panic(&atomo.FatalError{Err: fmt.Errorf("executor: read state root for epoch rollover: %w", err)})
	}
	meta.Insert(txtypes.MetadataLastEpochHash, &txtypes.MetadataValue{Kind: txtypes.MetadataLastEpochHash, Hash: root})
}

// selectCommitteeMembers derives the next committee deterministically
// from seed: a XOR-weighted rotation of the active set, capped at the
// active set's own size when that's smaller than a full committee would
// otherwise want to be (this engine doesn't fix a separate committee
// size parameter — the entire active, sufficiently-staked set serves).
func selectCommitteeMembers(active []txtypes.NodeIndex, seed [32]byte) []txtypes.NodeIndex {
	if len(active) == 0 {
		return nil
	}
	var offset int
	for _, b := range seed {
		offset += int(b)
	}
	offset %= len(active)
	members := make([]txtypes.NodeIndex, len(active))
	for i := range active {
		members[i] = active[(i+offset)%len(active)]
	}
	return members
}

// moveServedCounters shifts current_epoch_served into last_epoch_served
// and resets the current window.
func moveServedCounters(ts atomo.Selector) {
	current := currentEpochServedTable(ts)
	last := lastEpochServedTable(ts)
	var nodes []txtypes.NodeIndex
	for idx := range current.Keys {
		nodes = append(nodes, idx)
	}
	for _, idx := range nodes {
		counters, _ := current.Get(idx)
		last.Insert(idx, counters)
		current.Remove(idx)
	}
}

// recomputeReputationAndUptime derives each node's reputation score and
// recorded uptime from this epoch's measurement log: the mean of its
// peers' reported Uptime (0-100) is both stored directly in the uptime
// table and scaled to a 0-10000 basis-point reputation score. Nodes
// nobody reported on keep their previous score and uptime.
func recomputeReputationAndUptime(ts atomo.Selector) {
	measurements := repMeasurementsTable(ts)
	scores := repScoresTable(ts)
	uptime := uptimeTable(ts)
	var nodes []txtypes.NodeIndex
	for idx := range measurements.Keys {
		nodes = append(nodes, idx)
	}
	for _, idx := range nodes {
		reports, _ := measurements.Get(idx)
		if len(reports) == 0 {
			continue
		}
		var total uint64
		for _, r := range reports {
			total += uint64(r.Uptime)
		}
		avg := total / uint64(len(reports))
		scores.Insert(idx, avg*100)
		uptime.Insert(idx, uint8(avg))
		measurements.Remove(idx)
	}
}
