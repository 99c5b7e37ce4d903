package executor

import (
	"math/big"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// methodContext carries everything a method body needs: ts for
// read-mostly lookups that must be visible regardless of this
// transaction's outcome (the nonce bump, the digest insert, epoch
// bookkeeping already live there), and sub for every write the body
// itself makes, so a returned ExecutionError discards them for free.
type methodContext struct {
	ex          *Executor
	ts          atomo.Selector
	sub         *atomo.SubSelector
	sender      resolvedSender
	blockNumber uint64
}

// dispatch runs the method body matching m's concrete type. The returned
// txtypes.ExecutionError is empty ("") on success; a non-empty value is
// the Revert reason and means mctx.sub must not be flushed.
func dispatch(mctx *methodContext, m txtypes.Method) (txtypes.ExecutionData, txtypes.ExecutionError) {
	switch p := m.(type) {
	case txtypes.Deposit:
		return nil, doDeposit(mctx, p)
	case txtypes.Stake:
		return doStake(mctx, p)
	case txtypes.Unstake:
		return nil, doUnstake(mctx, p)
	case txtypes.StakeLock:
		return nil, doStakeLock(mctx, p)
	case txtypes.OptIn:
		return nil, doOptToggle(mctx, p.Node, true)
	case txtypes.OptOut:
		return nil, doOptToggle(mctx, p.Node, false)
	case txtypes.ChangeEpoch:
		return nil, doChangeEpoch(mctx, p)
	case txtypes.SubmitReputationMeasurements:
		return nil, doSubmitReputationMeasurements(mctx, p)
	case txtypes.UpdateContentRegistry:
		return nil, doUpdateContentRegistry(mctx, p)
	case txtypes.ChangeProtocolParam:
		return nil, doChangeProtocolParam(mctx, p)
	case txtypes.SubmitDeliveryAcknowledgementAggregation:
		return nil, doSubmitDeliveryAck(mctx, p)
	case txtypes.CommitteeSelectionBeaconCommit:
		return nil, doBeaconCommit(mctx, p)
	case txtypes.CommitteeSelectionBeaconReveal:
		return nil, doBeaconReveal(mctx, p)
	case txtypes.IncrementNonce:
		return nil, ""
	default:
		return nil, txtypes.ErrUnimplemented
	}
}

// requireAccountOwner/requireNode are the authority-check helpers every
// method that restricts its sender kind shares.

func (mctx *methodContext) requireAccountOwner() (txtypes.Address, txtypes.ExecutionError) {
	if mctx.sender.kind != txtypes.SenderAccountOwner {
		return txtypes.Address{}, txtypes.ErrOnlyAccountOwner
	}
	return mctx.sender.addr, ""
}

func (mctx *methodContext) requireNode() (txtypes.NodeIndex, *txtypes.Node, txtypes.ExecutionError) {
	if mctx.sender.kind != txtypes.SenderNodeMain && mctx.sender.kind != txtypes.SenderConsensus {
		return 0, nil, txtypes.ErrOnlyNode
	}
	node, ok := nodeTable(mctx.sub).Get(mctx.sender.node)
	if !ok {
		return 0, nil, txtypes.ErrNodeDoesNotExist
	}
	return mctx.sender.node, node, ""
}

func (mctx *methodContext) requireGovernance() txtypes.ExecutionError {
	meta, ok := metadataTable(mctx.sub).Get(txtypes.MetadataGovernanceAddress)
	if !ok || mctx.sender.kind != txtypes.SenderAccountOwner || mctx.sender.addr != meta.Address {
		return txtypes.ErrOnlyGovernance
	}
	return ""
}

// doDeposit credits the sender's balance against an externally verified
// proof. Proof verification itself is out of scope for this engine (it is
// checked by whatever bridge produced the request); here InvalidProof
// only guards against an obviously empty proof.
func doDeposit(mctx *methodContext, p txtypes.Deposit) txtypes.ExecutionError {
	addr, execErr := mctx.requireAccountOwner()
	if execErr != "" {
		return execErr
	}
	if len(p.Proof) == 0 {
		return txtypes.ErrInvalidProof
	}
	accounts := accountTable(mctx.sub)
	acct, ok := accounts.Get(addr)
	if !ok {
		acct = txtypes.NewAccount()
	}
	acct.FLKBalance = new(big.Int).Add(acct.FLKBalance, p.Amount)
	accounts.Insert(addr, acct)
	return ""
}

// doStake moves balance from the sender's account into a node's staked
// amount, creating the node on first stake when NodeDetails is supplied.
func doStake(mctx *methodContext, p txtypes.Stake) (txtypes.ExecutionData, txtypes.ExecutionError) {
	addr, execErr := mctx.requireAccountOwner()
	if execErr != "" {
		return nil, execErr
	}
	accounts := accountTable(mctx.sub)
	acct, ok := accounts.Get(addr)
	if !ok || acct.FLKBalance.Cmp(p.Amount) < 0 {
		return nil, txtypes.ErrInsufficientBalance
	}

	pubIdx := pubKeyToIndexTable(mctx.sub)
	idx, exists := pubIdx.Get(p.NodePublicKey)
	nodes := nodeTable(mctx.sub)

	var node *txtypes.Node
	if exists {
		node, _ = nodes.Get(idx)
	} else {
		if p.NodeDetails == nil {
			return nil, txtypes.ErrInsufficientNodeDetails
		}
		consIdx := consensusKeyToIndexTable(mctx.sub)
		if _, taken := consIdx.Get(p.NodeDetails.ConsensusPublicKey); taken {
			return nil, txtypes.ErrConsensusKeyAlreadyIndexed
		}
		idx = nextNodeIndex(mctx.sub)
		node = &txtypes.Node{
			Owner:              addr,
			NodePublicKey:      p.NodePublicKey,
			ConsensusPublicKey: p.NodeDetails.ConsensusPublicKey,
			Domain:             p.NodeDetails.Domain,
			WorkerDomain:       p.NodeDetails.WorkerDomain,
			Ports:              p.NodeDetails.Ports,
			Stake:              *txtypes.NewStake(),
		}
		pubIdx.Insert(p.NodePublicKey, idx)
		consIdx.Insert(p.NodeDetails.ConsensusPublicKey, idx)
	}

	acct.FLKBalance = new(big.Int).Sub(acct.FLKBalance, p.Amount)
	node.Stake.Staked = new(big.Int).Add(node.Stake.Staked, p.Amount)
	accounts.Insert(addr, acct)
	nodes.Insert(idx, node)
	return idx, ""
}

// nextNodeIndex returns the next unused dense node index; since the node
// table is iteration-enabled, new indices are simply one past the
// highest currently assigned.
func nextNodeIndex(sel atomo.Selector) txtypes.NodeIndex {
	var max txtypes.NodeIndex
	found := false
	for idx := range nodeTable(sel).Keys {
		found = true
		if idx > max {
			max = idx
		}
	}
	if !found {
		return 0
	}
	return max + 1
}

// doUnstake moves staked balance to locked, to be released at the
// configured unlock epoch.
func doUnstake(mctx *methodContext, p txtypes.Unstake) txtypes.ExecutionError {
	addr, execErr := mctx.requireAccountOwner()
	if execErr != "" {
		return execErr
	}
	nodes := nodeTable(mctx.sub)
	node, ok := nodes.Get(p.Node)
	if !ok {
		return txtypes.ErrNodeDoesNotExist
	}
	if node.Owner != addr {
		return txtypes.ErrNotNodeOwner
	}
	if node.Stake.Staked.Cmp(p.Amount) < 0 {
		return txtypes.ErrInsufficientStake
	}
	currentEpoch := currentEpochValue(mctx.ts)
	if currentEpoch < node.Stake.StakeLockUntil {
		return txtypes.ErrLockedTokensUnstakeForbid
	}
	lockTime := paramUint(mctx.sub, txtypes.ParamLockTime, 2)
	node.Stake.Staked = new(big.Int).Sub(node.Stake.Staked, p.Amount)
	node.Stake.Locked = new(big.Int).Add(node.Stake.Locked, p.Amount)
	node.Stake.LockedUntil = currentEpoch + txtypes.Epoch(lockTime)
	nodes.Insert(p.Node, node)
	return ""
}

// doStakeLock sets a node's stake-lock-until epoch to the current epoch
// plus LockedFor, rejecting a LockedFor above the configured maximum
// lock-up with ErrLockExceededMaxStakeLock.
func doStakeLock(mctx *methodContext, p txtypes.StakeLock) txtypes.ExecutionError {
	addr, execErr := mctx.requireAccountOwner()
	if execErr != "" {
		return execErr
	}
	nodes := nodeTable(mctx.sub)
	node, ok := nodes.Get(p.Node)
	if !ok {
		return txtypes.ErrNodeDoesNotExist
	}
	if node.Owner != addr {
		return txtypes.ErrNotNodeOwner
	}
	maxLock := paramUint(mctx.sub, txtypes.ParamMaxStakeLockTime, 365)
	if p.LockedFor > maxLock {
		return txtypes.ErrLockExceededMaxStakeLock
	}
	currentEpoch := currentEpochValue(mctx.ts)
	node.Stake.StakeLockUntil = currentEpoch + txtypes.Epoch(p.LockedFor)
	nodes.Insert(p.Node, node)
	return ""
}

// doOptToggle flips a node's next-epoch participation flag.
func doOptToggle(mctx *methodContext, idx txtypes.NodeIndex, in bool) txtypes.ExecutionError {
	if mctx.sender.kind != txtypes.SenderNodeMain && mctx.sender.kind != txtypes.SenderConsensus {
		return txtypes.ErrOnlyNode
	}
	nodes := nodeTable(mctx.sub)
	node, ok := nodes.Get(idx)
	if !ok {
		return txtypes.ErrNodeDoesNotExist
	}
	node.ParticipationNext = in
	nodes.Insert(idx, node)
	return ""
}

// doChangeEpoch casts the sender's vote to end the current epoch,
// triggering the None->Commit transition once two thirds of the active
// committee has voted (checked by maybeAdvanceEpoch after this returns).
func doChangeEpoch(mctx *methodContext, p txtypes.ChangeEpoch) txtypes.ExecutionError {
	idx, _, execErr := mctx.requireNode()
	if execErr != "" {
		return execErr
	}
	epoch := currentEpochValue(mctx.ts)
	if p.Epoch != epoch {
		return txtypes.ErrEpochAlreadyChanged
	}
	committee := committeeTable(mctx.sub)
	c, ok := committee.Get(epoch)
	if !ok {
		c = &txtypes.Committee{ChangeEpochVotes: map[txtypes.NodeIndex]bool{}}
	}
	if c.Phase != txtypes.BeaconPhaseNone {
		return txtypes.ErrEpochAlreadyChanged
	}
	if c.ChangeEpochVotes == nil {
		c.ChangeEpochVotes = map[txtypes.NodeIndex]bool{}
	}
	c.ChangeEpochVotes[idx] = true
	committee.Insert(epoch, c)
	return ""
}

// doSubmitReputationMeasurements appends a node's observations of its
// peers to this epoch's measurement log.
func doSubmitReputationMeasurements(mctx *methodContext, p txtypes.SubmitReputationMeasurements) txtypes.ExecutionError {
	reporter, _, execErr := mctx.requireNode()
	if execErr != "" {
		return execErr
	}
	meas := repMeasurementsTable(mctx.sub)
	for target, m := range p.Measurements {
		m.Reporter = reporter
		existing, _ := meas.Get(target)
		meas.Insert(target, append(existing, m))
	}
	return ""
}

// doUpdateContentRegistry maintains the uri<->node mapping symmetrically.
func doUpdateContentRegistry(mctx *methodContext, p txtypes.UpdateContentRegistry) txtypes.ExecutionError {
	idx, _, execErr := mctx.requireNode()
	if execErr != "" {
		return execErr
	}
	uriToNode := uriToNodeTable(mctx.sub)
	nodeToURI := nodeToURITable(mctx.sub)
	uris, _ := nodeToURI.Get(idx)
	for _, u := range p.Updates {
		if u.Remove {
			uriToNode.Remove(u.URI)
			uris = removeContentHash(uris, u.URI)
			continue
		}
		uriToNode.Insert(u.URI, idx)
		uris = appendUniqueContentHash(uris, u.URI)
	}
	nodeToURI.Insert(idx, uris)
	return ""
}

func removeContentHash(list []txtypes.ContentHash, target txtypes.ContentHash) []txtypes.ContentHash {
	out := list[:0]
	for _, h := range list {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}

func appendUniqueContentHash(list []txtypes.ContentHash, target txtypes.ContentHash) []txtypes.ContentHash {
	for _, h := range list {
		if h == target {
			return list
		}
	}
	return append(list, target)
}

// doChangeProtocolParam sets a governance-tunable parameter.
func doChangeProtocolParam(mctx *methodContext, p txtypes.ChangeProtocolParam) txtypes.ExecutionError {
	if execErr := mctx.requireGovernance(); execErr != "" {
		return execErr
	}
	parameterTable(mctx.sub).Insert(p.Param, p.Value)
	return ""
}

// doSubmitDeliveryAck credits a node's served counters and debits the
// acknowledging clients' bandwidth balances, at the price configured for
// each ack's commodity.
func doSubmitDeliveryAck(mctx *methodContext, p txtypes.SubmitDeliveryAcknowledgementAggregation) txtypes.ExecutionError {
	idx, _, execErr := mctx.requireNode()
	if execErr != "" {
		return execErr
	}
	services := serviceTable(mctx.sub)
	clients := clientKeysTable(mctx.sub)
	served := currentEpochServedTable(mctx.sub)
	total := totalServedTable(mctx.sub)
	prices := commodityPricesTable(mctx.sub)

	counters, _ := served.Get(idx)
	if counters == nil {
		counters = txtypes.NewServedCounters()
	}
	lifetime, _ := total.Get(idx)
	if lifetime == nil {
		lifetime = txtypes.NewServedCounters()
	}

	for _, ack := range p.Acks {
		if _, ok := services.Get(ack.ServiceID); !ok {
			return txtypes.ErrNonExistingService
		}
		price, ok := prices.Get(ack.Commodity)
		if !ok {
			price = big.NewInt(0)
		}
		cost := new(big.Int).Mul(price, ack.Units)

		client, _ := clients.Get(ack.Client)
		if client == nil {
			client = txtypes.NewAccount()
		}
		if client.BandwidthBalance.Cmp(cost) < 0 {
			return txtypes.ErrInsufficientBalance
		}
		client.BandwidthBalance = new(big.Int).Sub(client.BandwidthBalance, cost)
		clients.Insert(ack.Client, client)

		if counters.Served[ack.Commodity] == nil {
			counters.Served[ack.Commodity] = big.NewInt(0)
		}
		counters.Served[ack.Commodity] = new(big.Int).Add(counters.Served[ack.Commodity], ack.Units)
		if lifetime.Served[ack.Commodity] == nil {
			lifetime.Served[ack.Commodity] = big.NewInt(0)
		}
		lifetime.Served[ack.Commodity] = new(big.Int).Add(lifetime.Served[ack.Commodity], ack.Units)
	}
	served.Insert(idx, counters)
	total.Insert(idx, lifetime)
	return ""
}

// doBeaconCommit records the sender's commit hash for the current
// epoch's committee-selection beacon; only valid during the Commit phase.
func doBeaconCommit(mctx *methodContext, p txtypes.CommitteeSelectionBeaconCommit) txtypes.ExecutionError {
	idx, _, execErr := mctx.requireNode()
	if execErr != "" {
		return execErr
	}
	epoch := currentEpochValue(mctx.ts)
	committee := committeeTable(mctx.sub)
	c, ok := committee.Get(epoch)
	if !ok || c.Phase != txtypes.BeaconPhaseCommit {
		return txtypes.ErrUnknownPhaseType
	}
	if c.Beacons == nil {
		c.Beacons = map[txtypes.NodeIndex]*txtypes.Beacon{}
	}
	c.Beacons[idx] = &txtypes.Beacon{Commit: p.Commit}
	committee.Insert(epoch, c)
	return ""
}

// doBeaconReveal checks reveal hashes to the sender's earlier commit and
// records the preimage.
func doBeaconReveal(mctx *methodContext, p txtypes.CommitteeSelectionBeaconReveal) txtypes.ExecutionError {
	idx, _, execErr := mctx.requireNode()
	if execErr != "" {
		return execErr
	}
	epoch := currentEpochValue(mctx.ts)
	committee := committeeTable(mctx.sub)
	c, ok := committee.Get(epoch)
	if !ok || c.Phase != txtypes.BeaconPhaseReveal {
		return txtypes.ErrUnknownPhaseType
	}
	beacon, ok := c.Beacons[idx]
	if !ok {
		return txtypes.ErrUnknownPhaseType
	}
	if mctx.ex.hashReveal(p.Reveal) != beacon.Commit {
		return txtypes.ErrInvalidReveal
	}
	beacon.Reveal = p.Reveal
	committee.Insert(epoch, c)
	return ""
}

// currentEpochValue reads the current epoch from metadata, defaulting to
// zero for a freshly-applied genesis that hasn't run any ChangeEpoch yet.
func currentEpochValue(sel atomo.Selector) txtypes.Epoch {
	v, ok := metadataTable(sel).Get(txtypes.MetadataEpoch)
	if !ok {
		return 0
	}
	return v.Epoch
}
