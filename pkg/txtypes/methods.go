package txtypes

import "math/big"

// Deposit credits the sender's account balance against an external proof
// of a token transfer into the network's custody.
type Deposit struct {
	Token  string
	Amount *big.Int
	Proof  []byte
}

func (Deposit) MethodName() string { return "Deposit" }

// Stake moves balance from the sender's account into a node's staked
// amount, creating the node on first stake if NodeDetails is fully
// populated.
type Stake struct {
	Amount      *big.Int
	NodePublicKey NodePublicKey
	NodeDetails *NodeDetails // nil unless creating a new node
}

// NodeDetails carries the endpoints required to create a node record.
type NodeDetails struct {
	ConsensusPublicKey ConsensusPublicKey
	Domain              string
	WorkerDomain        string
	Ports               NodePorts
}

func (Stake) MethodName() string { return "Stake" }

// Unstake moves staked balance to locked, to be released at an unlock
// epoch.
type Unstake struct {
	Amount       *big.Int
	Node         NodeIndex
}

func (Unstake) MethodName() string { return "Unstake" }

// StakeLock sets a node's stake-lock-until epoch to LockedFor epochs past
// the current one.
type StakeLock struct {
	Node      NodeIndex
	LockedFor uint64 // epochs
}

func (StakeLock) MethodName() string { return "StakeLock" }

// OptIn toggles next-epoch active-set participation on.
type OptIn struct {
	Node NodeIndex
}

func (OptIn) MethodName() string { return "OptIn" }

// OptOut toggles next-epoch active-set participation off.
type OptOut struct {
	Node NodeIndex
}

func (OptOut) MethodName() string { return "OptOut" }

// ChangeEpoch casts the sender's vote for ending the current epoch.
type ChangeEpoch struct {
	Epoch Epoch
}

func (ChangeEpoch) MethodName() string { return "ChangeEpoch" }

// SubmitReputationMeasurements appends the sender's observations of peers.
type SubmitReputationMeasurements struct {
	Measurements map[NodeIndex]*RepMeasurement
}

func (SubmitReputationMeasurements) MethodName() string { return "SubmitReputationMeasurements" }

// ContentRegistryUpdate is one add or remove against the content registry.
type ContentRegistryUpdate struct {
	URI    ContentHash
	Remove bool
}

// UpdateContentRegistry maintains the uri<->node mapping symmetrically.
type UpdateContentRegistry struct {
	Updates []ContentRegistryUpdate
}

func (UpdateContentRegistry) MethodName() string { return "UpdateContentRegistry" }

// ChangeProtocolParam sets a governance-tunable parameter; the authority
// check restricts this to the configured governance address.
type ChangeProtocolParam struct {
	Param ProtocolParam
	Value *big.Int
}

func (ChangeProtocolParam) MethodName() string { return "ChangeProtocolParam" }

// DeliveryAck is one client<->node service-delivery acknowledgement being
// aggregated and settled.
type DeliveryAck struct {
	ServiceID uint32
	Client    ClientPublicKey
	Commodity Commodity
	Units     *big.Int
}

// SubmitDeliveryAcknowledgementAggregation credits a node's served
// counters and debits the acknowledging clients' bandwidth balances.
type SubmitDeliveryAcknowledgementAggregation struct {
	Acks []DeliveryAck
}

func (SubmitDeliveryAcknowledgementAggregation) MethodName() string {
	return "SubmitDeliveryAcknowledgementAggregation"
}

// CommitteeSelectionBeaconCommit records the sender's commit hash for the
// current epoch's beacon, valid only during the Commit phase.
type CommitteeSelectionBeaconCommit struct {
	Commit [32]byte
}

func (CommitteeSelectionBeaconCommit) MethodName() string {
	return "CommitteeSelectionBeaconCommit"
}

// CommitteeSelectionBeaconReveal reveals the preimage of a prior commit.
type CommitteeSelectionBeaconReveal struct {
	Reveal []byte
}

func (CommitteeSelectionBeaconReveal) MethodName() string {
	return "CommitteeSelectionBeaconReveal"
}

// IncrementNonce consumes a nonce with no other state effect; used by
// epochtimer to force block progress during Commit/Reveal phases.
type IncrementNonce struct{}

func (IncrementNonce) MethodName() string { return "IncrementNonce" }
