// Package txtypes holds the domain model for the state engine: the value
// types stored in each atomo table, the transaction envelope, and the
// per-method payloads the executor dispatches on. Kept dependency-free of
// atomo/merklize/executor so every layer can import it without cycles.
package txtypes

import (
	"math/big"
	"time"
)

// Address is a 20-byte account address, recovered from an account-owner
// (secp256k1) signature the same way the teacher derives node/cluster
// identity strings, but fixed-width and comparable as a map key.
type Address [20]byte

// NodePublicKey is a node's Ed25519 identity key.
type NodePublicKey [32]byte

// ConsensusPublicKey is a node's BLS12-381 consensus key.
type ConsensusPublicKey [48]byte

// ClientPublicKey identifies a bandwidth-paying client.
type ClientPublicKey [32]byte

// NodeIndex is the dense integer handle assigned to a node at stake time.
type NodeIndex uint32

// Epoch identifies a committee period.
type Epoch uint64

// Account is the value stored under the account table.
type Account struct {
	FLKBalance       *big.Int
	StablesBalance   *big.Int
	BandwidthBalance *big.Int
	Nonce            uint64
}

// NewAccount returns a zeroed account with non-nil big.Int fields.
func NewAccount() *Account {
	return &Account{
		FLKBalance:       big.NewInt(0),
		StablesBalance:   big.NewInt(0),
		BandwidthBalance: big.NewInt(0),
	}
}

// Stake tracks a node's staked and locked balances.
type Stake struct {
	Staked         *big.Int
	Locked         *big.Int
	LockedUntil    Epoch // unstake unlock epoch
	StakeLockUntil Epoch // StakeLock method's lock-up epoch
}

// NewStake returns a zeroed stake with non-nil big.Int fields.
func NewStake() *Stake {
	return &Stake{Staked: big.NewInt(0), Locked: big.NewInt(0)}
}

// NodePorts lists the service ports a node advertises.
type NodePorts struct {
	Primary    uint16
	Worker     uint16
	MemPool    uint16
	RPC        uint16
	Pool       uint16
	PingerPort uint16
	Handshake  HandshakePorts
}

// HandshakePorts lists the handshake-transport ports a node advertises.
// The transports themselves are out of scope; the engine only stores the
// advertised port numbers as part of node identity.
type HandshakePorts struct {
	HTTP   uint16
	WebRTC uint16
	WebTransport uint16
}

// Node is the value stored under the node table.
type Node struct {
	Owner              Address
	NodePublicKey      NodePublicKey
	ConsensusPublicKey ConsensusPublicKey
	Domain             string
	WorkerDomain       string
	Ports              NodePorts
	Stake              Stake
	ParticipationNext  bool // OptIn/OptOut toggles this for the *next* epoch
	Nonce              uint64
	CreatedAt          time.Time
}

// BeaconPhase is the committee-selection state machine's current phase.
type BeaconPhase int

const (
	BeaconPhaseNone BeaconPhase = iota
	BeaconPhaseCommit
	BeaconPhaseReveal
)

func (p BeaconPhase) String() string {
	switch p {
	case BeaconPhaseCommit:
		return "commit"
	case BeaconPhaseReveal:
		return "reveal"
	default:
		return "none"
	}
}

// Beacon is one node's commit-reveal entry for a given epoch.
type Beacon struct {
	Commit [32]byte
	Reveal []byte // nil until revealed
}

// Committee is the value stored under the committee table, keyed by epoch.
type Committee struct {
	Members            []NodeIndex
	ActiveNodeSet      []NodeIndex
	Beacons            map[NodeIndex]*Beacon
	EpochEndTimestamp  int64 // ms since epoch
	Phase              BeaconPhase
	PhaseStartBlock    uint64
	ChangeEpochVotes   map[NodeIndex]bool
}

// Commodity identifies a billable unit of edge-compute service.
type Commodity uint8

const (
	CommodityBandwidth Commodity = iota
	CommodityCompute
	CommodityStorage
	CommodityGPU
)

// Service describes a registered commodity-serving application.
type Service struct {
	ID        uint32
	Name      string
	Commodity Commodity
}

// ServedCounters tracks per-commodity served units for one node in one
// epoch window.
type ServedCounters struct {
	Served map[Commodity]*big.Int
}

// NewServedCounters returns an empty counter set.
func NewServedCounters() *ServedCounters {
	return &ServedCounters{Served: make(map[Commodity]*big.Int)}
}

// RepMeasurement is one node's reported observation of another.
type RepMeasurement struct {
	Reporter    NodeIndex
	Latency     time.Duration
	Interactions uint64
	Uptime      uint8 // 0-100
	Bytes       uint64
}

// ProtocolParam names a governance-tunable network parameter.
type ProtocolParam uint32

const (
	ParamEpochTime ProtocolParam = iota
	ParamMinimumNodeStake
	ParamLockTime
	ParamMaxStakeLockTime
	ParamCommitPhaseDuration
	ParamRevealPhaseDuration
	ParamMaxStringLengthServiceDomain
)

// ContentHash identifies a piece of registered content by its digest.
type ContentHash [32]byte
