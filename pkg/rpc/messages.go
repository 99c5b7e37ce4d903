package rpc

import (
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/query"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// SubmitRequest wraps the one signed transaction a client wants ordered
// and executed.
type SubmitRequest struct {
	Tx txtypes.UpdateRequest
}

// SubmitResponse carries back the receipt the total-order oracle and
// executor assigned the transaction, or the engine-level error that
// kept it from ever being executed (this node isn't the leader, the
// payload couldn't be hashed or encoded, or the ordering log rejected the
// entry). An unresolvable sender or a failed signature check is not an
// error here: it comes back as a receipt with Response.Revert set.
type SubmitResponse struct {
	Receipt txtypes.TransactionReceipt
	Error   string
}

// QueryKind selects which read pkg/query.Runner method a QueryRequest
// is asking for. Modeled as a discriminated struct rather than a
// gRPC-style oneof since there's no .proto file generating one.
type QueryKind string

const (
	QueryEpochInfo       QueryKind = "EpochInfo"
	QueryNodeRegistry    QueryKind = "NodeRegistry"
	QueryCommitteeMembers QueryKind = "CommitteeMembers"
	QueryAccount         QueryKind = "Account"
	QueryStateRoot       QueryKind = "StateRoot"
	QueryStateProof      QueryKind = "StateProof"
	QuerySimulateTxn     QueryKind = "SimulateTxn"
)

// QueryRequest is the engine's one ad hoc read entry point, fed
// whichever of its fields QueryKind says to look at.
type QueryRequest struct {
	Kind QueryKind

	// NodeRegistry
	After txtypes.NodeIndex
	Limit int

	// CommitteeMembers
	Epoch txtypes.Epoch

	// Account
	Address txtypes.Address

	// StateProof
	Table string
	Key   []byte

	// SimulateTxn
	Tx txtypes.UpdateRequest
}

// QueryResponse carries back whichever of its fields QueryRequest.Kind
// asked for.
type QueryResponse struct {
	Error string

	EpochInfo       query.EpochInfo
	NodeRegistry    query.NodeRegistryPage
	CommitteeMembers []txtypes.NodeIndex
	Account         *txtypes.Account
	StateRoot       [32]byte
	StateProof      *merklize.CommitmentProof
	Simulate        query.SimulateResult
}
