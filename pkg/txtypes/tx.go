package txtypes

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// SenderKind distinguishes the three signature schemes the executor
// recognizes, per spec section 4.3 step 2.
type SenderKind uint8

const (
	SenderAccountOwner SenderKind = iota // secp256k1, address-recoverable
	SenderNodeMain                       // Ed25519
	SenderConsensus                      // BLS
)

// Sender identifies the transaction's origin.
type Sender struct {
	Kind    SenderKind
	Address Address   // valid when Kind == SenderAccountOwner
	Node    NodeIndex // valid when Kind == SenderNodeMain or SenderConsensus
}

// Method is implemented by every transaction payload the executor
// dispatches on. The name doubles as the dispatch-table key and the
// metric label.
type Method interface {
	MethodName() string
}

// UpdatePayload is the unsigned body of a transaction.
type UpdatePayload struct {
	Sender  Sender
	Nonce   uint64
	ChainID uint32
	Method  Method
}

// TransactionSignature is the raw signature bytes over the payload's
// canonical encoding; its scheme is implied by Sender.Kind.
type TransactionSignature []byte

// UpdateRequest is a signed transaction submitted through the submission
// socket.
type UpdateRequest struct {
	Payload   UpdatePayload
	Signature TransactionSignature
}

// ExecutionData is the success-path response payload of a method body;
// most methods return nil, a handful (e.g. simulate, Stake) return data
// useful to the submitter.
type ExecutionData any

// TransactionResponse is the outcome of running a transaction, shared by
// both the committing executor and query.SimulateTxn.
type TransactionResponse struct {
	Success bool
	Data    ExecutionData
	Revert  ExecutionError
}

// SigningBytes returns the canonical encoding a transaction's signature
// is computed and checked over. JSON is sufficient here (rather than a
// dedicated wire codec) because a payload is only ever re-encoded inside
// the same process that first decoded it off the submission socket, so
// byte-for-byte wire compatibility across versions is never required —
// only that the same in-memory value always encodes the same way, which
// encoding/json's sorted map keys and fixed struct field order already
// guarantee.
func (p UpdatePayload) SigningBytes() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("txtypes: encode payload: %w", err)
	}
	return b, nil
}

// Hash returns the transaction hash used for receipts and the
// executed-digests replay guard.
func (p UpdatePayload) Hash() ([32]byte, error) {
	b, err := p.SigningBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// TransactionReceipt records one executed transaction's outcome, ordered
// by BlockNumber/TxIndex as assigned by the external total-order oracle.
type TransactionReceipt struct {
	BlockHash   [32]byte
	BlockNumber uint64
	TxIndex     uint32
	TxHash      [32]byte
	From        Sender
	Response    TransactionResponse
}
