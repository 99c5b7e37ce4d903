// Package proof bridges pkg/merklize's own ExistenceProof/NonExistenceProof
// shape onto github.com/bnb-chain/ics23's generic CommitmentProof wire
// format. Only existence proofs made with a hasher that has a standard
// ICS23 HashOp convert (see ToCommitmentProof); Blake3 proofs and
// non-existence proofs are checkable only through this package's Verify.
package proof

import (
	"fmt"

	ics23 "github.com/bnb-chain/ics23/go"

	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
)

const (
	leafPrefix     = "JMT::LeafNode"
	internalPrefix = "JMT::IntrnalNode" // typo kept: matches the on-disk node encoding every provider hashes against.
	emptyLeafSeed  = "JMT::EmptyLeaf"
)

// DefaultLeafHash is the canonical "nothing written here" leaf hash,
// independent of any particular key — the starting accumulator for a
// non-existence proof's path recomputation. Every provider that shares
// this package's leaf/internal hash conventions must use this exact
// value as its depth-256 default, so proofs and live tree state agree.
func DefaultLeafHash(h hash.Hasher) [32]byte {
	return h.Hash([]byte(emptyLeafSeed))
}

// LeafOp builds the ICS23 leaf operation for h: the value is pre-hashed
// with h before being folded into the leaf hash (RegisterTables and
// UpdateStateTree already store only the pre-hashed leaf), and the key is
// passed through as-is because callers always supply the 32-byte key
// hash, not the original application key.
func LeafOp(h hash.Hasher) *ics23.LeafOp {
	op, ok := h.ICS23Op()
	if !ok {
		return nil
	}
	return &ics23.LeafOp{
		Hash:         op,
		PrehashKey:   ics23.HashOp_NO_HASH,
		PrehashValue: op,
		Length:       ics23.LengthOp_NO_PREFIX,
		Prefix:       []byte(leafPrefix),
	}
}

// ToCommitmentProof encodes p as an ICS23 CommitmentProof, or returns
// (nil, false) if the proof's hasher has no standard ICS23 HashOp
// (pkg/merklize/hash.Blake3Hasher) — such proofs are only checkable via
// Verify in this package, not by a generic ICS23 client.
func ToCommitmentProof(p *merklize.CommitmentProof, h hash.Hasher) (*ics23.CommitmentProof, bool) {
	op, ok := h.ICS23Op()
	if !ok {
		return nil, false
	}
	leaf := LeafOp(h)
	if p.Exists {
		return &ics23.CommitmentProof{
			Proof: &ics23.CommitmentProof_Exist{
				Exist: toICS23Existence(p.Existence, leaf, op),
			},
		}, true
	}
	// Non-existence proofs built against the canonical empty-leaf hash
	// (IsDefault) aren't expressible in ICS23's key-dependent LeafOp
	// format without a real neighboring leaf to bracket against; callers
	// needing interop fall back to this package's own Verify.
	return nil, false
}

func toICS23Existence(e *merklize.ExistenceProof, leaf *ics23.LeafOp, op ics23.HashOp) *ics23.ExistenceProof {
	path := make([]*ics23.InnerOp, len(e.Siblings))
	for i, sibling := range e.Siblings {
		bit := e.PathBits[i]
		prefix := []byte(internalPrefix)
		if bit == 0 {
			// this node was the left child: hash(prefix || child || sibling)
			path[i] = &ics23.InnerOp{Hash: op, Prefix: prefix, Suffix: sibling[:]}
		} else {
			// this node was the right child: hash(prefix || sibling || child)
			path[i] = &ics23.InnerOp{Hash: op, Prefix: append(append([]byte{}, prefix...), sibling[:]...)}
		}
	}
	return &ics23.ExistenceProof{
		Key:   e.KeyHash[:],
		Value: e.Value,
		Leaf:  leaf,
		Path:  path,
	}
}

// Verify checks p against root using h directly, independent of whether h
// has a standard ICS23 tag — this is the path query.GetStateProof's own
// callers and this module's own tests use.
func Verify(p *merklize.CommitmentProof, h hash.Hasher, root [32]byte) error {
	if p.Exists {
		got, err := calculateRoot(p.Existence, h)
		if err != nil {
			return err
		}
		if got != root {
			return fmt.Errorf("proof: existence proof root mismatch")
		}
		return nil
	}
	if p.NonExist == nil {
		return fmt.Errorf("proof: neither existence nor non-existence proof present")
	}
	if p.NonExist.Left != nil {
		if got, err := calculateRoot(p.NonExist.Left, h); err != nil || got != root {
			return fmt.Errorf("proof: non-existence left bound root mismatch")
		}
	}
	if p.NonExist.Right != nil {
		if got, err := calculateRoot(p.NonExist.Right, h); err != nil || got != root {
			return fmt.Errorf("proof: non-existence right bound root mismatch")
		}
	}
	return nil
}

func calculateRoot(e *merklize.ExistenceProof, h hash.Hasher) ([32]byte, error) {
	if len(e.Siblings) != len(e.PathBits) {
		return [32]byte{}, fmt.Errorf("proof: malformed path, %d siblings vs %d bits", len(e.Siblings), len(e.PathBits))
	}
	var acc [32]byte
	if e.IsDefault {
		acc = DefaultLeafHash(h)
	} else {
		vh := h.Hash(e.Value)
		acc = h.Hash(append(append([]byte(leafPrefix), e.KeyHash[:]...), vh[:]...))
	}
	for i, sibling := range e.Siblings {
		var buf []byte
		buf = append(buf, []byte(internalPrefix)...)
		if e.PathBits[i] == 0 {
			buf = append(buf, acc[:]...)
			buf = append(buf, sibling[:]...)
		} else {
			buf = append(buf, sibling[:]...)
			buf = append(buf, acc[:]...)
		}
		acc = h.Hash(buf)
	}
	return acc, nil
}
