// Package txsig verifies a transaction's signature against the scheme
// implied by its sender kind: secp256k1 address recovery for account
// owners (so the chain never needs to store a separate public key for
// EOAs, only the address), Ed25519 for node-main keys, and BLS for
// consensus/committee signatures, including checkpoint aggregate
// signatures.
package txsig

import (
	"crypto/ed25519"
	"fmt"

	bls "github.com/Giulio2002/bls"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/lumenetwork/corestate/pkg/txtypes"
)

func keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Payload is anything that can produce the canonical bytes a signature
// was computed over.
type Payload interface {
	SigningBytes() ([]byte, error)
}

// VerifyAccountOwner checks sig against payloadHash, recovering the
// signer's public key and comparing its derived address to addr. The
// signature is a 65-byte [R || S || V] recoverable ECDSA signature, the
// same format the teacher's own clients already produce for secp256k1.
func VerifyAccountOwner(payloadHash [32]byte, sig []byte, addr txtypes.Address) error {
	if len(sig) != 65 {
		return fmt.Errorf("txsig: account-owner signature must be 65 bytes, got %d", len(sig))
	}
	compact := make([]byte, 65)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])
	pub, _, err := ecdsa.RecoverCompact(compact, payloadHash[:])
	if err != nil {
		return fmt.Errorf("txsig: recover secp256k1 pubkey: %w", err)
	}
	if addressFromPubKey(pub) != addr {
		return fmt.Errorf("txsig: %w", txtypes.ErrInvalidSignature)
	}
	return nil
}

// addressFromPubKey derives a 20-byte address from an uncompressed
// secp256k1 public key the same way the teacher's chain does: the
// low-order 20 bytes of the Keccak256 hash of the 64-byte (X||Y) point
// encoding.
func addressFromPubKey(pub *secp256k1.PublicKey) txtypes.Address {
	encoded := pub.SerializeUncompressed()[1:] // drop the 0x04 prefix, keep X||Y
	digest := keccak256(encoded)
	var addr txtypes.Address
	copy(addr[:], digest[12:])
	return addr
}

// VerifyNodeMain checks an Ed25519 signature from a node's main key.
func VerifyNodeMain(payload []byte, sig []byte, pub txtypes.NodePublicKey) error {
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("txsig: node-main signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), payload, sig) {
		return fmt.Errorf("txsig: %w", txtypes.ErrInvalidSignature)
	}
	return nil
}

// VerifyConsensus checks a BLS signature from a node's consensus key,
// used both for individual consensus-sender transactions and (via
// VerifyAggregate) for checkpoint aggregate signatures.
func VerifyConsensus(payload []byte, sig []byte, pub txtypes.ConsensusPublicKey) error {
	ok, err := bls.VerifySignature(sig, payload, pub[:])
	if err != nil {
		return fmt.Errorf("txsig: bls verify: %w", err)
	}
	if !ok {
		return fmt.Errorf("txsig: %w", txtypes.ErrInvalidSignature)
	}
	return nil
}

// VerifyAggregate checks an aggregate BLS signature from a checkpoint
// message against the set of committee members who are claimed to have
// signed it, used by pkg/checkpoint's Checkpoint.VerifySignature.
func VerifyAggregate(payload []byte, aggSig []byte, pubs []txtypes.ConsensusPublicKey) error {
	flat := make([][]byte, len(pubs))
	for i, p := range pubs {
		flat[i] = p[:]
	}
	ok, err := bls.VerifyAggregate(aggSig, payload, flat)
	if err != nil {
		return fmt.Errorf("txsig: bls aggregate verify: %w", err)
	}
	if !ok {
		return fmt.Errorf("txsig: %w", txtypes.ErrInvalidSignature)
	}
	return nil
}
