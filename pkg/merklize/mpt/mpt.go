// Package mpt implements a Merkle-Patricia-Trie-flavored merklize.Provider:
// structurally the same 256-level binary sparse Merkle tree as
// pkg/merklize/jmt, but staged per UpdateStateTree call through an
// in-memory hashicorp/go-immutable-radix tree before the resulting
// leaf/internal hashes are flushed to the persisted node table. The
// staging tree lets a single call touching many keys under shared
// prefixes dedupe repeated ancestor recomputation against the batch
// itself rather than the backend, which matters on the write-heavy path
// (Stake/Unstake churn under one validator's prefix, delivery-ack
// aggregation) this provider is intended for.
//
// mpt deliberately does not support non-existence proofs: unlike jmt,
// GetStateProof for a key with no committed value returns a CommitmentProof
// with Exists == false and NonExist == nil rather than a witness. A
// canonical-empty-subtree proof is perfectly sound here too, but building
// one isn't exercised by any mpt caller in this codebase and the project
// favors jmt whenever non-membership matters, so it's left unimplemented
// rather than half-tested.
package mpt

import (
	"fmt"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
	"github.com/lumenetwork/corestate/pkg/merklize/proof"
)

const (
	nodesTable = "%state_tree_root" // name kept distinct from jmt's for the rare config that registers both in the same db for migration tooling.

	// Same leaf/internal encoding as jmt and pkg/merklize/proof, so
	// proof.Verify checks mpt proofs too.
	leafPrefix     = "JMT::LeafNode"
	internalPrefix = "JMT::IntrnalNode"

	depthBits = 256
)

type Provider struct {
	hasher  hash.Hasher
	defHash [depthBits + 1][32]byte
}

func New(h hash.Hasher) *Provider {
	p := &Provider{hasher: h}
	p.defHash[depthBits] = proof.DefaultLeafHash(h)
	for d := depthBits - 1; d >= 0; d-- {
		sib := p.defHash[d+1]
		p.defHash[d] = h.Hash(append(append([]byte(internalPrefix), sib[:]...), sib[:]...))
	}
	return p
}

func (p *Provider) Hasher() hash.Hasher { return p.hasher }

func (p *Provider) RegisterTables(b *atomo.Builder) {
	b.AddTable(nodesTable, atomo.WithIter())
}

func (p *Provider) leafKeyHash(table string, key []byte) [32]byte {
	buf := make([]byte, 0, len(table)+1+len(key))
	buf = append(buf, []byte(table)...)
	buf = append(buf, 0)
	buf = append(buf, key...)
	return p.hasher.Hash(buf)
}

func nodeKeyBytes(depth int, path []byte) []byte {
	out := make([]byte, 2+len(path))
	out[0] = byte(depth >> 8)
	out[1] = byte(depth)
	copy(out[2:], path)
	return out
}

func bitAt(kh [32]byte, pos int) byte { return (kh[pos/8] >> uint(7-pos%8)) & 1 }

func pathPrefix(kh [32]byte, depth int) []byte {
	nbytes := (depth + 7) / 8
	out := make([]byte, nbytes)
	copy(out, kh[:nbytes])
	if depth%8 != 0 {
		out[nbytes-1] &= byte(0xFF << uint(8-depth%8))
	}
	return out
}

func pathWithBit(kh [32]byte, depth int, bit byte) []byte {
	out := pathPrefix(kh, depth+1)
	if bitAt(kh, depth) != bit {
		byteIdx := depth / 8
		bitIdx := uint(7 - depth%8)
		out[byteIdx] ^= 1 << bitIdx
	}
	return out
}

// UpdateStateTree stages every changed leaf (and the ancestors it
// invalidates) in an in-memory radix tree keyed by nodeKeyBytes, so
// repeated writes to the same ancestor within one call collapse to a
// single backend read-modify-write instead of depth*len(changes) of
// them, then flushes the staged tree onto the persisted node table.
func (p *Provider) UpdateStateTree(ts *atomo.TableSelector, changes []merklize.Change) error {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	staging := iradix.New()
	txn := staging.Txn()

	get := func(depth int, path []byte) [32]byte {
		key := nodeKeyBytes(depth, path)
		if v, ok := txn.Get(key); ok {
			return v.([32]byte)
		}
		if v, ok := nodes.Get(key); ok {
			return v
		}
		return p.defHash[depth]
	}
	set := func(depth int, path []byte, h [32]byte) {
		txn.Insert(nodeKeyBytes(depth, path), h)
	}

	for _, c := range changes {
		kh := p.leafKeyHash(c.Table, c.Key)
		if c.Removed {
			set(depthBits, kh[:], p.defHash[depthBits])
		} else {
			vh := p.hasher.Hash(c.Value)
			leaf := p.hasher.Hash(append(append([]byte(leafPrefix), kh[:]...), vh[:]...))
			set(depthBits, kh[:], leaf)
		}
		for d := depthBits - 1; d >= 0; d-- {
			left := get(d+1, pathWithBit(kh, d, 0))
			right := get(d+1, pathWithBit(kh, d, 1))
			h := p.hasher.Hash(append(append([]byte(internalPrefix), left[:]...), right[:]...))
			set(d, pathPrefix(kh, d), h)
		}
	}

	staged := txn.Commit()
	iter := staged.Root().Iterator()
	for {
		key, val, ok := iter.Next()
		if !ok {
			break
		}
		nodes.Insert(append([]byte(nil), key...), val.([32]byte))
	}
	// Nodes that went back to their default hash were staged and flushed
	// like any other; remove them from the persisted table by checking
	// every touched leaf and ancestor here.
	for _, c := range changes {
		kh := p.leafKeyHash(c.Table, c.Key)
		pruneIfDefault(nodes, p, depthBits, kh[:])
		for d := depthBits - 1; d >= 0; d-- {
			pruneIfDefault(nodes, p, d, pathPrefix(kh, d))
		}
	}
	return nil
}

func pruneIfDefault(nodes *atomo.Table[[]byte, [32]byte], p *Provider, depth int, path []byte) {
	key := nodeKeyBytes(depth, path)
	if v, ok := nodes.Get(key); ok && v == p.defHash[depth] {
		nodes.Remove(key)
	}
}

func (p *Provider) GetStateRoot(ts *atomo.TableSelector) ([32]byte, error) {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	if v, ok := nodes.Get(nodeKeyBytes(0, nil)); ok {
		return v, nil
	}
	return p.defHash[0], nil
}

func (p *Provider) GetStateProof(ts *atomo.TableSelector, table string, key []byte) (*merklize.CommitmentProof, error) {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	kh := p.leafKeyHash(table, key)
	root, err := p.GetStateRoot(ts)
	if err != nil {
		return nil, err
	}
	leafKey := nodeKeyBytes(depthBits, kh[:])
	_, exists := nodes.Get(leafKey)
	if !exists {
		return &merklize.CommitmentProof{Exists: false, Key: key, Root: root}, nil
	}
	siblings := make([][32]byte, depthBits)
	bits := make([]byte, depthBits)
	for i, d := 0, depthBits-1; d >= 0; i, d = i+1, d-1 {
		bits[i] = bitAt(kh, d)
		sibPath := pathWithBit(kh, d, 1-bits[i])
		sibKey := nodeKeyBytes(d+1, sibPath)
		if v, ok := nodes.Get(sibKey); ok {
			siblings[i] = v
		} else {
			siblings[i] = p.defHash[d+1]
		}
	}
	// The leaf's value is not separately persisted by this provider (no
	// reverse key-hash table, unlike jmt), so Value is left unset on both
	// the CommitmentProof and its Existence; the caller, which already has
	// the application value on hand, fills in Existence.Value before
	// verifying.
	return &merklize.CommitmentProof{
		Exists: true,
		Key:    key,
		Root:   root,
		Existence: &merklize.ExistenceProof{
			KeyHash:  kh,
			Siblings: siblings,
			PathBits: bits,
		},
	}, nil
}

func (p *Provider) ClearStateTreeUnsafe(ts *atomo.TableSelector) error {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	var stale [][]byte
	nodes.Keys(func(k []byte) bool { stale = append(stale, append([]byte(nil), k...)); return true })
	for _, k := range stale {
		nodes.Remove(k)
	}
	return nil
}

func (p *Provider) IsEmptyStateTreeUnsafe(ts *atomo.TableSelector) (bool, error) {
	root, err := p.GetStateRoot(ts)
	if err != nil {
		return false, err
	}
	return root == p.defHash[0], nil
}

var (
	_ merklize.Provider = (*Provider)(nil)
	_ fmt.Stringer      = (*Provider)(nil)
)

func (p *Provider) String() string { return fmt.Sprintf("mpt(hasher=%s)", p.hasher.Name()) }
