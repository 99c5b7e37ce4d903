// Package jmt implements a Jellyfish-Merkle-Tree-flavored merklize.Provider:
// a 256-level binary sparse Merkle tree keyed by the Blake3/Keccak/SHA-256
// hash of each application (table, key) pair, with explicit nodes stored
// only along paths that have ever diverged from the canonical empty
// subtree. The tree's "version" is fixed at 1 for the whole life of a
// database: the engine never needs JMT's native historical-version
// queries (query.GetStateProof always proves against the latest
// committed state, and checkpoint restore rebuilds the tree from scratch
// rather than replaying versions), so carrying a monotonically increasing
// version number would be bookkeeping with no consumer.
package jmt

import (
	"fmt"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
	"github.com/lumenetwork/corestate/pkg/merklize/proof"
)

const (
	nodesTable = "%state_tree_nodes"
	keysTable  = "%state_tree_keys"

	leafPrefix     = "JMT::LeafNode"
	internalPrefix = "JMT::IntrnalNode" // typo preserved from the original implementation's own on-disk prefix.

	depthBits = 256 // 32-byte key hash, one tree level per bit.

	// fixedVersion is the constant JMT "version" this provider reports
	// and stores in node metadata. See the package doc comment.
	fixedVersion uint64 = 1
)

// keyRecord is the reverse mapping from a leaf's key hash back to the
// application (table, key, value) it commits, needed both for
// enumeration tooling and to answer GetStateProof without re-reading the
// application table.
type keyRecord struct {
	Table string
	Key   []byte
	Value []byte
}

// Provider is a jmt.Provider instance bound to one Hasher.
type Provider struct {
	hasher  hash.Hasher
	defHash [depthBits + 1][32]byte
}

// New constructs a Provider using h for every leaf/internal hash.
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

// Version returns the fixed version every commit is tagged with.
func (p *Provider) Version() uint64 { return fixedVersion }

func (p *Provider) RegisterTables(b *atomo.Builder) {
	b.AddTable(nodesTable, atomo.WithIter())
	b.AddTable(keysTable, atomo.WithIter())
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

func leafNodeKey(kh [32]byte) []byte {
	return nodeKeyBytes(depthBits, kh[:])
}

func bitAt(kh [32]byte, pos int) byte {
	return (kh[pos/8] >> uint(7-pos%8)) & 1
}

// pathPrefix returns the first depth bits of kh, packed MSB-first with
// the unused low bits of the final byte zeroed.
func pathPrefix(kh [32]byte, depth int) []byte {
	nbytes := (depth + 7) / 8
	out := make([]byte, nbytes)
	copy(out, kh[:nbytes])
	if depth%8 != 0 {
		out[nbytes-1] &= byte(0xFF << uint(8-depth%8))
	}
	return out
}

// pathWithBit returns the first depth+1 bits of kh with bit depth forced
// to bit, used to derive a sibling path that may or may not be a real
// prefix of kh itself.
func pathWithBit(kh [32]byte, depth int, bit byte) []byte {
	out := pathPrefix(kh, depth+1)
	if bitAt(kh, depth) != bit {
		byteIdx := depth / 8
		bitIdx := uint(7 - depth%8)
		out[byteIdx] ^= 1 << bitIdx
	}
	return out
}

func (p *Provider) nodeOrDefault(nodes *atomo.Table[[]byte, [32]byte], depth int, path []byte) [32]byte {
	if v, ok := nodes.Get(nodeKeyBytes(depth, path)); ok {
		return v
	}
	return p.defHash[depth]
}

func (p *Provider) recomputeAncestors(nodes *atomo.Table[[]byte, [32]byte], kh [32]byte) {
	for d := depthBits - 1; d >= 0; d-- {
		left := p.nodeOrDefault(nodes, d+1, pathWithBit(kh, d, 0))
		right := p.nodeOrDefault(nodes, d+1, pathWithBit(kh, d, 1))
		h := p.hasher.Hash(append(append([]byte(internalPrefix), left[:]...), right[:]...))
		key := nodeKeyBytes(d, pathPrefix(kh, d))
		if h == p.defHash[d] {
			nodes.Remove(key)
		} else {
			nodes.Insert(key, h)
		}
	}
}

func (p *Provider) UpdateStateTree(ts *atomo.TableSelector, changes []merklize.Change) error {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	keys := atomo.GetTable[[32]byte, keyRecord](ts, keysTable)
	for _, c := range changes {
		kh := p.leafKeyHash(c.Table, c.Key)
		if c.Removed {
			nodes.Remove(leafNodeKey(kh))
			keys.Remove(kh)
		} else {
			vh := p.hasher.Hash(c.Value)
			leaf := p.hasher.Hash(append(append([]byte(leafPrefix), kh[:]...), vh[:]...))
			nodes.Insert(leafNodeKey(kh), leaf)
			keys.Insert(kh, keyRecord{Table: c.Table, Key: append([]byte(nil), c.Key...), Value: append([]byte(nil), c.Value...)})
		}
		p.recomputeAncestors(nodes, kh)
	}
	return nil
}

func (p *Provider) GetStateRoot(ts *atomo.TableSelector) ([32]byte, error) {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	return p.nodeOrDefault(nodes, 0, nil), nil
}

func (p *Provider) collectPath(nodes *atomo.Table[[]byte, [32]byte], kh [32]byte) ([][32]byte, []byte) {
	siblings := make([][32]byte, depthBits)
	bits := make([]byte, depthBits)
	for i, d := 0, depthBits-1; d >= 0; i, d = i+1, d-1 {
		bits[i] = bitAt(kh, d)
		siblings[i] = p.nodeOrDefault(nodes, d+1, pathWithBit(kh, d, 1-bits[i]))
	}
	return siblings, bits
}

func (p *Provider) GetStateProof(ts *atomo.TableSelector, table string, key []byte) (*merklize.CommitmentProof, error) {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	keys := atomo.GetTable[[32]byte, keyRecord](ts, keysTable)
	kh := p.leafKeyHash(table, key)
	root, err := p.GetStateRoot(ts)
	if err != nil {
		return nil, err
	}
	rec, ok := keys.Get(kh)
	siblings, bits := p.collectPath(nodes, kh)
	if ok {
		return &merklize.CommitmentProof{
			Exists: true,
			Key:    key,
			Value:  rec.Value,
			Root:   root,
			Existence: &merklize.ExistenceProof{
				KeyHash:  kh,
				Value:    rec.Value,
				Siblings: siblings,
				PathBits: bits,
			},
		}, nil
	}
	return &merklize.CommitmentProof{
		Exists: false,
		Key:    key,
		Root:   root,
		NonExist: &merklize.NonExistenceProof{
			Left: &merklize.ExistenceProof{
				KeyHash:   kh,
				IsDefault: true,
				Siblings:  siblings,
				PathBits:  bits,
			},
		},
	}, nil
}

// ClearStateTreeUnsafe deletes every node and key-hash record, resetting
// the tree to its canonical empty state. It does not touch application
// tables: callers doing a full rebuild must re-run UpdateStateTree over
// every application table's current contents afterward.
func (p *Provider) ClearStateTreeUnsafe(ts *atomo.TableSelector) error {
	nodes := atomo.GetTable[[]byte, [32]byte](ts, nodesTable)
	keys := atomo.GetTable[[32]byte, keyRecord](ts, keysTable)
	var staleNodes [][]byte
	nodes.Keys(func(k []byte) bool { staleNodes = append(staleNodes, append([]byte(nil), k...)); return true })
	for _, k := range staleNodes {
		nodes.Remove(k)
	}
	var staleKeys [][32]byte
	keys.Keys(func(k [32]byte) bool { staleKeys = append(staleKeys, k); return true })
	for _, k := range staleKeys {
		keys.Remove(k)
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

func (p *Provider) String() string {
	return fmt.Sprintf("jmt(hasher=%s, version=%d)", p.hasher.Name(), fixedVersion)
}
