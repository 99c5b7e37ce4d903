// Package merklize defines the state-tree provider contract both
// pkg/merklize/jmt and pkg/merklize/mpt implement, and the shared
// recovery operations (pkg/executor and pkg/checkpoint drive these
// through the Provider interface, never a concrete implementation, so the
// two are fully interchangeable per a runtime config choice).
package merklize

import (
	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
)

// Change is one insert or remove observed in a committed batch, already
// scoped to the application table it happened in.
type Change struct {
	Table   string
	Key     []byte
	Value   []byte // nil/ignored when Removed
	Removed bool
}

// Provider maintains a merklized commitment over an atomo database's
// application tables. RegisterTables must be called against the same
// Builder that declares the application's own tables, before Build.
type Provider interface {
	// RegisterTables declares this provider's own bookkeeping tables
	// (node storage, reverse key-hash lookups) on b.
	RegisterTables(b *atomo.Builder)

	// UpdateStateTree folds changes into the tree, reading and writing
	// only through ts. Called once per DB.Run, after the application
	// mutation body itself but inside the same writer transaction, so a
	// tree-update failure aborts the whole commit.
	UpdateStateTree(ts *atomo.TableSelector, changes []Change) error

	// GetStateRoot returns the current commitment root.
	GetStateRoot(ts *atomo.TableSelector) ([32]byte, error)

	// GetStateProof returns an ICS23-style commitment proof for table/key
	// against the tree as observed through ts. Existence is reported in
	// the proof's Exists field; when it is false, NonExist carries a
	// non-existence witness only where the provider builds one (jmt does,
	// mpt leaves it nil; see each provider's doc comment).
	GetStateProof(ts *atomo.TableSelector, table string, key []byte) (*CommitmentProof, error)

	// ClearStateTreeUnsafe deletes every tree bookkeeping table's
	// contents, leaving application tables untouched. Used by checkpoint
	// restore before a full rebuild.
	ClearStateTreeUnsafe(ts *atomo.TableSelector) error

	// IsEmptyStateTreeUnsafe reports whether the tree currently commits
	// to no keys at all (root equals the empty-tree root).
	IsEmptyStateTreeUnsafe(ts *atomo.TableSelector) (bool, error)

	// Hasher returns the hash function this provider instance was
	// constructed with.
	Hasher() hash.Hasher
}

// CommitmentProof is the proof type returned by GetStateProof: an
// existence or non-existence proof over this provider's own leaf/inner
// node encoding. It carries no ICS23 ProofSpec; pkg/merklize/proof
// converts it to an ICS23 CommitmentProof when the configured hasher has a
// standard ICS23 HashOp.
type CommitmentProof struct {
	Exists    bool
	Key       []byte
	Value     []byte
	Root      [32]byte
	Existence *ExistenceProof
	NonExist  *NonExistenceProof
}

// ExistenceProof is a leaf-to-root authentication path. When IsDefault is
// true, this proves kh's position resolves to the provider's canonical
// empty-leaf hash rather than a real value — used as the witness half of
// a NonExistenceProof instead of a standalone ExistenceProof.
type ExistenceProof struct {
	KeyHash   [32]byte
	Value     []byte
	IsDefault bool
	// Siblings holds one hash per tree level, ordered leaf-to-root;
	// PathBits holds the corresponding descent bit (0 = this node was
	// the left child at that level, 1 = right) so a verifier knows which
	// side of each sibling the accumulated hash belongs on.
	Siblings [][32]byte
	PathBits []byte
}

// NonExistenceProof demonstrates key is absent. jmt always populates only
// Left: a single IsDefault ExistenceProof showing kh's leaf position
// resolves to the canonical empty-leaf hash. mpt never populates either
// field (see that package's doc comment on why its non-existence proofs
// are weaker still); Right is reserved for a future bracketing-by-
// neighbor-leaf implementation.
type NonExistenceProof struct {
	Left  *ExistenceProof
	Right *ExistenceProof
}
