package jmt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/atomo/backend"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
	"github.com/lumenetwork/corestate/pkg/merklize/jmt"
	"github.com/lumenetwork/corestate/pkg/merklize/proof"
	"github.com/stretchr/testify/assert"
)

func newTestTree(t *testing.T) (*atomo.DB, *jmt.Provider) {
	t.Helper()
	p := jmt.New(hash.Blake3Hasher{})
	b := atomo.NewBuilder(backend.NewMemory())
	p.RegisterTables(b)
	db, err := b.Build()
	require.NoError(t, err)
	return db, p
}

func TestEmptyTreeRoot(t *testing.T) {
	db, p := newTestTree(t)
	h := db.Query()
	defer h.Release()

	var root [32]byte
	err := h.Run(func(ts *atomo.TableSelector) error {
		empty, err := p.IsEmptyStateTreeUnsafe(ts)
		assert.True(t, empty)
		if err != nil {
			return err
		}
		root, err = p.GetStateRoot(ts)
		return err
	})
	require.NoError(t, err)
	assert.NotEqual(t, [32]byte{}, root, "the canonical empty root is itself a non-zero hash chain")
}

func TestRootIndependentOfInsertionOrder(t *testing.T) {
	db1, p1 := newTestTree(t)
	db2, p2 := newTestTree(t)

	forward := []merklize.Change{
		{Table: "accounts", Key: []byte("alice"), Value: []byte("100")},
		{Table: "accounts", Key: []byte("bob"), Value: []byte("200")},
		{Table: "accounts", Key: []byte("carol"), Value: []byte("300")},
	}
	reverse := []merklize.Change{forward[2], forward[1], forward[0]}

	err := db1.Run(func(ts *atomo.TableSelector) error { return p1.UpdateStateTree(ts, forward) })
	require.NoError(t, err)
	err = db2.Run(func(ts *atomo.TableSelector) error { return p2.UpdateStateTree(ts, reverse) })
	require.NoError(t, err)

	var root1, root2 [32]byte
	h1 := db1.Query()
	defer h1.Release()
	require.NoError(t, h1.Run(func(ts *atomo.TableSelector) error {
		var err error
		root1, err = p1.GetStateRoot(ts)
		return err
	}))
	h2 := db2.Query()
	defer h2.Release()
	require.NoError(t, h2.Run(func(ts *atomo.TableSelector) error {
		var err error
		root2, err = p2.GetStateRoot(ts)
		return err
	}))

	assert.Equal(t, root1, root2, "root must depend only on the final key/value set, not insertion order")
}

func TestRemovalRestoresEmptyRoot(t *testing.T) {
	db, p := newTestTree(t)

	var emptyRoot [32]byte
	h := db.Query()
	require.NoError(t, h.Run(func(ts *atomo.TableSelector) error {
		var err error
		emptyRoot, err = p.GetStateRoot(ts)
		return err
	}))
	h.Release()

	err := db.Run(func(ts *atomo.TableSelector) error {
		return p.UpdateStateTree(ts, []merklize.Change{
			{Table: "accounts", Key: []byte("alice"), Value: []byte("100")},
		})
	})
	require.NoError(t, err)

	err = db.Run(func(ts *atomo.TableSelector) error {
		return p.UpdateStateTree(ts, []merklize.Change{
			{Table: "accounts", Key: []byte("alice"), Removed: true},
		})
	})
	require.NoError(t, err)

	h2 := db.Query()
	defer h2.Release()
	var root [32]byte
	require.NoError(t, h2.Run(func(ts *atomo.TableSelector) error {
		var err error
		root, err = p.GetStateRoot(ts)
		return err
	}))
	assert.Equal(t, emptyRoot, root)
}

func TestExistenceProofRoundTrip(t *testing.T) {
	db, p := newTestTree(t)
	err := db.Run(func(ts *atomo.TableSelector) error {
		return p.UpdateStateTree(ts, []merklize.Change{
			{Table: "accounts", Key: []byte("alice"), Value: []byte("100")},
			{Table: "accounts", Key: []byte("bob"), Value: []byte("200")},
		})
	})
	require.NoError(t, err)

	h := db.Query()
	defer h.Release()
	var cp *merklize.CommitmentProof
	var root [32]byte
	err = h.Run(func(ts *atomo.TableSelector) error {
		var err error
		cp, err = p.GetStateProof(ts, "accounts", []byte("alice"))
		if err != nil {
			return err
		}
		root, err = p.GetStateRoot(ts)
		return err
	})
	require.NoError(t, err)
	require.True(t, cp.Exists)
	assert.Equal(t, []byte("100"), cp.Value)
	assert.NoError(t, proof.Verify(cp, p.Hasher(), root))
}

func TestNonExistenceProofRoundTrip(t *testing.T) {
	db, p := newTestTree(t)
	err := db.Run(func(ts *atomo.TableSelector) error {
		return p.UpdateStateTree(ts, []merklize.Change{
			{Table: "accounts", Key: []byte("alice"), Value: []byte("100")},
		})
	})
	require.NoError(t, err)

	h := db.Query()
	defer h.Release()
	var cp *merklize.CommitmentProof
	var root [32]byte
	err = h.Run(func(ts *atomo.TableSelector) error {
		var err error
		cp, err = p.GetStateProof(ts, "accounts", []byte("nobody"))
		if err != nil {
			return err
		}
		root, err = p.GetStateRoot(ts)
		return err
	})
	require.NoError(t, err)
	require.False(t, cp.Exists)
	require.NotNil(t, cp.NonExist)
	require.NotNil(t, cp.NonExist.Left)
	assert.NoError(t, proof.Verify(cp, p.Hasher(), root))
}

func TestClearStateTreeUnsafeResetsToEmpty(t *testing.T) {
	db, p := newTestTree(t)
	err := db.Run(func(ts *atomo.TableSelector) error {
		return p.UpdateStateTree(ts, []merklize.Change{
			{Table: "accounts", Key: []byte("alice"), Value: []byte("100")},
		})
	})
	require.NoError(t, err)

	err = db.Run(func(ts *atomo.TableSelector) error {
		return p.ClearStateTreeUnsafe(ts)
	})
	require.NoError(t, err)

	h := db.Query()
	defer h.Release()
	err = h.Run(func(ts *atomo.TableSelector) error {
		empty, err := p.IsEmptyStateTreeUnsafe(ts)
		assert.True(t, empty)
		return err
	})
	require.NoError(t, err)
}
