package executor_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/atomo/backend"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/genesis"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
	"github.com/lumenetwork/corestate/pkg/merklize/jmt"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

const testChainID uint32 = 7

func hexOf(b []byte) string { return "0x" + hex.EncodeToString(b) }

func zeroAddrHex() string { return hexOf(make([]byte, 20)) }

// accountOwnerKey is a throwaway secp256k1 key plus the address it
// derives to, mirroring txsig.addressFromPubKey's own derivation.
type accountOwnerKey struct {
	priv *secp256k1.PrivateKey
	addr txtypes.Address
}

func newAccountOwnerKey(t *testing.T) accountOwnerKey {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	encoded := priv.PubKey().SerializeUncompressed()[1:]
	h := sha3.NewLegacyKeccak256()
	h.Write(encoded)
	digest := h.Sum(nil)
	var addr txtypes.Address
	copy(addr[:], digest[12:])
	return accountOwnerKey{priv: priv, addr: addr}
}

func (k accountOwnerKey) sign(t *testing.T, payload txtypes.UpdatePayload) txtypes.TransactionSignature {
	t.Helper()
	hashed, err := payload.Hash()
	require.NoError(t, err)
	compact := ecdsa.SignCompact(k.priv, hashed[:], false)
	sig := make([]byte, 65)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] - 27
	return txtypes.TransactionSignature(sig)
}

// nodeMainKey is a throwaway Ed25519 node identity key.
type nodeMainKey struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newNodeMainKey(t *testing.T) nodeMainKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return nodeMainKey{pub: pub, priv: priv}
}

func (k nodeMainKey) sign(t *testing.T, payload txtypes.UpdatePayload) txtypes.TransactionSignature {
	t.Helper()
	signingBytes, err := payload.SigningBytes()
	require.NoError(t, err)
	return txtypes.TransactionSignature(ed25519.Sign(k.priv, signingBytes))
}

// testHarness bundles a fresh in-memory database, jmt state tree and
// bound Executor, genesis-applied with no founding nodes unless the
// caller adds its own via newGenesisWithNode.
type testHarness struct {
	ex *executor.Executor
	db *atomo.DB
}

func newHarness(t *testing.T, g *genesis.Genesis) *testHarness {
	t.Helper()
	b := atomo.NewBuilder(backend.NewMemory())
	executor.RegisterTables(b)
	tree := jmt.New(hash.Blake3Hasher{})
	tree.RegisterTables(b)
	db, err := b.Build()
	require.NoError(t, err)

	ex := executor.New(db, tree, testChainID)
	require.NoError(t, ex.ApplyGenesis(g))
	return &testHarness{ex: ex, db: db}
}

func (h *testHarness) account(t *testing.T, addr txtypes.Address) *txtypes.Account {
	t.Helper()
	qh := h.db.Query()
	defer qh.Release()
	var acct *txtypes.Account
	err := qh.Run(func(ts *atomo.TableSelector) error {
		v, _ := atomo.GetTable[txtypes.Address, *txtypes.Account](ts, executor.TableAccount).Get(addr)
		acct = v
		return nil
	})
	require.NoError(t, err)
	return acct
}

func (h *testHarness) node(t *testing.T, idx txtypes.NodeIndex) *txtypes.Node {
	t.Helper()
	qh := h.db.Query()
	defer qh.Release()
	var node *txtypes.Node
	err := qh.Run(func(ts *atomo.TableSelector) error {
		v, _ := atomo.GetTable[txtypes.NodeIndex, *txtypes.Node](ts, executor.TableNode).Get(idx)
		node = v
		return nil
	})
	require.NoError(t, err)
	return node
}

func baseGenesis() *genesis.Genesis {
	return &genesis.Genesis{
		ChainID:             testChainID,
		GovernanceAddress:   zeroAddrHex(),
		ProtocolFundAddress: zeroAddrHex(),
	}
}

func (h *testHarness) execute(t *testing.T, payload txtypes.UpdatePayload, sig txtypes.TransactionSignature) (txtypes.TransactionReceipt, error) {
	t.Helper()
	req := txtypes.UpdateRequest{Payload: payload, Signature: sig}
	return h.ex.Execute(req, [32]byte{1}, 1, 0)
}

func TestDepositStakeUnstakeAccountOwnerFlow(t *testing.T) {
	h := newHarness(t, baseGenesis())
	owner := newAccountOwnerKey(t)

	depositPayload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   1,
		ChainID: testChainID,
		Method:  txtypes.Deposit{Token: "FLK", Amount: big.NewInt(1000), Proof: []byte("external-proof")},
	}
	receipt, err := h.execute(t, depositPayload, owner.sign(t, depositPayload))
	require.NoError(t, err)
	assert.True(t, receipt.Response.Success)
	assert.Empty(t, receipt.Response.Revert)

	var nodePub txtypes.NodePublicKey
	nodePub[0] = 0xAB
	stakePayload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   2,
		ChainID: testChainID,
		Method: txtypes.Stake{
			Amount:        big.NewInt(400),
			NodePublicKey: nodePub,
			NodeDetails: &txtypes.NodeDetails{
				ConsensusPublicKey: txtypes.ConsensusPublicKey{0xCD},
				Domain:             "node.example",
			},
		},
	}
	receipt, err = h.execute(t, stakePayload, owner.sign(t, stakePayload))
	require.NoError(t, err)
	require.True(t, receipt.Response.Success)
	nodeIdx, ok := receipt.Response.Data.(txtypes.NodeIndex)
	require.True(t, ok)
	assert.Equal(t, txtypes.NodeIndex(0), nodeIdx)

	unstakePayload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   3,
		ChainID: testChainID,
		Method:  txtypes.Unstake{Amount: big.NewInt(150), Node: nodeIdx},
	}
	receipt, err = h.execute(t, unstakePayload, owner.sign(t, unstakePayload))
	require.NoError(t, err)
	assert.True(t, receipt.Response.Success)
}

func TestExecuteIncrementNonceNodeMainHappyPath(t *testing.T) {
	node := newNodeMainKey(t)
	var nodePub txtypes.NodePublicKey
	copy(nodePub[:], node.pub)

	g := baseGenesis()
	g.NodeInfo = []genesis.NodeInfo{
		{
			Owner:              zeroAddrHex(),
			NodePublicKey:       hexOf(nodePub[:]),
			ConsensusPublicKey:  hexOf(make([]byte, 48)),
			Domain:              "node0.example",
			Stake:               "0",
		},
	}
	h := newHarness(t, g)

	payload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderNodeMain, Node: 0},
		Nonce:   1,
		ChainID: testChainID,
		Method:  txtypes.IncrementNonce{},
	}
	receipt, err := h.execute(t, payload, node.sign(t, payload))
	require.NoError(t, err)
	assert.True(t, receipt.Response.Success)

	// A second IncrementNonce must require nonce 2, proving the first one
	// actually committed.
	payload2 := payload
	payload2.Nonce = 2
	receipt, err = h.execute(t, payload2, node.sign(t, payload2))
	require.NoError(t, err)
	assert.True(t, receipt.Response.Success)
}

func TestExecuteChainIDMismatchIsAcceptedRevertButConsumesNonce(t *testing.T) {
	h := newHarness(t, baseGenesis())
	owner := newAccountOwnerKey(t)

	bad := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   1,
		ChainID: testChainID + 1,
		Method:  txtypes.Deposit{Token: "FLK", Amount: big.NewInt(1), Proof: []byte("p")},
	}
	receipt, err := h.execute(t, bad, owner.sign(t, bad))
	require.NoError(t, err, "a chain-id mismatch is an accepted revert, not a hard abort")
	assert.False(t, receipt.Response.Success)
	assert.Equal(t, txtypes.ErrInvalidChainID, receipt.Response.Revert)

	// The sender's nonce was consumed despite the revert: nonce 1 must no
	// longer be valid. The stale replay is itself an InvalidNonce revert
	// that consumes nonce 2, so nonce 3 is the next valid one.
	replay := bad
	replay.ChainID = testChainID
	receipt, err = h.execute(t, replay, owner.sign(t, replay))
	require.NoError(t, err)
	assert.Equal(t, txtypes.ErrInvalidNonce, receipt.Response.Revert, "nonce 1 was already consumed by the reverted transaction")

	next := bad
	next.Nonce = 3
	next.ChainID = testChainID
	receipt, err = h.execute(t, next, owner.sign(t, next))
	require.NoError(t, err)
	assert.True(t, receipt.Response.Success)
}

func TestExecuteBadSignatureIsAcceptedRevertAndConsumesNonce(t *testing.T) {
	h := newHarness(t, baseGenesis())
	owner := newAccountOwnerKey(t)
	other := newAccountOwnerKey(t)

	payload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   1,
		ChainID: testChainID,
		Method:  txtypes.Deposit{Token: "FLK", Amount: big.NewInt(1), Proof: []byte("p")},
	}
	// Sign with the wrong key's signature over the same payload bytes.
	badSig := other.sign(t, payload)
	receipt, err := h.execute(t, payload, badSig)
	require.NoError(t, err, "a bad signature is an accepted revert, not a hard abort")
	assert.False(t, receipt.Response.Success)
	assert.Equal(t, txtypes.ErrInvalidSignature, receipt.Response.Revert)

	// Nonce 1 was consumed by the reverted transaction despite the bad
	// signature: resubmitting it, even correctly signed, reverts with
	// InvalidNonce and consumes nonce 2, so nonce 3 is the next valid one.
	receipt, err = h.execute(t, payload, owner.sign(t, payload))
	require.NoError(t, err)
	assert.Equal(t, txtypes.ErrInvalidNonce, receipt.Response.Revert, "nonce 1 was already consumed by the reverted transaction")

	next := payload
	next.Nonce = 3
	receipt, err = h.execute(t, next, owner.sign(t, next))
	require.NoError(t, err)
	assert.True(t, receipt.Response.Success)
}

func TestExecuteBadNonceIsAcceptedRevertAndConsumesExpectedNonce(t *testing.T) {
	h := newHarness(t, baseGenesis())
	owner := newAccountOwnerKey(t)

	payload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   5, // must be 1 for a fresh account
		ChainID: testChainID,
		Method:  txtypes.Deposit{Token: "FLK", Amount: big.NewInt(1), Proof: []byte("p")},
	}
	receipt, err := h.execute(t, payload, owner.sign(t, payload))
	require.NoError(t, err, "a nonce mismatch is an accepted revert, not a hard abort")
	assert.False(t, receipt.Response.Success)
	assert.Equal(t, txtypes.ErrInvalidNonce, receipt.Response.Revert)

	// The expected next nonce (1), not the submitted bad one (5), was
	// consumed by the revert.
	next := payload
	next.Nonce = 1
	receipt, err = h.execute(t, next, owner.sign(t, next))
	require.NoError(t, err, "nonce 1 was already consumed by the reverted transaction")
	assert.False(t, receipt.Response.Success)
	assert.Equal(t, txtypes.ErrInvalidNonce, receipt.Response.Revert)

	// That second revert consumed nonce 2 in turn.
	next2 := payload
	next2.Nonce = 3
	receipt, err = h.execute(t, next2, owner.sign(t, next2))
	require.NoError(t, err)
	assert.True(t, receipt.Response.Success)
}

func TestExecuteUnresolvableNodeSenderRevertsWithoutConsumingAnyNonce(t *testing.T) {
	h := newHarness(t, baseGenesis())

	payload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderNodeMain, Node: 42},
		Nonce:   1,
		ChainID: testChainID,
		Method:  txtypes.IncrementNonce{},
	}
	receipt, err := h.execute(t, payload, txtypes.TransactionSignature(make([]byte, 64)))
	require.NoError(t, err, "an unresolvable node sender is an accepted revert, not a hard abort")
	assert.False(t, receipt.Response.Success)
	assert.Equal(t, txtypes.ErrNodeDoesNotExist, receipt.Response.Revert)
}

func TestBalanceConservationAcrossDepositStakeUnstake(t *testing.T) {
	h := newHarness(t, baseGenesis())
	owner := newAccountOwnerKey(t)

	depositAmount := big.NewInt(1000)
	depositPayload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   1,
		ChainID: testChainID,
		Method:  txtypes.Deposit{Token: "FLK", Amount: depositAmount, Proof: []byte("p")},
	}
	_, err := h.execute(t, depositPayload, owner.sign(t, depositPayload))
	require.NoError(t, err)

	stakeAmount := big.NewInt(600)
	var nodePub txtypes.NodePublicKey
	nodePub[0] = 1
	stakePayload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: owner.addr},
		Nonce:   2,
		ChainID: testChainID,
		Method: txtypes.Stake{
			Amount:        stakeAmount,
			NodePublicKey: nodePub,
			NodeDetails:   &txtypes.NodeDetails{ConsensusPublicKey: txtypes.ConsensusPublicKey{1}},
		},
	}
	receipt, err := h.execute(t, stakePayload, owner.sign(t, stakePayload))
	require.NoError(t, err)
	require.True(t, receipt.Response.Success)
	nodeIdx := receipt.Response.Data.(txtypes.NodeIndex)

	acct := h.account(t, owner.addr)
	node := h.node(t, nodeIdx)
	require.NotNil(t, acct)
	require.NotNil(t, node)

	// depositAmount must have split exactly between the account's
	// remaining free balance and the node's staked balance: no value
	// created or destroyed crossing the account/node boundary.
	total := new(big.Int).Add(acct.FLKBalance, node.Stake.Staked)
	assert.Equal(t, depositAmount, total)
	assert.Equal(t, new(big.Int).Sub(depositAmount, stakeAmount), acct.FLKBalance)
	assert.Equal(t, stakeAmount, node.Stake.Staked)
}
