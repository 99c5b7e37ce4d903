package executor_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/genesis"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// executeAt mirrors testHarness.execute but lets the caller pick the
// block number, needed to drive the commit/reveal phase timers forward.
func (h *testHarness) executeAt(t *testing.T, payload txtypes.UpdatePayload, sig txtypes.TransactionSignature, blockNumber uint64) txtypes.TransactionReceipt {
	t.Helper()
	req := txtypes.UpdateRequest{Payload: payload, Signature: sig}
	receipt, err := h.ex.Execute(req, [32]byte{byte(blockNumber)}, blockNumber, 0)
	require.NoError(t, err)
	return receipt
}

func (h *testHarness) metadataValue(t *testing.T, key txtypes.MetadataKey) *txtypes.MetadataValue {
	t.Helper()
	qh := h.db.Query()
	defer qh.Release()
	var v *txtypes.MetadataValue
	err := qh.Run(func(ts *atomo.TableSelector) error {
		got, _ := atomo.GetTable[txtypes.MetadataKey, *txtypes.MetadataValue](ts, executor.TableMetadata).Get(key)
		v = got
		return nil
	})
	require.NoError(t, err)
	return v
}

func (h *testHarness) uptime(t *testing.T, idx txtypes.NodeIndex) uint8 {
	t.Helper()
	qh := h.db.Query()
	defer qh.Release()
	var v uint8
	err := qh.Run(func(ts *atomo.TableSelector) error {
		got, _ := atomo.GetTable[txtypes.NodeIndex, uint8](ts, executor.TableUptime).Get(idx)
		v = got
		return nil
	})
	require.NoError(t, err)
	return v
}

// TestEpochRolloverWritesLastEpochHashAndUptime drives a single founding
// committee node through the full None->Commit->Reveal->None machine and
// checks the two pieces of rollover bookkeeping that only rollEpoch itself
// is supposed to produce: MetadataLastEpochHash, and each node's uptime
// recomputed from its own reputation measurement log.
func TestEpochRolloverWritesLastEpochHashAndUptime(t *testing.T) {
	node := newNodeMainKey(t)
	var nodePub txtypes.NodePublicKey
	copy(nodePub[:], node.pub)

	g := baseGenesis()
	g.NodeInfo = []genesis.NodeInfo{
		{
			Owner:              zeroAddrHex(),
			NodePublicKey:      hexOf(nodePub[:]),
			ConsensusPublicKey: hexOf(make([]byte, 48)),
			Domain:             "node0.example",
			Stake:              "100",
			GenesisCommittee:   true,
		},
	}
	h := newHarness(t, g)

	sign := func(nonce uint64, method txtypes.Method) (txtypes.UpdatePayload, txtypes.TransactionSignature) {
		payload := txtypes.UpdatePayload{
			Sender:  txtypes.Sender{Kind: txtypes.SenderNodeMain, Node: 0},
			Nonce:   nonce,
			ChainID: testChainID,
			Method:  method,
		}
		return payload, node.sign(t, payload)
	}

	before := h.metadataValue(t, txtypes.MetadataLastEpochHash)
	assert.Nil(t, before, "a freshly genesis-applied database has never rolled an epoch")

	// None -> Commit: the single committee member's vote alone already
	// clears the two-thirds threshold of a one-node active set.
	payload, sig := sign(1, txtypes.ChangeEpoch{Epoch: 0})
	receipt := h.executeAt(t, payload, sig, 1)
	require.True(t, receipt.Response.Success)

	reveal := []byte("epoch-0-reveal-preimage")
	commitHash := sha256.Sum256(reveal)

	payload, sig = sign(2, txtypes.CommitteeSelectionBeaconCommit{Commit: commitHash})
	receipt = h.executeAt(t, payload, sig, 2)
	require.True(t, receipt.Response.Success)

	payload, sig = sign(3, txtypes.SubmitReputationMeasurements{
		Measurements: map[txtypes.NodeIndex]*txtypes.RepMeasurement{
			0: {Uptime: 80},
		},
	})
	receipt = h.executeAt(t, payload, sig, 3)
	require.True(t, receipt.Response.Success)

	// Commit -> Reveal: the default commit-phase duration is 180 blocks,
	// counted from the block the Commit phase itself started at (block 1).
	payload, sig = sign(4, txtypes.IncrementNonce{})
	receipt = h.executeAt(t, payload, sig, 181)
	require.True(t, receipt.Response.Success)

	epochInfoAfterCommit := h.metadataValue(t, txtypes.MetadataEpoch)
	require.NotNil(t, epochInfoAfterCommit)
	assert.Equal(t, txtypes.Epoch(0), epochInfoAfterCommit.Epoch, "still epoch 0: only the phase advanced")

	payload, sig = sign(5, txtypes.CommitteeSelectionBeaconReveal{Reveal: reveal})
	receipt = h.executeAt(t, payload, sig, 181)
	require.True(t, receipt.Response.Success, "reveal must be accepted once the phase has moved to Reveal")

	// Reveal -> None: the default reveal-phase duration is also 180
	// blocks, counted from the block the Reveal phase started at (181).
	payload, sig = sign(6, txtypes.IncrementNonce{})
	receipt = h.executeAt(t, payload, sig, 361)
	require.True(t, receipt.Response.Success)

	rolledEpoch := h.metadataValue(t, txtypes.MetadataEpoch)
	require.NotNil(t, rolledEpoch)
	assert.Equal(t, txtypes.Epoch(1), rolledEpoch.Epoch, "rollEpoch must advance the epoch counter")

	lastHash := h.metadataValue(t, txtypes.MetadataLastEpochHash)
	require.NotNil(t, lastHash, "rollEpoch must record MetadataLastEpochHash on every rollover, not just on checkpoint load")
	assert.NotEqual(t, [32]byte{}, lastHash.Hash)

	assert.Equal(t, uint8(80), h.uptime(t, 0), "uptime must be recomputed from the epoch's reputation measurement log, not left at its dead default")
}
