package checkpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/checkpoint"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

func sampleCheckpoint() *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		Epoch: 42,
		Root:  [32]byte{1, 2, 3, 4},
		Tables: []checkpoint.TableSnapshot{
			{
				Table: "accounts",
				Rows: []checkpoint.TableRow{
					{Key: []byte("alice"), Value: []byte("balance-100")},
					{Key: []byte("bob"), Value: []byte("balance-200")},
				},
			},
			{Table: "nodes", Rows: nil},
		},
		Signers:   []txtypes.ConsensusPublicKey{{9, 9, 9}},
		Signature: []byte("fake-aggregate-signature"),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := sampleCheckpoint()
	decoded, err := checkpoint.Decode(c.Encode())
	require.NoError(t, err)

	assert.Equal(t, c.Epoch, decoded.Epoch)
	assert.Equal(t, c.Root, decoded.Root)
	assert.Equal(t, c.Signers, decoded.Signers)
	assert.Equal(t, c.Signature, decoded.Signature)
	require.Len(t, decoded.Tables, len(c.Tables))
	for i := range c.Tables {
		assert.Equal(t, c.Tables[i].Table, decoded.Tables[i].Table)
		assert.Equal(t, c.Tables[i].Rows, decoded.Tables[i].Rows)
	}
}

func TestDecodeRejectsTruncatedData(t *testing.T) {
	c := sampleCheckpoint()
	encoded := c.Encode()
	_, err := checkpoint.Decode(encoded[:len(encoded)-3])
	assert.Error(t, err)
}

func TestVerifySignatureRejectsBogusSignature(t *testing.T) {
	c := sampleCheckpoint()
	err := c.VerifySignature()
	assert.Error(t, err, "a signature that isn't a real BLS aggregate over Epoch||Root must not verify")
}
