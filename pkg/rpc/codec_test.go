package rpc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/query"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

func TestJSONCodecName(t *testing.T) {
	assert.Equal(t, "json", jsonCodec{}.Name())
}

func TestJSONCodecSubmitRequestRoundTrip(t *testing.T) {
	req := SubmitRequest{
		Tx: txtypes.UpdateRequest{
			Payload: txtypes.UpdatePayload{
				Sender:  txtypes.Sender{Kind: txtypes.SenderAccountOwner, Address: txtypes.Address{1, 2, 3}},
				Nonce:   4,
				ChainID: 7,
				Method:  txtypes.Deposit{Token: "FLK", Amount: big.NewInt(500), Proof: []byte("p")},
			},
			Signature: txtypes.TransactionSignature{9, 9, 9},
		},
	}
	c := jsonCodec{}
	b, err := c.Marshal(req)
	require.NoError(t, err)

	var out SubmitRequest
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, req.Tx.Payload.Nonce, out.Tx.Payload.Nonce)
	assert.Equal(t, req.Tx.Payload.ChainID, out.Tx.Payload.ChainID)
	assert.Equal(t, req.Tx.Signature, out.Tx.Signature)
}

func TestJSONCodecQueryResponseRoundTrip(t *testing.T) {
	resp := QueryResponse{
		EpochInfo: query.EpochInfo{Epoch: 3, ActiveNodeSet: []txtypes.NodeIndex{1, 2}},
		Account:   txtypes.NewAccount(),
	}
	c := jsonCodec{}
	b, err := c.Marshal(resp)
	require.NoError(t, err)

	var out QueryResponse
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, resp.EpochInfo.Epoch, out.EpochInfo.Epoch)
	assert.Equal(t, resp.EpochInfo.ActiveNodeSet, out.EpochInfo.ActiveNodeSet)
	require.NotNil(t, out.Account)
	assert.Equal(t, resp.Account.FLKBalance, out.Account.FLKBalance)
}

func TestJSONCodecRejectsMalformedInput(t *testing.T) {
	var out QueryRequest
	err := jsonCodec{}.Unmarshal([]byte("{not json"), &out)
	assert.Error(t, err)
}
