package wire

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/lumenetwork/corestate/internal/corelog"
	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/epochtimer"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/metrics"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// epochNudger builds this node's epochtimer.Timer, or nil if cfg.Node
// carries no signing key — a node that isn't itself a registered
// committee member has nothing useful to nudge with and simply relies
// on organic traffic to carry the epoch-change state machine forward.
func (n *Node) epochNudger() *epochtimer.Timer {
	if n.cfg.Node.SigningKeyHex == "" {
		return nil
	}
	seed, err := hex.DecodeString(n.cfg.Node.SigningKeyHex)
	if err != nil || len(seed) != ed25519.PrivateKeySize {
		corelog.WithComponent("wire").Warn().Err(err).Msg("invalid node signing key, epoch nudger disabled")
		return nil
	}
	idx := txtypes.NodeIndex(n.cfg.Node.Index)
	submitter := &nudgeSubmitter{n: n, key: ed25519.PrivateKey(seed)}
	return epochtimer.New(idx, submitter, n.runner)
}

// nudgeSubmitter implements epochtimer.Submitter by self-signing and
// submitting a bare IncrementNonce transaction as the configured node's
// main key, the same Ed25519 scheme txsig.VerifyNodeMain checks.
type nudgeSubmitter struct {
	n   *Node
	key ed25519.PrivateKey
}

func (s *nudgeSubmitter) SubmitIncrementNonce(ctx context.Context, node txtypes.NodeIndex) error {
	req, err := s.n.signIncrementNonce(node, s.key)
	if err != nil {
		return err
	}
	_, err = s.n.Oracle.Submit(ctx, req)
	if err == nil {
		metrics.EpochTimerNudgesTotal.Inc()
	}
	return err
}

// signIncrementNonce reads node's current nonce off the pinned query
// snapshot and signs the next one, the same nonce-then-sign sequence any
// well-behaved submission client follows.
func (n *Node) signIncrementNonce(node txtypes.NodeIndex, key ed25519.PrivateKey) (txtypes.UpdateRequest, error) {
	handle := n.DB.Query()
	defer handle.Release()
	var nonce uint64
	err := handle.Run(func(ts *atomo.TableSelector) error {
		nodes := atomo.GetTable[txtypes.NodeIndex, *txtypes.Node](ts, executor.TableNode)
		rec, ok := nodes.Get(node)
		if !ok {
			return fmt.Errorf("wire: node %d not registered, cannot self-nudge", node)
		}
		nonce = rec.Nonce
		return nil
	})
	if err != nil {
		return txtypes.UpdateRequest{}, err
	}

	payload := txtypes.UpdatePayload{
		Sender:  txtypes.Sender{Kind: txtypes.SenderNodeMain, Node: node},
		Nonce:   nonce + 1,
		ChainID: n.Executor.ChainID(),
		Method:  txtypes.IncrementNonce{},
	}
	signingBytes, err := payload.SigningBytes()
	if err != nil {
		return txtypes.UpdateRequest{}, fmt.Errorf("wire: encode nudge payload: %w", err)
	}
	sig := ed25519.Sign(key, signingBytes)
	return txtypes.UpdateRequest{Payload: payload, Signature: txtypes.TransactionSignature(sig)}, nil
}
