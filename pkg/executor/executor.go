package executor

import (
	"fmt"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/merklize"
	"github.com/lumenetwork/corestate/pkg/metrics"
	"github.com/lumenetwork/corestate/pkg/txsig"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

// Executor is the deterministic state-transition function bound to one
// atomo database and merklize provider. A node runs exactly one Executor
// against its single writer permission; queries and simulation go through
// pkg/query instead.
type Executor struct {
	db      *atomo.DB
	tree    merklize.Provider
	chainID uint32
}

// New binds an Executor to db and tree. db must already have had
// RegisterTables (this package) and tree.RegisterTables declared on its
// Builder before Build.
func New(db *atomo.DB, tree merklize.Provider, chainID uint32) *Executor {
	return &Executor{db: db, tree: tree, chainID: chainID}
}

// ChainID returns the chain ID every transaction's payload is checked
// against, as loaded from genesis.
func (e *Executor) ChainID() uint32 { return e.chainID }

// resolvedSender is the sender identity established by step 2/3 of the
// validation pipeline (signature + nonce), before chain-id, replay, or
// method authority are even consulted.
type resolvedSender struct {
	kind txtypes.SenderKind
	addr txtypes.Address
	node txtypes.NodeIndex
}

// Execute runs req to completion against the current writer snapshot,
// assigning it the receipt coordinates handed down by the total-order
// oracle (internal/order). Per spec section 7's propagation policy, a
// non-nil error here means something genuinely fatal happened (a codec
// failure, or a panic recovered by atomo.DB.Run) — the writer task
// should be restarted. Every validation failure, including
// InvalidSignature, InvalidNonce, and an unresolvable sender, is instead
// reported as an accepted TransactionReceipt whose Response.Revert is
// set: req's originator always gets a receipt back, never a hang.
func (e *Executor) Execute(req txtypes.UpdateRequest, blockHash [32]byte, blockNumber uint64, txIndex uint32) (txtypes.TransactionReceipt, error) {
	var receipt txtypes.TransactionReceipt

	runErr := e.db.Run(func(ts *atomo.TableSelector) error {
		payloadHash, err := req.Payload.Hash()
		if err != nil {
			return fmt.Errorf("executor: hash payload: %w", err)
		}
		signingBytes, err := req.Payload.SigningBytes()
		if err != nil {
			return fmt.Errorf("executor: encode payload: %w", err)
		}

		resp := txtypes.TransactionResponse{}

		sender, currentNonce, identityRevert, identityOK := e.resolveSenderAndNonce(ts, req.Payload.Sender)

		switch {
		case !identityOK:
			// The sender descriptor names no live entity at all (a node
			// sender referencing a node that doesn't exist, or a
			// malformed sender kind): there is no nonce anywhere to
			// consume, so the receipt is reverted without a commitNonce
			// call.
			resp.Revert = identityRevert

		case e.verifySignature(ts, sender, signingBytes, payloadHash, req.Signature) != nil:
			// The sender resolves to a real account/node, so its nonce
			// is still bumped to the expected next value even though the
			// signature didn't check out — spec section 7 lists
			// InvalidSignature as an ordinary validation error, consumed
			// like any other revert.
			resp.Revert = txtypes.ErrInvalidSignature
			e.commitNonce(ts, sender, currentNonce+1)

		case req.Payload.Nonce != currentNonce+1:
			resp.Revert = txtypes.ErrInvalidNonce
			e.commitNonce(ts, sender, currentNonce+1)

		default:
			// From here on, sender identity, signature, and nonce
			// ordering are all established: every remaining failure is
			// reported as an accepted Revert rather than an abort, and
			// the nonce bump below is never undone.
			e.commitNonce(ts, sender, req.Payload.Nonce)

			switch {
			case req.Payload.ChainID != e.chainID:
				resp.Revert = txtypes.ErrInvalidChainID

			default:
				digests := executedDigestsTable(ts)
				if digests.Contains(payloadHash) {
					// The nonce check above already guarantees this digest is
					// fresh; seeing it again means two distinct transactions
					// hashed identically under a sender/nonce pair already
					// consumed, which is a storage or hashing invariant
					// violation, not a user-triggerable outcome.
					panic(&atomo.FatalError{Err: fmt.Errorf("executor: digest %x already executed this epoch", payloadHash)})
				}
				digests.Insert(payloadHash, true)

				sub := ts.Sub()
				mctx := &methodContext{ex: e, ts: ts, sub: sub, sender: sender, blockNumber: blockNumber}
				data, execErr := dispatch(mctx, req.Payload.Method)
				if execErr != "" {
					resp.Revert = execErr
				} else {
					resp.Success = true
					resp.Data = data
					sub.Flush()
				}
			}
		}

		e.maybeAdvanceEpoch(ts, blockNumber)

		if err := e.flushStateTree(ts); err != nil {
			panic(&atomo.FatalError{Err: fmt.Errorf("executor: update state tree: %w", err)})
		}

		receipt = txtypes.TransactionReceipt{
			BlockHash:   blockHash,
			BlockNumber: blockNumber,
			TxIndex:     txIndex,
			TxHash:      payloadHash,
			From:        req.Payload.Sender,
			Response:    resp,
		}
		return nil
	})
	if runErr != nil {
		return txtypes.TransactionReceipt{}, runErr
	}
	return receipt, nil
}

// Simulate runs req through the same sender-resolution, signature, nonce,
// chain-id, and method-dispatch checks Execute does, and reports the
// TransactionResponse Execute would have produced — without writing
// anything back to ts, and without touching epoch rollover (pkg/query pins
// ts to a read-only snapshot, so ts itself rejects direct writes). The
// checks read ts directly; the nonce bump, the executed-digest lookup and
// insert are skipped, and only the method body runs against a Sub overlay
// of ts that is never flushed. Only a codec failure on req.Payload itself is returned
// as a Go error; every validation and method-body outcome is a Revert or
// a success, matching Execute's own contract.
func (e *Executor) Simulate(ts *atomo.TableSelector, req txtypes.UpdateRequest) (txtypes.TransactionResponse, error) {
	var resp txtypes.TransactionResponse

	payloadHash, err := req.Payload.Hash()
	if err != nil {
		return txtypes.TransactionResponse{}, fmt.Errorf("executor: hash payload: %w", err)
	}
	signingBytes, err := req.Payload.SigningBytes()
	if err != nil {
		return txtypes.TransactionResponse{}, fmt.Errorf("executor: encode payload: %w", err)
	}

	overlay := ts.Sub()

	sender, currentNonce, identityRevert, identityOK := e.resolveSenderAndNonce(ts, req.Payload.Sender)

	switch {
	case !identityOK:
		resp.Revert = identityRevert

	case e.verifySignature(ts, sender, signingBytes, payloadHash, req.Signature) != nil:
		resp.Revert = txtypes.ErrInvalidSignature

	case req.Payload.Nonce != currentNonce+1:
		resp.Revert = txtypes.ErrInvalidNonce

	case req.Payload.ChainID != e.chainID:
		resp.Revert = txtypes.ErrInvalidChainID

	default:
		mctx := &methodContext{ex: e, ts: overlay, sub: overlay.Sub(), sender: sender, blockNumber: 0}
		data, execErr := dispatch(mctx, req.Payload.Method)
		if execErr != "" {
			resp.Revert = execErr
		} else {
			resp.Success = true
			resp.Data = data
		}
	}
	return resp, nil
}

// resolveSenderAndNonce loads the sender's current nonce without yet
// trusting anything about the request beyond the sender descriptor
// itself. ok is false when s names no live entity at all — a node/
// consensus sender referencing a node that doesn't exist yet, or a
// malformed sender kind — in which case revertReason is the receipt's
// Revert and the caller must not attempt a commitNonce: there is no
// nonce anywhere to attach one to.
func (e *Executor) resolveSenderAndNonce(ts atomo.Selector, s txtypes.Sender) (sender resolvedSender, currentNonce uint64, revertReason txtypes.ExecutionError, ok bool) {
	switch s.Kind {
	case txtypes.SenderAccountOwner:
		if acct, found := accountTable(ts).Get(s.Address); found {
			return resolvedSender{kind: s.Kind, addr: s.Address}, acct.Nonce, "", true
		}
		// Unknown addresses start at nonce 0; the account row is created
		// lazily by whichever method body first credits it (Deposit).
		return resolvedSender{kind: s.Kind, addr: s.Address}, 0, "", true
	case txtypes.SenderNodeMain, txtypes.SenderConsensus:
		node, found := nodeTable(ts).Get(s.Node)
		if !found {
			return resolvedSender{}, 0, txtypes.ErrNodeDoesNotExist, false
		}
		return resolvedSender{kind: s.Kind, node: s.Node}, node.Nonce, "", true
	default:
		// No signature scheme is defined for an unrecognized sender
		// variant, so this falls under spec section 4.3 step 2's "else
		// InvalidSignature" the same as a scheme-specific verify failure
		// would.
		return resolvedSender{}, 0, txtypes.ErrInvalidSignature, false
	}
}

func (e *Executor) verifySignature(ts atomo.Selector, sender resolvedSender, signingBytes []byte, payloadHash [32]byte, sig txtypes.TransactionSignature) error {
	switch sender.kind {
	case txtypes.SenderAccountOwner:
		return txsig.VerifyAccountOwner(payloadHash, sig, sender.addr)
	case txtypes.SenderNodeMain:
		node, _ := nodeTable(ts).Get(sender.node)
		return txsig.VerifyNodeMain(signingBytes, sig, node.NodePublicKey)
	case txtypes.SenderConsensus:
		node, _ := nodeTable(ts).Get(sender.node)
		return txsig.VerifyConsensus(signingBytes, sig, node.ConsensusPublicKey)
	default:
		return fmt.Errorf("executor: unknown sender kind %d", sender.kind)
	}
}

// commitNonce writes the sender's new nonce directly against ts, bypassing
// any SubSelector, so it survives regardless of whether the method body's
// writes are flushed or discarded.
func (e *Executor) commitNonce(ts atomo.Selector, sender resolvedSender, nonce uint64) {
	switch sender.kind {
	case txtypes.SenderAccountOwner:
		accounts := accountTable(ts)
		acct, ok := accounts.Get(sender.addr)
		if !ok {
			acct = txtypes.NewAccount()
		}
		acct.Nonce = nonce
		accounts.Insert(sender.addr, acct)
	case txtypes.SenderNodeMain, txtypes.SenderConsensus:
		nodes := nodeTable(ts)
		node, _ := nodes.Get(sender.node)
		node.Nonce = nonce
		nodes.Insert(sender.node, node)
	}
}

func (e *Executor) flushStateTree(ts *atomo.TableSelector) error {
	raw := ts.ExportBatch()
	if len(raw) == 0 {
		return nil
	}
	changes := make([]merklize.Change, len(raw))
	for i, rc := range raw {
		changes[i] = merklize.Change{Table: rc.Table, Key: rc.Key, Value: rc.Value, Removed: rc.Removed}
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TreeUpdateDuration)
	return e.tree.UpdateStateTree(ts, changes)
}
