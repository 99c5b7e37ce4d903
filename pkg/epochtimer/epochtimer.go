// Package epochtimer nudges block production forward during the
// Commit/Reveal phases of the epoch-change state machine: on every
// backoff tick in those phases it submits a benign IncrementNonce on
// behalf of a configured node, whether or not other transactions have
// arrived, with exponential backoff, so a phase that
// depends on a block-number delta is never stuck waiting on organic
// traffic.
package epochtimer

import (
	"context"
	"time"

	"github.com/lumenetwork/corestate/internal/corelog"
	"github.com/lumenetwork/corestate/pkg/query"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 60 * time.Second
)

// Submitter is the subset of the writer loop's submission path the timer
// needs; internal/wire's composition root supplies the real
// implementation (sign-and-enqueue against the single writer).
type Submitter interface {
	SubmitIncrementNonce(ctx context.Context, node txtypes.NodeIndex) error
}

// Timer runs the backoff loop in its own goroutine, started by Run and
// stopped when ctx is cancelled.
type Timer struct {
	node      txtypes.NodeIndex
	submitter Submitter
	runner    *query.Runner
	backoff   time.Duration
}

// New constructs a Timer that will submit IncrementNonce transactions
// signed by node whenever the committee is sitting in Commit or Reveal
// phase.
func New(node txtypes.NodeIndex, submitter Submitter, runner *query.Runner) *Timer {
	return &Timer{node: node, submitter: submitter, runner: runner, backoff: minBackoff}
}

// Run blocks until ctx is cancelled, checking the epoch phase once per
// backoff interval and resetting the backoff to its floor whenever it
// observes the phase has changed since the last check (a sign that real
// traffic, not this timer, is what's moving things along).
func (t *Timer) Run(ctx context.Context) {
	log := corelog.WithComponent("epochtimer")
	var lastPhase txtypes.BeaconPhase = txtypes.BeaconPhaseNone
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.backoff):
		}

		t.runner.Refresh()
		info, err := t.runner.GetEpochInfo()
		if err != nil {
			log.Warn().Err(err).Msg("read epoch info failed")
			continue
		}

		if info.Phase != lastPhase {
			lastPhase = info.Phase
			t.backoff = minBackoff
		}

		if info.Phase == txtypes.BeaconPhaseNone {
			t.backoff = minBackoff
			continue
		}

		if err := t.submitter.SubmitIncrementNonce(ctx, t.node); err != nil {
			log.Warn().Err(err).Msg("submit IncrementNonce failed")
		}

		t.backoff *= 2
		if t.backoff > maxBackoff {
			t.backoff = maxBackoff
		}
	}
}
