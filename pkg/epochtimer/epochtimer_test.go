package epochtimer_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenetwork/corestate/pkg/atomo"
	"github.com/lumenetwork/corestate/pkg/atomo/backend"
	"github.com/lumenetwork/corestate/pkg/epochtimer"
	"github.com/lumenetwork/corestate/pkg/executor"
	"github.com/lumenetwork/corestate/pkg/merklize/hash"
	"github.com/lumenetwork/corestate/pkg/merklize/jmt"
	"github.com/lumenetwork/corestate/pkg/query"
	"github.com/lumenetwork/corestate/pkg/txtypes"
)

type countingSubmitter struct {
	calls int32
}

func (s *countingSubmitter) SubmitIncrementNonce(ctx context.Context, node txtypes.NodeIndex) error {
	atomic.AddInt32(&s.calls, 1)
	return nil
}

func newSeededDB(t *testing.T) *atomo.DB {
	t.Helper()
	b := atomo.NewBuilder(backend.NewMemory())
	executor.RegisterTables(b)
	tree := jmt.New(hash.Blake3Hasher{})
	tree.RegisterTables(b)
	db, err := b.Build()
	require.NoError(t, err)
	return db
}

func TestTimerSubmitsWhileCommitteeInCommitPhase(t *testing.T) {
	db := newSeededDB(t)
	tree := jmt.New(hash.Blake3Hasher{})

	// Force the committee into Commit phase directly, without running a
	// full genesis/executor cycle: the timer only reads committee phase.
	err := db.Run(func(ts *atomo.TableSelector) error {
		committee := atomo.GetTable[txtypes.Epoch, *txtypes.Committee](ts, executor.TableCommittee)
		committee.Insert(0, &txtypes.Committee{Phase: txtypes.BeaconPhaseCommit})
		return nil
	})
	require.NoError(t, err)

	runner := query.New(db, tree, nil)
	defer runner.Release()

	sub := &countingSubmitter{}
	timer := epochtimer.New(1, sub, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 1300*time.Millisecond)
	defer cancel()
	timer.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&sub.calls), int32(1))
}

func TestTimerDoesNotSubmitWhilePhaseNone(t *testing.T) {
	db := newSeededDB(t)
	tree := jmt.New(hash.Blake3Hasher{})
	runner := query.New(db, tree, nil)
	defer runner.Release()

	sub := &countingSubmitter{}
	timer := epochtimer.New(1, sub, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	timer.Run(ctx)

	assert.Equal(t, int32(0), atomic.LoadInt32(&sub.calls))
}
