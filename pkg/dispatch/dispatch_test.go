package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/deposit"
	"github.com/eclipse-pass/depositsvc/pkg/dispatch"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

type recordingRunner struct {
	mu   sync.Mutex
	seen []deposit.Task
	done chan struct{}
}

func newRecordingRunner(expect int) *recordingRunner {
	return &recordingRunner{done: make(chan struct{}, expect)}
}

func (r *recordingRunner) Run(ctx context.Context, task deposit.Task) error {
	r.mu.Lock()
	r.seen = append(r.seen, task)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingRunner) waitFor(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d tasks, got %d", n, i)
		}
	}
}

func TestDispatch_CreatesOneDepositPerRepository(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repoA := store.NewRepository("JScholarship", "jscholarship")
	repoAID, err := rs.Create(ctx, repoA)
	require.NoError(t, err)

	repoB := store.NewRepository("PMC", "pmc")
	repoBID, err := rs.Create(ctx, repoB)
	require.NoError(t, err)

	sub := store.NewSubmission([]string{repoAID, repoBID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	runner := newRecordingRunner(2)
	pool := dispatch.NewPool(runner, dispatch.PoolConfig{Workers: 2, QueueSize: 10})
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	d := dispatch.New(rs, pool)
	require.NoError(t, d.Dispatch(ctx, subID))

	runner.waitFor(t, 2)

	ids, err := rs.FindByAttribute(ctx, store.KindDeposit, "submission_id", subID)
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func TestDispatch_DoesNotDuplicateNonTerminalDeposit(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("JScholarship", "jscholarship")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	runner := newRecordingRunner(2)
	pool := dispatch.NewPool(runner, dispatch.PoolConfig{Workers: 1, QueueSize: 10})
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	d := dispatch.New(rs, pool)
	require.NoError(t, d.Dispatch(ctx, subID))
	runner.waitFor(t, 1)

	require.NoError(t, d.Dispatch(ctx, subID))

	select {
	case <-runner.done:
		t.Fatal("dispatch re-created a deposit for an already non-terminal (submission, repository) pair")
	case <-time.After(200 * time.Millisecond):
	}

	ids, err := rs.FindByAttribute(ctx, store.KindDeposit, "submission_id", subID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestDispatch_RearmsAfterDepositTerminal(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("JScholarship", "jscholarship")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	runner := newRecordingRunner(1)
	pool := dispatch.NewPool(runner, dispatch.PoolConfig{Workers: 1, QueueSize: 10})
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	d := dispatch.New(rs, pool)
	require.NoError(t, d.Dispatch(ctx, subID))
	runner.waitFor(t, 1)

	ids, err := rs.FindByAttribute(ctx, store.KindDeposit, "submission_id", subID)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	existing, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, ids[0])
	require.NoError(t, err)
	existing.DepositStatus = store.DepositRejected
	require.NoError(t, rs.Update(ctx, existing))

	require.NoError(t, d.Dispatch(ctx, subID))

	ids, err = rs.FindByAttribute(ctx, store.KindDeposit, "submission_id", subID)
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func TestDispatch_ConcurrentDispatchCreatesExactlyOneDeposit(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("JScholarship", "jscholarship")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	runner := newRecordingRunner(8)
	pool := dispatch.NewPool(runner, dispatch.PoolConfig{Workers: 4, QueueSize: 16})
	pool.Start(ctx)
	defer pool.Stop(time.Second)

	d := dispatch.New(rs, pool)

	// Race several concurrent Dispatch calls for the same submission
	// against the store's existence-check-then-create window (I2);
	// the store's active-pair uniqueness (gormstore's partial unique
	// index, memstore's hasActiveDepositLocked) must let exactly one
	// of them win regardless of interleaving.
	const racers = 8
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Dispatch(ctx, subID))
		}()
	}
	wg.Wait()

	runner.waitFor(t, 1)

	select {
	case <-runner.done:
		t.Fatal("concurrent Dispatch calls created more than one deposit for the same (submission, repository) pair")
	case <-time.After(200 * time.Millisecond):
	}

	ids, err := rs.FindByAttribute(ctx, store.KindDeposit, "submission_id", subID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestPool_SubmitReturnsFalseWhenQueueFull(t *testing.T) {
	// Submit directly against an unstarted pool, so nothing drains the
	// queue concurrently and the channel's buffer capacity is the only
	// thing deciding success/failure.
	pool := dispatch.NewPool(&blockingRunner{}, dispatch.PoolConfig{Workers: 1, QueueSize: 2})

	require.True(t, pool.Submit(deposit.Task{DepositID: "d1"}))
	require.True(t, pool.Submit(deposit.Task{DepositID: "d2"}))
	require.False(t, pool.Submit(deposit.Task{DepositID: "d3"}))
}

type blockingRunner struct{ block chan struct{} }

func (r *blockingRunner) Run(ctx context.Context, task deposit.Task) error {
	<-r.block
	return nil
}
