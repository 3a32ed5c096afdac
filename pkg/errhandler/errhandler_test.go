package errhandler_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/errhandler"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

func TestHandle_DepositErrorFailsTheDeposit(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	dep := store.NewDeposit("sub-1", "repo-1")
	dep.DepositStatus = store.DepositSubmitted
	id, err := rs.Create(ctx, dep)
	require.NoError(t, err)
	dep.ID = id

	cause := fmt.Errorf("transport: %w", errors.New("connection reset"))
	h := errhandler.New(rs)
	h.Handle(ctx, errhandler.NewDepositError(dep, cause))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
	require.NoError(t, err)
	require.Equal(t, store.DepositFailed, reread.DepositStatus)
	require.Contains(t, reread.FailureMessage, "connection reset")
}

func TestHandle_DepositErrorDoesNotOverwriteTerminalStatus(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	dep := store.NewDeposit("sub-1", "repo-1")
	dep.DepositStatus = store.DepositAccepted
	id, err := rs.Create(ctx, dep)
	require.NoError(t, err)
	dep.ID = id

	h := errhandler.New(rs)
	h.Handle(ctx, errhandler.NewDepositError(dep, errors.New("late failure")))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
	require.NoError(t, err)
	require.Equal(t, store.DepositAccepted, reread.DepositStatus)
}

func TestHandle_SubmissionErrorSetsAggregateFailed(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	sub := store.NewSubmission([]string{"repo-1"}, nil, nil)
	id, err := rs.Create(ctx, sub)
	require.NoError(t, err)
	sub.ID = id

	h := errhandler.New(rs)
	h.Handle(ctx, errhandler.NewSubmissionError(sub, errors.New("no repositories resolved")))

	reread, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, id)
	require.NoError(t, err)
	require.Equal(t, store.AggregateFailed, reread.AggregatedDepositStatus)
}

func TestHandle_UnclassifiedErrorLeavesStateUntouched(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	h := errhandler.New(rs)
	// Should not panic, and should not attempt to touch the record
	// store at all since the error carries no entity.
	h.Handle(ctx, errors.New("unexpected nil pointer somewhere"))
}

func TestHandle_WrappedOneLevelIsStillClassified(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	dep := store.NewDeposit("sub-1", "repo-1")
	id, err := rs.Create(ctx, dep)
	require.NoError(t, err)
	dep.ID = id

	wrapped := fmt.Errorf("worker: %w", errhandler.NewDepositError(dep, errors.New("boom")))

	h := errhandler.New(rs)
	h.Handle(ctx, wrapped)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
	require.NoError(t, err)
	require.Equal(t, store.DepositFailed, reread.DepositStatus)
}
