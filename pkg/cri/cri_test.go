package cri_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/cri"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

func TestPerformCritical_FailsPreconditionWithoutWriting(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	dep := store.NewDeposit("sub-1", "repo-1")
	dep.DepositStatus = store.DepositAccepted
	id, err := rs.Create(ctx, dep)
	require.NoError(t, err)

	result := cri.PerformCritical(ctx, rs, store.KindDeposit, id,
		func(e *store.Deposit) bool { return e.DepositStatus.ArmableForDispatch() },
		func(e *store.Deposit) *store.Deposit { e.DepositStatus = store.DepositSubmitted; return e },
		func(e *store.Deposit) bool { return e.DepositStatus == store.DepositSubmitted },
		cri.Options{},
	)

	require.False(t, result.Success)
	require.NoError(t, result.Err)
	require.Equal(t, store.DepositAccepted, result.Resource.DepositStatus)

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
	require.NoError(t, err)
	require.Equal(t, store.DepositAccepted, reread.DepositStatus)
}

func TestPerformCritical_MutatesAndVerifiesPostcondition(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	dep := store.NewDeposit("sub-1", "repo-1")
	id, err := rs.Create(ctx, dep)
	require.NoError(t, err)

	result := cri.PerformCritical(ctx, rs, store.KindDeposit, id,
		func(e *store.Deposit) bool { return e.DepositStatus.ArmableForDispatch() },
		func(e *store.Deposit) *store.Deposit { e.DepositStatus = store.DepositSubmitted; return e },
		func(e *store.Deposit) bool { return e.DepositStatus == store.DepositSubmitted },
		cri.Options{},
	)

	require.True(t, result.Success)
	require.Equal(t, store.DepositSubmitted, result.Resource.DepositStatus)
	require.Equal(t, int64(2), result.Resource.EntityVersion())
}

func TestPerformCritical_RetriesOnVersionConflict(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	dep := store.NewDeposit("sub-1", "repo-1")
	id, err := rs.Create(ctx, dep)
	require.NoError(t, err)

	var once sync.Once
	attempts := 0

	result := cri.PerformCritical(ctx, rs, store.KindDeposit, id,
		func(e *store.Deposit) bool {
			attempts++
			// Simulate a second writer interleaving on the very first
			// read by bumping the stored version out from under us.
			once.Do(func() {
				racer, _ := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
				racer.FailureMessage = "racer"
				_ = rs.Update(ctx, racer)
			})
			return e.DepositStatus.ArmableForDispatch()
		},
		func(e *store.Deposit) *store.Deposit { e.DepositStatus = store.DepositSubmitted; return e },
		func(e *store.Deposit) bool { return e.DepositStatus == store.DepositSubmitted },
		cri.Options{MaxAttempts: 3},
	)

	require.True(t, result.Success)
	require.GreaterOrEqual(t, attempts, 2)
}
