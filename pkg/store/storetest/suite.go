// Package storetest provides a backend-agnostic conformance suite for
// pkg/store.RecordStore implementations, grounded on the teacher's
// pkg/metadata/storetest.RunConformanceSuite shape. Every RecordStore
// (gormstore over SQLite, gormstore over Postgres, memstore) is run
// against the same suite so they stay behaviorally interchangeable.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// StoreFactory creates a fresh RecordStore instance for each test. The
// factory receives *testing.T so backends that need a temp file or a
// testcontainer can use t.TempDir()/t.Cleanup().
type StoreFactory func(t *testing.T) store.RecordStore

// RunConformanceSuite runs the full conformance suite against the
// store produced by factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("CreateRead", func(t *testing.T) { runCreateReadTests(t, factory) })
	t.Run("OptimisticConcurrency", func(t *testing.T) { runOptimisticConcurrencyTests(t, factory) })
	t.Run("FindByAttribute", func(t *testing.T) { runFindByAttributeTests(t, factory) })
	t.Run("Healthcheck", func(t *testing.T) { runHealthcheckTests(t, factory) })
}

func runCreateReadTests(t *testing.T, factory StoreFactory) {
	t.Run("round trips a submission", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		sub := store.NewSubmission([]string{"repo-1"}, []byte(`{"title":"x"}`), nil)
		id, err := rs.Create(ctx, sub)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		got, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, id)
		require.NoError(t, err)
		require.Equal(t, id, got.EntityID())
		require.Equal(t, store.SubmissionUnsubmitted, got.SubmissionStatus)
		require.Equal(t, int64(1), got.EntityVersion())
	})

	t.Run("read of unknown id is NotFound", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		_, err := rs.Read(ctx, store.KindSubmission, "does-not-exist")
		require.Error(t, err)
		require.True(t, store.IsNotFound(err))
	})

	t.Run("create assigns an id when none is set", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		repo := store.NewRepository("DSpace Main", "dspace-main")
		id, err := rs.Create(ctx, repo)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.Equal(t, id, repo.EntityID())
	})
}

func runOptimisticConcurrencyTests(t *testing.T, factory StoreFactory) {
	t.Run("update succeeds at the observed version and bumps it", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		dep := store.NewDeposit("sub-1", "repo-1")
		id, err := rs.Create(ctx, dep)
		require.NoError(t, err)

		got, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)
		require.Equal(t, int64(1), got.EntityVersion())

		got.DepositStatus = store.DepositSubmitted
		require.NoError(t, rs.Update(ctx, got))
		require.Equal(t, int64(2), got.EntityVersion())

		reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)
		require.Equal(t, store.DepositSubmitted, reread.DepositStatus)
		require.Equal(t, int64(2), reread.EntityVersion())
	})

	t.Run("update at a stale version fails with VersionConflict", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		dep := store.NewDeposit("sub-1", "repo-1")
		id, err := rs.Create(ctx, dep)
		require.NoError(t, err)

		first, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)
		second, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)

		first.DepositStatus = store.DepositSubmitted
		require.NoError(t, rs.Update(ctx, first))

		second.DepositStatus = store.DepositFailed
		err = rs.Update(ctx, second)
		require.Error(t, err)
		require.True(t, store.IsVersionConflict(err))
	})

	t.Run("a failed update leaves the entity's in-memory version untouched", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		dep := store.NewDeposit("sub-1", "repo-1")
		id, err := rs.Create(ctx, dep)
		require.NoError(t, err)

		stale, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)

		fresh, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)
		fresh.DepositStatus = store.DepositSubmitted
		require.NoError(t, rs.Update(ctx, fresh))

		observedVersion := stale.EntityVersion()
		stale.DepositStatus = store.DepositFailed
		err = rs.Update(ctx, stale)
		require.Error(t, err)
		require.Equal(t, observedVersion, stale.EntityVersion())
	})

	t.Run("remediation can write a status back to its zero value", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		dep := store.NewDeposit("sub-1", "repo-1")
		dep.DepositStatus = store.DepositFailed
		id, err := rs.Create(ctx, dep)
		require.NoError(t, err)

		got, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)
		got.DepositStatus = store.DepositNull
		require.NoError(t, rs.Update(ctx, got))

		reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, id)
		require.NoError(t, err)
		require.Equal(t, store.DepositNull, reread.DepositStatus)
		require.True(t, reread.DepositStatus.ArmableForDispatch())
	})
}

func runFindByAttributeTests(t *testing.T, factory StoreFactory) {
	t.Run("finds deposits by submission_id", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		subID, err := rs.Create(ctx, store.NewSubmission([]string{"repo-1"}, nil, nil))
		require.NoError(t, err)

		dep1 := store.NewDeposit(subID, "repo-1")
		dep2 := store.NewDeposit(subID, "repo-2")
		other := store.NewDeposit("some-other-submission", "repo-1")

		id1, err := rs.Create(ctx, dep1)
		require.NoError(t, err)
		id2, err := rs.Create(ctx, dep2)
		require.NoError(t, err)
		_, err = rs.Create(ctx, other)
		require.NoError(t, err)

		ids, err := rs.FindByAttribute(ctx, store.KindDeposit, "submission_id", subID)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{id1, id2}, ids)
	})

	t.Run("no match returns an empty result", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()
		ctx := t.Context()

		ids, err := rs.FindByAttribute(ctx, store.KindDeposit, "submission_id", "nothing-here")
		require.NoError(t, err)
		require.Empty(t, ids)
	})
}

func runHealthcheckTests(t *testing.T, factory StoreFactory) {
	t.Run("healthcheck succeeds on a fresh store", func(t *testing.T) {
		rs := factory(t)
		defer rs.Close()

		require.NoError(t, rs.Healthcheck(t.Context()))
	})
}
