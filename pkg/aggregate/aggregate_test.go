package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/aggregate"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

func newSubmissionWithDeposits(t *testing.T, rs store.RecordStore, statuses ...store.DepositStatus) *store.Submission {
	t.Helper()
	ctx := t.Context()

	var repoIDs []string
	for range statuses {
		repo := store.NewRepository("repo", "repo-"+randSuffix())
		id, err := rs.Create(ctx, repo)
		require.NoError(t, err)
		repoIDs = append(repoIDs, id)
	}

	sub := store.NewSubmission(repoIDs, nil, nil)
	sub.SubmissionStatus = store.SubmissionSubmitted
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)
	sub.ID = subID

	for i, st := range statuses {
		dep := store.NewDeposit(subID, repoIDs[i])
		dep.DepositStatus = st
		_, err := rs.Create(ctx, dep)
		require.NoError(t, err)
	}

	return sub
}

var suffixCounter int

func randSuffix() string {
	suffixCounter++
	return string(rune('a' + suffixCounter%26))
}

func TestTick_AllAcceptedRollsUpToAccepted(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub := newSubmissionWithDeposits(t, rs, store.DepositAccepted, store.DepositAccepted)

	a := aggregate.New(rs, 0)
	a.Tick(ctx)

	reread, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, sub.ID)
	require.NoError(t, err)
	require.Equal(t, store.AggregateAccepted, reread.AggregatedDepositStatus)
}

func TestTick_AnyRejectedNoneSubmittedRollsUpToRejected(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub := newSubmissionWithDeposits(t, rs, store.DepositAccepted, store.DepositRejected)

	a := aggregate.New(rs, 0)
	a.Tick(ctx)

	reread, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, sub.ID)
	require.NoError(t, err)
	require.Equal(t, store.AggregateRejected, reread.AggregatedDepositStatus)
}

func TestTick_RejectedButOneStillSubmittedStaysInProgress(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub := newSubmissionWithDeposits(t, rs, store.DepositSubmitted, store.DepositRejected)

	a := aggregate.New(rs, 0)
	a.Tick(ctx)

	reread, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, sub.ID)
	require.NoError(t, err)
	require.Equal(t, store.AggregateInProgress, reread.AggregatedDepositStatus)
}

func TestTick_AnyFailedNoneSubmittedRollsUpToFailed(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub := newSubmissionWithDeposits(t, rs, store.DepositAccepted, store.DepositFailed)

	a := aggregate.New(rs, 0)
	a.Tick(ctx)

	reread, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, sub.ID)
	require.NoError(t, err)
	require.Equal(t, store.AggregateFailed, reread.AggregatedDepositStatus)
}

func TestTick_DoesNotOverwriteTerminalAggregate(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub := newSubmissionWithDeposits(t, rs, store.DepositRejected)
	sub.AggregatedDepositStatus = store.AggregateAccepted
	require.NoError(t, rs.Update(ctx, sub))

	a := aggregate.New(rs, 0)
	a.Tick(ctx)

	reread, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, sub.ID)
	require.NoError(t, err)
	require.Equal(t, store.AggregateAccepted, reread.AggregatedDepositStatus)
}

func TestTick_SkipsSubmissionsNotInSubmittedState(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	sub := newSubmissionWithDeposits(t, rs, store.DepositAccepted)
	sub.SubmissionStatus = store.SubmissionUnsubmitted
	require.NoError(t, rs.Update(ctx, sub))

	a := aggregate.New(rs, 0)
	a.Tick(ctx)

	reread, err := store.ReadTyped[store.Submission](ctx, rs, store.KindSubmission, sub.ID)
	require.NoError(t, err)
	require.Equal(t, store.AggregateNotStarted, reread.AggregatedDepositStatus)
}
