package status_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/status"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

const swordScheme = "http://purl.org/net/sword/terms/state"

func defaultMapping() status.Mapping {
	return status.Mapping{
		Scheme: swordScheme,
		Terms: map[string]status.Resolved{
			"archived":   status.ResolvedAccepted,
			"withdrawn":  status.ResolvedRejected,
			"inProgress": status.ResolvedInProgress,
			"invalid":    status.ResolvedFailed,
		},
	}
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, statusRef string) ([]byte, error) {
	return f.body, f.err
}

type fixedMappingResolver struct{ mapping status.Mapping }

func (r fixedMappingResolver) MappingFor(ctx context.Context, repositoryID string) (status.Mapping, error) {
	return r.mapping, nil
}

func statementWithTerm(term string) []byte {
	return []byte(`<feed xmlns="http://www.w3.org/2005/Atom">
  <category scheme="` + swordScheme + `" term="` + term + `"/>
</feed>`)
}

func seedSubmittedDeposit(t *testing.T, rs store.RecordStore, statusRef string) *store.Deposit {
	t.Helper()
	ctx := t.Context()

	repo := store.NewRepository("JScholarship", "jscholarship")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)

	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	dep := store.NewDeposit(subID, repoID)
	dep.DepositStatus = store.DepositSubmitted
	dep.DepositStatusRef = statusRef
	id, err := rs.Create(ctx, dep)
	require.NoError(t, err)
	dep.ID = id
	return dep
}

func TestPoll_ArchivedMarksAcceptedAndCreatesCopy(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/1")

	r := status.New(rs, &fakeFetcher{body: statementWithTerm("archived")}, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositAccepted, reread.DepositStatus)

	copies, err := rs.FindByAttribute(ctx, store.KindRepositoryCopy, "deposit_id", dep.ID)
	require.NoError(t, err)
	require.Len(t, copies, 1)
}

func TestPoll_WithdrawnMarksRejected(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/2")

	r := status.New(rs, &fakeFetcher{body: statementWithTerm("withdrawn")}, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositRejected, reread.DepositStatus)
}

func TestPoll_UnknownTermIsInProgressNotRejected(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/3")

	r := status.New(rs, &fakeFetcher{body: statementWithTerm("some-unmapped-term")}, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositSubmitted, reread.DepositStatus)
	require.Equal(t, 1, reread.PollAttempts)
	require.NotNil(t, reread.NextPollAt)
}

func TestPoll_RejectedTakesPriorityOverAccepted(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/4")

	body := []byte(`<feed xmlns="http://www.w3.org/2005/Atom">
  <category scheme="` + swordScheme + `" term="archived"/>
  <category scheme="` + swordScheme + `" term="withdrawn"/>
</feed>`)

	r := status.New(rs, &fakeFetcher{body: body}, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositRejected, reread.DepositStatus)
}

func TestPoll_NotYetDueIsANoOp(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/5")

	future := time.Now().Add(time.Hour)
	dep.NextPollAt = &future
	require.NoError(t, rs.Update(ctx, dep))

	fetcher := &fakeFetcher{body: statementWithTerm("archived")}
	r := status.New(rs, fetcher, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositSubmitted, reread.DepositStatus)
}

func TestPoll_RetryWindowExhaustionMarksFailed(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/6")

	eightDaysAgo := time.Now().Add(-8 * 24 * time.Hour)
	dep.FirstPolledAt = &eightDaysAgo
	dep.PollAttempts = 40
	require.NoError(t, rs.Update(ctx, dep))

	r := status.New(rs, &fakeFetcher{body: statementWithTerm("inProgress")}, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositFailed, reread.DepositStatus)
}

func TestPoll_FetchErrorSchedulesRetryRatherThanFailingImmediately(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/7")

	r := status.New(rs, &fakeFetcher{err: errors.New("connection reset")}, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositSubmitted, reread.DepositStatus)
	require.Equal(t, 1, reread.PollAttempts)
}

func TestPoll_IgnoresNonSubmittedDeposit(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()
	dep := seedSubmittedDeposit(t, rs, "https://repo.example/statement/8")
	dep.DepositStatus = store.DepositAccepted
	require.NoError(t, rs.Update(ctx, dep))

	fetcher := &fakeFetcher{body: statementWithTerm("withdrawn")}
	r := status.New(rs, fetcher, fixedMappingResolver{defaultMapping()})
	require.NoError(t, r.Poll(ctx, dep.ID))

	reread, err := store.ReadTyped[store.Deposit](ctx, rs, store.KindDeposit, dep.ID)
	require.NoError(t, err)
	require.Equal(t, store.DepositAccepted, reread.DepositStatus)
}
