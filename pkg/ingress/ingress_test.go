package ingress_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/ingress"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
}

func newRecordingDispatcher(want int) *recordingDispatcher {
	return &recordingDispatcher{done: make(chan struct{}, want)}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, submissionID string) error {
	d.mu.Lock()
	d.seen = append(d.seen, submissionID)
	d.mu.Unlock()
	d.done <- struct{}{}
	return nil
}

type recordingResolver struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
}

func newRecordingResolver(want int) *recordingResolver {
	return &recordingResolver{done: make(chan struct{}, want)}
}

func (r *recordingResolver) Poll(ctx context.Context, depositID string) error {
	r.mu.Lock()
	r.seen = append(r.seen, depositID)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func waitForN(t *testing.T, done chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d events, got %d", n, i)
		}
	}
}

func TestSubscriber_RoutesSubmittedSubmissionToDispatcher(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	sub := store.NewSubmission(nil, nil, nil)
	sub.SubmissionStatus = store.SubmissionSubmitted
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	source := ingress.NewChannelSource(8)
	dispatcher := newRecordingDispatcher(1)
	resolver := newRecordingResolver(0)

	s := ingress.New(rs, source, dispatcher, resolver, ingress.Config{})
	s.Start(ctx)
	defer s.Stop()

	source.Publish(ingress.Event{EntityKind: store.KindSubmission, EntityID: subID, Kind: ingress.KindModified})

	waitForN(t, dispatcher.done, 1)
	require.Equal(t, []string{subID}, dispatcher.seen)
}

func TestSubscriber_IgnoresUnsubmittedSubmission(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	sub := store.NewSubmission(nil, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	source := ingress.NewChannelSource(8)
	dispatcher := newRecordingDispatcher(1)
	resolver := newRecordingResolver(0)

	s := ingress.New(rs, source, dispatcher, resolver, ingress.Config{})
	s.Start(ctx)
	defer s.Stop()

	source.Publish(ingress.Event{EntityKind: store.KindSubmission, EntityID: subID, Kind: ingress.KindModified})

	select {
	case <-dispatcher.done:
		t.Fatal("dispatcher should not have been called for an unsubmitted submission")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscriber_RoutesSubmittedDepositWithStatusRefToResolver(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	repo := store.NewRepository("repo", "repo-key-ingress")
	repoID, err := rs.Create(ctx, repo)
	require.NoError(t, err)
	sub := store.NewSubmission([]string{repoID}, nil, nil)
	subID, err := rs.Create(ctx, sub)
	require.NoError(t, err)

	dep := store.NewDeposit(subID, repoID)
	dep.DepositStatus = store.DepositSubmitted
	dep.DepositStatusRef = "https://repo.example/statement/1"
	depID, err := rs.Create(ctx, dep)
	require.NoError(t, err)

	source := ingress.NewChannelSource(8)
	dispatcher := newRecordingDispatcher(0)
	resolver := newRecordingResolver(1)

	s := ingress.New(rs, source, dispatcher, resolver, ingress.Config{})
	s.Start(ctx)
	defer s.Stop()

	source.Publish(ingress.Event{EntityKind: store.KindDeposit, EntityID: depID, Kind: ingress.KindModified})

	waitForN(t, resolver.done, 1)
	require.Equal(t, []string{depID}, resolver.seen)
}

func TestSubscriber_PolicyRejectsUnconfiguredEntityKind(t *testing.T) {
	rs := memstore.New()
	ctx := t.Context()

	source := ingress.NewChannelSource(8)
	dispatcher := newRecordingDispatcher(0)
	resolver := newRecordingResolver(0)

	policy := ingress.Policy{
		EntityKinds: map[store.Kind]bool{store.KindSubmission: true},
		Kinds:       map[ingress.Kind]bool{ingress.KindModified: true},
	}
	s := ingress.New(rs, source, dispatcher, resolver, ingress.Config{Policy: policy})
	s.Start(ctx)
	defer s.Stop()

	source.Publish(ingress.Event{EntityKind: store.KindDeposit, EntityID: "dep-1", Kind: ingress.KindModified})

	select {
	case <-resolver.done:
		t.Fatal("resolver should not have been called for a filtered-out entity kind")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSubscriber_StopDrainsWithoutPanicking(t *testing.T) {
	rs := memstore.New()
	source := ingress.NewChannelSource(8)
	s := ingress.New(rs, source, newRecordingDispatcher(0), newRecordingResolver(0), ingress.Config{})

	s.Start(t.Context())
	s.Stop()
}
