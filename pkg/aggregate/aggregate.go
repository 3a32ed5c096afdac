// Package aggregate implements the submission status aggregator
// (spec.md §4.10): a periodic, non-reentrant tick that rolls each
// submitted submission's deposits up into one aggregatedDepositStatus.
// Its start/stop/non-reentrant-tick shape is grounded on
// pkg/flusher/background.go's started/stopCh/stoppedCh idiom, adapted
// from a worker pool (many goroutines draining a queue) to a single
// ticking goroutine guarded against overlapping runs.
package aggregate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/cri"
	"github.com/eclipse-pass/depositsvc/pkg/metrics"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// DefaultInterval is spec.md §4.10's "default every 10 min".
const DefaultInterval = 10 * time.Minute

// Aggregator runs spec.md §4.10's rollup rule on a fixed interval.
type Aggregator struct {
	Store      store.RecordStore
	Interval   time.Duration
	CRIOptions cri.Options
	Metrics    metrics.AggregateMetrics

	running   atomic.Bool
	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(rs store.RecordStore, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{Store: rs, Interval: interval}
}

// Start launches the ticking goroutine. Calling Start more than once
// is a no-op.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.stopCh = make(chan struct{})
	a.stoppedCh = make(chan struct{})
	a.mu.Unlock()

	logger.Info("aggregate: starting", "interval", a.Interval)

	go a.loop(ctx)
}

// Stop signals the ticking goroutine to exit, waiting up to timeout
// for an in-flight tick to finish.
func (a *Aggregator) Stop(timeout time.Duration) {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	stopCh := a.stopCh
	stoppedCh := a.stoppedCh
	a.mu.Unlock()

	close(stopCh)
	select {
	case <-stoppedCh:
	case <-time.After(timeout):
		logger.Warn("aggregate: stop timed out waiting for an in-flight tick")
	}
}

func (a *Aggregator) loop(ctx context.Context) {
	a.mu.Lock()
	stopCh := a.stopCh
	stoppedCh := a.stoppedCh
	a.mu.Unlock()
	defer close(stoppedCh)

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick runs one aggregation pass. It is non-reentrant (spec.md §4.10:
// "the job MUST be non-reentrant") — a tick invoked while one is
// already running returns immediately without doing anything, rather
// than queuing or blocking.
func (a *Aggregator) Tick(ctx context.Context) {
	if !a.running.CompareAndSwap(false, true) {
		logger.Debug("aggregate: tick already in progress, skipping")
		return
	}
	defer a.running.Store(false)

	start := time.Now()
	var updated int

	ids, err := a.Store.FindByAttribute(ctx, store.KindSubmission, "submission_status", store.SubmissionSubmitted)
	if err != nil {
		logger.ErrorCtx(ctx, "aggregate: listing submitted submissions", logger.Err(err))
		return
	}

	for _, id := range ids {
		changed, err := a.rollup(ctx, id)
		if err != nil {
			logger.ErrorCtx(ctx, "aggregate: rollup failed", logger.SubmissionID(id), logger.Err(err))
			continue
		}
		if changed {
			updated++
		}
	}

	if a.Metrics != nil {
		a.Metrics.ObserveTick(time.Since(start), len(ids), updated)
	}
}

// rollup applies spec.md §4.10's rule to one submission, reporting
// whether it actually changed the submission's aggregated status.
func (a *Aggregator) rollup(ctx context.Context, submissionID string) (bool, error) {
	sub, err := store.ReadTyped[store.Submission](ctx, a.Store, store.KindSubmission, submissionID)
	if err != nil {
		return false, err
	}
	if sub.AggregatedDepositStatus.IsTerminal() {
		return false, nil
	}

	depositIDs, err := a.Store.FindByAttribute(ctx, store.KindDeposit, "submission_id", submissionID)
	if err != nil {
		return false, err
	}

	var deposits []*store.Deposit
	for _, id := range depositIDs {
		dep, err := store.ReadTyped[store.Deposit](ctx, a.Store, store.KindDeposit, id)
		if err != nil {
			return false, err
		}
		deposits = append(deposits, dep)
	}

	computed := rollupStatus(deposits)
	if computed == sub.AggregatedDepositStatus {
		return false, nil
	}

	result := cri.PerformCritical(ctx, a.Store, store.KindSubmission, submissionID,
		func(s *store.Submission) bool { return !s.AggregatedDepositStatus.IsTerminal() },
		func(s *store.Submission) *store.Submission {
			s.AggregatedDepositStatus = computed
			return s
		},
		func(s *store.Submission) bool { return s.AggregatedDepositStatus == computed },
		a.CRIOptions,
	)
	if result.Err != nil {
		return false, result.Err
	}
	if result.Success {
		logger.InfoCtx(ctx, "aggregate: updated submission rollup", logger.SubmissionID(submissionID))
	}
	return result.Success, nil
}

// rollupStatus implements spec.md §4.10's rule exactly: accepted iff
// all deposits are accepted; rejected iff any is rejected and none is
// submitted; failed iff any is failed and none is submitted; otherwise
// inProgress. A submission with no deposits yet is inProgress (not yet
// dispatched, or dispatch hasn't created any rows visible to this
// tick).
func rollupStatus(deposits []*store.Deposit) store.AggregatedDepositStatus {
	if len(deposits) == 0 {
		return store.AggregateInProgress
	}

	var anyRejected, anyFailed, anySubmitted, allAccepted bool
	allAccepted = true
	for _, d := range deposits {
		switch d.DepositStatus {
		case store.DepositAccepted:
		case store.DepositRejected:
			anyRejected = true
			allAccepted = false
		case store.DepositFailed:
			anyFailed = true
			allAccepted = false
		case store.DepositSubmitted:
			anySubmitted = true
			allAccepted = false
		default:
			allAccepted = false
		}
	}

	if allAccepted {
		return store.AggregateAccepted
	}
	if anyRejected && !anySubmitted {
		return store.AggregateRejected
	}
	if anyFailed && !anySubmitted {
		return store.AggregateFailed
	}
	return store.AggregateInProgress
}
