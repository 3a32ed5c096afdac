// Package dispatch implements the submission dispatcher (spec.md
// §4.8): fanning a submitted submission out into one deposit task per
// target repository, and running those tasks on a bounded worker pool.
// The pool itself is a direct generalization of
// pkg/flusher.BackgroundUploader's queue/workers/stopCh/stoppedCh
// shape, carrying a DepositTask payload instead of a block-store
// upload request.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/cri"
	"github.com/eclipse-pass/depositsvc/pkg/deposit"
	"github.com/eclipse-pass/depositsvc/pkg/metrics"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// Runner executes one deposit task. *deposit.Runner satisfies this.
type Runner interface {
	Run(ctx context.Context, task deposit.Task) error
}

// PoolConfig tunes the bounded worker pool (spec.md §4.8 step 3:
// "the pool's parallelism is a configuration option").
type PoolConfig struct {
	// QueueSize bounds how many tasks may be pending at once.
	QueueSize int
	// Workers is the number of concurrent task runners.
	Workers int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Pool runs deposit tasks on a fixed number of worker goroutines,
// unordered, dropping a task and logging if the queue is full rather
// than blocking the caller (spec.md §4.8 step 3: "ordering is
// unordered").
type Pool struct {
	runner Runner

	queue   chan deposit.Task
	workers int

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
	pending int

	metrics metrics.DispatchMetrics
}

// SetMetrics attaches a DispatchMetrics instrumentation sink. It must
// be called before Start; passing nil (the default) disables
// instrumentation.
func (p *Pool) SetMetrics(m metrics.DispatchMetrics) {
	p.metrics = m
}

// NewPool constructs a Pool that runs tasks via runner.
func NewPool(runner Runner, cfg PoolConfig) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		runner:    runner,
		queue:     make(chan deposit.Task, cfg.QueueSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the pool's workers. Calling Start more than once is a
// no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	logger.Info("dispatch: starting pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	go func() {
		p.wg.Wait()
		close(p.stoppedCh)
	}()
}

// Stop signals the pool's workers to drain and exit, waiting up to
// timeout (spec.md §4.11: "shutting down... completes in-flight tasks
// (best effort, with a drain timeout)").
func (p *Pool) Stop(timeout time.Duration) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.stoppedCh:
		logger.Info("dispatch: pool stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("dispatch: pool stop timed out", "pending", p.Pending())
	}
}

// Submit enqueues task, returning false (without blocking) if the
// queue is full.
func (p *Pool) Submit(task deposit.Task) bool {
	select {
	case p.queue <- task:
		p.mu.Lock()
		p.pending++
		depth := p.pending
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.RecordSubmit(true)
			p.metrics.SetQueueDepth(depth)
		}
		return true
	default:
		logger.Warn("dispatch: queue full, dropping task", logger.DepositID(task.DepositID))
		if p.metrics != nil {
			p.metrics.RecordSubmit(false)
		}
		return false
	}
}

// Pending returns the number of tasks currently queued or running.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			p.drain(ctx)
			return
		case <-ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, task)
		}
	}
}

func (p *Pool) drain(ctx context.Context) {
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, task)
		default:
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, task deposit.Task) {
	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.pending--
		depth := p.pending
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.SetQueueDepth(depth)
		}
	}()

	err := p.runner.Run(ctx, task)
	if p.metrics != nil {
		p.metrics.ObserveTaskDuration(time.Since(start), err != nil)
	}
	if err != nil {
		logger.Error("dispatch: deposit task returned an error", logger.DepositID(task.DepositID), logger.Err(err))
	}
}

// Dispatcher implements spec.md §4.8: given a submitted submission, it
// CRI-creates one Deposit per target repository (guarding I2) and
// submits each to a Pool.
type Dispatcher struct {
	Store      store.RecordStore
	Pool       *Pool
	CRIOptions cri.Options
}

func New(rs store.RecordStore, pool *Pool) *Dispatcher {
	return &Dispatcher{Store: rs, Pool: pool}
}

// Dispatch runs spec.md §4.8 steps 1-3 for submissionID.
func (d *Dispatcher) Dispatch(ctx context.Context, submissionID string) error {
	submission, err := store.ReadTyped[store.Submission](ctx, d.Store, store.KindSubmission, submissionID)
	if err != nil {
		return err
	}

	for _, repositoryID := range submission.RepositoryIDs {
		dep, created, err := d.ensureDeposit(ctx, submissionID, repositoryID)
		if err != nil {
			logger.ErrorCtx(ctx, "dispatch: failed to arm deposit",
				logger.SubmissionID(submissionID), logger.Repository(repositoryID), logger.Err(err))
			continue
		}
		if !created {
			// A non-terminal deposit already exists for this
			// (submission, repository) pair (I2) — someone else's
			// dispatch (or a prior tick) already owns it.
			continue
		}

		task := deposit.Task{SubmissionID: submissionID, DepositID: dep.ID, RepositoryID: repositoryID}
		d.Pool.Submit(task)
	}
	return nil
}

// ensureDeposit creates a Deposit for (submissionID, repositoryID) iff
// no non-terminal deposit already exists for that pair (spec.md §4.8
// step 2, I2). The existence check below and the Create are not atomic
// with respect to each other, so two concurrent dispatchers can both
// pass the check — the race spec.md §9 edge case 5 describes. That
// race is closed at the store, not here: gormstore enforces a partial
// unique index on (submission_id, repository_id) excluding terminal
// statuses (migrations/0003_unique_active_deposit.up.sql), and memstore
// enforces the same invariant under its single mutex
// (hasActiveDepositLocked), so exactly one of the racing Creates
// succeeds. The loser's Create returns ErrAlreadyExists, and we re-read
// to return the winner's row instead of erroring the whole dispatch.
func (d *Dispatcher) ensureDeposit(ctx context.Context, submissionID, repositoryID string) (*store.Deposit, bool, error) {
	if existing, err := d.findActiveDeposit(ctx, submissionID, repositoryID); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	dep := store.NewDeposit(submissionID, repositoryID)
	id, err := d.Store.Create(ctx, dep)
	if err != nil {
		if store.IsAlreadyExists(err) {
			existing, findErr := d.findActiveDeposit(ctx, submissionID, repositoryID)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	dep.ID = id
	return dep, true, nil
}

// findActiveDeposit returns the non-terminal Deposit for (submissionID,
// repositoryID), or nil if none exists yet.
func (d *Dispatcher) findActiveDeposit(ctx context.Context, submissionID, repositoryID string) (*store.Deposit, error) {
	ids, err := d.Store.FindByAttribute(ctx, store.KindDeposit, "repository_id", repositoryID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		existing, err := store.ReadTyped[store.Deposit](ctx, d.Store, store.KindDeposit, id)
		if err != nil {
			return nil, err
		}
		if existing.SubmissionID != submissionID {
			continue
		}
		if !existing.DepositStatus.IsTerminal() {
			return existing, nil
		}
	}
	return nil, nil
}
