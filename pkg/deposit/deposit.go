// Package deposit implements the deposit task (spec.md §4.7): the
// state machine that takes one (submission, deposit, repository)
// triple from a null/failed deposit through assembly and transmission
// to submitted or accepted, bubbling failures to the error handler
// (C12). Its worker shape — a task run to completion on a borrowed
// goroutine, reporting its outcome rather than panicking — is grounded
// on the per-job unit of work pkg/flusher/background.go schedules onto
// its pool, generalized from a single fixed upload operation to this
// package's multi-step CRI/assemble/transmit sequence.
package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/internal/telemetry"
	"github.com/eclipse-pass/depositsvc/pkg/assemble"
	"github.com/eclipse-pass/depositsvc/pkg/cri"
	"github.com/eclipse-pass/depositsvc/pkg/errhandler"
	"github.com/eclipse-pass/depositsvc/pkg/metrics"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/store"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
)

// Task identifies one deposit task's (submission, deposit, repository)
// triple (spec.md §4.7).
type Task struct {
	SubmissionID string
	DepositID    string
	RepositoryID string
}

// RepositoryBinding bundles everything a deposit task needs to
// assemble and transmit a package for one repository: the packaging
// dialect, the transport binding, and the hints/options resolved from
// that repository's configuration (spec.md §6 RepositoryConfig).
type RepositoryBinding struct {
	Assembler       assemble.Assembler
	Transport       transport.Binding
	Hints           transport.Hints
	AssembleOptions assemble.Options
}

// Resolver maps a repository's configuration key to the concrete
// binding a deposit task transmits through. pkg/config's
// RepositoryConfig is the out-of-scope (spec.md §1 non-goal) source of
// truth this is built from; Resolver keeps pkg/deposit decoupled from
// that loading concern.
type Resolver interface {
	Resolve(ctx context.Context, repositoryKey string) (RepositoryBinding, error)
}

// SubmissionLoader materializes the opaque submission content model
// (spec.md §1 non-goal) into the assembler's view of it.
type SubmissionLoader interface {
	Load(ctx context.Context, sub *store.Submission) (assemble.Submission, error)
}

// ErrorHandler routes a classified pipeline error to its CRI fail path
// (pkg/errhandler implements this; spec.md §4.12).
type ErrorHandler interface {
	Handle(ctx context.Context, err error)
}

// Runner executes deposit tasks against a shared record store.
type Runner struct {
	Store      store.RecordStore
	Resolver   Resolver
	Loader     SubmissionLoader
	ErrHandler ErrorHandler
	CRIOptions cri.Options
	PkgMetrics metrics.PackageStreamMetrics
	Archiver   pkgstream.ArchiveSink
}

func New(rs store.RecordStore, resolver Resolver, loader SubmissionLoader, errHandler ErrorHandler) *Runner {
	return &Runner{Store: rs, Resolver: resolver, Loader: loader, ErrHandler: errHandler}
}

// Run executes one deposit task to completion (spec.md §4.7 steps
// 1-6). It returns nil both when the task finishes successfully and
// when its precondition simply didn't hold (not an error — spec.md §7
// taxonomy #1, "normal control signal"). Failures from reading,
// resolving, loading, assembling and transmitting have already been
// bubbled to r.ErrHandler before Run returns. Errors from the arming
// CRI and from the final submitted/accepted CRI update are returned
// as-is and are not passed to r.ErrHandler.
func (r *Runner) Run(ctx context.Context, task Task) error {
	ctx, span := telemetry.StartDepositTaskSpan(ctx, task.SubmissionID, task.DepositID, task.RepositoryID)
	defer span.End()

	armed, deposit, err := r.arm(ctx, task.DepositID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("deposit: arming %s: %w", task.DepositID, err)
	}
	if !armed {
		logger.DebugCtx(ctx, "deposit: precondition not met, skipping", logger.DepositID(task.DepositID))
		return nil
	}

	lc := logger.NewLogContext("deposit").WithSubmission(task.SubmissionID).WithDeposit(task.DepositID, task.RepositoryID)
	ctx = logger.WithContext(ctx, lc)

	submission, err := store.ReadTyped[store.Submission](ctx, r.Store, store.KindSubmission, task.SubmissionID)
	if err != nil {
		return r.bubble(ctx, deposit, fmt.Errorf("reading submission: %w", err))
	}

	repository, err := store.ReadTyped[store.Repository](ctx, r.Store, store.KindRepository, task.RepositoryID)
	if err != nil {
		return r.bubble(ctx, deposit, fmt.Errorf("reading repository: %w", err))
	}

	binding, err := r.Resolver.Resolve(ctx, repository.RepositoryKey)
	if err != nil {
		return r.bubble(ctx, deposit, fmt.Errorf("resolving repository binding: %w", err))
	}

	content, err := r.Loader.Load(ctx, submission)
	if err != nil {
		return r.bubble(ctx, deposit, fmt.Errorf("loading submission content: %w", err))
	}

	// Packaging failure (spec.md §7 taxonomy #5): a bad checksum,
	// missing declared file, or unknown spec surfaces here, or later
	// through the package stream's pipe while the transport drains it.
	stream, err := binding.Assembler.Assemble(ctx, content, binding.AssembleOptions)
	if err != nil {
		return r.bubble(ctx, deposit, fmt.Errorf("assembling package: %w", err))
	}
	stream.SetMetrics(r.PkgMetrics)
	stream.SetArchiveSink(r.Archiver, task.DepositID)

	session, err := binding.Transport.Open(ctx, binding.Hints)
	if err != nil {
		return r.bubble(ctx, deposit, fmt.Errorf("opening transport session: %w", err))
	}
	defer session.Close()

	resp, err := session.Send(ctx, stream, stream.Metadata())
	if err != nil {
		return r.bubble(ctx, deposit, fmt.Errorf("transmitting package: %w", err))
	}
	if !resp.Success {
		cause := resp.Err
		if cause == nil {
			cause = fmt.Errorf("transport reported failure without a cause")
		}
		return r.bubble(ctx, deposit, cause)
	}

	if resp.StatusRef != "" {
		return r.markSubmitted(ctx, task.DepositID, resp.StatusRef)
	}
	return r.markAccepted(ctx, task, resp.ExternalID)
}

// arm performs spec.md §4.7 step 1: the precondition CRI checking
// depositStatus ∈ {null, failed}. It mutates nothing — the actual
// transition happens once assembly and transmission have an outcome —
// so mutation and postcondition are both identity.
func (r *Runner) arm(ctx context.Context, depositID string) (bool, *store.Deposit, error) {
	result := cri.PerformCritical(ctx, r.Store, store.KindDeposit, depositID,
		func(d *store.Deposit) bool { return d.DepositStatus.ArmableForDispatch() },
		func(d *store.Deposit) *store.Deposit { return d },
		func(d *store.Deposit) bool { return true },
		r.CRIOptions,
	)
	if result.Err != nil {
		return false, nil, result.Err
	}
	return result.Success, result.Resource, nil
}

// markSubmitted performs spec.md §4.7 step 4.
func (r *Runner) markSubmitted(ctx context.Context, depositID, statusRef string) error {
	now := timeNow()
	result := cri.PerformCritical(ctx, r.Store, store.KindDeposit, depositID,
		func(d *store.Deposit) bool { return !d.DepositStatus.IsTerminal() },
		func(d *store.Deposit) *store.Deposit {
			d.DepositStatus = store.DepositSubmitted
			d.DepositStatusRef = statusRef
			d.SubmittedAt = &now
			return d
		},
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositSubmitted },
		r.CRIOptions,
	)
	if result.Err != nil {
		return fmt.Errorf("deposit: marking %s submitted: %w", depositID, result.Err)
	}
	logger.InfoCtx(ctx, "deposit: submitted", logger.DepositID(depositID), logger.StatusRef(statusRef))
	return nil
}

// markAccepted performs spec.md §4.7 step 5: CRI-update the deposit to
// accepted and create its RepositoryCopy. The copy is created first,
// outside the CRI, and only if none exists yet for this deposit, so a
// version-conflict retry of the CRI update never creates a duplicate
// copy. The two writes are not atomic: if the CRI update fails, the
// copy stays in the store while the deposit is not accepted; a later
// run finds that copy and does not create a second one.
func (r *Runner) markAccepted(ctx context.Context, task Task, externalID string) error {
	existing, err := r.Store.FindByAttribute(ctx, store.KindRepositoryCopy, "deposit_id", task.DepositID)
	if err != nil {
		return fmt.Errorf("deposit: checking for existing repository copy: %w", err)
	}
	if len(existing) == 0 {
		copy := store.NewRepositoryCopy(task.SubmissionID, task.DepositID, store.CopyAccepted, externalIDsOf(externalID))
		if _, err := r.Store.Create(ctx, copy); err != nil {
			return fmt.Errorf("deposit: creating repository copy: %w", err)
		}
	}

	now := timeNow()
	result := cri.PerformCritical(ctx, r.Store, store.KindDeposit, task.DepositID,
		func(d *store.Deposit) bool { return !d.DepositStatus.IsTerminal() },
		func(d *store.Deposit) *store.Deposit {
			d.DepositStatus = store.DepositAccepted
			d.ResolvedAt = &now
			return d
		},
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositAccepted },
		r.CRIOptions,
	)
	if result.Err != nil {
		return fmt.Errorf("deposit: marking %s accepted: %w", task.DepositID, result.Err)
	}
	logger.InfoCtx(ctx, "deposit: accepted", logger.DepositID(task.DepositID), logger.ExternalID(externalID))
	return nil
}

// bubble performs spec.md §4.7 step 6: it hands a DepositError to the
// error handler, which owns the actual CRI-fail (pkg/errhandler).
func (r *Runner) bubble(ctx context.Context, deposit *store.Deposit, cause error) error {
	wrapped := errhandler.NewDepositError(deposit, cause)
	r.ErrHandler.Handle(ctx, wrapped)
	telemetry.RecordError(ctx, wrapped)
	logger.WarnCtx(ctx, "deposit: task failed", logger.DepositID(deposit.ID), logger.Err(cause))
	return wrapped
}

func externalIDsOf(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

// timeNow is a seam so tests can observe a deposit's SubmittedAt /
// ResolvedAt deterministically.
var timeNow = func() time.Time { return time.Now().UTC() }
