// Package cri implements the critical-repository-interaction primitive
// (spec.md §4.2): an optimistic read-modify-write over pkg/store with
// a precondition, a mutation and a postcondition. It is the sole
// mechanism the deposit pipeline uses to mutate persistent records —
// every "fail deposit" or "mark accepted" action is a PerformCritical
// call — which is what makes I2 (at most one non-terminal deposit per
// submission/repository) and I4 (monotonic version, CAS update) hold
// without a global lock.
//
// The version-conflict retry (step 4) is the one use of the retry
// engine (pkg/retry, C3) that is bounded by attempt count rather than
// wall-clock time, so it drives cenkalti/backoff/v4 directly instead
// of through retry.Await — same library, a shape retry.Await's
// time-budget contract doesn't cover.
package cri

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/internal/telemetry"
	"github.com/eclipse-pass/depositsvc/pkg/metrics"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// DefaultMaxAttempts bounds the version-conflict retry loop (spec.md
// §4.2 step 4's "bounded number of attempts (default 5)").
const DefaultMaxAttempts = 5

// DefaultBackoffBase is the starting delay between conflict retries.
const DefaultBackoffBase = 20 * time.Millisecond

// Precondition reports whether a mutation is allowed to proceed.
type Precondition[T store.Entity] func(e T) bool

// Mutation transforms e in place, or returns a new value; either way
// the returned T is what gets written.
type Mutation[T store.Entity] func(e T) T

// Postcondition reports whether the post-update state is the state
// the caller intended — checked after every successful write because
// a second writer may have interleaved between the write and the
// read-back (spec.md §4.2 step 5).
type Postcondition[T store.Entity] func(e T) bool

// Result is the outcome of PerformCritical.
type Result[T store.Entity] struct {
	// Success is true only when the write succeeded AND Postcondition
	// held on the read-back entity.
	Success bool

	// Resource is the entity as last observed: the pre-mutation read
	// if Precondition failed, or the post-write read-back otherwise.
	Resource T

	// Err carries a transport/store error distinct from a failed
	// Precondition/Postcondition (which are reported via Success=false
	// with Err=nil).
	Err error
}

// Options tunes the conflict-retry loop. The zero value uses the
// package defaults.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration

	// Metrics is optional; a nil value disables instrumentation.
	Metrics metrics.CRIMetrics
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	return o
}

// errVersionConflict signals backoff.Retry to try another attempt;
// every other error it sees is permanent (wrapped in backoff.Permanent)
// so the loop exits immediately instead of retrying a store outage.
var errVersionConflict = errors.New("cri: version conflict")

// readEntity fetches and asserts id's current value as T. Unlike
// store.ReadTyped (whose type parameter is the non-pointer struct,
// e.g. ReadTyped[store.Deposit]), T here is the pointer type every
// PerformCritical caller actually works with — e.g. *store.Deposit —
// since that's what satisfies store.Entity at all (every Entity method
// in pkg/store has a pointer receiver).
func readEntity[T store.Entity](ctx context.Context, rs store.RecordStore, kind store.Kind, id string) (T, error) {
	var zero T
	e, err := rs.Read(ctx, kind, id)
	if err != nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, store.NewInvalidArgumentError("cri: entity kind/type mismatch for " + string(kind))
	}
	return t, nil
}

// PerformCritical runs the CRI algorithm of spec.md §4.2 against id/kind
// in rs:
//
//  1. Read the current entity and its version.
//  2. If precondition(e) is false, return success=false carrying e; no
//     write is attempted.
//  3. Apply mutation(e) to produce e'.
//  4. Update rs at the read version. On ErrVersionConflict, restart
//     from step 1, up to opts.MaxAttempts, with jittered backoff.
//  5. On a successful write, read back e'' and return
//     success=postcondition(e''), carrying e''.
func PerformCritical[T store.Entity](
	ctx context.Context,
	rs store.RecordStore,
	kind store.Kind,
	id string,
	precondition Precondition[T],
	mutation Mutation[T],
	postcondition Postcondition[T],
	opts Options,
) Result[T] {
	opts = opts.withDefaults()

	ctx, span := telemetry.StartCRISpan(ctx, string(kind), id)
	defer span.End()

	var result Result[T]
	attempt := 0

	operation := func() error {
		attempt++
		if opts.Metrics != nil {
			opts.Metrics.ObserveAttempt(string(kind))
		}
		if err := ctx.Err(); err != nil {
			result = Result[T]{Err: err}
			return backoff.Permanent(err)
		}

		observed, err := readEntity[T](ctx, rs, kind, id)
		if err != nil {
			result = Result[T]{Err: err}
			return backoff.Permanent(err)
		}

		if !precondition(observed) {
			result = Result[T]{Success: false, Resource: observed}
			return nil
		}

		mutated := mutation(observed)

		if err := rs.Update(ctx, mutated); err != nil {
			if store.IsVersionConflict(err) {
				result = Result[T]{Resource: mutated, Err: err}
				if opts.Metrics != nil {
					opts.Metrics.ObserveConflict(string(kind))
				}
				logger.DebugCtx(ctx, "cri: version conflict, retrying",
					logger.EntityKind(string(kind)), logger.Attempt(attempt), logger.MaxRetries(opts.MaxAttempts))
				return errVersionConflict
			}
			result = Result[T]{Resource: mutated, Err: err}
			return backoff.Permanent(err)
		}

		readBack, err := readEntity[T](ctx, rs, kind, id)
		if err != nil {
			result = Result[T]{Resource: mutated, Err: err}
			return backoff.Permanent(err)
		}
		result = Result[T]{Success: postcondition(readBack), Resource: readBack}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.BackoffBase
	bo.Multiplier = 2
	bounded := backoff.WithMaxRetries(bo, uint64(opts.MaxAttempts-1))

	if err := backoff.Retry(operation, backoff.WithContext(bounded, ctx)); err != nil && result.Err == nil {
		result.Err = err
	}
	if opts.Metrics != nil {
		opts.Metrics.ObserveOutcome(string(kind), attempt, result.Success)
	}
	span.SetAttributes(telemetry.Attempt(attempt))
	if result.Err != nil {
		telemetry.RecordError(ctx, result.Err)
	}
	return result
}
