// Package status implements the status resolver (spec.md §4.9):
// fetching a deposit's status document, mapping its SWORD category
// term to a resolved status via the repository's configured
// statusMap, and CRI-updating the deposit accordingly. Unlike the
// transport connect loop (pkg/retry, C3) or the CRI version-conflict
// retry (pkg/cri, C2), this retry schedule spans up to seven days and
// must survive process restarts, so its state — attempt count, first
// attempt time, next eligible time — is persisted on the Deposit row
// itself rather than held in an in-process retry loop; Poll performs
// exactly one attempt per call and is meant to be invoked by a
// scheduler (C11's event ingress, or a periodic sweep) rather than
// blocked on.
package status

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/internal/telemetry"
	"github.com/eclipse-pass/depositsvc/pkg/cri"
	"github.com/eclipse-pass/depositsvc/pkg/metrics"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// Resolved is one of the four outcomes a status document term maps to
// (spec.md §4.9 step 2 / §6 statusMapping).
type Resolved string

const (
	ResolvedAccepted   Resolved = "accepted"
	ResolvedRejected   Resolved = "rejected"
	ResolvedInProgress Resolved = "inProgress"
	ResolvedFailed     Resolved = "failed"
)

// RetryPolicy bounds the poll schedule (spec.md §4.9 step 5: "initial
// delay 10s, factor 2, cap 1h, total cap 7d").
type RetryPolicy struct {
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
	TotalCap     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = 10 * time.Second
	}
	if p.Factor <= 0 {
		p.Factor = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = time.Hour
	}
	if p.TotalCap <= 0 {
		p.TotalCap = 7 * 24 * time.Hour
	}
	return p
}

// nextDelay returns InitialDelay*Factor^attempt, capped at MaxDelay:
// the delay scheduled after the (attempt+1)-th unresolved poll, so the
// first retry waits InitialDelay.
func (p RetryPolicy) nextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.Factor
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(delay)
}

// Mapping is one repository's status document configuration (spec.md
// §6 statusMapping: {scheme, map: {term -> resolved}}).
type Mapping struct {
	Scheme string
	Terms  map[string]Resolved
}

// Document is the minimal Atom/SWORD statement shape the resolver
// reads: a feed or entry whose <category> elements carry the deposit's
// state (spec.md §6: "Terms are extracted from
// category[@scheme=statusMapping.scheme]/@term in document order").
type document struct {
	Categories []category `xml:"category"`
}

type category struct {
	Scheme string `xml:"scheme,attr"`
	Term   string `xml:"term,attr"`
}

// Fetcher retrieves the bytes of a deposit's status document.
type Fetcher interface {
	Fetch(ctx context.Context, statusRef string) ([]byte, error)
}

// HTTPFetcher fetches a status document over HTTP(S) — the only
// transport a SWORD statement link ever uses.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, statusRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusRef, nil)
	if err != nil {
		return nil, fmt.Errorf("status: building request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status: fetching %s: %w", statusRef, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status: %s returned %d", statusRef, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// MappingResolver looks up the Mapping to use for a deposit's
// repository (spec.md §6: statusMapping lives in the repository
// configuration). Kept as a narrow interface, like pkg/deposit's
// Resolver, so this package does not import pkg/config (whose
// ConfigResolver implements it).
type MappingResolver interface {
	MappingFor(ctx context.Context, repositoryID string) (Mapping, error)
}

// Resolver implements spec.md §4.9.
type Resolver struct {
	Store       store.RecordStore
	Fetcher     Fetcher
	Mappings    MappingResolver
	RetryPolicy RetryPolicy
	CRIOptions  cri.Options
	Metrics     metrics.StatusMetrics
}

func New(rs store.RecordStore, fetcher Fetcher, mappings MappingResolver) *Resolver {
	return &Resolver{Store: rs, Fetcher: fetcher, Mappings: mappings, RetryPolicy: RetryPolicy{}.withDefaults()}
}

// Poll performs one status-resolution attempt for depositID (spec.md
// §4.9). It is a no-op if the deposit isn't submitted, carries no
// statusRef, or isn't yet due for its next attempt.
func (r *Resolver) Poll(ctx context.Context, depositID string) error {
	dep, err := store.ReadTyped[store.Deposit](ctx, r.Store, store.KindDeposit, depositID)
	if err != nil {
		return fmt.Errorf("status: reading deposit %s: %w", depositID, err)
	}
	if dep.DepositStatus != store.DepositSubmitted || dep.DepositStatusRef == "" {
		return nil
	}
	if dep.NextPollAt != nil && timeNow().Before(*dep.NextPollAt) {
		return nil
	}

	ctx, span := telemetry.StartStatusPollSpan(ctx, depositID, dep.RepositoryID)
	defer span.End()

	start := timeNow()

	body, err := r.Fetcher.Fetch(ctx, dep.DepositStatusRef)
	if err != nil {
		// Status-document failure (spec.md §7 taxonomy #6): treated the
		// same as an unresolved attempt, subject to the same bounded
		// retry/exhaustion path as an ambiguous or unknown term.
		err := r.scheduleRetry(ctx, dep, fmt.Errorf("fetching status document: %w", err))
		r.observePoll(ctx, "retryScheduled", start)
		return err
	}

	mapping, err := r.Mappings.MappingFor(ctx, dep.RepositoryID)
	if err != nil {
		return fmt.Errorf("status: resolving mapping for repository %s: %w", dep.RepositoryID, err)
	}

	var doc document
	if err := xml.Unmarshal(body, &doc); err != nil {
		scheduleErr := r.scheduleRetry(ctx, dep, fmt.Errorf("parsing status document: %w", err))
		r.observePoll(ctx, "retryScheduled", start)
		return scheduleErr
	}

	resolved := resolve(doc, mapping)

	switch resolved {
	case ResolvedAccepted:
		err := r.markAccepted(ctx, dep)
		r.observePoll(ctx, "accepted", start)
		return err
	case ResolvedRejected:
		err := r.markRejected(ctx, dep)
		r.observePoll(ctx, "rejected", start)
		return err
	case ResolvedFailed:
		err := r.markFailed(ctx, dep, fmt.Errorf("status document mapped to failed"))
		r.observePoll(ctx, "failed", start)
		return err
	default:
		err := r.scheduleRetry(ctx, dep, nil)
		r.observePoll(ctx, "retryScheduled", start)
		return err
	}
}

func (r *Resolver) observePoll(ctx context.Context, outcome string, start time.Time) {
	if r.Metrics != nil {
		r.Metrics.ObservePoll(outcome, timeNow().Sub(start))
	}
	telemetry.SetAttributes(ctx, telemetry.Outcome(outcome))
}

// resolve extracts the matching category terms in document order and
// applies spec.md §4.9 step 3's deterministic priority (rejected >
// accepted > inProgress) when more than one is present. An unknown or
// absent term is inProgress, never rejected.
func resolve(doc document, mapping Mapping) Resolved {
	var sawAccepted, sawInProgress bool
	for _, c := range doc.Categories {
		if c.Scheme != mapping.Scheme {
			continue
		}
		switch mapping.Terms[c.Term] {
		case ResolvedRejected:
			return ResolvedRejected
		case ResolvedFailed:
			return ResolvedFailed
		case ResolvedAccepted:
			sawAccepted = true
		default:
			sawInProgress = true
		}
	}
	if sawAccepted {
		return ResolvedAccepted
	}
	if sawInProgress {
		return ResolvedInProgress
	}
	return ResolvedInProgress
}

func (r *Resolver) markAccepted(ctx context.Context, dep *store.Deposit) error {
	existing, err := r.Store.FindByAttribute(ctx, store.KindRepositoryCopy, "deposit_id", dep.ID)
	if err != nil {
		return fmt.Errorf("status: checking for existing repository copy: %w", err)
	}
	if len(existing) == 0 {
		copy := store.NewRepositoryCopy(dep.SubmissionID, dep.ID, store.CopyAccepted, nil)
		if _, err := r.Store.Create(ctx, copy); err != nil {
			return fmt.Errorf("status: creating repository copy: %w", err)
		}
	}

	now := timeNow()
	result := cri.PerformCritical(ctx, r.Store, store.KindDeposit, dep.ID,
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
		return fmt.Errorf("status: marking %s accepted: %w", dep.ID, result.Err)
	}
	logger.InfoCtx(ctx, "status: deposit accepted", logger.DepositID(dep.ID))
	return nil
}

func (r *Resolver) markRejected(ctx context.Context, dep *store.Deposit) error {
	now := timeNow()
	result := cri.PerformCritical(ctx, r.Store, store.KindDeposit, dep.ID,
		func(d *store.Deposit) bool { return !d.DepositStatus.IsTerminal() },
		func(d *store.Deposit) *store.Deposit {
			d.DepositStatus = store.DepositRejected
			d.ResolvedAt = &now
			return d
		},
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositRejected },
		r.CRIOptions,
	)
	if result.Err != nil {
		return fmt.Errorf("status: marking %s rejected: %w", dep.ID, result.Err)
	}
	logger.InfoCtx(ctx, "status: deposit rejected", logger.DepositID(dep.ID))
	return nil
}

func (r *Resolver) markFailed(ctx context.Context, dep *store.Deposit, cause error) error {
	result := cri.PerformCritical(ctx, r.Store, store.KindDeposit, dep.ID,
		func(d *store.Deposit) bool { return !d.DepositStatus.IsTerminal() },
		func(d *store.Deposit) *store.Deposit {
			d.DepositStatus = store.DepositFailed
			d.FailureMessage = cause.Error()
			return d
		},
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositFailed },
		r.CRIOptions,
	)
	if result.Err != nil {
		return fmt.Errorf("status: marking %s failed: %w", dep.ID, result.Err)
	}
	logger.WarnCtx(ctx, "status: deposit failed", logger.DepositID(dep.ID), logger.Err(cause))
	return nil
}

// scheduleRetry advances dep's poll bookkeeping (spec.md §4.9 step 5).
// cause is nil for a plain "still inProgress" outcome, or the error
// that prevented resolution this attempt; either way the retry
// schedule is identical, since an unparseable document and a
// still-pending deposit are indistinguishable from the scheduler's
// point of view.
func (r *Resolver) scheduleRetry(ctx context.Context, dep *store.Deposit, cause error) error {
	policy := r.RetryPolicy.withDefaults()
	now := timeNow()

	first := dep.FirstPolledAt
	if first == nil {
		first = &now
	}
	if now.Sub(*first) >= policy.TotalCap {
		exhausted := cause
		if exhausted == nil {
			exhausted = fmt.Errorf("status: retry window exhausted without resolution")
		}
		return r.markFailed(ctx, dep, exhausted)
	}

	attempts := dep.PollAttempts + 1
	next := now.Add(policy.nextDelay(dep.PollAttempts))

	result := cri.PerformCritical(ctx, r.Store, store.KindDeposit, dep.ID,
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositSubmitted },
		func(d *store.Deposit) *store.Deposit {
			d.PollAttempts = attempts
			d.FirstPolledAt = first
			d.NextPollAt = &next
			return d
		},
		func(d *store.Deposit) bool { return d.PollAttempts == attempts },
		r.CRIOptions,
	)
	if result.Err != nil {
		return fmt.Errorf("status: scheduling retry for %s: %w", dep.ID, result.Err)
	}
	if r.Metrics != nil {
		r.Metrics.RecordRetryAttempt(attempts)
	}
	if cause != nil {
		logger.WarnCtx(ctx, "status: attempt failed, retrying", logger.DepositID(dep.ID), logger.Attempt(attempts), logger.Err(cause))
	} else {
		logger.DebugCtx(ctx, "status: still in progress, retrying", logger.DepositID(dep.ID), logger.Attempt(attempts))
	}
	return nil
}

// timeNow is a seam for deterministic tests.
var timeNow = func() time.Time { return time.Now().UTC() }
