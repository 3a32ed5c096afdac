// Package ingress implements the event subscriber (spec.md §4.11): a
// policy-filtered consumer of change notifications that drives the
// dispatcher (C8) and status resolver (C9) in response to submission
// and deposit writes, rather than those stages polling the record
// store themselves. The broker/subscription shape (buffered per-
// subscriber channel, context-scoped worker goroutines, graceful
// drain on shutdown) is grounded on the bounded-worker idiom
// pkg/flusher/background.go uses for its own queue, generalized here
// to an arbitrary upstream Source rather than a fixed upload request.
package ingress

import (
	"context"
	"sync"
	"time"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// Kind distinguishes a change notification's event type.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
)

// Event identifies one entity change: its kind of entity, its id, and
// what happened to it.
type Event struct {
	EntityKind store.Kind
	EntityID   string
	Kind       Kind
}

// Source is an upstream stream of change notifications. Ack reports
// that ev was fully processed (or deliberately dropped by the policy
// filter) and may be safely committed; a source backed by a durable
// log uses this to advance an offset. A Source that does not implement
// durable commit may treat Ack as a no-op — spec.md §4.11 explicitly
// allows uncommitted events to be redelivered.
type Source interface {
	Events() <-chan Event
	Ack(ctx context.Context, ev Event) error
}

// Policy decides whether an event is worth dispatching at all, per
// spec.md §4.11's "accepts only events whose entity type is in the
// configured set... and whose kind is in the accepted set".
type Policy struct {
	EntityKinds map[store.Kind]bool
	Kinds       map[Kind]bool
}

// DefaultPolicy accepts submission and deposit events of every kind,
// which is this service's only configured entity-type/kind set.
func DefaultPolicy() Policy {
	return Policy{
		EntityKinds: map[store.Kind]bool{store.KindSubmission: true, store.KindDeposit: true},
		Kinds:       map[Kind]bool{KindCreated: true, KindModified: true},
	}
}

func (p Policy) accepts(ev Event) bool {
	if len(p.EntityKinds) > 0 && !p.EntityKinds[ev.EntityKind] {
		return false
	}
	if len(p.Kinds) > 0 && !p.Kinds[ev.Kind] {
		return false
	}
	return true
}

// Dispatcher is satisfied by pkg/dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, submissionID string) error
}

// StatusResolver is satisfied by pkg/status.Resolver.
type StatusResolver interface {
	Poll(ctx context.Context, depositID string) error
}

// Config configures a Subscriber.
type Config struct {
	Policy       Policy
	Workers      int
	DrainTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
	if c.Policy.EntityKinds == nil && c.Policy.Kinds == nil {
		c.Policy = DefaultPolicy()
	}
	return c
}

// Subscriber consumes a Source, filters events through a Policy, and
// routes passing events to the dispatcher or status resolver.
type Subscriber struct {
	store    store.RecordStore
	source   Source
	dispatch Dispatcher
	resolve  StatusResolver
	cfg      Config

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.Mutex
	started   bool
}

func New(rs store.RecordStore, source Source, dispatch Dispatcher, resolve StatusResolver, cfg Config) *Subscriber {
	return &Subscriber{
		store:    rs,
		source:   source,
		dispatch: dispatch,
		resolve:  resolve,
		cfg:      cfg.withDefaults(),
	}
}

// Start launches the subscriber's worker pool. Calling Start more
// than once is a no-op.
func (s *Subscriber) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})
	s.mu.Unlock()

	logger.Info("ingress: starting", "workers", s.cfg.Workers)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	go func() {
		s.wg.Wait()
		close(s.stoppedCh)
	}()
}

// Stop signals every worker to exit after its in-flight event
// finishes, waiting up to the configured drain timeout (spec.md
// §4.11: "completes in-flight tasks (best effort, with a drain
// timeout), then stops").
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stopCh := s.stopCh
	stoppedCh := s.stoppedCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-stoppedCh:
	case <-time.After(s.cfg.DrainTimeout):
		logger.Warn("ingress: stop timed out waiting for in-flight events to drain")
	}
}

func (s *Subscriber) worker(ctx context.Context) {
	defer s.wg.Done()
	events := s.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

// handle implements spec.md §4.11's filter-then-route step. A handler
// error is logged but never re-queued here — the next tick of C8/C9's
// own CRI preconditions is what makes redelivery safe to ignore.
func (s *Subscriber) handle(ctx context.Context, ev Event) {
	if !s.cfg.Policy.accepts(ev) {
		s.ack(ctx, ev)
		return
	}

	var err error
	switch {
	case ev.EntityKind == store.KindSubmission:
		err = s.handleSubmission(ctx, ev)
	case ev.EntityKind == store.KindDeposit && ev.Kind == KindModified:
		err = s.handleDeposit(ctx, ev)
	}

	if err != nil {
		logger.ErrorCtx(ctx, "ingress: event handling failed",
			logger.EntityKind(string(ev.EntityKind)), logger.Err(err))
	}
	s.ack(ctx, ev)
}

func (s *Subscriber) handleSubmission(ctx context.Context, ev Event) error {
	sub, err := store.ReadTyped[store.Submission](ctx, s.store, store.KindSubmission, ev.EntityID)
	if err != nil {
		return err
	}
	if sub.SubmissionStatus != store.SubmissionSubmitted {
		return nil
	}
	return s.dispatch.Dispatch(ctx, ev.EntityID)
}

func (s *Subscriber) handleDeposit(ctx context.Context, ev Event) error {
	dep, err := store.ReadTyped[store.Deposit](ctx, s.store, store.KindDeposit, ev.EntityID)
	if err != nil {
		return err
	}
	if dep.DepositStatus != store.DepositSubmitted || dep.DepositStatusRef == "" {
		return nil
	}
	return s.resolve.Poll(ctx, ev.EntityID)
}

func (s *Subscriber) ack(ctx context.Context, ev Event) {
	if err := s.source.Ack(ctx, ev); err != nil {
		logger.WarnCtx(ctx, "ingress: ack failed, event may be redelivered", logger.Err(err))
	}
}
