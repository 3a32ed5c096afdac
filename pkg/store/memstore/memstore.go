// Package memstore implements pkg/store.RecordStore as mutex-guarded
// in-memory maps, grounded on the teacher's
// pkg/metadata/store/memory.MemoryMetadataStore shape. It exists for
// unit tests that exercise pkg/cri, pkg/dispatch and friends without
// paying for a SQLite or Postgres connection, and is exercised itself
// by pkg/store/storetest's conformance suite.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// Store is a process-local, concurrency-safe RecordStore.
type Store struct {
	mu   sync.RWMutex
	rows map[store.Kind]map[string]store.Entity
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		rows: map[store.Kind]map[string]store.Entity{
			store.KindSubmission:     {},
			store.KindDeposit:        {},
			store.KindRepository:     {},
			store.KindRepositoryCopy: {},
		},
	}
}

// Create persists a copy of e, assigning it a UUID if it has none.
func (s *Store) Create(ctx context.Context, e store.Entity) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dep, ok := e.(*store.Deposit); ok && s.hasActiveDepositLocked(dep.SubmissionID, dep.RepositoryID) {
		return "", store.NewAlreadyExistsError(string(store.KindDeposit), "")
	}

	id := e.EntityID()
	if id == "" {
		id = uuid.New().String()
		if err := assignID(e, id); err != nil {
			return "", err
		}
	}

	bucket := s.rows[e.EntityKind()]
	if _, exists := bucket[id]; exists {
		return "", store.NewAlreadyExistsError(string(e.EntityKind()), id)
	}

	bucket[id] = clone(e)
	return id, nil
}

// hasActiveDepositLocked reports whether a non-terminal Deposit already
// exists for (submissionID, repositoryID), mirroring gormstore's partial
// unique index on the same pair (I2). Callers must hold s.mu.
func (s *Store) hasActiveDepositLocked(submissionID, repositoryID string) bool {
	for _, row := range s.rows[store.KindDeposit] {
		dep := row.(*store.Deposit)
		if dep.SubmissionID == submissionID && dep.RepositoryID == repositoryID && !dep.DepositStatus.IsTerminal() {
			return true
		}
	}
	return false
}

// Read returns a copy of the stored entity for kind/id.
func (s *Store) Read(ctx context.Context, kind store.Kind, id string) (store.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.rows[kind]
	if !ok {
		return nil, fmt.Errorf("memstore: unknown entity kind %q", kind)
	}
	row, ok := bucket[id]
	if !ok {
		return nil, store.NewNotFoundError(string(kind), id)
	}
	return clone(row), nil
}

// Update applies the same observed-version CAS semantics as gormstore
// (spec.md I4): e's EntityVersion() must match the stored version, or
// Update fails with ErrVersionConflict without mutating the stored row.
func (s *Store) Update(ctx context.Context, e store.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.rows[e.EntityKind()]
	id := e.EntityID()
	current, ok := bucket[id]
	if !ok {
		return store.NewNotFoundError(string(e.EntityKind()), id)
	}
	if current.EntityVersion() != e.EntityVersion() {
		return store.NewVersionConflictError(string(e.EntityKind()), id)
	}

	updated := clone(e)
	if err := bumpVersion(updated); err != nil {
		return err
	}
	bucket[id] = updated
	if err := bumpVersion(e); err != nil {
		return err
	}
	return nil
}

// FindByAttribute returns ids of rows of the given kind whose named
// field equals value. field uses the same snake_case convention as
// gormstore.FindByAttribute's SQL columns, so callers can query either
// backend with one set of field names; matching is a reflection-free
// type switch rather than an actual index.
func (s *Store) FindByAttribute(ctx context.Context, kind store.Kind, field string, value any) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket, ok := s.rows[kind]
	if !ok {
		return nil, fmt.Errorf("memstore: unknown entity kind %q", kind)
	}

	var ids []string
	for id, row := range bucket {
		match, err := matchesAttribute(row, field, value)
		if err != nil {
			return nil, err
		}
		if match {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// IndexWait returns immediately once the row is visible; memstore
// writes are immediately consistent with reads under its single mutex.
func (s *Store) IndexWait(ctx context.Context, kind store.Kind, id string, timeout time.Duration) error {
	_, err := s.Read(ctx, kind, id)
	return err
}

// Healthcheck always succeeds; there is no external dependency.
func (s *Store) Healthcheck(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (s *Store) Close() error { return nil }

var _ store.RecordStore = (*Store)(nil)
