package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// Create persists a new entity, assigning it a UUID if it has none.
func (s *Store) Create(ctx context.Context, e store.Entity) (string, error) {
	if err := ensureID(e); err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", store.NewAlreadyExistsError(string(e.EntityKind()), entityID(e))
		}
		return "", fmt.Errorf("gormstore: create %s: %w", e.EntityKind(), err)
	}
	return entityID(e), nil
}

// Read fetches the current row for kind/id into a freshly allocated
// entity of the matching concrete type.
func (s *Store) Read(ctx context.Context, kind store.Kind, id string) (store.Entity, error) {
	dst, err := newEntity(kind)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(dst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NewNotFoundError(string(kind), id)
		}
		return nil, fmt.Errorf("gormstore: read %s %s: %w", kind, id, err)
	}
	return dst, nil
}

// Update writes e's fields at the version it currently carries,
// bumping the stored version by one. Exactly the row matching both id
// and the observed version is updated; if another writer already
// advanced it, zero rows match and Update returns ErrVersionConflict
// (spec.md I4) — the caller (pkg/cri) retries from a fresh Read.
func (s *Store) Update(ctx context.Context, e store.Entity) error {
	observedVersion := e.EntityVersion()
	nextVersion := observedVersion + 1

	// Bump the in-memory version before the write so the struct we pass
	// to Updates carries the new value, then use Select("*") so GORM
	// writes every column including ones intentionally reset to their
	// zero value (e.g. a remediated deposit's status flipping back to
	// the empty "null" state).
	setEntityVersion(e, nextVersion)

	result := s.db.WithContext(ctx).
		Model(e).
		Where("id = ? AND version = ?", entityID(e), observedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(e)
	if result.Error != nil {
		setEntityVersion(e, observedVersion)
		return fmt.Errorf("gormstore: update %s %s: %w", e.EntityKind(), entityID(e), result.Error)
	}
	if result.RowsAffected == 0 {
		setEntityVersion(e, observedVersion)
		return store.NewVersionConflictError(string(e.EntityKind()), entityID(e))
	}
	return nil
}

// FindByAttribute returns ids of rows of the given kind matching
// field = value. field names a column in snake_case (e.g.
// "submission_id"), the same convention pkg/store/memstore's
// FindByAttribute uses, so callers can query either backend with the
// same field name; this function trusts its caller (pkg/cri and
// friends) rather than accepting arbitrary external input.
func (s *Store) FindByAttribute(ctx context.Context, kind store.Kind, field string, value any) ([]string, error) {
	dst, err := newEntitySlice(kind)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where(field+" = ?", value).Find(dst).Error; err != nil {
		return nil, fmt.Errorf("gormstore: find %s by %s: %w", kind, field, err)
	}
	return idsOf(kind, dst), nil
}

// IndexWait polls Read until id becomes visible or timeout elapses.
// GORM's primary-key lookups are read-your-writes consistent on both
// backends this store supports, so in practice this returns
// immediately; it exists to satisfy the RecordStore contract for
// backends (a future distributed store) where a secondary index might
// lag.
func (s *Store) IndexWait(ctx context.Context, kind store.Kind, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := s.Read(ctx, kind, id); err == nil {
			return nil
		} else if !store.IsNotFound(err) {
			return err
		}
		if time.Now().After(deadline) {
			return store.NewNotFoundError(string(kind), id)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func ensureID(e store.Entity) error {
	if entityID(e) != "" {
		return nil
	}
	id := uuid.New().String()
	switch v := e.(type) {
	case *store.Submission:
		v.ID = id
	case *store.Deposit:
		v.ID = id
	case *store.Repository:
		v.ID = id
	case *store.RepositoryCopy:
		v.ID = id
	default:
		return fmt.Errorf("gormstore: unknown entity type %T", e)
	}
	return nil
}

func entityID(e store.Entity) string { return e.EntityID() }

func setEntityVersion(e store.Entity, v int64) {
	switch x := e.(type) {
	case *store.Submission:
		x.Version = v
	case *store.Deposit:
		x.Version = v
	case *store.Repository:
		x.Version = v
	case *store.RepositoryCopy:
		x.Version = v
	}
}

func newEntity(kind store.Kind) (store.Entity, error) {
	switch kind {
	case store.KindSubmission:
		return &store.Submission{}, nil
	case store.KindDeposit:
		return &store.Deposit{}, nil
	case store.KindRepository:
		return &store.Repository{}, nil
	case store.KindRepositoryCopy:
		return &store.RepositoryCopy{}, nil
	default:
		return nil, fmt.Errorf("gormstore: unknown entity kind %q", kind)
	}
}

func newEntitySlice(kind store.Kind) (any, error) {
	switch kind {
	case store.KindSubmission:
		return &[]store.Submission{}, nil
	case store.KindDeposit:
		return &[]store.Deposit{}, nil
	case store.KindRepository:
		return &[]store.Repository{}, nil
	case store.KindRepositoryCopy:
		return &[]store.RepositoryCopy{}, nil
	default:
		return nil, fmt.Errorf("gormstore: unknown entity kind %q", kind)
	}
}

func idsOf(kind store.Kind, slicePtr any) []string {
	var ids []string
	switch kind {
	case store.KindSubmission:
		for _, v := range *slicePtr.(*[]store.Submission) {
			ids = append(ids, v.ID)
		}
	case store.KindDeposit:
		for _, v := range *slicePtr.(*[]store.Deposit) {
			ids = append(ids, v.ID)
		}
	case store.KindRepository:
		for _, v := range *slicePtr.(*[]store.Repository) {
			ids = append(ids, v.ID)
		}
	case store.KindRepositoryCopy:
		for _, v := range *slicePtr.(*[]store.RepositoryCopy) {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value violates unique constraint")
}
