package store

import (
	"context"
	"time"
)

// RecordStore is the record-store client contract (spec.md §4.1): typed
// CRUD plus attribute-index lookup over the shared record store. Two
// backends implement it — pkg/store/gormstore (Postgres/SQLite) for
// production, and pkg/store/memstore for tests — so the deposit
// pipeline never depends on a concrete database driver.
//
// Update fails with a *Error{Code: ErrVersionConflict} when the
// entity's Version no longer matches the stored row; this is the
// optimistic-concurrency guard the CRI (pkg/cri) builds on (I4).
//
// Lookups through FindByAttribute are eventually consistent: a
// secondary index may lag a recent Create. Callers MUST NOT treat a
// negative lookup as proof of non-existence until IndexWait has
// elapsed (spec.md §4.1).
type RecordStore interface {
	// Create persists a new entity, assigning it an id if it has none,
	// and returns the assigned id.
	Create(ctx context.Context, e Entity) (string, error)

	// Read fetches the current version of the entity identified by
	// kind and id.
	Read(ctx context.Context, kind Kind, id string) (Entity, error)

	// Update persists e's in-memory mutations at the version e carries.
	// It fails with ErrVersionConflict if a concurrent writer already
	// advanced the stored version, and bumps e's Version on success.
	Update(ctx context.Context, e Entity) error

	// FindByAttribute returns the ids of entities of the given kind
	// whose field equals value.
	FindByAttribute(ctx context.Context, kind Kind, field string, value any) ([]string, error)

	// IndexWait blocks (bounded by timeout) until id is visible to
	// FindByAttribute lookups, or returns an error if it never becomes
	// visible within the window.
	IndexWait(ctx context.Context, kind Kind, id string, timeout time.Duration) error

	// Healthcheck verifies connectivity to the backing store.
	Healthcheck(ctx context.Context) error

	// Close releases any backend connections.
	Close() error
}

// ReadTyped fetches and type-asserts an entity of the given kind,
// sparing callers the cast at every call site. T must be the concrete
// entity type backing kind (e.g. ReadTyped[Deposit](ctx, rs, KindDeposit, id)).
func ReadTyped[T any](ctx context.Context, rs RecordStore, kind Kind, id string) (*T, error) {
	e, err := rs.Read(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	t, ok := any(e).(*T)
	if !ok {
		return nil, NewInvalidArgumentError("entity kind/type mismatch in ReadTyped")
	}
	return t, nil
}
