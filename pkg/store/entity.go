package store

import "time"

// Kind names the record-store entity types. FindByAttribute and
// generic CRI callers pass these to disambiguate lookups across
// entity tables/collections.
type Kind string

const (
	KindSubmission     Kind = "submission"
	KindDeposit        Kind = "deposit"
	KindRepository     Kind = "repository"
	KindRepositoryCopy Kind = "repository_copy"
)

// Entity is implemented by every record-store entity. The version is
// the monotonic counter the CRI (pkg/cri) compares against on update
// (spec invariant I4): a successful Update requires the version
// observed during the Read that produced the mutation.
type Entity interface {
	EntityID() string
	EntityKind() Kind
	EntityVersion() int64
	setVersion(int64)
}

// base carries the fields every entity shares: id, version, and
// timestamps. Embedded (not aliased) so each concrete entity gets its
// own GORM table while reusing the version-CAS plumbing.
type base struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (b *base) EntityVersion() int64 { return b.Version }
func (b *base) setVersion(v int64)   { b.Version = v }
