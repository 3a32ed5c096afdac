package store

// Repository is a target archive: id, human name, and the opaque key
// used to look up its RepositoryConfig (protocol binding, assembly
// spec, auth realms) at runtime (spec.md §3).
type Repository struct {
	base

	Name          string `gorm:"not null"`
	RepositoryKey string `gorm:"type:varchar(128);not null;uniqueIndex"`
}

func (r *Repository) EntityID() string { return r.ID }
func (r *Repository) EntityKind() Kind { return KindRepository }

// NewRepository constructs a Repository bound to a configuration key.
func NewRepository(name, repositoryKey string) *Repository {
	return &Repository{
		base:          base{Version: 1},
		Name:          name,
		RepositoryKey: repositoryKey,
	}
}

// CopyStatus is the lifecycle state of a RepositoryCopy (spec.md §3).
type CopyStatus string

const (
	CopyInProgress CopyStatus = "inProgress"
	CopyAccepted   CopyStatus = "accepted"
	CopyRejected   CopyStatus = "rejected"
	CopyComplete   CopyStatus = "complete"
)

// RepositoryCopy is evidence that a repository accepted custody of a
// submission's package, carrying external identifiers assigned by the
// archive (spec.md §3).
type RepositoryCopy struct {
	base

	SubmissionID string `gorm:"type:varchar(36);not null;index"`
	DepositID    string `gorm:"type:varchar(36);not null;index"`

	CopyStatus  CopyStatus `gorm:"type:varchar(16);not null"`
	ExternalIDs StringList `gorm:"type:text"`
}

func (c *RepositoryCopy) EntityID() string { return c.ID }
func (c *RepositoryCopy) EntityKind() Kind { return KindRepositoryCopy }

// NewRepositoryCopy constructs a RepositoryCopy recording a transport
// or status-resolver success for a deposit.
func NewRepositoryCopy(submissionID, depositID string, status CopyStatus, externalIDs []string) *RepositoryCopy {
	return &RepositoryCopy{
		base:         base{Version: 1},
		SubmissionID: submissionID,
		DepositID:    depositID,
		CopyStatus:   status,
		ExternalIDs:  StringList(externalIDs),
	}
}
