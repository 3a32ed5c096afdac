package store

// SubmissionStatus is the lifecycle state of a Submission (spec.md §3).
type SubmissionStatus string

const (
	SubmissionUnsubmitted SubmissionStatus = "unsubmitted"
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionComplete    SubmissionStatus = "complete"
	SubmissionCancelled   SubmissionStatus = "cancelled"
	SubmissionFailed      SubmissionStatus = "failed"
)

// AggregatedDepositStatus is the submission-level rollup of its
// deposits' statuses (spec.md §4.10).
type AggregatedDepositStatus string

const (
	AggregateNotStarted AggregatedDepositStatus = "notStarted"
	AggregateInProgress AggregatedDepositStatus = "inProgress"
	AggregateAccepted   AggregatedDepositStatus = "accepted"
	AggregateRejected   AggregatedDepositStatus = "rejected"
	AggregateFailed     AggregatedDepositStatus = "failed"
)

// terminalSubmissionStatuses are never overwritten once reached (I5).
var terminalSubmissionStatuses = map[SubmissionStatus]bool{
	SubmissionComplete:  true,
	SubmissionCancelled: true,
}

// IsTerminal reports whether s is a terminal submission status.
func (s SubmissionStatus) IsTerminal() bool { return terminalSubmissionStatuses[s] }

// terminalAggregateStatuses are never overwritten once reached (I5).
var terminalAggregateStatuses = map[AggregatedDepositStatus]bool{
	AggregateAccepted: true,
	AggregateRejected: true,
}

// IsTerminal reports whether a is a terminal aggregated status.
func (a AggregatedDepositStatus) IsTerminal() bool { return terminalAggregateStatuses[a] }

// Submission is a user's request to deposit a manuscript into one or
// more target repositories (spec.md §3).
type Submission struct {
	base

	// RepositoryIDs are the target repositories (store.Repository ids)
	// this submission should be deposited into.
	RepositoryIDs StringList `gorm:"type:text"`

	SubmissionStatus        SubmissionStatus        `gorm:"type:varchar(32);not null;index"`
	AggregatedDepositStatus AggregatedDepositStatus `gorm:"type:varchar(32);not null;default:notStarted"`

	// Metadata and Files are opaque to the core (spec.md §1 non-goal:
	// the submission content model is a supplied value object).
	Metadata RawJSON `gorm:"type:text"`
	Files    RawJSON `gorm:"type:text"`
}

func (s *Submission) EntityID() string { return s.ID }
func (s *Submission) EntityKind() Kind { return KindSubmission }

// NewSubmission constructs a Submission in the unsubmitted state.
func NewSubmission(repositoryIDs []string, metadata, files RawJSON) *Submission {
	return &Submission{
		base:                    base{Version: 1},
		RepositoryIDs:           StringList(repositoryIDs),
		SubmissionStatus:        SubmissionUnsubmitted,
		AggregatedDepositStatus: AggregateNotStarted,
		Metadata:                metadata,
		Files:                   files,
	}
}
