package store

import "time"

// DepositStatus is the lifecycle state of a Deposit (spec.md §4.7).
//
//	null ──assemble+submit──▶ submitted ──poll:archived──▶ accepted
//	 ▲                            │                          │
//	 └────────── fail ◀────────── failed ◀── poll:withdrawn ─┘  (→ rejected)
type DepositStatus string

const (
	// DepositNull is the initial/reset state. The empty string, not a
	// named constant value, because spec.md §4.7 step 1's precondition
	// is "depositStatus ∈ {null, failed}" and a freshly created row
	// must satisfy it without an explicit write.
	DepositNull      DepositStatus = ""
	DepositSubmitted DepositStatus = "submitted"
	DepositAccepted  DepositStatus = "accepted"
	DepositRejected  DepositStatus = "rejected"
	DepositFailed    DepositStatus = "failed"
)

var terminalDepositStatuses = map[DepositStatus]bool{
	DepositAccepted: true,
	DepositRejected: true,
}

// IsTerminal reports whether d is a terminal deposit status (I5):
// accepted and rejected are never overwritten.
func (d DepositStatus) IsTerminal() bool { return terminalDepositStatuses[d] }

// ArmableForDispatch reports whether a deposit in this status is
// eligible for a new deposit task (spec.md §4.7 step 1's precondition).
func (d DepositStatus) ArmableForDispatch() bool {
	return d == DepositNull || d == DepositFailed
}

// Deposit is the record of attempting to transfer one Submission's
// package to one Repository (spec.md §3).
type Deposit struct {
	base

	SubmissionID string `gorm:"type:varchar(36);not null;index"`
	RepositoryID string `gorm:"type:varchar(36);not null;index"`

	DepositStatus DepositStatus `gorm:"type:varchar(16);not null;default:''"`

	// DepositStatusRef is the archive-provided status document URL
	// (e.g. a SWORD Atom statement link), set when the transport
	// returns one (spec.md §4.7 step 4).
	DepositStatusRef string

	// FailureMessage carries the throwable's message chain recorded
	// on transport failure (spec.md §4.7 step 6).
	FailureMessage string

	SubmittedAt *time.Time
	ResolvedAt  *time.Time

	// PollAttempts counts status-resolver attempts made against
	// DepositStatusRef so far (spec.md §4.9 step 5's bounded retry).
	PollAttempts int
	// FirstPolledAt anchors the total-cap side of the bounded retry
	// (spec.md §4.9: "total cap 7 d"); nil until the first attempt.
	FirstPolledAt *time.Time
	// NextPollAt is when the status resolver may next attempt
	// DepositStatusRef; nil means "eligible now".
	NextPollAt *time.Time
}

func (d *Deposit) EntityID() string { return d.ID }
func (d *Deposit) EntityKind() Kind { return KindDeposit }

// NewDeposit constructs a Deposit in the null state, ready for a
// deposit task (spec.md §4.8 step 2).
func NewDeposit(submissionID, repositoryID string) *Deposit {
	return &Deposit{
		base:          base{Version: 1},
		SubmissionID:  submissionID,
		RepositoryID:  repositoryID,
		DepositStatus: DepositNull,
	}
}
