// Package errhandler implements the error handler (spec.md §4.12): it
// classifies the typed exceptions the rest of the pipeline raises and
// routes them to the CRI fail path for the entity they carry. Typed
// errors are defined here (DepositError, SubmissionError), following
// the teacher's errors-package convention of an ErrorCode plus
// constructor functions, adapted to wrap a causal error instead of
// carrying just a message.
package errhandler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/cri"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// DepositError is a typed exception carrying the Deposit a failure
// applies to (spec.md §4.12: "a typed service exception carrying a
// Deposit — CRI-fails that deposit").
type DepositError struct {
	Deposit *store.Deposit
	Err     error
}

func (e *DepositError) Error() string {
	return fmt.Sprintf("deposit %s: %v", e.Deposit.ID, e.Err)
}

func (e *DepositError) Unwrap() error { return e.Err }

// NewDepositError wraps cause as a DepositError for d.
func NewDepositError(d *store.Deposit, cause error) *DepositError {
	return &DepositError{Deposit: d, Err: cause}
}

// SubmissionError is a typed exception carrying the Submission a
// failure applies to (spec.md §4.12: "a typed service exception
// carrying a Submission — CRI-fails that submission").
type SubmissionError struct {
	Submission *store.Submission
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission %s: %v", e.Submission.ID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NewSubmissionError wraps cause as a SubmissionError for s.
func NewSubmissionError(s *store.Submission, cause error) *SubmissionError {
	return &SubmissionError{Submission: s, Err: cause}
}

// messageChain flattens err's Unwrap chain into the "throwable's
// message chain" spec.md §4.7 step 6 asks deposits to record.
func messageChain(err error) string {
	var parts []string
	for err != nil {
		parts = append(parts, err.Error())
		err = errors.Unwrap(err)
	}
	return strings.Join(parts, " -> ")
}

// Handler routes classified errors to the record store (spec.md
// §4.12). It is the terminal sink for every error the pipeline's
// worker populations (C7 deposit tasks, C8 dispatch, C11 ingress)
// don't already know how to resolve themselves.
type Handler struct {
	Store   store.RecordStore
	Options cri.Options
}

func New(rs store.RecordStore) *Handler {
	return &Handler{Store: rs}
}

// Handle classifies err and mutates the record it names, or logs it
// and leaves state untouched (spec.md §4.12: "anything else, including
// a null payload, is logged only, no state change"). Wrappers are
// unwrapped exactly one level to discover the typed cause, matching
// the spec's explicit depth limit rather than errors.As's full-chain
// walk.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	for _, candidate := range []error{err, errors.Unwrap(err)} {
		if candidate == nil {
			continue
		}
		if depErr, ok := candidate.(*DepositError); ok {
			h.failDeposit(ctx, depErr)
			return
		}
		if subErr, ok := candidate.(*SubmissionError); ok {
			h.failSubmission(ctx, subErr)
			return
		}
	}

	logger.ErrorCtx(ctx, "errhandler: unclassified error, no state change", logger.Err(err))
}

func (h *Handler) failDeposit(ctx context.Context, de *DepositError) {
	message := messageChain(de.Err)

	result := cri.PerformCritical(ctx, h.Store, store.KindDeposit, de.Deposit.ID,
		func(d *store.Deposit) bool { return !d.DepositStatus.IsTerminal() },
		func(d *store.Deposit) *store.Deposit {
			d.DepositStatus = store.DepositFailed
			d.FailureMessage = message
			return d
		},
		func(d *store.Deposit) bool { return d.DepositStatus == store.DepositFailed },
		h.Options,
	)
	if result.Err != nil {
		logger.ErrorCtx(ctx, "errhandler: failed to CRI-fail deposit",
			logger.DepositID(de.Deposit.ID), logger.Err(result.Err))
		return
	}
	if !result.Success {
		logger.DebugCtx(ctx, "errhandler: deposit already terminal, not overwritten",
			logger.DepositID(de.Deposit.ID))
		return
	}
	logger.WarnCtx(ctx, "errhandler: deposit failed", logger.DepositID(de.Deposit.ID), logger.Err(de.Err))
}

func (h *Handler) failSubmission(ctx context.Context, se *SubmissionError) {
	result := cri.PerformCritical(ctx, h.Store, store.KindSubmission, se.Submission.ID,
		func(s *store.Submission) bool { return !s.AggregatedDepositStatus.IsTerminal() },
		func(s *store.Submission) *store.Submission {
			s.AggregatedDepositStatus = store.AggregateFailed
			return s
		},
		func(s *store.Submission) bool { return s.AggregatedDepositStatus == store.AggregateFailed },
		h.Options,
	)
	if result.Err != nil {
		logger.ErrorCtx(ctx, "errhandler: failed to CRI-fail submission",
			logger.SubmissionID(se.Submission.ID), logger.Err(result.Err))
		return
	}
	if !result.Success {
		logger.DebugCtx(ctx, "errhandler: submission already terminal, not overwritten",
			logger.SubmissionID(se.Submission.ID))
		return
	}
	logger.WarnCtx(ctx, "errhandler: submission failed", logger.SubmissionID(se.Submission.ID), logger.Err(se.Err))
}
