package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single deposit
// pipeline operation: a dispatch cycle, a deposit task, a status poll,
// or an aggregator sweep.
type LogContext struct {
	TraceID      string    // OpenTelemetry trace ID
	SpanID       string    // OpenTelemetry span ID
	Procedure    string    // operation name: dispatch, assemble, transmit, poll, aggregate
	SubmissionID string    // Submission entity id
	DepositID    string    // Deposit entity id
	Repository   string    // repositoryKey being targeted
	Protocol     string    // transport protocol: swordv2, ftp, filesystem
	StartTime    time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a pipeline operation name.
func NewLogContext(procedure string) *LogContext {
	return &LogContext{
		Procedure: procedure,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithProcedure returns a copy with the procedure set
func (lc *LogContext) WithProcedure(procedure string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Procedure = procedure
	}
	return clone
}

// WithSubmission returns a copy with the submission id set
func (lc *LogContext) WithSubmission(submissionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SubmissionID = submissionID
	}
	return clone
}

// WithDeposit returns a copy with the deposit id and repository key set
func (lc *LogContext) WithDeposit(depositID, repository string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.DepositID = depositID
		clone.Repository = repository
	}
	return clone
}

// WithProtocol returns a copy with the transport protocol set
func (lc *LogContext) WithProtocol(protocol string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Protocol = protocol
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
