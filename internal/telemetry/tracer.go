package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for deposit-pipeline spans. All use a depositsvc.
// prefix, mirroring internal/logger's field-key convention
// (internal/logger/fields.go) one layer up in OpenTelemetry's
// attribute namespace instead of slog's.
const (
	AttrSubmissionID = "depositsvc.submission_id"
	AttrDepositID    = "depositsvc.deposit_id"
	AttrRepositoryID = "depositsvc.repository_id"
	AttrProtocol     = "depositsvc.protocol"

	// Record store / CRI
	AttrEntityKind = "depositsvc.entity_kind"
	AttrAttempt    = "depositsvc.attempt"
	AttrOutcome    = "depositsvc.outcome"

	// Transport
	AttrStatusRef  = "depositsvc.status_ref"
	AttrExternalID = "depositsvc.external_id"

	// Audit archiver (S3)
	AttrBucket = "depositsvc.archiver.bucket"
	AttrKey    = "depositsvc.archiver.key"
)

// Span names for deposit-pipeline operations (spec.md COMPONENT DESIGN
// C2/C7/C9: a span per CRI run, covering all its version-conflict
// retries, per deposit task and per status-poll cycle).
const (
	SpanDepositTask = "deposit.task"
	SpanCRIAttempt  = "cri.attempt"
	SpanStatusPoll  = "status.poll"
)

// SubmissionID returns an attribute for a Submission entity id.
func SubmissionID(id string) attribute.KeyValue {
	return attribute.String(AttrSubmissionID, id)
}

// DepositID returns an attribute for a Deposit entity id.
func DepositID(id string) attribute.KeyValue {
	return attribute.String(AttrDepositID, id)
}

// RepositoryID returns an attribute for a Repository entity id.
func RepositoryID(id string) attribute.KeyValue {
	return attribute.String(AttrRepositoryID, id)
}

// Protocol returns an attribute for a transport protocol name.
func Protocol(name string) attribute.KeyValue {
	return attribute.String(AttrProtocol, name)
}

// EntityKind returns an attribute for a record store entity kind.
func EntityKind(kind string) attribute.KeyValue {
	return attribute.String(AttrEntityKind, kind)
}

// Attempt returns an attribute for a retry attempt number.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// Outcome returns an attribute for a terminal/retry outcome label.
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// StatusRef returns an attribute for a deposit status document URL.
func StatusRef(ref string) attribute.KeyValue {
	return attribute.String(AttrStatusRef, ref)
}

// ExternalID returns an attribute for an archive-assigned external id.
func ExternalID(id string) attribute.KeyValue {
	return attribute.String(AttrExternalID, id)
}

// Bucket returns an attribute for the audit archiver's S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for the audit archiver's S3 object key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartDepositTaskSpan starts a span covering one deposit task's full
// arm/assemble/transmit run (spec.md §4.7, C7).
func StartDepositTaskSpan(ctx context.Context, submissionID, depositID, repositoryID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanDepositTask, trace.WithAttributes(
		SubmissionID(submissionID),
		DepositID(depositID),
		RepositoryID(repositoryID),
	))
}

// StartCRISpan starts a span covering one PerformCritical run against
// kind/id, including every version-conflict retry it takes (spec.md
// §4.2, C2).
func StartCRISpan(ctx context.Context, kind, id string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanCRIAttempt, trace.WithAttributes(
		EntityKind(kind),
		DepositID(id),
	))
}

// StartStatusPollSpan starts a span covering one status-resolver poll
// cycle for a deposit (spec.md §4.9, C9).
func StartStatusPollSpan(ctx context.Context, depositID, repositoryID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanStatusPoll, trace.WithAttributes(
		DepositID(depositID),
		RepositoryID(repositoryID),
	))
}
