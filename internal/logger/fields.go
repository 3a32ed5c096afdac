package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the deposit
// pipeline. Use these keys consistently so log aggregation and
// querying stays uniform across components.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Pipeline identity
	KeyProcedure    = "procedure"     // dispatch, assemble, transmit, poll, aggregate, remediate
	KeySubmissionID = "submission_id" // Submission entity id
	KeyDepositID    = "deposit_id"    // Deposit entity id
	KeyRepository   = "repository"    // repositoryKey
	KeyProtocol     = "protocol"      // swordv2, ftp, filesystem

	// Record store / CRI
	KeyEntityKind = "entity_kind"
	KeyVersion    = "version"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"

	// Package stream
	KeyArchive      = "archive"      // zip, tar
	KeyCompression  = "compression"  // none, gzip
	KeyResourceName = "resource"     // resource/entry name within a package
	KeySizeBytes    = "size_bytes"
	KeyChecksumAlgo = "checksum_algo"
	KeyChecksum     = "checksum"

	// Transport
	KeyStatusRef  = "status_ref"  // deposit status document URL
	KeyExternalID = "external_id" // archive-assigned external id

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Procedure returns a slog.Attr for the pipeline operation name
func Procedure(name string) slog.Attr {
	return slog.String(KeyProcedure, name)
}

// SubmissionID returns a slog.Attr for a Submission entity id
func SubmissionID(id string) slog.Attr {
	return slog.String(KeySubmissionID, id)
}

// DepositID returns a slog.Attr for a Deposit entity id
func DepositID(id string) slog.Attr {
	return slog.String(KeyDepositID, id)
}

// Repository returns a slog.Attr for a repositoryKey
func Repository(key string) slog.Attr {
	return slog.String(KeyRepository, key)
}

// Protocol returns a slog.Attr for a transport protocol name
func Protocol(proto string) slog.Attr {
	return slog.String(KeyProtocol, proto)
}

// EntityKind returns a slog.Attr for a record store entity kind
func EntityKind(kind string) slog.Attr {
	return slog.String(KeyEntityKind, kind)
}

// Version returns a slog.Attr for a record store version number
func Version(v int64) slog.Attr {
	return slog.Int64(KeyVersion, v)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the configured retry ceiling
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Archive returns a slog.Attr for the archive container format
func Archive(format string) slog.Attr {
	return slog.String(KeyArchive, format)
}

// Compression returns a slog.Attr for the compression mode
func Compression(mode string) slog.Attr {
	return slog.String(KeyCompression, mode)
}

// ResourceName returns a slog.Attr for a package entry name
func ResourceName(name string) slog.Attr {
	return slog.String(KeyResourceName, name)
}

// SizeBytes returns a slog.Attr for a byte count
func SizeBytes(n int64) slog.Attr {
	return slog.Int64(KeySizeBytes, n)
}

// ChecksumAlgo returns a slog.Attr for a checksum algorithm name
func ChecksumAlgo(algo string) slog.Attr {
	return slog.String(KeyChecksumAlgo, algo)
}

// Checksum returns a slog.Attr for a checksum hex value
func Checksum(value string) slog.Attr {
	return slog.String(KeyChecksum, value)
}

// StatusRef returns a slog.Attr for a deposit status document URL
func StatusRef(ref string) slog.Attr {
	return slog.String(KeyStatusRef, ref)
}

// ExternalID returns a slog.Attr for an archive-assigned external id
func ExternalID(id string) slog.Attr {
	return slog.String(KeyExternalID, id)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
