// Package pkgstream implements the package stream core (spec.md §4.4):
// it decouples archive assembly from consumption by running the writer
// that emits archive entries concurrently with the reader draining an
// io.Pipe, exactly as an assembler (pkg/assemble, C5) and a transport
// session (pkg/transport, C6) expect to interact — the assembler opens
// a PackageStream and hands its reader straight to the transport's
// request body.
package pkgstream

import "io"

// Compression is the outer compression wrapped around a TAR archive,
// or the hint a ZIP archive uses for its own per-entry method.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

// Archive selects the container format.
type Archive string

const (
	ArchiveZip Archive = "zip"
	ArchiveTar Archive = "tar"
)

// ChecksumAlgo names a digest algorithm computed over stream content.
type ChecksumAlgo string

const (
	ChecksumMD5    ChecksumAlgo = "md5"
	ChecksumSHA256 ChecksumAlgo = "sha256"
	ChecksumSHA512 ChecksumAlgo = "sha512"
)

// Checksum is one algorithm/value pair.
type Checksum struct {
	Algo  ChecksumAlgo
	Value string // hex-encoded
}

// Resource describes one entry written into the package (spec.md §3
// PackageStream.Resource). Size and Checksums are populated only once
// the writer has finished streaming that entry's bytes; a Resource
// handed to an assembler callback before then is incomplete.
type Resource struct {
	Name      string
	SizeBytes int64
	Checksums []Checksum
	MimeType  string
}

// Metadata describes the package as a whole (spec.md §3
// PackageStream.Metadata). Checksums here covers the full serialized
// package body and, per the stream invariant, is only valid once the
// reader has drained the stream to EOF.
type Metadata struct {
	Name        string
	MimeType    string
	PackageSpec string
	Compression Compression
	Archive     Archive
	Checksums   []Checksum
}

// Source supplies the content to stream into one archive entry. Open
// returns a reader for the resource's bytes and the declared size (-1
// if unknown, in which case the archive writer falls back to a
// data-descriptor / streaming mode where the format supports it).
type Source struct {
	Name       string
	MimeType   string
	SizeHint   int64
	Algorithms []ChecksumAlgo
	Open       func() (io.ReadCloser, error)
}
