// Package assemble implements the assembler contract (spec.md §4.5):
// rendering an opaque submission value object into a concrete
// pkgstream.PackageStream for one packaging dialect. Concrete dialects
// live in subpackages (dspace, nihms); this package owns the shared
// contract, the submission value object, and name-collision
// remediation common to every dialect.
package assemble

import (
	"context"
	"io"
	"strings"

	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
)

// File is one custodial file declared by a submission (spec.md §1:
// "the submission content model... specified only as an opaque
// DepositSubmission value object"). Name is the file's declared name
// within the archive before collision remediation.
type File struct {
	Name     string
	MimeType string
	SizeHint int64
	Open     func() (io.ReadCloser, error)
}

// Submission is the assembler's view of a deposit submission: its
// metadata blob, opaque to the core, and its ordered custodial files.
type Submission struct {
	ID       string
	Metadata []byte
	Files    []File
}

// Options configures how a dialect packages a Submission (spec.md §6
// assemblySpec): packageSpec URI, container format, compression, and
// the checksum algorithms to compute per entry and over the whole
// package.
type Options struct {
	PackageSpec string
	Archive     pkgstream.Archive
	Compression pkgstream.Compression
	Algorithms  []pkgstream.ChecksumAlgo
}

// Assembler materializes a Submission into a packaging dialect.
type Assembler interface {
	// Assemble returns a PackageStream ready for Open. It must emit a
	// stable ordering of entries and remediate collisions between
	// control entries (manifest, metadata) and user files per
	// ControlFilePrefix.
	Assemble(ctx context.Context, submission Submission, opts Options) (*pkgstream.PackageStream, error)
}

// ControlFilePrefix is prepended to any user file whose declared name
// collides with a dialect's auto-generated control entry (manifest,
// metadata document), so user files never shadow control files
// (spec.md §4.5 design rationale).
const ControlFilePrefix = "user-"

// RemediateNames returns files with any name colliding with a control
// entry prefixed by ControlFilePrefix. The control set is dialect
// specific (e.g. {"mets.xml"} for DSpace, {"manifest.txt",
// "bulk_meta.xml"} for NIHMS).
func RemediateNames(files []File, controlNames map[string]bool) []File {
	out := make([]File, len(files))
	for i, f := range files {
		out[i] = f
		if controlNames[f.Name] {
			out[i].Name = ControlFilePrefix + f.Name
		}
	}
	return out
}

// sourcesFromFiles adapts assemble.File to pkgstream.Source, applying
// the dialect's checksum algorithm set uniformly.
func sourcesFromFiles(files []File, algorithms []pkgstream.ChecksumAlgo) []pkgstream.Source {
	sources := make([]pkgstream.Source, len(files))
	for i, f := range files {
		f := f
		sources[i] = pkgstream.Source{
			Name:       f.Name,
			MimeType:   f.MimeType,
			SizeHint:   f.SizeHint,
			Algorithms: algorithms,
			Open: func() (io.ReadCloser, error) {
				return f.Open()
			},
		}
	}
	return sources
}

// sanitizeEntryName guards against path traversal or absolute paths
// smuggled in through a submission's declared file name.
func sanitizeEntryName(name string) string {
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, "../", "")
	return name
}
