// Package nihms implements the NIHMS bulk-submission packaging
// dialect for pkg/assemble: a plain-text manifest plus an XML metadata
// document alongside the submission's custodial files (spec.md §6
// archive layouts: "manifest.txt + bulk_meta.xml for NIHMS").
package nihms

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/eclipse-pass/depositsvc/pkg/assemble"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
)

const (
	manifestName = "manifest.txt"
	metadataName = "bulk_meta.xml"
)

var controlNames = map[string]bool{manifestName: true, metadataName: true}

type bulkMeta struct {
	XMLName      xml.Name `xml:"bulk-submission"`
	SubmissionID string   `xml:"submission-id,attr"`
	Metadata     []byte   `xml:",innerxml"`
}

// Assembler packages a submission for NIHMS bulk submission.
type Assembler struct{}

func New() *Assembler { return &Assembler{} }

func (a *Assembler) Assemble(ctx context.Context, submission assemble.Submission, opts assemble.Options) (*pkgstream.PackageStream, error) {
	remediated := assemble.RemediateNames(submission.Files, controlNames)

	manifest := buildManifest(remediated)
	metaDoc, err := buildMetadata(submission)
	if err != nil {
		return nil, fmt.Errorf("nihms: building bulk_meta.xml: %w", err)
	}

	sources := []pkgstream.Source{
		{
			Name:       manifestName,
			MimeType:   "text/plain",
			SizeHint:   int64(len(manifest)),
			Algorithms: opts.Algorithms,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(manifest)), nil
			},
		},
		{
			Name:       metadataName,
			MimeType:   "text/xml",
			SizeHint:   int64(len(metaDoc)),
			Algorithms: opts.Algorithms,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(string(metaDoc))), nil
			},
		},
	}
	for _, f := range remediated {
		f := f
		sources = append(sources, pkgstream.Source{
			Name:       f.Name,
			MimeType:   f.MimeType,
			SizeHint:   f.SizeHint,
			Algorithms: opts.Algorithms,
			Open:       f.Open,
		})
	}

	meta := pkgstream.Metadata{
		Name:        submission.ID + ".tar.gz",
		MimeType:    "application/x-gzip",
		PackageSpec: opts.PackageSpec,
		Compression: opts.Compression,
		Archive:     opts.Archive,
	}

	return pkgstream.New(meta, sources, nil), nil
}

// buildManifest lists the name of every custodial file, one per line,
// in submission order; the manifest and bulk_meta.xml entries
// themselves are not listed.
func buildManifest(files []assemble.File) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Name)
		b.WriteString("\n")
	}
	return b.String()
}

func buildMetadata(submission assemble.Submission) ([]byte, error) {
	doc := bulkMeta{SubmissionID: submission.ID, Metadata: submission.Metadata}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
