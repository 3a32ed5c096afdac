// Package dspace implements a DSpace METS SIP packaging dialect for
// pkg/assemble: a mets.xml manifest entry plus the submission's
// custodial files, as a ZIP or TAR(+GZIP) package (spec.md §6 archive
// layouts: "mets.xml for DSpace METS SIPs").
package dspace

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/eclipse-pass/depositsvc/pkg/assemble"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
)

// manifestName is the DSpace METS SIP's manifest entry.
const manifestName = "mets.xml"

var controlNames = map[string]bool{manifestName: true}

// mets is a deliberately small METS document: just enough structure
// (a file section listing every custodial file by name) to exercise
// the dialect's contract. The full METS/MODS profile DSpace expects in
// production is out of scope here (spec.md §1 non-goal: "the concrete
// Atom/METS/XML emission code... specified only by the Assembler
// contract").
type mets struct {
	XMLName  xml.Name    `xml:"mets"`
	ObjID    string      `xml:"OBJID,attr"`
	FileSec  metsFileSec `xml:"fileSec"`
}

type metsFileSec struct {
	Files []metsFile `xml:"fileGrp>file"`
}

type metsFile struct {
	ID   string `xml:"ID,attr"`
	Name string `xml:"FLocat>href,attr"`
}

// Assembler packages a submission as a DSpace METS SIP.
type Assembler struct{}

func New() *Assembler { return &Assembler{} }

func (a *Assembler) Assemble(ctx context.Context, submission assemble.Submission, opts assemble.Options) (*pkgstream.PackageStream, error) {
	remediated := assemble.RemediateNames(submission.Files, controlNames)

	manifestBytes, err := buildManifest(submission.ID, remediated)
	if err != nil {
		return nil, fmt.Errorf("dspace: building mets.xml: %w", err)
	}

	sources := []pkgstream.Source{
		{
			Name:       manifestName,
			MimeType:   "text/xml",
			SizeHint:   int64(len(manifestBytes)),
			Algorithms: opts.Algorithms,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(string(manifestBytes))), nil
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
		Name:        submission.ID + ".zip",
		MimeType:    "application/zip",
		PackageSpec: opts.PackageSpec,
		Compression: opts.Compression,
		Archive:     opts.Archive,
	}

	return pkgstream.New(meta, sources, nil), nil
}

func buildManifest(submissionID string, files []assemble.File) ([]byte, error) {
	doc := mets{ObjID: submissionID}
	for i, f := range files {
		doc.FileSec.Files = append(doc.FileSec.Files, metsFile{
			ID:   fmt.Sprintf("file-%d", i+1),
			Name: f.Name,
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
