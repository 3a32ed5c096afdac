package dspace_test

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/assemble"
	"github.com/eclipse-pass/depositsvc/pkg/assemble/dspace"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
)

func TestAssemble_EmitsManifestAndRemediatesCollisions(t *testing.T) {
	submission := assemble.Submission{
		ID: "sub-1",
		Files: []assemble.File{
			{Name: "article.pdf", MimeType: "application/pdf", SizeHint: 3,
				Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte("pdf"))), nil }},
			// Collides with the dialect's own manifest entry name.
			{Name: "mets.xml", MimeType: "text/xml", SizeHint: 4,
				Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte("user"))), nil }},
		},
	}

	a := dspace.New()
	ps, err := a.Assemble(t.Context(), submission, assemble.Options{
		Archive:    pkgstream.ArchiveZip,
		Algorithms: []pkgstream.ChecksumAlgo{pkgstream.ChecksumMD5},
	})
	require.NoError(t, err)

	rc, err := ps.Open(t.Context())
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	require.Equal(t, []string{"mets.xml", "article.pdf", "user-mets.xml"}, names)
}
