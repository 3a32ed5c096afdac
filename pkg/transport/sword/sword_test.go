package sword_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
	"github.com/eclipse-pass/depositsvc/pkg/transport/sword"
)

const receiptXML = `<?xml version="1.0"?>
<entry xmlns="http://www.w3.org/2005/Atom">
  <link rel="alternate" href="https://archive.example.org/edit/1"/>
  <link rel="http://purl.org/net/sword/terms/statement" href="https://archive.example.org/statement/1"/>
</entry>`

func packageStream() *pkgstream.PackageStream {
	sources := []pkgstream.Source{{
		Name:     "article.pdf",
		SizeHint: 3,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("pdf"))), nil
		},
	}}
	return pkgstream.New(pkgstream.Metadata{
		Name:        "sub-1.zip",
		PackageSpec: "http://purl.org/net/sword/package/SimpleZip",
		Archive:     pkgstream.ArchiveZip,
	}, sources, nil)
}

func TestSend_ExtractsStatementURLFromReceipt(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NotEmpty(t, body)
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/atom+xml")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(receiptXML))
	}))
	defer server.Close()

	binding := sword.New(server.Client())
	sess, err := binding.Open(t.Context(), transport.Hints{CollectionURL: server.URL})
	require.NoError(t, err)
	defer sess.Close()

	ps := packageStream()
	resp, err := sess.Send(t.Context(), ps, ps.Metadata())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "https://archive.example.org/statement/1", resp.StatusRef)
	require.Equal(t, "http://purl.org/net/sword/package/SimpleZip", gotHeaders.Get("Packaging"))
	require.Equal(t, `attachment; filename="sub-1.zip"`, gotHeaders.Get("Content-Disposition"))
}

func TestSend_NonSuccessStatusIsUnsuccessfulNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad packaging"))
	}))
	defer server.Close()

	binding := sword.New(server.Client())
	sess, err := binding.Open(t.Context(), transport.Hints{CollectionURL: server.URL})
	require.NoError(t, err)
	defer sess.Close()

	ps := packageStream()
	resp, err := sess.Send(t.Context(), ps, ps.Metadata())
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Error(t, resp.Err)
}
