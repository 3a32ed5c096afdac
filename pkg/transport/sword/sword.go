// Package sword implements the SWORD v2 over HTTPS transport binding
// (spec.md §4.6): POST the package to a collection URL with the
// headers a SWORD2 server expects, then extract the deposit's
// statement URL from the returned Atom deposit receipt so pkg/status
// can poll it later.
package sword

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
)

// statementRel is the SWORD2 link relation identifying a deposit
// receipt's statement document (spec.md §6: "the resolver later
// fetches the Atom statement document from its alternate/statement
// link"). Servers that omit it are handled by falling back to the
// plain "alternate" relation.
const statementRel = "http://purl.org/net/sword/terms/statement"

// depositReceipt is the subset of the SWORD2 Atom deposit receipt this
// binding needs: its link collection, searched for the statement URL.
type depositReceipt struct {
	XMLName xml.Name `xml:"entry"`
	Links   []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

func (r depositReceipt) statementURL() string {
	var alternate string
	for _, l := range r.Links {
		if l.Rel == statementRel {
			return l.Href
		}
		if l.Rel == "alternate" {
			alternate = l.Href
		}
	}
	return alternate
}

// Binding opens SWORD2 sessions over a shared *http.Client.
type Binding struct {
	Client *http.Client
}

func New(client *http.Client) *Binding {
	if client == nil {
		client = http.DefaultClient
	}
	return &Binding{Client: client}
}

func (b *Binding) Open(ctx context.Context, hints transport.Hints) (transport.Session, error) {
	if hints.CollectionURL == "" {
		return nil, fmt.Errorf("sword: collection URL is required")
	}
	return &session{client: b.Client, hints: hints}, nil
}

type session struct {
	client *http.Client
	hints  transport.Hints
}

func (s *session) Close() error { return nil }

func (s *session) Send(ctx context.Context, stream *pkgstream.PackageStream, meta pkgstream.Metadata) (transport.Response, error) {
	body, err := stream.Open(ctx)
	if err != nil {
		return transport.Response{}, fmt.Errorf("sword: opening package stream: %w", err)
	}
	defer body.Close()

	// Content-MD5 can't be known until the package has been fully
	// streamed, so it's carried as a request trailer: md5TrailerReader
	// fills it in the instant the body reports EOF, which net/http
	// reads before it finishes the chunked request (spec.md §6:
	// "Content-MD5: <base64>").
	trailerBody := &md5TrailerReader{rc: body, stream: stream}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.hints.CollectionURL, trailerBody)
	if err != nil {
		return transport.Response{}, fmt.Errorf("sword: building request: %w", err)
	}
	req.Header.Set("Packaging", meta.PackageSpec)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, meta.Name))
	req.Header.Set("Content-Type", contentType(meta.Archive))
	req.Trailer = http.Header{"Content-MD5": nil}
	trailerBody.req = req
	if s.hints.AuthMode == transport.AuthUserpass {
		req.SetBasicAuth(s.hints.Username, s.hints.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return transport.Response{Success: false, Err: err}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transport.Response{}, fmt.Errorf("sword: reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("sword: deposit rejected with status %d: %s", resp.StatusCode, respBody)
		return transport.Response{Success: false, Err: err}, nil
	}

	var receipt depositReceipt
	if err := xml.Unmarshal(respBody, &receipt); err != nil {
		return transport.Response{}, fmt.Errorf("sword: parsing deposit receipt: %w", err)
	}

	statementURL := receipt.statementURL()
	logger.DebugCtx(ctx, "sword: deposit accepted by server",
		logger.ResourceName(meta.Name), logger.StatusRef(statementURL))

	return transport.Response{Success: true, StatusRef: statementURL}, nil
}

func contentType(archive pkgstream.Archive) string {
	switch archive {
	case pkgstream.ArchiveTar:
		return "application/x-tar"
	default:
		return "application/zip"
	}
}

// md5TrailerReader wraps a PackageStream's body reader to set the
// request's Content-MD5 trailer the moment the stream reports EOF, by
// which point pkg/pkgstream guarantees the whole-package checksum is
// already computed (it's written before the pipe is closed).
type md5TrailerReader struct {
	rc     io.ReadCloser
	stream *pkgstream.PackageStream
	req    *http.Request
}

func (r *md5TrailerReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err == io.EOF && r.req != nil {
		for _, c := range r.stream.Metadata().Checksums {
			if c.Algo == pkgstream.ChecksumMD5 {
				if raw, decodeErr := hex.DecodeString(c.Value); decodeErr == nil {
					r.req.Trailer.Set("Content-MD5", base64.StdEncoding.EncodeToString(raw))
				}
				break
			}
		}
	}
	return n, err
}
