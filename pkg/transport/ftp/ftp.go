// Package ftp implements the FTP transport binding (spec.md §4.6):
// connect with retry, log in, create the destination path segment by
// segment (treating "already exists" as success), switch directory,
// and STOR the package.
//
// jlaffaye/ftp is a direct go.mod dependency carried from the original
// retrieval pack's dependency surface, but no repository in the pack
// actually imports it — this binding is built straight from the
// library's own public API rather than grounded on an in-pack usage
// example (see DESIGN.md).
package ftp

import (
	"context"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/retry"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
)

// alreadyExistsCodes are the FTP reply codes a MKD returns when the
// directory segment is already present (spec.md §4.6: "treat return
// codes 550/553 as already exists").
var alreadyExistsCodes = map[int]bool{550: true, 553: true}

// ConnectOptions tunes the retry-wrapped dial loop.
type ConnectOptions struct {
	DialTimeout time.Duration
	Retry       retry.Options
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	return o
}

// Binding opens FTP sessions.
type Binding struct {
	Options ConnectOptions
}

func New(opts ConnectOptions) *Binding {
	return &Binding{Options: opts.withDefaults()}
}

func (b *Binding) Open(ctx context.Context, hints transport.Hints) (transport.Session, error) {
	addr := fmt.Sprintf("%s:%d", hints.ServerFQDN, hints.ServerPort)

	result := retry.Await(ctx, func(ctx context.Context) (*ftp.ServerConn, error) {
		return ftp.Dial(addr, ftp.DialWithTimeout(b.Options.DialTimeout))
	}, func(conn *ftp.ServerConn) bool {
		return conn != nil
	}, b.Options.Retry)

	if !result.Satisfied {
		if result.Err != nil {
			return nil, fmt.Errorf("ftp: connecting to %s: %w", addr, result.Err)
		}
		return nil, fmt.Errorf("ftp: connecting to %s: timed out", addr)
	}

	conn := result.Value
	if err := conn.Login(hints.Username, hints.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("ftp: login: %w", err)
	}

	logger.DebugCtx(ctx, "ftp: connected", logger.Protocol(string(transport.ProtocolFTP)))
	return &session{conn: conn, hints: hints}, nil
}

type session struct {
	conn  *ftp.ServerConn
	hints transport.Hints
}

func (s *session) Close() error { return s.conn.Quit() }

func (s *session) Send(ctx context.Context, stream *pkgstream.PackageStream, meta pkgstream.Metadata) (transport.Response, error) {
	if err := mkdirAll(s.conn, s.hints.BaseDir); err != nil {
		return transport.Response{}, fmt.Errorf("ftp: creating path %s: %w", s.hints.BaseDir, err)
	}
	if err := s.conn.ChangeDir(s.hints.BaseDir); err != nil {
		return transport.Response{}, fmt.Errorf("ftp: changing to %s: %w", s.hints.BaseDir, err)
	}

	transferType := ftp.TransferTypeASCII
	if s.hints.BinaryMode {
		transferType = ftp.TransferTypeBinary
	}
	if err := s.conn.Type(transferType); err != nil {
		return transport.Response{}, fmt.Errorf("ftp: setting transfer type: %w", err)
	}

	rc, err := stream.Open(ctx)
	if err != nil {
		return transport.Response{}, fmt.Errorf("ftp: opening package stream: %w", err)
	}
	defer rc.Close()

	if err := s.conn.Stor(meta.Name, rc); err != nil {
		return transport.Response{Success: false, Err: fmt.Errorf("ftp: STOR %s: %w", meta.Name, err)}, nil
	}

	storedPath := strings.TrimSuffix(s.hints.BaseDir, "/") + "/" + meta.Name
	logger.DebugCtx(ctx, "ftp: stored package", logger.ResourceName(meta.Name), logger.ExternalID(storedPath))

	return transport.Response{Success: true, ExternalID: storedPath}, nil
}

// mkdirAll creates path one segment at a time, per spec.md §4.6's
// "MKD path segments idempotently" rule: each MKD targets the
// already-changed-into parent, so a relative single-segment name is
// all any one call needs.
func mkdirAll(conn *ftp.ServerConn, path string) error {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if strings.HasPrefix(path, "/") {
		if err := conn.ChangeDir("/"); err != nil {
			return err
		}
	}
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if err := conn.MakeDir(seg); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("MKD %s: %w", seg, err)
		}
		if err := conn.ChangeDir(seg); err != nil {
			return fmt.Errorf("CWD %s: %w", seg, err)
		}
	}
	return nil
}

// isAlreadyExists reports whether err is an FTP 550/553 response,
// which jlaffaye/ftp surfaces as a *textproto.Error.
func isAlreadyExists(err error) bool {
	var protoErr *textproto.Error
	if ok := asTextprotoError(err, &protoErr); ok {
		return alreadyExistsCodes[protoErr.Code]
	}
	// Some server/library combinations fold the code into the message
	// text instead of a typed error; fall back to a prefix check.
	msg := err.Error()
	for code := range alreadyExistsCodes {
		if strings.HasPrefix(msg, strconv.Itoa(code)) {
			return true
		}
	}
	return false
}

func asTextprotoError(err error, target **textproto.Error) bool {
	for err != nil {
		if pe, ok := err.(*textproto.Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
