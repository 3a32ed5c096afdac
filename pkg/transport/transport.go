// Package transport implements the transport layer contract (spec.md
// §4.6): opening a protocol session and sending a package stream over
// it. Concrete bindings (sword, ftp, fs) live in subpackages; this
// package owns the shared Session/Response/Hints shapes every binding
// implements. It has no connect helper of its own; the ftp binding's
// Open retries its dial through pkg/retry (C3) directly.
package transport

import (
	"context"

	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
)

// AuthMode selects how a session authenticates (spec.md §4.6 Hints).
type AuthMode string

const (
	AuthUserpass  AuthMode = "userpass"
	AuthImplicit  AuthMode = "implicit"
	AuthReference AuthMode = "reference"
)

// Protocol selects the wire protocol binding.
type Protocol string

const (
	ProtocolSWORDv2     Protocol = "swordv2"
	ProtocolFTP         Protocol = "ftp"
	ProtocolFilesystem  Protocol = "filesystem"
)

// Hints carries everything a binding's Open needs to authenticate and
// address the target archive (spec.md §4.6).
type Hints struct {
	AuthMode   AuthMode
	Username   string
	Password   string
	ServerFQDN string
	ServerPort int
	Protocol   Protocol
	ServerID   string

	// CollectionURL is the SWORD deposit endpoint (protocol-specific).
	CollectionURL string
	// BaseDir is the FTP/filesystem destination directory.
	BaseDir string
	// Overwrite permits the filesystem binding to replace an existing
	// file instead of failing (spec.md §4.6 filesystem binding).
	Overwrite bool
	// BinaryMode selects FTP TYPE I (binary, the default) vs TYPE A.
	BinaryMode bool
}

// Response is the outcome of Session.Send (spec.md §4.6
// TransportResponse).
type Response struct {
	Success bool
	Err     error

	// StatusRef is the archive-provided status document URL, set only
	// by bindings that return one (SWORD). Its presence is what drives
	// pkg/deposit's choice between submitted (poll later) and accepted
	// (terminal now) in spec.md §4.7 steps 4/5.
	StatusRef string

	// ExternalID is the archive's identifier for the deposited object
	// once accepted without polling (FTP path, filesystem path): the
	// stored path for FTP/filesystem. The SWORD binding leaves it empty.
	ExternalID string
}

// Session is a scoped transport resource: acquiring it (Open)
// authenticates and performs any protocol handshake; Close tears down
// sockets. A Session sends exactly one package stream in its lifetime;
// pkg/deposit opens a fresh Session per deposit task.
type Session interface {
	Send(ctx context.Context, stream *pkgstream.PackageStream, meta pkgstream.Metadata) (Response, error)
	Close() error
}

// Binding opens a Session for its protocol.
type Binding interface {
	Open(ctx context.Context, hints Hints) (Session, error)
}
