// Package fs implements the filesystem transport binding (spec.md
// §4.6): write the package stream to baseDir/name, failing if the
// target already exists unless Hints.Overwrite is set.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/pkgstream"
	"github.com/eclipse-pass/depositsvc/pkg/transport"
)

// Binding opens filesystem sessions rooted at a configured base
// directory.
type Binding struct{}

func New() *Binding { return &Binding{} }

func (b *Binding) Open(ctx context.Context, hints transport.Hints) (transport.Session, error) {
	if hints.BaseDir == "" {
		return nil, fmt.Errorf("fs: base directory is required")
	}
	if err := os.MkdirAll(hints.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("fs: creating base directory: %w", err)
	}
	return &session{hints: hints}, nil
}

type session struct {
	hints transport.Hints
}

func (s *session) Close() error { return nil }

func (s *session) Send(ctx context.Context, stream *pkgstream.PackageStream, meta pkgstream.Metadata) (transport.Response, error) {
	target := filepath.Join(s.hints.BaseDir, meta.Name)

	flags := os.O_WRONLY | os.O_CREATE
	if s.hints.Overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return transport.Response{Success: false, Err: fmt.Errorf("fs: %s already exists: %w", target, err)}, nil
		}
		return transport.Response{}, fmt.Errorf("fs: opening %s: %w", target, err)
	}

	rc, err := stream.Open(ctx)
	if err != nil {
		f.Close()
		os.Remove(target)
		return transport.Response{}, fmt.Errorf("fs: opening package stream: %w", err)
	}
	defer rc.Close()

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(target)
		return transport.Response{Success: false, Err: fmt.Errorf("fs: writing %s: %w", target, err)}, nil
	}
	if err := f.Close(); err != nil {
		return transport.Response{}, fmt.Errorf("fs: closing %s: %w", target, err)
	}

	absPath, err := filepath.Abs(target)
	if err != nil {
		absPath = target
	}
	logger.DebugCtx(ctx, "fs: wrote package", logger.ResourceName(meta.Name), logger.ExternalID(absPath))

	return transport.Response{Success: true, ExternalID: absPath}, nil
}
