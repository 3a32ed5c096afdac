package pkgstream

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"

	kgzip "github.com/klauspost/compress/gzip"
)

// archiveWriter is the minimal surface both supported containers
// expose: begin an entry of (ideally) known size, write its bytes,
// finish it, then close the whole archive once all entries are done.
type archiveWriter interface {
	// CreateEntry returns a writer for one archive entry's bytes.
	CreateEntry(name string, sizeHint int64) (io.Writer, error)
	// Close finalizes the archive (e.g. writes the ZIP central
	// directory) and closes any wrapping compressor, in that order.
	Close() error
}

func newArchiveWriter(archive Archive, compression Compression, w io.Writer) (archiveWriter, error) {
	switch archive {
	case ArchiveZip:
		return &zipArchiveWriter{zw: zip.NewWriter(w), compression: compression}, nil
	case ArchiveTar:
		return newTarArchiveWriter(compression, w)
	default:
		return nil, fmt.Errorf("pkgstream: unsupported archive format %q", archive)
	}
}

// zipArchiveWriter wraps archive/zip. ZIP has no separate "GZIP
// wrapper" concept — compression is chosen per entry — so Compression
// only affects whether entries are stored or deflated.
type zipArchiveWriter struct {
	zw          *zip.Writer
	compression Compression
}

func (z *zipArchiveWriter) CreateEntry(name string, _ int64) (io.Writer, error) {
	method := zip.Store
	if z.compression == CompressionGzip {
		method = zip.Deflate
	}
	return z.zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
}

func (z *zipArchiveWriter) Close() error { return z.zw.Close() }

// tarArchiveWriter wraps archive/tar, optionally through a gzip
// compressor. The direct (non-per-entry) gzip writer is
// klauspost/compress/gzip rather than stdlib compress/gzip — grounded
// on the DOMAIN STACK's inclusion of klauspost/compress, which the
// rest of the pack reaches for whenever throughput on a streaming
// compressor matters.
type tarArchiveWriter struct {
	tw  *tar.Writer
	gzw *kgzip.Writer // nil when Compression is none
}

func newTarArchiveWriter(compression Compression, w io.Writer) (*tarArchiveWriter, error) {
	t := &tarArchiveWriter{}
	switch compression {
	case CompressionNone, "":
		t.tw = tar.NewWriter(w)
	case CompressionGzip:
		t.gzw = kgzip.NewWriter(w)
		t.tw = tar.NewWriter(t.gzw)
	default:
		return nil, fmt.Errorf("pkgstream: unsupported compression %q for tar", compression)
	}
	return t, nil
}

// CreateEntry writes the tar header immediately. tar requires the
// entry's size up front (it is a fixed-size record ahead of the
// body), so callers of pkgstream must supply a SizeHint for tar
// packages.
func (t *tarArchiveWriter) CreateEntry(name string, sizeHint int64) (io.Writer, error) {
	if sizeHint < 0 {
		return nil, fmt.Errorf("pkgstream: tar entries require a known size, got -1 for %q", name)
	}
	if err := t.tw.WriteHeader(&tar.Header{Name: name, Size: sizeHint, Mode: 0644}); err != nil {
		return nil, fmt.Errorf("pkgstream: tar header for %q: %w", name, err)
	}
	return t.tw, nil
}

// Close order matters: last archive entry → archive stream (flushes
// central directory / footer) → compressor if any → pipe (spec.md
// §4.4). The pipe itself is closed by the caller after this returns.
func (t *tarArchiveWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		return err
	}
	if t.gzw != nil {
		return t.gzw.Close()
	}
	return nil
}
