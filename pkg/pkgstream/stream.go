package pkgstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/metrics"
)

// DefaultBufferSize is the bounded in-memory buffer between the writer
// and the reader (spec.md §4.4 "bounded buffer (default 1 MiB)").
const DefaultBufferSize = 1 << 20

// ResourceDone is called once per Source after its bytes are fully
// written, handing the assembler a completed Resource record (spec.md
// §4.4: "hands a completed Resource record back to the assembler").
type ResourceDone func(Resource)

// ArchiveSink receives a second copy of a package's archive bytes as
// they're written, for durable audit retention (pkg/archiver
// implements this against S3). NewWriter is called once per Open.
type ArchiveSink interface {
	NewWriter(ctx context.Context, key string) io.WriteCloser
}

// PackageStream is a package whose archive bytes are produced by a
// writer goroutine concurrently with the reader draining it. Open may
// be called at most once; the returned reader surfaces any writer-side
// error on its next Read via io.Pipe's own error-stashing semantics,
// so the exception-propagation trick spec.md §9 asks to preserve comes
// from the standard library rather than a hand-rolled one-shot latch.
type PackageStream struct {
	meta       Metadata
	sources    []Source
	onDone     ResourceDone
	metrics    metrics.PackageStreamMetrics
	archive    ArchiveSink
	archiveKey string

	mu       sync.Mutex
	finalSum []Checksum // valid only after the reader reaches EOF
	drained  bool

	opened bool
}

// New constructs a PackageStream that will emit meta.Archive,
// optionally compressed per meta.Compression, from sources in order.
func New(meta Metadata, sources []Source, onDone ResourceDone) *PackageStream {
	return &PackageStream{meta: meta, sources: sources, onDone: onDone}
}

// SetMetrics attaches a PackageStreamMetrics instrumentation sink. It
// must be called before Open; passing nil (the default) disables
// instrumentation.
func (ps *PackageStream) SetMetrics(m metrics.PackageStreamMetrics) {
	ps.metrics = m
}

// SetArchiveSink attaches an audit mirror. It must be called before
// Open; passing a nil sink (the default) disables mirroring. key
// identifies the uploaded object, typically the deposit ID.
func (ps *PackageStream) SetArchiveSink(sink ArchiveSink, key string) {
	ps.archive = sink
	ps.archiveKey = key
}

// Open spawns the writer goroutine and returns the consumer's end of
// the pipe. It may be called only once per PackageStream.
func (ps *PackageStream) Open(ctx context.Context) (io.ReadCloser, error) {
	ps.mu.Lock()
	if ps.opened {
		ps.mu.Unlock()
		return nil, fmt.Errorf("pkgstream: Open called more than once")
	}
	ps.opened = true
	ps.mu.Unlock()

	pr, pw := io.Pipe()
	buffered := bufio.NewWriterSize(pw, DefaultBufferSize)

	go ps.write(ctx, pw, buffered)

	return &drainTrackingReader{pr: pr, ps: ps}, nil
}

// Metadata returns the package metadata as currently known. Checksums
// is empty until the reader has drained the stream to EOF (spec.md
// §4.4 invariant); this method never blocks waiting for that.
func (ps *PackageStream) Metadata() Metadata {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	m := ps.meta
	if ps.drained {
		m.Checksums = ps.finalSum
	}
	return m
}

// write runs on its own goroutine: it builds the archive entries from
// ps.sources into buffered/pw, and propagates any error by closing the
// pipe with it so the reader's next Read call surfaces the full cause
// chain, per spec.md §4.4.
func (ps *PackageStream) write(ctx context.Context, pw *io.PipeWriter, buffered *bufio.Writer) {
	start := time.Now()
	entries := 0
	failed := true
	defer func() {
		if ps.metrics != nil {
			ps.metrics.ObservePackage(string(ps.meta.Archive), time.Since(start), entries, failed)
		}
	}()

	full := newObserverStack([]ChecksumAlgo{ChecksumMD5, ChecksumSHA256, ChecksumSHA512})
	writers := []io.Writer{buffered, full}
	if ps.archive != nil {
		sink := ps.archive.NewWriter(ctx, ps.archiveKey)
		defer sink.Close()
		writers = append(writers, sink)
	}
	tee := io.MultiWriter(writers...)

	aw, err := newArchiveWriter(ps.meta.Archive, ps.meta.Compression, tee)
	if err != nil {
		pw.CloseWithError(err)
		return
	}

	if err := ps.writeEntries(ctx, aw, &entries); err != nil {
		pw.CloseWithError(err)
		return
	}

	// Close order: last entry already written above → archive footer
	// (aw.Close, which also tears down the compressor) → buffered
	// writer flush → pipe.
	if err := aw.Close(); err != nil {
		pw.CloseWithError(fmt.Errorf("pkgstream: closing archive: %w", err))
		return
	}
	if err := buffered.Flush(); err != nil {
		pw.CloseWithError(fmt.Errorf("pkgstream: flushing package buffer: %w", err))
		return
	}
	failed = false

	ps.mu.Lock()
	ps.finalSum = full.checksums()
	ps.mu.Unlock()

	pw.Close()
}

func (ps *PackageStream) writeEntries(ctx context.Context, aw archiveWriter, entries *int) error {
	for _, src := range ps.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ps.writeOne(aw, src); err != nil {
			return fmt.Errorf("pkgstream: writing entry %q: %w", src.Name, err)
		}
		*entries++
	}
	return nil
}

func (ps *PackageStream) writeOne(aw archiveWriter, src Source) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer rc.Close()

	entry, err := aw.CreateEntry(src.Name, src.SizeHint)
	if err != nil {
		return fmt.Errorf("creating archive entry: %w", err)
	}

	obs := newObserverStack(src.Algorithms)
	tee := io.MultiWriter(entry, obs)

	if _, err := io.Copy(tee, rc); err != nil {
		return fmt.Errorf("streaming bytes: %w", err)
	}

	resource := Resource{
		Name:      src.Name,
		SizeBytes: obs.size,
		Checksums: obs.checksums(),
		MimeType:  src.MimeType,
	}
	if ps.onDone != nil {
		ps.onDone(resource)
	}
	if ps.metrics != nil {
		ps.metrics.ObserveEntry(string(ps.meta.Archive), resource.SizeBytes)
	}
	logger.Debug("pkgstream: wrote entry", logger.ResourceName(src.Name), logger.SizeBytes(resource.SizeBytes))
	return nil
}

// drainTrackingReader wraps the pipe reader so PackageStream knows
// once the consumer has reached EOF, at which point Metadata's
// Checksums field becomes valid.
type drainTrackingReader struct {
	pr *io.PipeReader
	ps *PackageStream
}

func (d *drainTrackingReader) Read(p []byte) (int, error) {
	n, err := d.pr.Read(p)
	if err == io.EOF {
		d.ps.mu.Lock()
		d.ps.drained = true
		d.ps.mu.Unlock()
	}
	return n, err
}

func (d *drainTrackingReader) Close() error { return d.pr.Close() }
