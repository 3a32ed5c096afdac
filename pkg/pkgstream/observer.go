package pkgstream

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
)

// observerStack is a read-side io.Writer that fans each byte written
// to it out to a size counter and the configured digest algorithms,
// so the writer pays for content length and checksums in a single pass
// over the bytes (spec.md §9 "Observer stack on streams").
type observerStack struct {
	size    int64
	hashes  map[ChecksumAlgo]hash.Hash
	targets []io.Writer
}

func newObserverStack(algorithms []ChecksumAlgo) *observerStack {
	o := &observerStack{hashes: make(map[ChecksumAlgo]hash.Hash, len(algorithms))}
	for _, algo := range algorithms {
		var h hash.Hash
		switch algo {
		case ChecksumMD5:
			h = md5.New()
		case ChecksumSHA256:
			h = sha256.New()
		case ChecksumSHA512:
			h = sha512.New()
		default:
			continue
		}
		o.hashes[algo] = h
		o.targets = append(o.targets, h)
	}
	return o
}

// Write implements io.Writer, feeding every observer and the size
// counter without buffering — callers Copy through this once.
func (o *observerStack) Write(p []byte) (int, error) {
	o.size += int64(len(p))
	for _, w := range o.targets {
		// hash.Hash.Write never returns an error.
		w.Write(p)
	}
	return len(p), nil
}

// checksums returns the finished digests in a stable order.
func (o *observerStack) checksums() []Checksum {
	order := []ChecksumAlgo{ChecksumMD5, ChecksumSHA256, ChecksumSHA512}
	var out []Checksum
	for _, algo := range order {
		h, ok := o.hashes[algo]
		if !ok {
			continue
		}
		out = append(out, Checksum{Algo: algo, Value: hex.EncodeToString(h.Sum(nil))})
	}
	return out
}
