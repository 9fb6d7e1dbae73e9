package util

import (
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// ContentHash fingerprints b with xxh3 as 16 hex digits.
func ContentHash(b []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(b))
}

// HashingReader feeds everything read through it into a running xxh3
// digest, so a stream can be fingerprinted while it is consumed.
type HashingReader struct {
	r io.Reader
	h *xxh3.Hasher
}

func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, h: xxh3.New()}
}

func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		_, _ = hr.h.Write(p[:n])
	}
	return n, err
}

// Sum returns the digest of the bytes read so far.
func (hr *HashingReader) Sum() string {
	return fmt.Sprintf("%016x", hr.h.Sum64())
}
