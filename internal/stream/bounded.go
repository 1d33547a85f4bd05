// Package stream presents HTTP request bodies as well-bounded byte sources
// regardless of how the transport framed them.
package stream

import "io"

// BoundedReader yields at most limit bytes from its source. It never closes
// the source.
type BoundedReader struct {
	src       io.Reader
	remaining int64
}

func NewBoundedReader(src io.Reader, limit int64) *BoundedReader {
	if limit < 0 {
		limit = 0
	}

	return &BoundedReader{src: src, remaining: limit}
}

func (b *BoundedReader) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}

	n, err := b.src.Read(p)
	b.remaining -= int64(n)

	if err == io.EOF && b.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}

	return n, err
}

// Remaining reports how many bytes may still be read.
func (b *BoundedReader) Remaining() int64 {
	return b.remaining
}
