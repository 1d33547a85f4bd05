package stream

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Framing names the decoder chosen for a request body.
type Framing int

const (
	FramingRaw Framing = iota
	FramingChunked
	FramingLength
)

func (f Framing) String() string {
	switch f {
	case FramingChunked:
		return "chunked"
	case FramingLength:
		return "content-length"
	default:
		return "raw"
	}
}

// SelectFraming picks the body decoder from the headers: a chunked
// Transfer-Encoding wins over Content-Length; with neither the raw stream is
// used as is.
//
// net/http strips Transfer-Encoding from Request.Header once it has decoded
// the framing itself, so ChunkedReader only applies to bodies that still
// carry raw chunked bytes.
func SelectFraming(h http.Header) Framing {
	for _, te := range h.Values("Transfer-Encoding") {
		for _, part := range strings.Split(te, ",") {
			if strings.EqualFold(strings.TrimSpace(part), "chunked") {
				return FramingChunked
			}
		}
	}

	if h.Get("Content-Length") != "" {
		return FramingLength
	}

	return FramingRaw
}

// Body is a decoded request body. Closing it releases decoder state but
// never closes the underlying connection stream.
type Body struct {
	io.Reader

	Framing Framing
	gz      *gzip.Reader
}

func (b *Body) Close() error {
	if b.gz != nil {
		return b.gz.Close()
	}

	return nil
}

// Decode wraps src with the decoder selected from h. A gzip
// Content-Encoding is undone on top of the transfer framing.
//
// The raw fallback is unbounded: with neither header present the reader
// runs until the source ends.
func Decode(h http.Header, src io.Reader) (*Body, error) {
	body := &Body{Framing: SelectFraming(h)}

	switch body.Framing {
	case FramingChunked:
		body.Reader = NewChunkedReader(src)
	case FramingLength:
		length, err := strconv.ParseInt(strings.TrimSpace(h.Get("Content-Length")), 10, 64)
		if err != nil || length < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", h.Get("Content-Length"))
		}

		body.Reader = NewBoundedReader(src, length)
	default:
		body.Reader = src
	}

	if strings.EqualFold(strings.TrimSpace(h.Get("Content-Encoding")), "gzip") {
		gz, err := gzip.NewReader(body.Reader)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}

		body.gz = gz
		body.Reader = gz
	}

	return body, nil
}
