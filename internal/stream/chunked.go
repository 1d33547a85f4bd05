package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrMalformedChunk is returned when a chunk-size line or chunk terminator
// cannot be decoded.
var ErrMalformedChunk = errors.New("malformed chunked encoding")

// ChunkedReader decodes an HTTP/1.1 chunked body. A read returns bytes from
// the current chunk only; callers re-invoke to cross chunk boundaries.
// Trailer lines after the terminating zero-size chunk are not parsed.
type ChunkedReader struct {
	br        *bufio.Reader
	remaining int64
	started   bool
	err       error
}

func NewChunkedReader(src io.Reader) *ChunkedReader {
	br, ok := src.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(src)
	}

	return &ChunkedReader{br: br}
}

func (c *ChunkedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}

	if len(p) == 0 {
		return 0, nil
	}

	if c.remaining == 0 {
		if c.started {
			if err := c.readTerminator(); err != nil {
				c.err = err
				return 0, err
			}
		}

		c.started = true

		size, err := c.readSize()
		if err != nil {
			c.err = err
			return 0, err
		}

		if size == 0 {
			c.err = io.EOF
			return 0, io.EOF
		}

		c.remaining = size
	}

	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}

	n, err := c.br.Read(p)
	c.remaining -= int64(n)

	if err == io.EOF {
		// the zero-size chunk, not the source, ends the stream
		err = io.ErrUnexpectedEOF
	}

	if err != nil {
		c.err = err
	}

	return n, err
}

// readSize parses "<hex>[;ext]\r\n".
func (c *ChunkedReader) readSize() (int64, error) {
	line, err := c.br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			return 0, fmt.Errorf("%w: chunk-size line too long", ErrMalformedChunk)
		}

		return 0, err
	}

	line = bytes.TrimRight(line, "\r\n")
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return 0, fmt.Errorf("%w: empty chunk-size line", ErrMalformedChunk)
	}

	size, err := strconv.ParseUint(string(line), 16, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid chunk size %q", ErrMalformedChunk, line)
	}

	return int64(size), nil
}

// readTerminator consumes the CRLF that follows each chunk's data.
func (c *ChunkedReader) readTerminator() error {
	b, err := c.br.ReadByte()
	if err != nil {
		return io.ErrUnexpectedEOF
	}

	if b == '\r' {
		if b, err = c.br.ReadByte(); err != nil {
			return io.ErrUnexpectedEOF
		}
	}

	if b != '\n' {
		return fmt.Errorf("%w: missing chunk terminator", ErrMalformedChunk)
	}

	return nil
}
