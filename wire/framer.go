// Package wire implements line framing for brine streams.
//
// A brine stream is newline-delimited: each line is a complete JSON
// value, UTF-8 encoded, with a trailing newline on the last line. The
// framer turns arbitrary byte chunks into complete lines and never
// interprets content.
package wire

import (
	"io"
	"strings"
)

// LineFramer is a stateful transform from byte chunks to complete text
// lines. Bytes accumulate in an internal buffer; each Push emits every
// complete line received so far and retains the trailing fragment.
type LineFramer struct {
	buf strings.Builder
}

// Push appends chunk to the buffer and returns all newly completed
// lines, without their newline terminators.
func (f *LineFramer) Push(chunk []byte) []string {
	f.buf.Write(chunk)

	data := f.buf.String()
	last := strings.LastIndexByte(data, '\n')
	if last < 0 {
		return nil
	}

	lines := strings.Split(data[:last], "\n")
	f.buf.Reset()
	f.buf.WriteString(data[last+1:])
	return lines
}

// Finish discards the residual fragment and returns it for diagnostics.
// A well-formed stream ends with a newline on the last line, leaving an
// empty residual.
func (f *LineFramer) Finish() string {
	residual := f.buf.String()
	f.buf.Reset()
	return residual
}

// readSize is the per-read buffer size for LineReader.
const readSize = 32 * 1024

// LineReader frames lines from an io.Reader. It reads in chunks and
// serves completed lines one at a time.
type LineReader struct {
	r      io.Reader
	framer LineFramer
	queue  []string
	err    error
}

// NewLineReader creates a line reader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r}
}

// ReadLine returns the next complete line. At end of input it returns
// io.EOF; a residual fragment without a trailing newline is discarded.
func (lr *LineReader) ReadLine() (string, error) {
	for {
		if len(lr.queue) > 0 {
			line := lr.queue[0]
			lr.queue = lr.queue[1:]
			return line, nil
		}
		if lr.err != nil {
			return "", lr.err
		}

		buf := make([]byte, readSize)
		n, err := lr.r.Read(buf)
		if n > 0 {
			lr.queue = lr.framer.Push(buf[:n])
		}
		if err != nil {
			lr.framer.Finish()
			lr.err = err
		}
	}
}
