package journal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/brine/types"
	"github.com/pithecene-io/brine/wire"
)

// FormatVersion is the single-file journal format version.
const FormatVersion = "1"

// Manifest is the first frame of every journal. It identifies the
// captured stream and the capture context.
type Manifest struct {
	// Kind is the frame discriminator, always "manifest".
	Kind string `msgpack:"kind"`
	// FormatVersion is the journal format version.
	FormatVersion string `msgpack:"format_version"`
	// StreamID is the capture-assigned stream identifier.
	StreamID string `msgpack:"stream_id"`
	// Source is the origin label for the captured stream.
	Source string `msgpack:"source"`
	// CreatedAt is the capture start time in RFC 3339 UTC.
	CreatedAt string `msgpack:"created_at"`
	// CodecVersion is the brine release that captured the stream.
	CodecVersion string `msgpack:"codec_version"`
}

// Record is one captured line of the stream.
type Record struct {
	// Kind is the frame discriminator, always "record".
	Kind string `msgpack:"kind"`
	// Seq is the line number within the stream, starting at 0. The head
	// line is always seq 0.
	Seq int64 `msgpack:"seq"`
	// At is the capture timestamp in RFC 3339 UTC.
	At string `msgpack:"at"`
	// Line is the exact line content, without its newline terminator.
	Line string `msgpack:"line"`
}

// DeriveDay computes the storage partition day from the capture start
// time. Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Writer appends captured lines to a single-file journal.
type Writer struct {
	w        io.Writer
	manifest Manifest
	next     int64
	now      func() time.Time
}

// NewWriter writes the manifest frame and returns a writer for the
// journal body.
func NewWriter(w io.Writer, manifest Manifest) (*Writer, error) {
	manifest.Kind = ManifestKind
	if manifest.FormatVersion == "" {
		manifest.FormatVersion = FormatVersion
	}
	if manifest.CodecVersion == "" {
		manifest.CodecVersion = types.Version
	}

	jw := &Writer{w: w, manifest: manifest, now: time.Now}
	if err := jw.writeFrame(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return jw, nil
}

// Manifest returns the journal manifest as written.
func (jw *Writer) Manifest() Manifest {
	return jw.manifest
}

// Append records one stream line.
func (jw *Writer) Append(line string) error {
	record := Record{
		Kind: RecordKind,
		Seq:  jw.next,
		At:   jw.now().UTC().Format(time.RFC3339Nano),
		Line: line,
	}
	if err := jw.writeFrame(record); err != nil {
		return fmt.Errorf("write record %d: %w", record.Seq, err)
	}
	jw.next++
	return nil
}

// Count returns the number of records appended so far.
func (jw *Writer) Count() int64 {
	return jw.next
}

func (jw *Writer) writeFrame(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = jw.w.Write(frame)
	return err
}

// Capture tails a live stream from r, appending every framed line to jw
// until end of input or ctx cancellation. Returns the number of lines
// captured.
func Capture(ctx context.Context, r io.Reader, jw *Writer) (int64, error) {
	lr := wire.NewLineReader(r)
	var captured int64

	for {
		if err := ctx.Err(); err != nil {
			return captured, err
		}
		line, err := lr.ReadLine()
		if err != nil {
			if err == io.EOF {
				return captured, nil
			}
			return captured, fmt.Errorf("capture read: %w", err)
		}
		if err := jw.Append(line); err != nil {
			return captured, err
		}
		captured++
	}
}

// Reader iterates a single-file journal.
type Reader struct {
	dec      *FrameDecoder
	manifest *Manifest
}

// NewReader reads the manifest frame and returns a reader for the
// journal body.
func NewReader(r io.Reader) (*Reader, error) {
	dec := NewFrameDecoder(r)
	payload, err := dec.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read manifest frame: %w", err)
	}
	manifest, err := DecodeManifest(payload)
	if err != nil {
		return nil, err
	}
	if manifest.Kind != ManifestKind {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("first frame has kind %q, want manifest", manifest.Kind),
		}
	}
	return &Reader{dec: dec, manifest: manifest}, nil
}

// Manifest returns the journal manifest.
func (jr *Reader) Manifest() Manifest {
	return *jr.manifest
}

// Next returns the next captured record, or io.EOF at the end of the
// journal.
func (jr *Reader) Next() (*Record, error) {
	payload, err := jr.dec.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeRecord(payload)
}

// Replay re-emits a captured journal from r as the original byte stream
// on w: each record's line followed by a newline, in sequence order.
// Returns the number of lines replayed.
func Replay(ctx context.Context, r io.Reader, w io.Writer) (int64, error) {
	jr, err := NewReader(r)
	if err != nil {
		return 0, err
	}

	var replayed int64
	for {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		record, err := jr.Next()
		if err != nil {
			if err == io.EOF {
				return replayed, nil
			}
			return replayed, err
		}
		if _, err := io.WriteString(w, record.Line+"\n"); err != nil {
			return replayed, fmt.Errorf("replay write: %w", err)
		}
		replayed++
	}
}
