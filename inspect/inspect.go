// Package inspect provides offline analysis of brine streams.
//
// Scan reads a complete stream and produces a per-chunk-id accounting:
// which ids were referenced, what kind they were declared as, how many
// events each carried, and whether a terminal chunk arrived. The CLI
// inspect command and TUI render this summary.
package inspect

import (
	"fmt"
	"io"
	"sort"

	"github.com/pithecene-io/brine/types"
	"github.com/pithecene-io/brine/wire"
)

// ChunkInfo is the accounting for a single chunk-id.
type ChunkInfo struct {
	// ID is the chunk-id.
	ID int64
	// Kind is the declared kind from the referencing descriptor.
	// Valid only when KindKnown is true.
	Kind types.Kind
	// KindKnown reports whether a descriptor for the id was seen.
	KindKnown bool
	// Values counts fulfilled/value events observed for the id.
	Values int64
	// Terminal is the terminal event name, empty while outstanding:
	// "fulfilled", "rejected", "done", or "error".
	Terminal string
	// FirstLine is the 1-based line number of the id's first chunk,
	// zero if no chunk was observed.
	FirstLine int64
}

// Summary is the result of scanning a complete stream.
type Summary struct {
	// HeadKeys lists the head's top-level keys in sorted order. Nil for
	// array heads.
	HeadKeys []string
	// HeadEntries is the number of top-level entries.
	HeadEntries int
	// Lines is the total number of framed lines, head included.
	Lines int64
	// Bytes is the total stream size in bytes.
	Bytes int64
	// Chunks lists per-id accounting ordered by id.
	Chunks []*ChunkInfo
	// Dangling lists ids that were referenced but never terminated.
	Dangling []int64
	// Anomalies lists wire-level irregularities with line numbers.
	Anomalies []string
}

// scanner accumulates scan state.
type scanner struct {
	ids       map[int64]*ChunkInfo
	anomalies []string
}

// Scan reads a complete stream from r and summarizes it. A scan never
// fails on wire irregularities; they are reported as anomalies. Only
// transport read errors are returned.
func Scan(r io.Reader) (*Summary, error) {
	s := &scanner{ids: make(map[int64]*ChunkInfo)}
	summary := &Summary{}

	counting := &countingReader{r: r}
	lr := wire.NewLineReader(counting)

	var lineNo int64
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("scan read: %w", err)
		}
		lineNo++
		summary.Lines++

		value, derr := wire.DecodeLine(line)
		if derr != nil {
			s.note(lineNo, "not valid JSON")
			continue
		}

		if lineNo == 1 {
			s.scanHead(value, summary)
			continue
		}
		s.scanChunk(lineNo, value)
	}

	summary.Bytes = counting.n
	summary.Chunks = s.ordered()
	for _, info := range summary.Chunks {
		if info.Terminal == "" && info.KindKnown {
			summary.Dangling = append(summary.Dangling, info.ID)
		}
		if !info.KindKnown {
			s.note(info.FirstLine, fmt.Sprintf("chunk-id %d observed but never referenced", info.ID))
		}
	}
	summary.Anomalies = s.anomalies
	return summary, nil
}

// note records an anomaly with its line number.
func (s *scanner) note(line int64, msg string) {
	s.anomalies = append(s.anomalies, fmt.Sprintf("line %d: %s", line, msg))
}

// scanHead records head shape and reference descriptors.
func (s *scanner) scanHead(value any, summary *Summary) {
	switch head := value.(type) {
	case map[string]any:
		summary.HeadEntries = len(head)
		for k, raw := range head {
			summary.HeadKeys = append(summary.HeadKeys, k)
			s.scanDehydrated(1, raw)
		}
		sort.Strings(summary.HeadKeys)
	case []any:
		summary.HeadEntries = len(head)
		for _, raw := range head {
			s.scanDehydrated(1, raw)
		}
	default:
		s.note(1, fmt.Sprintf("head is %T, want mapping or array", value))
	}
}

// scanDehydrated records the descriptors of one dehydrated value.
func (s *scanner) scanDehydrated(line int64, raw any) {
	d, err := types.ParseDehydrated(raw)
	if err != nil {
		s.note(line, err.Error())
		return
	}
	for _, ref := range d.Refs {
		info := s.info(ref.ID)
		if info.KindKnown && info.Kind != ref.Kind {
			s.note(line, fmt.Sprintf("chunk-id %d re-referenced with different kind", ref.ID))
			continue
		}
		info.Kind = ref.Kind
		info.KindKnown = true
	}
}

// scanChunk interprets one chunk line against the declared kind.
func (s *scanner) scanChunk(line int64, value any) {
	chunk, err := types.ParseChunk(value)
	if err != nil {
		s.note(line, err.Error())
		return
	}

	info := s.info(chunk.ID)
	if info.FirstLine == 0 {
		info.FirstLine = line
	}
	if info.Terminal != "" {
		s.note(line, fmt.Sprintf("chunk-id %d already terminated with %s", chunk.ID, info.Terminal))
		return
	}
	if !info.KindKnown {
		// Status codes are ambiguous without the declared kind; the id is
		// recorded but its status is not interpreted. Reported at end of scan if never declared.
		return
	}

	switch info.Kind {
	case types.KindPromise:
		switch chunk.Status {
		case types.PromiseFulfilled:
			info.Values++
			info.Terminal = "fulfilled"
			s.scanDehydrated(line, chunk.Payload)
		case types.PromiseRejected:
			info.Terminal = "rejected"
		default:
			s.note(line, fmt.Sprintf("chunk-id %d has unexpected promise status %d", chunk.ID, chunk.Status))
		}

	case types.KindSequence:
		switch chunk.Status {
		case types.SequenceValue:
			info.Values++
			s.scanDehydrated(line, chunk.Payload)
		case types.SequenceDone:
			info.Terminal = "done"
		case types.SequenceError:
			info.Terminal = "error"
		default:
			s.note(line, fmt.Sprintf("chunk-id %d has unexpected sequence status %d", chunk.ID, chunk.Status))
		}
	}
}

// info returns the accounting entry for id, creating it on first use.
func (s *scanner) info(id int64) *ChunkInfo {
	if info, ok := s.ids[id]; ok {
		return info
	}
	info := &ChunkInfo{ID: id}
	s.ids[id] = info
	return info
}

// ordered returns the per-id accounting sorted by id.
func (s *scanner) ordered() []*ChunkInfo {
	chunks := make([]*ChunkInfo, 0, len(s.ids))
	for _, info := range s.ids {
		chunks = append(chunks, info)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	return chunks
}

// countingReader tracks total bytes read.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
