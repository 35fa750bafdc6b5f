package tui

import (
	"strings"
	"testing"

	"github.com/pithecene-io/brine/inspect"
	"github.com/pithecene-io/brine/types"
)

func testSummary() *inspect.Summary {
	return &inspect.Summary{
		HeadKeys:    []string{"x", "xs"},
		HeadEntries: 2,
		Lines:       5,
		Bytes:       120,
		Chunks: []*inspect.ChunkInfo{
			{ID: 0, Kind: types.KindPromise, KindKnown: true, Values: 1, Terminal: "fulfilled", FirstLine: 2},
			{ID: 1, Kind: types.KindSequence, KindKnown: true, Values: 2, FirstLine: 3},
		},
		Dangling:  []int64{1},
		Anomalies: []string{"line 4: not valid JSON"},
	}
}

func TestRenderInspectStatic_ContainsSummary(t *testing.T) {
	out := RenderInspectStatic(testSummary())

	for _, want := range []string{"Stream Summary", "promise", "sequence", "fulfilled", "outstanding", "not valid JSON"} {
		if !strings.Contains(out, want) {
			t.Errorf("static render missing %q", want)
		}
	}
}

func TestTerminalStyle_States(t *testing.T) {
	if TerminalStyle("fulfilled").GetForeground() != SuccessStyle.GetForeground() {
		t.Error("fulfilled should use success style")
	}
	if TerminalStyle("error").GetForeground() != ErrorStyle.GetForeground() {
		t.Error("error should use error style")
	}
	if TerminalStyle("").GetForeground() != WarningStyle.GetForeground() {
		t.Error("outstanding should use warning style")
	}
}
