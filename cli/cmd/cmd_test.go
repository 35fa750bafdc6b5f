package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/brine/cli/config"
	"github.com/pithecene-io/brine/journal"
)

const sampleStream = "{\"x\":[[0],[null,0,0]]}\n[0,0,[[7]]]\n"

func testApp() *cli.App {
	return &cli.App{
		// Without a handler, cli.Exit errors terminate the test binary
		// instead of being returned from Run.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			InspectCommand(),
			ResolveCommand(),
			RecordCommand(),
			ReplayCommand(),
			VersionCommand("abc123"),
		},
	}
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.jsonl")
	if err := os.WriteFile(path, []byte(sampleStream), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestRecordThenReplay_RoundTrip(t *testing.T) {
	streamPath := writeSample(t)
	journalPath := filepath.Join(t.TempDir(), "capture.mpj")

	app := testApp()
	if err := app.Run([]string{"brine", "record", "--out", journalPath, streamPath}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	f, err := os.Open(journalPath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer func() { _ = f.Close() }()

	var out bytes.Buffer
	replayed, err := journal.Replay(t.Context(), f, &out)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replayed != 2 {
		t.Errorf("replayed = %d, want 2", replayed)
	}
	if out.String() != sampleStream {
		t.Errorf("replay = %q, want original %q", out.String(), sampleStream)
	}
}

func TestResolve_PrintsMaterializedValue(t *testing.T) {
	streamPath := writeSample(t)

	// Swap stdout to capture the command's JSON output.
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	app := testApp()
	runErr := app.Run([]string{"brine", "resolve", streamPath})
	_ = w.Close()
	os.Stdout = old

	if runErr != nil {
		t.Fatalf("resolve failed: %v", runErr)
	}

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"x": 7`)) {
		t.Errorf("resolve output = %q, want resolved x", out.String())
	}
}

func TestRecord_RequiresDestination(t *testing.T) {
	app := testApp()
	err := app.Run([]string{"brine", "record", writeSample(t)})
	if err == nil {
		t.Error("record without --out/--store succeeded")
	}
}

func TestRecord_StoreWithoutConfigFails(t *testing.T) {
	app := testApp()
	err := app.Run([]string{"brine", "record", "--store", writeSample(t)})
	if err == nil {
		t.Error("record --store without storage config succeeded")
	}
}

func TestCollectRecords(t *testing.T) {
	var buf bytes.Buffer
	jw, err := journal.NewWriter(&buf, journal.Manifest{StreamID: "s"})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, line := range []string{"{}", "[0,0]"} {
		if err := jw.Append(line); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := collectRecords(buf.Bytes())
	if err != nil {
		t.Fatalf("collectRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[1].Line != "[0,0]" {
		t.Errorf("records[1].Line = %q, want [0,0]", records[1].Line)
	}
}

func TestNewAdapter(t *testing.T) {
	if _, err := newAdapter(config.AdapterConfig{Type: "carrier-pigeon", URL: "coop://"}); err == nil {
		t.Error("newAdapter accepted unknown type")
	}

	a, err := newAdapter(config.AdapterConfig{Type: "webhook", URL: "https://example.test/hook"})
	if err != nil {
		t.Fatalf("webhook adapter: %v", err)
	}
	_ = a.Close()

	a, err = newAdapter(config.AdapterConfig{Type: "redis", URL: "redis://localhost:6379"})
	if err != nil {
		t.Fatalf("redis adapter: %v", err)
	}
	_ = a.Close()
}

func TestVersionCommand(t *testing.T) {
	app := testApp()
	if err := app.Run([]string{"brine", "version"}); err != nil {
		t.Fatalf("version failed: %v", err)
	}
}
