package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/brine/cli/tui"
	"github.com/pithecene-io/brine/inspect"
)

// InspectCommand returns the inspect command.
// Inspect is read-only: it scans a stream and summarizes its chunk-ids.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Summarize a brine stream (file or stdin)",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			JSONFlag(),
			TUIFlag(),
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	src, closeInput, err := openInput(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeInput()

	summary, err := inspect.Scan(src)
	if err != nil {
		return cli.Exit(fmt.Sprintf("inspect: %v", err), 1)
	}

	if c.Bool("tui") {
		return tui.RunInspectTUI(summary)
	}
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	renderSummary(summary)
	return nil
}

// renderSummary prints a human-readable stream summary to stdout.
func renderSummary(summary *inspect.Summary) {
	fmt.Printf("Stream: %d lines, %d bytes, %d head entries\n",
		summary.Lines, summary.Bytes, summary.HeadEntries)
	if len(summary.HeadKeys) > 0 {
		fmt.Printf("Head keys: %v\n", summary.HeadKeys)
	}

	if len(summary.Chunks) > 0 {
		fmt.Printf("\nChunk IDs:\n")
		for _, chunk := range summary.Chunks {
			kind := "?"
			if chunk.KindKnown {
				kind = chunk.Kind.String()
			}
			terminal := chunk.Terminal
			if terminal == "" {
				terminal = "outstanding"
			}
			fmt.Printf("  %4d  %-9s values=%-5d %s\n", chunk.ID, kind, chunk.Values, terminal)
		}
	}

	if len(summary.Dangling) > 0 {
		fmt.Printf("\nDangling ids: %v\n", summary.Dangling)
	}
	if len(summary.Anomalies) > 0 {
		fmt.Printf("\nAnomalies:\n")
		for _, anomaly := range summary.Anomalies {
			fmt.Printf("  %s\n", anomaly)
		}
	}
}
