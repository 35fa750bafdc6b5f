package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/brine/journal"
)

// ReplayCommand returns the replay command.
// Replay re-emits a captured journal as the original byte stream.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Re-emit a captured journal (.mpj) as the original stream on stdout",
		ArgsUsage: "<file.mpj>",
		Action:    replayAction,
	}
}

func replayAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("replay: journal file required", 1)
	}

	path := c.Args().First()
	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("replay: open %s: %v", path, err), 1)
	}
	defer func() { _ = f.Close() }()

	if _, err := journal.Replay(c.Context, f, os.Stdout); err != nil {
		return cli.Exit(fmt.Sprintf("replay: %v", err), 1)
	}
	return nil
}
