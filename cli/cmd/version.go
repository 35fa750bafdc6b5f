package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/brine/types"
)

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the brine version",
		Action: func(c *cli.Context) error {
			if commit != "" {
				fmt.Printf("brine %s (commit: %s)\n", types.Version, commit)
			} else {
				fmt.Printf("brine %s\n", types.Version)
			}
			return nil
		},
	}
}
