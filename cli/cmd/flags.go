// Package cmd implements the brine CLI commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/brine/cli/config"
)

// ConfigFlag is the shared --config flag.
func ConfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a brine.yaml config file",
	}
}

// JSONFlag is the shared --json output flag.
func JSONFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "emit machine-readable JSON output",
	}
}

// TUIFlag is the shared --tui flag for read-only views.
func TUIFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "tui",
		Usage: "render an interactive terminal view",
	}
}

// loadConfig loads the config file named by --config, or returns an
// empty config when the flag is absent.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// openInput opens the positional file argument, or stdin when absent.
// The returned closer is a no-op for stdin.
func openInput(c *cli.Context) (io.Reader, func(), error) {
	if c.NArg() < 1 || c.Args().First() == "-" {
		return os.Stdin, func() {}, nil
	}

	path := c.Args().First()
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
