package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/brine/codec"
	"github.com/pithecene-io/brine/iox"
)

// ResolveCommand returns the resolve command.
// Resolve consumes a stream, waits for every deferred leaf, and prints
// the fully materialized value as JSON. Leaf failures appear as
// {"$error": message} markers.
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Consume a brine stream and print its fully resolved value",
		ArgsUsage: "[file]",
		Action:    resolveAction,
	}
}

func resolveAction(c *cli.Context) error {
	src, closeInput, err := openInput(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeInput()

	consumer, err := codec.Consume(c.Context, codec.ConsumeOptions{From: src})
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve: %v", err), 1)
	}
	defer iox.DiscardClose(consumer)

	head, err := consumer.Head(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve: %v", err), 1)
	}

	materialized, err := codec.Materialize(c.Context, head)
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve: %v", err), 1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(materialized)
}
