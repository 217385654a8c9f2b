package main

import (
	"context"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/gogpu/pipecache/pipeline"
	"github.com/gogpu/pipecache/statecache"
)

func inspectCommand() *Command {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	path := fs.String("cache", DefaultConfig().Cache, "state cache file")

	return &Command{
		Flags: fs,
		Usage: "inspect [--cache FILE]",
		Short: "List the entries of a state cache file",
		Exec: func(_ context.Context, out io.Writer, _ []string) error {
			return inspect(out, *path)
		},
	}
}

func inspect(out io.Writer, path string) error {
	entries, err := statecache.ReadFile(path)
	if err != nil {
		return err
	}

	var compute, graphics int
	for i, e := range entries {
		fmt.Fprintf(out, "%4d  %s\n", i, e)
		switch e.Kind {
		case pipeline.KindCompute:
			compute++
		case pipeline.KindGraphics:
			graphics++
		}
	}
	fmt.Fprintf(out, "%d entries (%d compute, %d graphics)\n", len(entries), compute, graphics)
	return nil
}
