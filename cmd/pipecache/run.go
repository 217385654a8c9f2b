package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gogpu/pipecache"
)

// run dispatches args[1] to a subcommand and returns the exit code.
// env is the process environment as KEY=VALUE pairs.
func run(ctx context.Context, out, errOut io.Writer, args []string, env []string) int {
	commands := []*Command{
		warmCommand(env, errOut),
		watchCommand(env, errOut),
		inspectCommand(),
	}

	if len(args) < 2 || args[1] == "-h" || args[1] == "--help" || args[1] == "help" {
		printUsage(out, commands)
		return 0
	}

	for _, c := range commands {
		if c.Name() == args[1] {
			return c.Run(ctx, out, errOut, args[2:])
		}
	}

	fmt.Fprintf(errOut, "error: unknown command %q\n\n", args[1])
	printUsage(errOut, commands)
	return 1
}

func printUsage(w io.Writer, commands []*Command) {
	fmt.Fprintln(w, "Usage: pipecache <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintln(w, c.HelpLine())
	}
}

// enableLogging routes library logs to w.
func enableLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	pipecache.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
