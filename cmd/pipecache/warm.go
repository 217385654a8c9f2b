package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

func warmCommand(env []string, logOut io.Writer) *Command {
	fs := flag.NewFlagSet("warm", flag.ContinueOnError)
	flags := newConfigFlags(fs)

	return &Command{
		Flags: fs,
		Usage: "warm [flags]",
		Short: "Load shaders, replay the state cache and compile a manifest",
		Exec: func(ctx context.Context, out io.Writer, _ []string) error {
			cfg, err := flags.resolve(env)
			if err != nil {
				return err
			}
			enableLogging(logOut, cfg.Verbose)
			return warm(ctx, out, cfg)
		},
	}
}

// warm runs one session to completion.
func warm(ctx context.Context, out io.Writer, cfg Config) (err error) {
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close())
	}()

	if cfg.Pipelines != "" {
		if err := s.compileManifest(cfg.Pipelines); err != nil {
			return fmt.Errorf("compiling manifest: %w", err)
		}
	}
	if err := s.waitIdle(ctx); err != nil {
		return err
	}

	s.report(out)
	return nil
}
