package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"

	"github.com/gogpu/pipecache"
)

func watchCommand(env []string, logOut io.Writer) *Command {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	flags := newConfigFlags(fs)

	return &Command{
		Flags: fs,
		Usage: "watch [flags]",
		Short: "Like warm, then register shaders written to the shader directory until interrupted",
		Exec: func(ctx context.Context, out io.Writer, _ []string) error {
			cfg, err := flags.resolve(env)
			if err != nil {
				return err
			}
			enableLogging(logOut, cfg.Verbose)
			return watch(ctx, out, cfg)
		},
	}
}

// watch runs a session and registers shaders as they are written to the
// top level of the shader directory. It returns when ctx is done.
func watch(ctx context.Context, out io.Writer, cfg Config) (err error) {
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close())
	}()

	if cfg.Pipelines != "" {
		if err := s.compileManifest(cfg.Pipelines); err != nil {
			pipecache.Logger().Warn("pipecache: manifest", "err", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Shaders); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.Shaders, err)
	}
	s.report(out)

	for {
		select {
		case <-ctx.Done():
			if err := s.waitIdle(context.Background()); err != nil {
				return err
			}
			s.report(out)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isShaderFile(event.Name) {
				continue
			}
			s.register(out, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			pipecache.Logger().Warn("pipecache: watcher error", "err", err)
		}
	}
}

// register loads the shader at path and announces it to the manager.
// Load errors are reported and the shader is skipped.
func (s *session) register(out io.Writer, path string) {
	m, err := loadShaderFile(path)
	if err != nil {
		fmt.Fprintf(out, "skip %s: %v\n", path, err)
		return
	}
	if old := s.shaders.add(m); old != nil {
		old.Release()
	}
	s.manager.RegisterShader(m)
	fmt.Fprintf(out, "registered %s (%s %s)\n", path, m.Stage(), m.Label())
}
