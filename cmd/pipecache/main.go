// Command pipecache warms, watches and inspects pipeline state caches.
//
// Usage:
//
//	pipecache warm    [flags]   load shaders, replay the state cache, compile a manifest
//	pipecache watch   [flags]   like warm, then register shaders as they appear
//	pipecache inspect [flags]   list the entries of a state cache file
//
// Shaders are WGSL files named <label>.<stage>.wgsl, where stage is one of
// vert, tesc, tese, geom, frag or comp.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr, os.Args, os.Environ())
	stop()
	os.Exit(code)
}
