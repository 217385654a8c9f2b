package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gogpu/pipecache"
	"github.com/gogpu/pipecache/pipeline"
)

// idlePoll is how often waitIdle checks the state cache.
const idlePoll = 10 * time.Millisecond

// defaultTarget is the render target of the offline device.
var defaultTarget = pipeline.RenderTarget{SampleCount: 1}

// session is one manager on the offline device plus the shaders loaded
// into it.
type session struct {
	cfg     Config
	device  *pipeline.NopDevice
	manager *pipeline.Manager
	shaders *shaderSet
}

// openSession loads the shaders, creates the manager and registers every
// shader with it, which starts replaying the state cache.
func openSession(ctx context.Context, cfg Config) (*session, error) {
	shaders, err := loadShaders(ctx, cfg.Shaders, cfg.Workers)
	if err != nil {
		return nil, err
	}

	device := pipeline.NewNopDevice(pipeline.DeviceOptions{EnableStateCache: cfg.StateCache})
	s := &session{
		cfg:    cfg,
		device: device,
		manager: pipecache.NewManager(device, pipeline.StaticPassPool(defaultTarget), pipecache.Config{
			EnableStateCache: cfg.StateCache,
			StateCachePath:   cfg.Cache,
			Workers:          cfg.Workers,
		}),
		shaders: shaders,
	}

	for _, m := range shaders.list() {
		s.manager.RegisterShader(m)
	}
	return s, nil
}

// compileManifest creates and compiles every pipeline in the manifest at
// path. Compile errors are collected; the remaining pipelines still compile.
func (s *session) compileManifest(path string) error {
	m, err := readManifest(path)
	if err != nil {
		return err
	}

	var errs []error
	for _, spec := range m.Compute {
		key, err := spec.key(s.shaders)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p := s.manager.CreateComputePipeline(key)
		if p == nil {
			errs = append(errs, fmt.Errorf("compute %q: rejected", spec.CS))
			continue
		}
		if _, err := p.Compile(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, spec := range m.Graphics {
		key, err := spec.key(s.shaders)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p := s.manager.CreateGraphicsPipeline(key)
		if p == nil {
			errs = append(errs, fmt.Errorf("graphics %q: rejected", spec.VS))
			continue
		}
		if _, err := p.Variant(spec.target(defaultTarget)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// waitIdle blocks until background compilation finishes or ctx is done.
func (s *session) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for s.manager.IsCompilingShaders() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// report prints pipeline counts.
func (s *session) report(out io.Writer) {
	count := s.manager.PipelineCount()
	hits, misses := s.manager.Stats()
	fmt.Fprintf(out, "shaders:   %d\n", len(s.shaders.list()))
	fmt.Fprintf(out, "compute:   %d\n", count.Compute)
	fmt.Fprintf(out, "graphics:  %d\n", count.Graphics)
	fmt.Fprintf(out, "compiled:  %d\n", s.device.NopCompiler().Compiled())
	fmt.Fprintf(out, "lookups:   %d hits, %d misses\n", hits, misses)
}

// close closes the manager, which flushes the state cache, and releases
// the loaded shaders.
func (s *session) close() error {
	err := s.manager.Close()
	s.shaders.release()
	return err
}
