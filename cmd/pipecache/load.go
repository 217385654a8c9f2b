package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/pipecache/shader"
)

// errUnknownShader is returned when a manifest names a shader that was not loaded.
var errUnknownShader = errors.New("unknown shader")

// shaderSet is the set of loaded shaders, addressed by stage and label.
type shaderSet struct {
	mu      sync.Mutex
	modules map[shaderName]*shader.Module
}

type shaderName struct {
	stage shader.Stage
	label string
}

func newShaderSet() *shaderSet {
	return &shaderSet{modules: make(map[shaderName]*shader.Module)}
}

// add stores m and returns the module it replaces, if any.
func (s *shaderSet) add(m *shader.Module) *shader.Module {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := shaderName{m.Stage(), m.Label()}
	old := s.modules[name]
	s.modules[name] = m
	return old
}

// lookup returns the shader with label for stage. An empty label is an
// empty slot and returns nil.
func (s *shaderSet) lookup(stage shader.Stage, label string) (*shader.Module, error) {
	if label == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.modules[shaderName{stage, label}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", errUnknownShader, stage, label)
	}
	return m, nil
}

// list returns the shaders ordered by label, then stage.
func (s *shaderSet) list() []*shader.Module {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*shader.Module, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *shader.Module) int {
		if c := strings.Compare(a.Label(), b.Label()); c != 0 {
			return c
		}
		return int(a.Stage()) - int(b.Stage())
	})
	return out
}

// release drops the set's reference to every shader.
func (s *shaderSet) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, m := range s.modules {
		m.Release()
		delete(s.modules, name)
	}
}

// isShaderFile reports whether path names a WGSL shader with a known stage.
func isShaderFile(path string) bool {
	_, _, err := shader.StageFromFileName(path)
	return err == nil
}

// loadShaderFile reads and compiles one shader file.
func loadShaderFile(path string) (*shader.Module, error) {
	stage, label, err := shader.StageFromFileName(path)
	if err != nil {
		return nil, err
	}

	src, err := os.ReadFile(path) //nolint:gosec // path comes from the shader directory
	if err != nil {
		return nil, fmt.Errorf("reading shader: %w", err)
	}

	m, err := shader.FromWGSL(stage, label, string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// loadShaders compiles every shader file under dir, up to workers at a
// time (GOMAXPROCS if workers is 0). Files without a stage suffix are
// skipped.
func loadShaders(ctx context.Context, dir string, workers int) (*shaderSet, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isShaderFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning shaders: %w", err)
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	modules := make([]*shader.Module, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := loadShaderFile(path)
			if err != nil {
				return err
			}
			modules[i] = m
			return nil
		})
	}

	set := newShaderSet()
	if err := g.Wait(); err != nil {
		for _, m := range modules {
			if m != nil {
				m.Release()
			}
		}
		return nil, err
	}

	for _, m := range modules {
		if old := set.add(m); old != nil {
			// Two files with the same label and stage in different
			// directories; the later path wins.
			old.Release()
		}
	}
	return set, nil
}
