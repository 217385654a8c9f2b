package pipeline

import (
	"sync"

	"github.com/gogpu/pipecache/cache"
	"github.com/gogpu/pipecache/shader"
)

// Options configures a Manager.
type Options struct {
	// EnableStateCache requests a background state cache. The cache is
	// only created if the device allows it as well.
	EnableStateCache bool

	// StateCache builds the state cache. Nil disables it.
	StateCache StateCacheFactory
}

// Manager creates and owns pipeline objects, one per unique shader
// combination.
//
// Keys are hashed by the content of their shaders but compared by shader
// identity: two keys map to the same pipeline only if every stage holds
// the same *shader.Module. Pointers returned by CreateComputePipeline and
// CreateGraphicsPipeline stay valid until Close.
//
// Thread Safety:
// Manager is safe for concurrent use. Each pipeline kind lives in its own
// sharded table; creation of a key runs under the lock of its shard, so
// concurrent requests for the same key construct exactly one object.
//
// Usage:
//
//	m := pipeline.NewManager(device, passes, pipeline.Options{})
//	p := m.CreateGraphicsPipeline(pipeline.GraphicsShaders{VS: vs, FS: fs})
//	exec, err := p.Variant(target)
type Manager struct {
	device Device
	env    env

	computePipelines  *cache.Table[ComputeShaders, ComputePipeline]
	graphicsPipelines *cache.Table[GraphicsShaders, GraphicsPipeline]

	// stateCache is nil when disabled. Fixed after NewManager returns.
	stateCache StateCache

	counters counters

	// lifeMu guards closed. Creation holds it shared, Close exclusively.
	lifeMu sync.RWMutex
	closed bool

	// closeOnce runs the shutdown; every Close call waits for it.
	closeOnce sync.Once
	closeErr  error
}

// NewManager creates a pipeline manager for device.
//
// The state cache is created only if opts.EnableStateCache is set, the
// device allows it, and a factory is given. A factory error disables the
// state cache; the manager itself never fails.
func NewManager(device Device, passes RenderPassPool, opts Options) *Manager {
	m := &Manager{
		device: device,
		computePipelines: cache.NewTable[ComputeShaders, ComputePipeline](
			HashComputeShaders, EqualComputeShaders),
		graphicsPipelines: cache.NewTable[GraphicsShaders, GraphicsPipeline](
			HashGraphicsShaders, EqualGraphicsShaders),
	}
	m.env = env{
		compiler: device.Compiler(),
		sink:     &m.counters,
	}

	if opts.EnableStateCache && device.Options().EnableStateCache && opts.StateCache != nil {
		sc, err := opts.StateCache(m, passes)
		if err != nil {
			slogger().Warn("pipeline: state cache disabled", "err", err)
		} else if sc != nil {
			m.stateCache = sc
			if r, ok := sc.(Recorder); ok {
				m.env.recorder = r
			}
		}
	}

	slogger().Debug("pipeline: manager created", "state_cache", m.stateCache != nil)
	return m
}

// Device returns the manager's device.
func (m *Manager) Device() Device { return m.device }

// CreateComputePipeline returns the pipeline for key, creating it on first
// request. It returns nil if the key has no compute shader or the manager
// is closed.
func (m *Manager) CreateComputePipeline(key ComputeShaders) *ComputePipeline {
	if !key.Valid() {
		slogger().Debug("pipeline: compute key without compute shader rejected")
		return nil
	}

	m.lifeMu.RLock()
	defer m.lifeMu.RUnlock()
	if m.closed {
		return nil
	}

	p, created := m.computePipelines.GetOrCreate(key, func() *ComputePipeline {
		p := newComputePipeline(m.env, key)
		key.retain()
		return p
	})
	if created {
		slogger().Debug("pipeline: compute pipeline created", "key", key.String())
	}
	return p
}

// CreateGraphicsPipeline returns the pipeline for key, creating it on first
// request. It returns nil if the key has no vertex shader or the manager
// is closed.
func (m *Manager) CreateGraphicsPipeline(key GraphicsShaders) *GraphicsPipeline {
	if !key.Valid() {
		slogger().Debug("pipeline: graphics key without vertex shader rejected")
		return nil
	}

	m.lifeMu.RLock()
	defer m.lifeMu.RUnlock()
	if m.closed {
		return nil
	}

	p, created := m.graphicsPipelines.GetOrCreate(key, func() *GraphicsPipeline {
		p := newGraphicsPipeline(m.env, key)
		key.retain()
		return p
	})
	if created {
		slogger().Debug("pipeline: graphics pipeline created", "key", key.String())
	}
	return p
}

// RegisterShader forwards a newly loaded shader to the state cache
// unchanged. Without a state cache it does nothing.
func (m *Manager) RegisterShader(s *shader.Module) {
	if m.stateCache != nil {
		m.stateCache.RegisterShader(s)
	}
}

// PipelineCount returns the number of pipelines created per kind.
// The two counts are read independently.
func (m *Manager) PipelineCount() Count {
	return m.counters.snapshot()
}

// IsCompilingShaders reports whether the state cache is compiling in the
// background. It is false without a state cache.
func (m *Manager) IsCompilingShaders() bool {
	return m.stateCache != nil && m.stateCache.IsCompilingShaders()
}

// HasStateCache reports whether a state cache is configured.
func (m *Manager) HasStateCache() bool { return m.stateCache != nil }

// Stats returns lookup statistics summed over both pipeline kinds.
// Hits are requests answered by an existing pipeline, misses created one.
func (m *Manager) Stats() (hits, misses uint64) {
	ch, cm := m.computePipelines.Stats()
	gh, gm := m.graphicsPipelines.Stats()
	return ch + gh, cm + gm
}

// Close shuts down the state cache, destroys every pipeline's executables
// and releases the shaders held by the keys. Further creation returns nil.
// Close is safe to call multiple times and concurrently: the first call
// does the work, and every call returns once it is done, with its error.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.shutdown()
	})
	return m.closeErr
}

func (m *Manager) shutdown() error {
	// The state cache drains its workers first; they may still create
	// pipelines.
	var err error
	if m.stateCache != nil {
		err = m.stateCache.Close()
	}

	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	m.closed = true

	m.computePipelines.Range(func(key ComputeShaders, p *ComputePipeline) bool {
		p.destroy()
		key.release()
		return true
	})
	m.graphicsPipelines.Range(func(key GraphicsShaders, p *GraphicsPipeline) bool {
		p.destroy()
		key.release()
		return true
	})

	count := m.counters.snapshot()
	slogger().Debug("pipeline: manager closed",
		"compute", count.Compute,
		"graphics", count.Graphics)
	return err
}
