// Package statecache records the shader combinations an application
// compiles and replays them in the background on later runs.
//
// A Cache persists one Entry per compiled pipeline, keyed by the content
// hashes of its shaders. On the next run, shaders are announced with
// RegisterShader as they load; once every shader of a persisted entry is
// known, the entry is compiled on a worker pool through the manager that
// owns the cache. Later requests for the same combination then find a
// ready pipeline.
package statecache

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gogpu/pipecache/internal/parallel"
	"github.com/gogpu/pipecache/pipeline"
	"github.com/gogpu/pipecache/shader"
)

// ErrNilCreator is returned by New without a pipeline creator.
var ErrNilCreator = errors.New("statecache: creator is nil")

// Options configures a Cache.
type Options struct {
	// Path is the file entries are loaded from and flushed to.
	// Empty keeps the cache in memory only.
	Path string

	// Workers is the number of background compile workers.
	// 0 or negative uses GOMAXPROCS.
	Workers int
}

// Stats is a snapshot of cache activity.
type Stats struct {
	// Entries is the number of known entries (loaded plus recorded).
	Entries int

	// Shaders is the number of distinct shader contents registered.
	Shaders int

	// Replayed counts scheduled entries that compiled.
	Replayed uint64

	// Failed counts scheduled entries that failed to compile.
	Failed uint64
}

// Cache is a background pipeline state cache. It implements
// pipeline.StateCache and pipeline.Recorder.
//
// Thread Safety:
// Cache is safe for concurrent use. One mutex guards the indexes; compile
// jobs run on the worker pool without holding it.
type Cache struct {
	creator pipeline.Creator
	passes  pipeline.RenderPassPool
	path    string
	pool    *parallel.WorkerPool

	mu sync.Mutex

	// shaders maps a stage and content hash to the first module registered
	// with them. Each module holds a reference released by Close.
	shaders map[shaderRef]*shader.Module

	// entries in load/record order; index maps an entry to its position.
	entries []Entry
	index   map[Entry]int

	// scheduled is parallel to entries.
	scheduled []bool

	// waiting maps a shader reference to the entries that use it and are
	// not scheduled yet.
	waiting map[shaderRef][]int

	dirty  bool
	closed bool

	replayed atomic.Uint64
	failed   atomic.Uint64
}

var (
	_ pipeline.StateCache = (*Cache)(nil)
	_ pipeline.Recorder   = (*Cache)(nil)
)

// New creates a cache that replays entries through creator.
//
// Entries are loaded from opts.Path. A missing file starts an empty cache;
// an unreadable or corrupt file is logged and ignored, and is overwritten
// by the next flush.
func New(creator pipeline.Creator, passes pipeline.RenderPassPool, opts Options) (*Cache, error) {
	if creator == nil {
		return nil, ErrNilCreator
	}
	if passes == nil {
		passes = pipeline.StaticPassPool{}
	}

	c := &Cache{
		creator: creator,
		passes:  passes,
		path:    opts.Path,
		shaders: make(map[shaderRef]*shader.Module),
		index:   make(map[Entry]int),
		waiting: make(map[shaderRef][]int),
	}

	if c.path != "" {
		entries, err := ReadFile(c.path)
		switch {
		case err == nil:
			for _, e := range entries {
				c.add(e, false)
			}
			slogger().Info("statecache: loaded", "path", c.path, "entries", len(c.entries))
		case errors.Is(err, os.ErrNotExist):
			slogger().Debug("statecache: no cache file", "path", c.path)
		default:
			slogger().Warn("statecache: ignoring unreadable cache file", "path", c.path, "err", err)
		}
	}

	c.pool = parallel.NewWorkerPool(opts.Workers)
	return c, nil
}

// Factory returns a pipeline.StateCacheFactory that builds caches with opts.
func Factory(opts Options) pipeline.StateCacheFactory {
	return func(creator pipeline.Creator, passes pipeline.RenderPassPool) (pipeline.StateCache, error) {
		c, err := New(creator, passes, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// add appends e unless it is known. Recorded entries are already compiled
// and are never scheduled. Must be called with mu held (or before the
// cache is shared).
func (c *Cache) add(e Entry, recorded bool) bool {
	if _, ok := c.index[e]; ok {
		return false
	}
	i := len(c.entries)
	c.entries = append(c.entries, e)
	c.index[e] = i
	c.scheduled = append(c.scheduled, recorded)
	if !recorded {
		for slot := range e.Hashes {
			if ref, ok := e.ref(slot); ok {
				c.waiting[ref] = append(c.waiting[ref], i)
			}
		}
	}
	return true
}

// RegisterShader announces a loaded shader. The first module registered
// for a stage and content hash is kept; later modules with the same stage
// and content are ignored. Every entry whose shaders are now all known is scheduled for
// background compilation.
func (c *Cache) RegisterShader(s *shader.Module) {
	if s == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	ref := shaderRef{stage: s.Stage(), hash: s.Hash()}
	if _, ok := c.shaders[ref]; ok {
		return
	}
	c.shaders[ref] = s.Retain()

	ready := c.waiting[ref]
	delete(c.waiting, ref)
	for _, i := range ready {
		if c.scheduled[i] || !c.resolvable(c.entries[i]) {
			continue
		}
		c.scheduled[i] = true
		c.schedule(c.entries[i])
	}
}

// resolvable reports whether every slot of e has a registered shader of
// the recorded stage.
func (c *Cache) resolvable(e Entry) bool {
	for slot := range e.Hashes {
		ref, ok := e.ref(slot)
		if !ok {
			continue
		}
		if _, ok := c.shaders[ref]; !ok {
			return false
		}
	}
	return true
}

// module returns the registered shader of slot in e, or nil for an empty
// slot.
func (c *Cache) module(e Entry, slot int) *shader.Module {
	ref, ok := e.ref(slot)
	if !ok {
		return nil
	}
	return c.shaders[ref]
}

// schedule submits the compile job of e. Must be called with mu held.
func (c *Cache) schedule(e Entry) {
	switch e.Kind {
	case pipeline.KindCompute:
		key := pipeline.ComputeShaders{CS: c.module(e, SlotCS)}
		c.pool.Submit(func() { c.replayCompute(key) })
	case pipeline.KindGraphics:
		key := pipeline.GraphicsShaders{
			VS:  c.module(e, SlotVS),
			TCS: c.module(e, SlotTCS),
			TES: c.module(e, SlotTES),
			GS:  c.module(e, SlotGS),
			FS:  c.module(e, SlotFS),
		}
		target := e.Target
		if target.IsZero() {
			target = c.passes.DefaultTarget()
		}
		c.pool.Submit(func() { c.replayGraphics(key, target) })
	}
}

func (c *Cache) replayCompute(key pipeline.ComputeShaders) {
	p := c.creator.CreateComputePipeline(key)
	if p == nil {
		return
	}
	if _, err := p.Compile(); err != nil {
		c.failed.Add(1)
		return
	}
	c.replayed.Add(1)
}

func (c *Cache) replayGraphics(key pipeline.GraphicsShaders, target pipeline.RenderTarget) {
	p := c.creator.CreateGraphicsPipeline(key)
	if p == nil {
		return
	}
	if _, err := p.Variant(target); err != nil {
		c.failed.Add(1)
		return
	}
	c.replayed.Add(1)
}

// IsCompilingShaders reports whether compile jobs are queued or running.
func (c *Cache) IsCompilingShaders() bool {
	return c.pool.Busy()
}

// Wait blocks until all scheduled compile jobs have finished.
func (c *Cache) Wait() {
	c.pool.Wait()
}

// RecordComputePipeline adds the entry of a compiled compute pipeline.
func (c *Cache) RecordComputePipeline(key pipeline.ComputeShaders) {
	c.record(ComputeEntry(key))
}

// RecordGraphicsPipeline adds the entry of a compiled graphics variant.
func (c *Cache) RecordGraphicsPipeline(key pipeline.GraphicsShaders, target pipeline.RenderTarget) {
	c.record(GraphicsEntry(key, target))
}

func (c *Cache) record(e Entry) {
	if !e.valid() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.add(e, true) {
		c.dirty = true
		slogger().Debug("statecache: recorded", "entry", e.String())
	}
}

// Entries returns a copy of the known entries in load/record order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{Entries: len(c.entries), Shaders: len(c.shaders)}
	c.mu.Unlock()

	s.Replayed = c.replayed.Load()
	s.Failed = c.failed.Load()
	return s
}

// Flush writes the entries to the cache file if anything was recorded
// since the last flush. It does nothing for an in-memory cache.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	if c.path == "" || !c.dirty {
		return nil
	}
	if err := WriteFile(c.path, c.entries); err != nil {
		return err
	}
	c.dirty = false
	slogger().Info("statecache: flushed", "path", c.path, "entries", len(c.entries))
	return nil
}

// Close stops accepting shaders, waits for scheduled compiles, flushes
// and releases the registered shaders. Entries recorded after Close are
// kept in memory but not written. Close is safe to call multiple
// times; later calls return nil.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	// Jobs record through c.mu, so the pool drains without it.
	c.pool.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.flushLocked()
	for ref, s := range c.shaders {
		s.Release()
		delete(c.shaders, ref)
	}
	return err
}
