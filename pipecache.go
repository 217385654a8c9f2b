package pipecache

import (
	"github.com/gogpu/pipecache/pipeline"
	"github.com/gogpu/pipecache/statecache"
)

// Config configures a Manager built by NewManager.
type Config struct {
	// EnableStateCache requests a background state cache. The device
	// must allow it too (pipeline.DeviceOptions.EnableStateCache).
	EnableStateCache bool

	// StateCachePath is the state cache file. Empty keeps the state
	// cache in memory.
	StateCachePath string

	// Workers is the number of background compile workers.
	// 0 uses GOMAXPROCS.
	Workers int
}

// NewManager creates a pipeline manager for device, with a
// statecache.Cache when cfg and the device enable it.
func NewManager(device pipeline.Device, passes pipeline.RenderPassPool, cfg Config) *pipeline.Manager {
	opts := pipeline.Options{EnableStateCache: cfg.EnableStateCache}
	if cfg.EnableStateCache {
		opts.StateCache = statecache.Factory(statecache.Options{
			Path:    cfg.StateCachePath,
			Workers: cfg.Workers,
		})
	}

	m := pipeline.NewManager(device, passes, opts)
	Logger().Debug("pipecache: manager ready",
		"state_cache", m.HasStateCache(),
		"path", cfg.StateCachePath)
	return m
}
