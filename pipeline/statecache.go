package pipeline

import "github.com/gogpu/pipecache/shader"

// StateCache is a background cache that persists the shader combinations an
// application uses and recompiles them asynchronously on later runs.
//
// A StateCache that also implements Recorder is told about every pipeline
// that compiles successfully.
type StateCache interface {
	// RegisterShader announces a newly loaded shader.
	RegisterShader(s *shader.Module)

	// IsCompilingShaders reports whether background compilation is in
	// progress. Advisory only.
	IsCompilingShaders() bool

	// Close stops background work and persists pending state.
	Close() error
}

// Creator is the part of a Manager that a state cache calls back into to
// instantiate replayed pipelines.
type Creator interface {
	CreateComputePipeline(key ComputeShaders) *ComputePipeline
	CreateGraphicsPipeline(key GraphicsShaders) *GraphicsPipeline
}

// StateCacheFactory builds the state cache of a Manager. It runs inside
// NewManager and must not create pipelines synchronously.
type StateCacheFactory func(creator Creator, passes RenderPassPool) (StateCache, error)
