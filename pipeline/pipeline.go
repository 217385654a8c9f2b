package pipeline

import "errors"

// ErrDestroyed is returned when compiling a pipeline whose manager was closed.
var ErrDestroyed = errors.New("pipeline: pipeline destroyed")

// State is the compile state of a pipeline (or of one graphics variant).
type State uint8

// Compile states.
const (
	// StatePending means no compile has been attempted yet.
	StatePending State = iota

	// StateReady means the executable is available.
	StateReady

	// StateFailed means the last compile attempt failed. The next
	// attempt retries.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Recorder is told about every pipeline that compiles successfully for the
// first time, so the combination can be persisted and replayed later.
type Recorder interface {
	RecordComputePipeline(key ComputeShaders)
	RecordGraphicsPipeline(key GraphicsShaders, target RenderTarget)
}

// env is what a pipeline object receives from its manager at construction.
// It holds capabilities only, never the manager itself.
type env struct {
	compiler Compiler
	sink     TelemetrySink
	recorder Recorder // nil when no state cache records pipelines
}
