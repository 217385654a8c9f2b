package pipeline

import "sync/atomic"

// Kind identifies a pipeline kind.
type Kind uint8

// Pipeline kinds.
const (
	KindCompute Kind = iota
	KindGraphics
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCompute:
		return "compute"
	case KindGraphics:
		return "graphics"
	default:
		return "unknown"
	}
}

// TelemetrySink receives lifecycle events from pipeline objects.
//
// A pipeline holds its sink as a non-owning capability; it never reaches
// back into the Manager that created it.
type TelemetrySink interface {
	// PipelineCreated is called exactly once per pipeline object.
	PipelineCreated(kind Kind)
}

// Count is a snapshot of the number of pipelines created per kind.
type Count struct {
	Compute  uint32
	Graphics uint32
}

// counters implements TelemetrySink with two independent atomics.
type counters struct {
	compute  atomic.Uint32
	graphics atomic.Uint32
}

func (c *counters) PipelineCreated(kind Kind) {
	switch kind {
	case KindCompute:
		c.compute.Add(1)
	case KindGraphics:
		c.graphics.Add(1)
	}
}

// snapshot loads both counters. The loads are independent, so the pair
// may straddle a concurrent creation.
func (c *counters) snapshot() Count {
	return Count{
		Compute:  c.compute.Load(),
		Graphics: c.graphics.Load(),
	}
}
