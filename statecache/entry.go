package statecache

import (
	"fmt"
	"strings"

	"github.com/gogpu/pipecache/pipeline"
	"github.com/gogpu/pipecache/shader"
)

// Slot positions in Entry.Hashes. Compute entries use SlotCS only.
const (
	SlotVS = iota
	SlotTCS
	SlotTES
	SlotGS
	SlotFS

	SlotCS = 0

	slotCount = 5
)

var slotNames = [slotCount]string{"vs", "tcs", "tes", "gs", "fs"}

// Entry is one persisted pipeline: its kind, the stage and content hash of
// the shader in each slot (0 hash for an empty slot) and, for graphics
// pipelines, the render target it was compiled for.
//
// A slot is replayed only with a shader of the recorded stage, so modules
// with identical bytecode but different stages never stand in for each
// other.
//
// Entry is comparable and used directly as a map key.
type Entry struct {
	Kind   pipeline.Kind
	Stages [slotCount]shader.Stage
	Hashes [slotCount]uint64
	Target pipeline.RenderTarget
}

// ComputeEntry returns the entry of a compute key.
func ComputeEntry(key pipeline.ComputeShaders) Entry {
	e := Entry{Kind: pipeline.KindCompute}
	e.setSlot(SlotCS, key.CS)
	return e
}

// GraphicsEntry returns the entry of a graphics key compiled for target.
func GraphicsEntry(key pipeline.GraphicsShaders, target pipeline.RenderTarget) Entry {
	e := Entry{Kind: pipeline.KindGraphics, Target: target}
	for i, s := range key.Stages() {
		e.setSlot(i, s)
	}
	return e
}

func (e *Entry) setSlot(i int, s *shader.Module) {
	if s == nil {
		return
	}
	e.Stages[i] = s.Stage()
	e.Hashes[i] = s.Hash()
}

// shaderRef identifies a registered shader by stage and content.
type shaderRef struct {
	stage shader.Stage
	hash  uint64
}

// ref returns the shader reference of slot i. ok is false for an empty slot.
func (e Entry) ref(i int) (ref shaderRef, ok bool) {
	if e.Hashes[i] == 0 {
		return shaderRef{}, false
	}
	return shaderRef{stage: e.Stages[i], hash: e.Hashes[i]}, true
}

// valid reports whether the mandatory slot of the entry is set, the kind
// is known, and every stage is known (and zero for empty slots).
func (e Entry) valid() bool {
	for i, st := range e.Stages {
		if st > shader.StageCompute || (e.Hashes[i] == 0 && st != 0) {
			return false
		}
	}

	switch e.Kind {
	case pipeline.KindCompute:
		if e.Hashes[SlotCS] == 0 || !e.Target.IsZero() {
			return false
		}
		for _, h := range e.Hashes[1:] {
			if h != 0 {
				return false
			}
		}
		return true
	case pipeline.KindGraphics:
		return e.Hashes[SlotVS] != 0
	default:
		return false
	}
}

// String returns a one-line description for listings.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Kind == pipeline.KindCompute {
		fmt.Fprintf(&b, " cs=%016x", e.Hashes[SlotCS])
		return b.String()
	}
	for i, h := range e.Hashes {
		if h != 0 {
			fmt.Fprintf(&b, " %s=%016x", slotNames[i], h)
		}
	}
	if !e.Target.IsZero() {
		fmt.Fprintf(&b, " color=%d depth=%d samples=%d",
			uint32(e.Target.ColorFormat), uint32(e.Target.DepthFormat), e.Target.SampleCount)
	}
	return b.String()
}
