package pipeline

import (
	"fmt"

	"github.com/gogpu/pipecache/shader"
)

// ComputeShaders is the cache key of a compute pipeline.
type ComputeShaders struct {
	// CS is the compute shader. Mandatory.
	CS *shader.Module
}

// GraphicsShaders is the cache key of a graphics pipeline.
type GraphicsShaders struct {
	// VS is the vertex shader. Mandatory.
	VS *shader.Module

	// TCS is the tessellation control shader (optional).
	TCS *shader.Module

	// TES is the tessellation evaluation shader (optional).
	TES *shader.Module

	// GS is the geometry shader (optional).
	GS *shader.Module

	// FS is the fragment shader (optional).
	FS *shader.Module
}

// Valid reports whether the mandatory compute stage is present.
func (k ComputeShaders) Valid() bool { return k.CS != nil }

// Valid reports whether the mandatory vertex stage is present.
func (k GraphicsShaders) Valid() bool { return k.VS != nil }

// Stages returns the five stage slots in key order.
func (k GraphicsShaders) Stages() [5]*shader.Module {
	return [5]*shader.Module{k.VS, k.TCS, k.TES, k.GS, k.FS}
}

func (k ComputeShaders) String() string {
	return fmt.Sprintf("compute{cs=%v}", k.CS)
}

func (k GraphicsShaders) String() string {
	return fmt.Sprintf("graphics{vs=%v tcs=%v tes=%v gs=%v fs=%v}", k.VS, k.TCS, k.TES, k.GS, k.FS)
}

// retain takes a reference on every shader in the key.
func (k ComputeShaders) retain() {
	if k.CS != nil {
		k.CS.Retain()
	}
}

func (k ComputeShaders) release() {
	if k.CS != nil {
		k.CS.Release()
	}
}

func (k GraphicsShaders) retain() {
	for _, s := range k.Stages() {
		if s != nil {
			s.Retain()
		}
	}
}

func (k GraphicsShaders) release() {
	for _, s := range k.Stages() {
		if s != nil {
			s.Release()
		}
	}
}

// =============================================================================
// Key Hasher / Key Equality
// =============================================================================

// HashComputeShaders returns the content hash of the compute shader,
// or 0 if it is absent.
func HashComputeShaders(k ComputeShaders) uint64 {
	return shader.HashOf(k.CS)
}

// HashGraphicsShaders combines the content hashes of the five stages in
// fixed order (vertex, tess control, tess eval, geometry, fragment).
// Absent stages contribute 0. The combination depends on slot position,
// so moving a shader to another stage changes the hash.
func HashGraphicsShaders(k GraphicsShaders) uint64 {
	var h hashState
	h.add(shader.HashOf(k.VS))
	h.add(shader.HashOf(k.TCS))
	h.add(shader.HashOf(k.TES))
	h.add(shader.HashOf(k.GS))
	h.add(shader.HashOf(k.FS))
	return h.sum()
}

// EqualComputeShaders reports whether both keys hold the same shader object.
func EqualComputeShaders(a, b ComputeShaders) bool {
	return shader.Same(a.CS, b.CS)
}

// EqualGraphicsShaders reports whether every stage of both keys holds the
// same shader object. Shaders with equal content but different identity
// are not equal.
func EqualGraphicsShaders(a, b GraphicsShaders) bool {
	return shader.Same(a.VS, b.VS) &&
		shader.Same(a.TCS, b.TCS) &&
		shader.Same(a.TES, b.TES) &&
		shader.Same(a.GS, b.GS) &&
		shader.Same(a.FS, b.FS)
}
