// Package shader provides shared, reference-counted handles to compiled
// shader bytecode.
//
// A Module has two independent notions of sameness:
//
//   - Identity: two handles denote the same shader iff they are the same
//     *Module. Use [Same] (or plain pointer comparison).
//   - Content: [Module.Hash] is derived from the bytecode alone, so two
//     modules built from identical code report the same hash.
//
// Pipeline caches hash on content and compare on identity.
package shader

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Stage identifies the programmable pipeline stage a module targets.
type Stage uint8

// Pipeline stages.
const (
	StageVertex Stage = iota
	StageTessControl
	StageTessEval
	StageGeometry
	StageFragment
	StageCompute
)

var stageNames = [...]string{
	StageVertex:      "vertex",
	StageTessControl: "tess_control",
	StageTessEval:    "tess_eval",
	StageGeometry:    "geometry",
	StageFragment:    "fragment",
	StageCompute:     "compute",
}

// String returns the stage name.
func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// moduleIDCounter generates unique module IDs.
var moduleIDCounter atomic.Uint64

// Module is a compiled shader.
//
// A Module is created holding one reference. Owners that share it call
// Retain, and every owner calls Release when done. The release hook set
// with OnRelease runs once, when the last reference is dropped.
//
// Module is safe for concurrent use.
type Module struct {
	id    uint64
	stage Stage
	label string
	code  []byte
	hash  uint64

	refs atomic.Int32

	// mu protects onRelease.
	mu        sync.Mutex
	onRelease func(*Module)
}

// New creates a module from bytecode. The code slice is retained, not copied.
func New(stage Stage, label string, code []byte) *Module {
	m := &Module{
		id:    moduleIDCounter.Add(1),
		stage: stage,
		label: label,
		code:  code,
		hash:  HashCode(code),
	}
	m.refs.Store(1)
	return m
}

// HashCode returns the content hash of shader bytecode (FNV-1a).
func HashCode(code []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(code)
	return h.Sum64()
}

// ID returns the module's process-unique identifier.
func (m *Module) ID() uint64 { return m.id }

// Stage returns the stage the module was compiled for.
func (m *Module) Stage() Stage { return m.stage }

// Label returns the debug label.
func (m *Module) Label() string { return m.label }

// Code returns the bytecode. Callers must not modify it.
func (m *Module) Code() []byte { return m.code }

// Hash returns the content hash of the bytecode.
func (m *Module) Hash() uint64 { return m.hash }

// Words returns the bytecode as little-endian 32-bit words, the form the HAL
// expects for SPIR-V. Trailing bytes that do not fill a word are dropped.
func (m *Module) Words() []uint32 {
	words := make([]uint32, len(m.code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(m.code[i*4:])
	}
	return words
}

// OnRelease sets the hook run when the last reference is released.
func (m *Module) OnRelease(fn func(*Module)) {
	m.mu.Lock()
	m.onRelease = fn
	m.mu.Unlock()
}

// Retain adds a reference and returns m.
func (m *Module) Retain() *Module {
	m.refs.Add(1)
	return m
}

// Release drops a reference. It reports whether this was the last one.
// Releasing a module with no references left panics.
func (m *Module) Release() bool {
	n := m.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("shader: release of %q with no references", m.label))
	}
	if n > 0 {
		return false
	}

	m.mu.Lock()
	fn := m.onRelease
	m.onRelease = nil
	m.mu.Unlock()
	if fn != nil {
		fn(m)
	}
	return true
}

// Refs returns the current reference count.
func (m *Module) Refs() int32 { return m.refs.Load() }

// String returns a short description for logs.
func (m *Module) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s#%d", m.stage, m.label, m.id)
}

// Same reports whether a and b are the same shader object.
// Two nil handles are the same; content is never compared.
func Same(a, b *Module) bool {
	return a == b
}

// HashOf returns m.Hash(), or 0 for a nil module.
func HashOf(m *Module) uint64 {
	if m == nil {
		return 0
	}
	return m.hash
}
