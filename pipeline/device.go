package pipeline

import (
	"errors"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// ErrNoVertexShader is returned when compiling a graphics key without a vertex stage.
var ErrNoVertexShader = errors.New("pipeline: vertex shader is nil")

// ErrNoComputeShader is returned when compiling a compute key without a compute stage.
var ErrNoComputeShader = errors.New("pipeline: compute shader is nil")

// RenderTarget describes the attachments a graphics pipeline variant is
// compiled against. The zero value means "use the pool default".
type RenderTarget struct {
	// ColorFormat is the format of the color attachment.
	ColorFormat gputypes.TextureFormat

	// DepthFormat is the format of the depth attachment.
	// Use TextureFormatUndefined for no depth attachment.
	DepthFormat gputypes.TextureFormat

	// SampleCount is the number of samples per pixel (1 for non-MSAA).
	SampleCount uint32
}

// IsZero reports whether t is the zero target.
func (t RenderTarget) IsZero() bool { return t == RenderTarget{} }

// RenderPassPool hands out the render targets pipelines are compiled for.
// The Manager passes it through to the state cache untouched.
type RenderPassPool interface {
	// DefaultTarget returns the target used when none is specified.
	DefaultTarget() RenderTarget
}

// StaticPassPool is a RenderPassPool with a fixed default target.
type StaticPassPool RenderTarget

// DefaultTarget returns the pool's fixed target.
func (p StaticPassPool) DefaultTarget() RenderTarget { return RenderTarget(p) }

// DeviceOptions are device-level settings read once by NewManager.
type DeviceOptions struct {
	// EnableStateCache reports whether the device allows a background
	// state cache.
	EnableStateCache bool
}

// Device is the device a Manager creates pipelines for.
type Device interface {
	// Compiler returns the compiler that builds pipeline executables.
	Compiler() Compiler

	// Options returns the device-level options.
	Options() DeviceOptions
}

// Executable is a compiled, device-specific pipeline.
type Executable interface {
	// Destroy releases the device objects of the executable.
	Destroy()
}

// Compiler builds executables for pipeline keys.
//
// Implementations must be safe for concurrent use; pipelines of different
// keys compile in parallel.
type Compiler interface {
	// CompileCompute builds the executable of a compute pipeline.
	CompileCompute(key ComputeShaders) (Executable, error)

	// CompileGraphics builds the executable of a graphics pipeline for
	// one render target.
	CompileGraphics(key GraphicsShaders, target RenderTarget) (Executable, error)
}

// =============================================================================
// Placeholder device
// =============================================================================

// NopCompiler creates placeholder executables without touching a GPU.
// It validates the mandatory stages and counts compilations. Offline tools
// and tests use it.
type NopCompiler struct {
	compiled  atomic.Uint64
	destroyed atomic.Uint64
}

// CompileCompute returns a placeholder executable.
func (c *NopCompiler) CompileCompute(key ComputeShaders) (Executable, error) {
	if key.CS == nil {
		return nil, ErrNoComputeShader
	}
	c.compiled.Add(1)
	return &nopExecutable{c: c}, nil
}

// CompileGraphics returns a placeholder executable.
func (c *NopCompiler) CompileGraphics(key GraphicsShaders, _ RenderTarget) (Executable, error) {
	if key.VS == nil {
		return nil, ErrNoVertexShader
	}
	c.compiled.Add(1)
	return &nopExecutable{c: c}, nil
}

// Compiled returns the number of executables created.
func (c *NopCompiler) Compiled() uint64 { return c.compiled.Load() }

// Destroyed returns the number of executables destroyed.
func (c *NopCompiler) Destroyed() uint64 { return c.destroyed.Load() }

type nopExecutable struct {
	c    *NopCompiler
	done atomic.Bool
}

func (e *nopExecutable) Destroy() {
	if e.done.CompareAndSwap(false, true) {
		e.c.destroyed.Add(1)
	}
}

// NopDevice is a Device backed by a NopCompiler.
type NopDevice struct {
	compiler NopCompiler
	options  DeviceOptions
}

// NewNopDevice creates a placeholder device.
func NewNopDevice(opts DeviceOptions) *NopDevice {
	return &NopDevice{options: opts}
}

// Compiler returns the device's NopCompiler.
func (d *NopDevice) Compiler() Compiler { return &d.compiler }

// NopCompiler returns the concrete compiler for inspection.
func (d *NopDevice) NopCompiler() *NopCompiler { return &d.compiler }

// Options returns the device options.
func (d *NopDevice) Options() DeviceOptions { return d.options }
