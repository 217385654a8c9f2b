package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pipecache/shader"
)

// HAL compiler errors.
var (
	// ErrNilHALDevice is returned when creating a HALDevice without a device.
	ErrNilHALDevice = errors.New("pipeline: HAL device is nil")

	// ErrNoHALProvider is returned when a device provider does not expose HAL types.
	ErrNoHALProvider = errors.New("pipeline: provider does not expose a HAL device")

	// ErrUnsupportedStage is returned for stages the HAL cannot run
	// (tessellation and geometry).
	ErrUnsupportedStage = errors.New("pipeline: shader stage not supported by HAL")
)

// Default entry point names.
const (
	DefaultVertexEntryPoint   = "vs_main"
	DefaultFragmentEntryPoint = "fs_main"
	DefaultComputeEntryPoint  = "main"
)

// halDevice is the subset of hal.Device the compiler uses.
type halDevice interface {
	CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error)
	DestroyShaderModule(module hal.ShaderModule)
	CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error)
	DestroyPipelineLayout(layout hal.PipelineLayout)
	CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error)
	DestroyComputePipeline(pipeline hal.ComputePipeline)
	CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error)
	DestroyRenderPipeline(pipeline hal.RenderPipeline)
}

var _ halDevice = hal.Device(nil)

// HALDevice is a Device that compiles pipelines with a gogpu/wgpu HAL device.
type HALDevice struct {
	compiler halCompiler
	options  DeviceOptions
}

// NewHALDevice wraps a HAL device.
func NewHALDevice(device hal.Device, opts DeviceOptions) (*HALDevice, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	return newHALDevice(device, opts), nil
}

func newHALDevice(device halDevice, opts DeviceOptions) *HALDevice {
	return &HALDevice{
		compiler: halCompiler{device: device},
		options:  opts,
	}
}

// HALDeviceFromProvider wraps the HAL device of a shared device provider.
// The provider must also implement HalDevice() any returning a hal.Device.
func HALDeviceFromProvider(provider gpucontext.DeviceProvider, opts DeviceOptions) (*HALDevice, error) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	return NewHALDevice(device, opts)
}

// Compiler returns the HAL compiler.
func (d *HALDevice) Compiler() Compiler { return &d.compiler }

// Options returns the device options.
func (d *HALDevice) Options() DeviceOptions { return d.options }

// halCompiler builds HAL pipelines. Shader modules are created per compile
// and destroyed once the pipeline exists.
type halCompiler struct {
	device halDevice
}

// createModule creates a HAL shader module from a module's SPIR-V.
func (c *halCompiler) createModule(m *shader.Module) (hal.ShaderModule, error) {
	module, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: m.Label(),
		Source: hal.ShaderSource{
			SPIRV: m.Words(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", m.Label(), err)
	}
	return module, nil
}

func (c *halCompiler) CompileCompute(key ComputeShaders) (Executable, error) {
	if key.CS == nil {
		return nil, ErrNoComputeShader
	}

	module, err := c.createModule(key.CS)
	if err != nil {
		return nil, err
	}
	defer c.device.DestroyShaderModule(module)

	layout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: key.CS.Label() + "_pl",
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	pipeline, err := c.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  key.CS.Label(),
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: DefaultComputeEntryPoint,
		},
	})
	if err != nil {
		c.device.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}

	return &halComputeExecutable{device: c.device, pipeline: pipeline, layout: layout}, nil
}

func (c *halCompiler) CompileGraphics(key GraphicsShaders, target RenderTarget) (Executable, error) {
	if key.VS == nil {
		return nil, ErrNoVertexShader
	}
	for _, s := range [...]*shader.Module{key.TCS, key.TES, key.GS} {
		if s != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedStage, s.Stage())
		}
	}

	vs, err := c.createModule(key.VS)
	if err != nil {
		return nil, err
	}
	defer c.device.DestroyShaderModule(vs)

	var fragment *hal.FragmentState
	if key.FS != nil {
		fs, err := c.createModule(key.FS)
		if err != nil {
			return nil, err
		}
		defer c.device.DestroyShaderModule(fs)

		fragment = &hal.FragmentState{
			Module:     fs,
			EntryPoint: DefaultFragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    target.ColorFormat,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		}
	}

	sampleCount := target.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	layout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: key.VS.Label() + "_pl",
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  key.VS.Label(),
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: DefaultVertexEntryPoint,
		},
		Fragment: fragment,
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
	}
	if target.DepthFormat != gputypes.TextureFormatUndefined {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            target.DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
		}
	}

	pipeline, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		c.device.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}

	return &halRenderExecutable{device: c.device, pipeline: pipeline, layout: layout}, nil
}

// halComputeExecutable owns a HAL compute pipeline and its layout.
type halComputeExecutable struct {
	device   halDevice
	pipeline hal.ComputePipeline
	layout   hal.PipelineLayout
}

// Raw returns the HAL pipeline.
func (e *halComputeExecutable) Raw() hal.ComputePipeline { return e.pipeline }

func (e *halComputeExecutable) Destroy() {
	if e.pipeline != nil {
		e.device.DestroyComputePipeline(e.pipeline)
		e.pipeline = nil
	}
	if e.layout != nil {
		e.device.DestroyPipelineLayout(e.layout)
		e.layout = nil
	}
}

// halRenderExecutable owns a HAL render pipeline and its layout.
type halRenderExecutable struct {
	device   halDevice
	pipeline hal.RenderPipeline
	layout   hal.PipelineLayout
}

// Raw returns the HAL pipeline.
func (e *halRenderExecutable) Raw() hal.RenderPipeline { return e.pipeline }

func (e *halRenderExecutable) Destroy() {
	if e.pipeline != nil {
		e.device.DestroyRenderPipeline(e.pipeline)
		e.pipeline = nil
	}
	if e.layout != nil {
		e.device.DestroyPipelineLayout(e.layout)
		e.layout = nil
	}
}
