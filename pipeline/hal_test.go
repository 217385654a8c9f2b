package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pipecache/shader"
)

// =============================================================================
// Mock Types for Testing
// =============================================================================

type mockHALModule struct {
	hal.ShaderModule
	label string
	words int
}

type mockHALLayout struct{ hal.PipelineLayout }

type mockHALComputePipeline struct{ hal.ComputePipeline }

type mockHALRenderPipeline struct{ hal.RenderPipeline }

// mockHALDevice is a test double for the HAL device subset the compiler uses.
type mockHALDevice struct {
	mu sync.Mutex

	failRender bool

	modulesCreated     int
	modulesDestroyed   int
	layoutsCreated     int
	layoutsDestroyed   int
	computeCreated     int
	computeDestroyed   int
	renderCreated      int
	renderDestroyed    int
	lastRenderDesc     *hal.RenderPipelineDescriptor
	lastComputeDesc    *hal.ComputePipelineDescriptor
	lastModuleLabels   []string
	lastModuleWordSize []int
}

func (d *mockHALDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modulesCreated++
	d.lastModuleLabels = append(d.lastModuleLabels, desc.Label)
	d.lastModuleWordSize = append(d.lastModuleWordSize, len(desc.Source.SPIRV))
	return &mockHALModule{label: desc.Label, words: len(desc.Source.SPIRV)}, nil
}

func (d *mockHALDevice) DestroyShaderModule(hal.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.modulesDestroyed++
}

func (d *mockHALDevice) CreatePipelineLayout(*hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layoutsCreated++
	return &mockHALLayout{}, nil
}

func (d *mockHALDevice) DestroyPipelineLayout(hal.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layoutsDestroyed++
}

func (d *mockHALDevice) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.computeCreated++
	d.lastComputeDesc = desc
	return &mockHALComputePipeline{}, nil
}

func (d *mockHALDevice) DestroyComputePipeline(hal.ComputePipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.computeDestroyed++
}

func (d *mockHALDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastRenderDesc = desc
	if d.failRender {
		return nil, errors.New("validation error")
	}
	d.renderCreated++
	return &mockHALRenderPipeline{}, nil
}

func (d *mockHALDevice) DestroyRenderPipeline(hal.RenderPipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.renderDestroyed++
}

// spirvShader creates a shader with n words of fake SPIR-V.
func spirvShader(stage shader.Stage, label string, n int) *shader.Module {
	return shader.New(stage, label, make([]byte, n*4))
}

// =============================================================================
// HAL Compiler Tests
// =============================================================================

func TestNewHALDeviceNil(t *testing.T) {
	if _, err := NewHALDevice(nil, DeviceOptions{}); !errors.Is(err, ErrNilHALDevice) {
		t.Errorf("expected ErrNilHALDevice, got %v", err)
	}
}

func TestHALDeviceFromProviderWithoutHAL(t *testing.T) {
	if _, err := HALDeviceFromProvider(nil, DeviceOptions{}); !errors.Is(err, ErrNoHALProvider) {
		t.Errorf("expected ErrNoHALProvider, got %v", err)
	}
}

func TestHALCompileCompute(t *testing.T) {
	mock := &mockHALDevice{}
	dev := newHALDevice(mock, DeviceOptions{EnableStateCache: true})
	if !dev.Options().EnableStateCache {
		t.Error("device options must be preserved")
	}

	m := NewManager(dev, StaticPassPool{}, Options{})
	p := m.CreateComputePipeline(ComputeShaders{CS: spirvShader(shader.StageCompute, "tile", 5)})

	exec, err := p.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := exec.(*halComputeExecutable); !ok {
		t.Fatalf("expected *halComputeExecutable, got %T", exec)
	}
	if mock.lastComputeDesc.Compute.EntryPoint != DefaultComputeEntryPoint {
		t.Errorf("entry point = %q, want %q", mock.lastComputeDesc.Compute.EntryPoint, DefaultComputeEntryPoint)
	}
	if mock.lastModuleWordSize[0] != 5 {
		t.Errorf("expected 5 SPIR-V words, got %d", mock.lastModuleWordSize[0])
	}
	if mock.modulesCreated != 1 || mock.modulesDestroyed != 1 {
		t.Errorf("shader module must be destroyed after pipeline creation: created=%d destroyed=%d",
			mock.modulesCreated, mock.modulesDestroyed)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mock.computeDestroyed != 1 || mock.layoutsDestroyed != 1 {
		t.Errorf("Close must destroy pipeline and layout: pipelines=%d layouts=%d",
			mock.computeDestroyed, mock.layoutsDestroyed)
	}
}

func TestHALCompileGraphics(t *testing.T) {
	mock := &mockHALDevice{}
	dev := newHALDevice(mock, DeviceOptions{})
	m := NewManager(dev, StaticPassPool{}, Options{})
	defer m.Close()

	key := GraphicsShaders{
		VS: spirvShader(shader.StageVertex, "blit_vs", 3),
		FS: spirvShader(shader.StageFragment, "blit_fs", 4),
	}
	target := RenderTarget{
		ColorFormat: gputypes.TextureFormatBGRA8Unorm,
		DepthFormat: gputypes.TextureFormatDepth24PlusStencil8,
	}
	if _, err := m.CreateGraphicsPipeline(key).Variant(target); err != nil {
		t.Fatalf("Variant: %v", err)
	}

	desc := mock.lastRenderDesc
	if desc.Vertex.EntryPoint != DefaultVertexEntryPoint {
		t.Errorf("vertex entry = %q", desc.Vertex.EntryPoint)
	}
	if desc.Fragment == nil || desc.Fragment.EntryPoint != DefaultFragmentEntryPoint {
		t.Fatal("expected fragment state with default entry point")
	}
	if desc.Fragment.Targets[0].Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("color format = %v", desc.Fragment.Targets[0].Format)
	}
	if desc.Multisample.Count != 1 {
		t.Errorf("sample count = %d, want default 1", desc.Multisample.Count)
	}
	if desc.DepthStencil == nil || desc.DepthStencil.Format != gputypes.TextureFormatDepth24PlusStencil8 {
		t.Error("expected depth state for depth target")
	}
	if mock.modulesCreated != 2 || mock.modulesDestroyed != 2 {
		t.Errorf("expected 2 modules created and destroyed, got %d/%d", mock.modulesCreated, mock.modulesDestroyed)
	}
}

func TestHALCompileGraphicsWithoutFragment(t *testing.T) {
	mock := &mockHALDevice{}
	c := &halCompiler{device: mock}

	exec, err := c.CompileGraphics(GraphicsShaders{VS: spirvShader(shader.StageVertex, "depth_only", 2)}, RenderTarget{})
	if err != nil {
		t.Fatalf("CompileGraphics: %v", err)
	}
	if mock.lastRenderDesc.Fragment != nil {
		t.Error("expected no fragment state")
	}
	if mock.lastRenderDesc.DepthStencil != nil {
		t.Error("expected no depth state for undefined depth format")
	}
	exec.Destroy()
	exec.Destroy()
	if mock.renderDestroyed != 1 {
		t.Errorf("Destroy must be idempotent, destroyed %d", mock.renderDestroyed)
	}
}

func TestHALCompileGraphicsUnsupportedStages(t *testing.T) {
	mock := &mockHALDevice{}
	c := &halCompiler{device: mock}
	vs := spirvShader(shader.StageVertex, "vs", 1)

	keys := []GraphicsShaders{
		{VS: vs, TCS: spirvShader(shader.StageTessControl, "tcs", 1)},
		{VS: vs, TES: spirvShader(shader.StageTessEval, "tes", 1)},
		{VS: vs, GS: spirvShader(shader.StageGeometry, "gs", 1)},
	}
	for _, key := range keys {
		if _, err := c.CompileGraphics(key, RenderTarget{}); !errors.Is(err, ErrUnsupportedStage) {
			t.Errorf("%v: expected ErrUnsupportedStage, got %v", key, err)
		}
	}
	if mock.modulesCreated != 0 {
		t.Errorf("no modules should be created for unsupported keys, got %d", mock.modulesCreated)
	}
}

func TestHALCompileGraphicsFailureCleansUp(t *testing.T) {
	mock := &mockHALDevice{failRender: true}
	dev := newHALDevice(mock, DeviceOptions{})
	m := NewManager(dev, StaticPassPool{}, Options{})
	defer m.Close()

	p := m.CreateGraphicsPipeline(GraphicsShaders{
		VS: spirvShader(shader.StageVertex, "vs", 1),
		FS: spirvShader(shader.StageFragment, "fs", 1),
	})
	if _, err := p.Variant(RenderTarget{}); err == nil {
		t.Fatal("expected compile error")
	}
	if mock.layoutsCreated != mock.layoutsDestroyed {
		t.Errorf("layout leaked: created=%d destroyed=%d", mock.layoutsCreated, mock.layoutsDestroyed)
	}
	if mock.modulesCreated != mock.modulesDestroyed {
		t.Errorf("module leaked: created=%d destroyed=%d", mock.modulesCreated, mock.modulesDestroyed)
	}
	state, _ := p.VariantState(RenderTarget{})
	if state != StateFailed {
		t.Errorf("state = %v, want failed", state)
	}
}
