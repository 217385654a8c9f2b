// Package pipecache deduplicates GPU pipeline objects by shader combination.
//
// # Overview
//
// Every compute pipeline is identified by its compute shader, every
// graphics pipeline by the shaders in its five stage slots (vertex,
// tessellation control, tessellation evaluation, geometry, fragment). A
// [pipeline.Manager] hands out exactly one pipeline object per unique
// combination, no matter how many goroutines ask for it concurrently, and
// keeps it alive until the manager is closed.
//
// Shader identity and shader content are kept apart: lookups hash on the
// content of the bytecode but compare on the *shader.Module handle, so two
// handles with identical bytecode never share a pipeline.
//
// # Quick Start
//
//	import "github.com/gogpu/pipecache"
//
//	device := pipeline.NewNopDevice(pipeline.DeviceOptions{EnableStateCache: true})
//	m := pipecache.NewManager(device, pipeline.StaticPassPool{}, pipecache.Config{
//	    EnableStateCache: true,
//	    StateCachePath:   "pipelines.psc",
//	})
//	defer m.Close()
//
//	vs, _ := shader.FromWGSL(shader.StageVertex, "blit_vs", vertexSrc)
//	fs, _ := shader.FromWGSL(shader.StageFragment, "blit_fs", fragmentSrc)
//	m.RegisterShader(vs)
//	m.RegisterShader(fs)
//
//	p := m.CreateGraphicsPipeline(pipeline.GraphicsShaders{VS: vs, FS: fs})
//	exec, err := p.Variant(target)
//
// # Architecture
//
// The module is organized into:
//   - shader: reference-counted shader handles, WGSL compilation
//   - cache: the sharded insert-only table behind the manager
//   - pipeline: keys, pipeline objects, devices and the Manager
//   - statecache: background recording and replay of pipeline combinations
//   - cmd/pipecache: offline warm-up and inspection tool
//
// Compilation is deferred. Creating a pipeline never fails; the first
// Compile (compute) or Variant (graphics) builds the executable, and a
// failure is kept on the object and retried by the next call.
package pipecache

// Version information
const (
	// Version is the current version of the module
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
