package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/gogpu/pipecache/pipeline"
	"github.com/gogpu/pipecache/shader"
)

// Manifest lists pipelines to compile, by shader label.
//
// Example:
//
//	{
//	  // compute pipelines
//	  "compute": [{"cs": "tile"}],
//	  "graphics": [
//	    {"vs": "blit", "fs": "blit"},
//	    {"vs": "blit", "fs": "blit", "samples": 4},
//	  ],
//	}
type Manifest struct {
	Compute  []ComputeSpec  `json:"compute"`
	Graphics []GraphicsSpec `json:"graphics"`
}

// ComputeSpec names the shader of a compute pipeline.
type ComputeSpec struct {
	CS string `json:"cs"`
}

// GraphicsSpec names the shaders of a graphics pipeline. Empty labels
// leave the slot empty. Samples overrides the default sample count.
type GraphicsSpec struct {
	VS      string `json:"vs"`
	TCS     string `json:"tcs,omitempty"`
	TES     string `json:"tes,omitempty"`
	GS      string `json:"gs,omitempty"`
	FS      string `json:"fs,omitempty"`
	Samples uint32 `json:"samples,omitempty"`
}

// readManifest loads a JSONC manifest.
func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := parseManifest(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

func parseManifest(data []byte) (Manifest, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(standardized, &m); err != nil {
		return Manifest{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return m, nil
}

// key resolves the key of spec against set.
func (spec ComputeSpec) key(set *shaderSet) (pipeline.ComputeShaders, error) {
	cs, err := set.lookup(shader.StageCompute, spec.CS)
	if err != nil {
		return pipeline.ComputeShaders{}, err
	}
	return pipeline.ComputeShaders{CS: cs}, nil
}

// key resolves the key of spec against set.
func (spec GraphicsSpec) key(set *shaderSet) (pipeline.GraphicsShaders, error) {
	var key pipeline.GraphicsShaders
	slots := []struct {
		dst   **shader.Module
		stage shader.Stage
		label string
	}{
		{&key.VS, shader.StageVertex, spec.VS},
		{&key.TCS, shader.StageTessControl, spec.TCS},
		{&key.TES, shader.StageTessEval, spec.TES},
		{&key.GS, shader.StageGeometry, spec.GS},
		{&key.FS, shader.StageFragment, spec.FS},
	}
	for _, s := range slots {
		m, err := set.lookup(s.stage, s.label)
		if err != nil {
			return pipeline.GraphicsShaders{}, err
		}
		*s.dst = m
	}
	return key, nil
}

// target returns the render target of spec based on def.
func (spec GraphicsSpec) target(def pipeline.RenderTarget) pipeline.RenderTarget {
	if spec.Samples != 0 {
		def.SampleCount = spec.Samples
	}
	return def
}
