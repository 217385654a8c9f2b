package pipeline

import (
	"fmt"
	"sync"
)

// GraphicsPipeline is the unique pipeline object of one GraphicsShaders key.
//
// A graphics pipeline owns one executable per render target ("variant").
// Each variant is compiled on first request; a failed variant is retried on
// the next request for the same target.
type GraphicsPipeline struct {
	key GraphicsShaders
	env env

	mu        sync.Mutex
	variants  map[RenderTarget]*variant
	destroyed bool
}

// variant is the compile state of one render target.
type variant struct {
	state State
	exec  Executable
	err   error
}

func newGraphicsPipeline(e env, key GraphicsShaders) *GraphicsPipeline {
	p := &GraphicsPipeline{
		key:      key,
		env:      e,
		variants: make(map[RenderTarget]*variant),
	}
	e.sink.PipelineCreated(KindGraphics)
	return p
}

// Shaders returns the pipeline's key.
func (p *GraphicsPipeline) Shaders() GraphicsShaders { return p.key }

// Variant returns the executable for target, compiling it on first use.
func (p *GraphicsPipeline) Variant(target RenderTarget) (Executable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, ErrDestroyed
	}

	v := p.variants[target]
	if v == nil {
		v = &variant{}
		p.variants[target] = v
	}
	if v.state == StateReady {
		return v.exec, nil
	}

	exec, err := p.env.compiler.CompileGraphics(p.key, target)
	if err != nil {
		v.state = StateFailed
		v.err = fmt.Errorf("compile %v: %w", p.key, err)
		slogger().Warn("pipeline: graphics compile failed",
			"key", p.key.String(),
			"format", target.ColorFormat,
			"err", err)
		return nil, v.err
	}

	v.state = StateReady
	v.exec = exec
	v.err = nil
	slogger().Debug("pipeline: graphics variant compiled",
		"key", p.key.String(),
		"variants", len(p.variants))

	if p.env.recorder != nil {
		p.env.recorder.RecordGraphicsPipeline(p.key, target)
	}
	return exec, nil
}

// VariantState returns the compile state and last error for target.
func (p *GraphicsPipeline) VariantState(target RenderTarget) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.variants[target]
	if v == nil {
		return StatePending, nil
	}
	return v.state, v.err
}

// VariantCount returns the number of compiled variants.
func (p *GraphicsPipeline) VariantCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, v := range p.variants {
		if v.state == StateReady {
			n++
		}
	}
	return n
}

// destroy releases every variant. Called by Manager.Close.
func (p *GraphicsPipeline) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range p.variants {
		if v.exec != nil {
			v.exec.Destroy()
		}
	}
	p.variants = make(map[RenderTarget]*variant)
	p.destroyed = true
}
