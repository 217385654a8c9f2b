package pipeline

import (
	"fmt"
	"sync"
)

// ComputePipeline is the unique pipeline object of one ComputeShaders key.
//
// The object is created by the Manager and lives until the Manager is
// closed. Compilation is deferred to Compile; a failed compile leaves the
// object in StateFailed and the next Compile retries.
type ComputePipeline struct {
	key ComputeShaders
	env env

	mu        sync.Mutex
	state     State
	exec      Executable
	err       error
	destroyed bool
}

func newComputePipeline(e env, key ComputeShaders) *ComputePipeline {
	p := &ComputePipeline{key: key, env: e}
	e.sink.PipelineCreated(KindCompute)
	return p
}

// Shaders returns the pipeline's key.
func (p *ComputePipeline) Shaders() ComputeShaders { return p.key }

// Compile returns the executable, compiling it on first use.
func (p *ComputePipeline) Compile() (Executable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, ErrDestroyed
	}
	if p.state == StateReady {
		return p.exec, nil
	}

	exec, err := p.env.compiler.CompileCompute(p.key)
	if err != nil {
		p.state = StateFailed
		p.err = fmt.Errorf("compile %v: %w", p.key, err)
		slogger().Warn("pipeline: compute compile failed", "key", p.key.String(), "err", err)
		return nil, p.err
	}

	p.state = StateReady
	p.exec = exec
	p.err = nil
	slogger().Debug("pipeline: compute compiled", "key", p.key.String())

	if p.env.recorder != nil {
		p.env.recorder.RecordComputePipeline(p.key)
	}
	return exec, nil
}

// State returns the compile state.
func (p *ComputePipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error of the last failed compile, or nil.
func (p *ComputePipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// destroy releases the executable. Called by Manager.Close.
func (p *ComputePipeline) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exec != nil {
		p.exec.Destroy()
		p.exec = nil
	}
	p.destroyed = true
	p.state = StatePending
}
