// Package parallel runs background work on a fixed set of goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// WorkerPool runs submitted functions on a fixed number of worker goroutines.
//
// The queue is unbounded, so Submit never blocks the caller. The pool
// tracks pending work (queued plus running) so callers can ask whether it
// is busy or wait for it to drain.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// mu protects queue, pending and closed.
	mu sync.Mutex

	// work is signaled when work is queued or the pool closes.
	work *sync.Cond

	// idle is signaled when pending drops to zero.
	idle *sync.Cond

	queue   []func()
	pending int
	closed  bool

	// wg waits for all workers to finish.
	wg sync.WaitGroup
}

// NewWorkerPool creates a pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &WorkerPool{workers: workers}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// worker is the main loop for each worker goroutine.
// On close it keeps running until the queue is empty.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.work.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		fn := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(fn)
	}
}

// run executes fn and marks it done.
func (p *WorkerPool) run(fn func()) {
	defer func() {
		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}()
	fn()
}

// Submit queues fn. It reports false if fn is nil or the pool is closed.
func (p *WorkerPool) Submit(fn func()) bool {
	if fn == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.queue = append(p.queue, fn)
	p.pending++
	p.work.Signal()
	return true
}

// Pending returns the number of submitted functions that have not finished.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Busy reports whether any submitted work is queued or running.
func (p *WorkerPool) Busy() bool {
	return p.Pending() > 0
}

// Wait blocks until all submitted work has finished.
func (p *WorkerPool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
}

// Close stops accepting new work, waits for all queued work to complete,
// and then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.work.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}
