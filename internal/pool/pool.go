// Package pool implements the fixed-size worker pool used for both the
// "request" pool (message parsing/dispatch) and the "worker" pool (handler
// side effects such as re-validating a document).
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/WaylonWalker/lsp-core/internal/logging"
)

// Task is a unit of work executed by a pool worker. It receives the pool's
// name and the worker's index for logging, matching the original C++
// thread pool's Task signature.
type Task func(poolName string, workerID int)

// ThreadPool is a named, fixed-size worker set draining a task channel.
type ThreadPool struct {
	name    string
	workers int
	logger  *logging.Logger

	tasks chan Task
	wg    sync.WaitGroup

	stopping atomic.Bool // stop(): drain pending tasks, then stop
	dropping atomic.Bool // stopNow(): stop accepting and drop pending tasks
	joined   atomic.Bool
}

// New constructs and immediately starts a pool with the given name and
// worker count. Buffering the task channel generously (rather than sizing
// it to the workers) lets Execute usually enqueue without blocking the
// caller (it blocks only while the buffer is full) —
// the bounded backpressure point in this host is the MessageQueue
// upstream, not this channel.
func New(name string, workers int, logger *logging.Logger) *ThreadPool {
	if workers <= 0 {
		workers = 1
	}
	p := &ThreadPool{
		name:    name,
		workers: workers,
		logger:  logger,
		tasks:   make(chan Task, workers*16),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

// Name returns the pool's name, used in logging.
func (p *ThreadPool) Name() string { return p.name }

// NumThreads returns the configured worker count.
func (p *ThreadPool) NumThreads() int { return p.workers }

// IsRunning reports whether the pool still accepts new tasks.
func (p *ThreadPool) IsRunning() bool {
	return !p.stopping.Load() && !p.dropping.Load()
}

// Execute submits a task. It returns false if the pool has been stopped.
func (p *ThreadPool) Execute(task Task) bool {
	if p.stopping.Load() || p.dropping.Load() {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		// Channel momentarily full: block briefly rather than reject, since
		// the channel buffer is generous headroom, not a hard capacity the
		// spec assigns semantics to (that's MessageQueue's job).
		p.tasks <- task
		return true
	}
}

// Stop finishes pending tasks, then causes workers to terminate. It does
// not block; call Join to wait for workers to drain.
func (p *ThreadPool) Stop() {
	if p.stopping.CompareAndSwap(false, true) {
		if p.logger != nil {
			p.logger.Infof("pool %q will no longer accept new tasks and will shut down once those pending have returned", p.name)
		}
		close(p.tasks)
	}
}

// StopNow causes workers to terminate as quickly as possible; tasks still
// queued when a worker notices may be skipped.
func (p *ThreadPool) StopNow() {
	p.dropping.Store(true)
	p.Stop()
}

// Join waits for every worker goroutine to exit. Safe to call once; a
// second call is a no-op.
func (p *ThreadPool) Join() {
	if p.joined.CompareAndSwap(false, true) {
		p.wg.Wait()
	}
}

func (p *ThreadPool) run(workerID int) {
	defer p.wg.Done()
	for task := range p.tasks {
		if p.dropping.Load() {
			continue
		}
		p.safeExecute(task, workerID)
	}
	if p.logger != nil {
		p.logger.Debugf("pool %q worker %d shutting down", p.name, workerID)
	}
}

func (p *ThreadPool) safeExecute(task Task, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Errorf("pool %q worker %d: task panicked: %v", p.name, workerID, fmt.Errorf("%v", r))
			}
		}
	}()
	task(p.name, workerID)
}
