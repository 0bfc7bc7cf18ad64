// Package pool implements the bounded worker pool the client engine (or
// commands) uses to offload blocking work off the reactor goroutine: a fixed
// set of detached workers draining a bounded FIFO protected by a mutex and
// condition variable. A Post call returns a *Future that settles when the
// task completes; settlement is delivered back to the reactor goroutine via
// internal/ae's wake-hook mechanism, so completion callbacks run with the
// same single-threaded guarantee as any event handler.
package pool

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/FX-HAO/pusher/internal/list"
)

// ErrQueueFull is returned by Post when the task queue is already at
// capacity, matching thread_task_post's C_ERR-on-overflow behavior: the
// caller is never blocked waiting for room.
var ErrQueueFull = errors.New("pool: task queue overflow")

// Handler is the blocking or CPU-bound work a task runs on a worker
// goroutine. Its return value and error become the settled Future's result.
type Handler func(data any) (any, error)

// task mirrors thread_task_s: an id, the data handed to Handler, the
// Handler itself, and an optional cleanup run after Handler returns.
type task struct {
	id      uint64
	data    any
	handler Handler
	free    func(data any)
	future  *Future
	poison  bool
}

// Pool is the bounded FIFO + detached-worker-goroutines pool, matching
// thread_pool_t.
type Pool struct {
	name     string
	workers  int
	mtx      sync.Mutex
	cond     *sync.Cond
	tasks    list.List[*task]
	maxTasks int
	nextID   atomic.Uint64

	completionsMtx sync.Mutex
	completions    []completion
	wake           func()

	shutdownCount atomic.Int32
	shutdownDone  chan struct{}
}

type completion struct {
	future *Future
	value  any
	err    error
}

// New creates a pool with the given name, spawning count detached worker
// goroutines that immediately start waiting on the task queue, matching
// thread_pool_create/thread_pool_init. maxTasks bounds the queue depth; a
// Post beyond that returns ErrQueueFull without blocking.
func New(name string, count, maxTasks int) *Pool {
	p := &Pool{
		name:         name,
		workers:      count,
		maxTasks:     maxTasks,
		shutdownDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mtx)
	for i := 0; i < count; i++ {
		go p.workerLoop()
	}
	return p
}

// SetWakeFunc installs the function the pool calls after pushing a
// completion onto its queue — in practice, an *ae.Loop's Wake method, paired
// with SetWakeHook(pool.DrainCompletions) on that same loop so the
// completion is resolved on the reactor goroutine at the next wake.
func (p *Pool) SetWakeFunc(fn func()) {
	p.completionsMtx.Lock()
	defer p.completionsMtx.Unlock()
	p.wake = fn
}

// Name returns the pool's name, used only in log messages.
func (p *Pool) Name() string { return p.name }

// Post enqueues a task, returning a *Future that settles once handler has
// run (and free, if non-nil, has been called on its data). It returns
// ErrQueueFull without blocking if the queue is already at maxTasks,
// matching thread_task_post's overflow behavior.
func (p *Pool) Post(data any, handler Handler, free func(data any)) (*Future, error) {
	p.mtx.Lock()
	if p.tasks.Len() >= p.maxTasks {
		p.mtx.Unlock()
		return nil, ErrQueueFull
	}
	t := &task{
		id:      p.nextID.Add(1),
		data:    data,
		handler: handler,
		free:    free,
		future:  newFuture(),
	}
	p.tasks.PushBack(t)
	p.cond.Signal()
	p.mtx.Unlock()
	return t.future, nil
}

// workerLoop is a single detached worker, matching thread_pool_cycle: block
// on the condition variable while the queue is empty, pop the head task,
// run it, then run its free callback.
func (p *Pool) workerLoop() {
	for {
		p.mtx.Lock()
		for p.tasks.Len() == 0 {
			p.cond.Wait()
		}
		n := p.tasks.Front()
		p.tasks.Remove(n)
		t := n.Value
		p.mtx.Unlock()

		if t.poison {
			p.finishPoison()
			return
		}

		value, err := t.handler(t.data)
		if t.free != nil {
			t.free(t.data)
		}
		p.pushCompletion(t.future, value, err)
	}
}

func (p *Pool) pushCompletion(f *Future, value any, err error) {
	p.completionsMtx.Lock()
	p.completions = append(p.completions, completion{future: f, value: value, err: err})
	wake := p.wake
	p.completionsMtx.Unlock()
	if wake != nil {
		wake()
	} else {
		// No reactor attached (e.g. a detached-client test harness): settle
		// immediately rather than strand the future pending forever.
		f.settle(value, err)
	}
}

// DrainCompletions resolves every completion currently queued, intended to
// be called from the reactor goroutine (via an *ae.Loop wake hook) so that
// Future.OnSettle callbacks run with the same single-threaded guarantee as
// any other file or time event handler.
func (p *Pool) DrainCompletions() {
	p.completionsMtx.Lock()
	pending := p.completions
	p.completions = nil
	p.completionsMtx.Unlock()
	for _, c := range pending {
		c.future.settle(c.value, c.err)
	}
}

func (p *Pool) finishPoison() {
	if p.shutdownCount.Add(-1) == 0 {
		close(p.shutdownDone)
	}
}

// Destroy posts one poison task per worker and blocks until every worker has
// observed its own poison task and exited. A single shared exit task only
// terminates one worker when thread_count > 1; posting one per worker and
// waiting on an atomic countdown closes that teardown race.
func (p *Pool) Destroy() {
	p.shutdownCount.Store(int32(p.workers))
	p.mtx.Lock()
	for i := 0; i < p.workers; i++ {
		p.tasks.PushBack(&task{id: p.nextID.Add(1), poison: true})
	}
	p.cond.Broadcast()
	p.mtx.Unlock()
	<-p.shutdownDone
}
