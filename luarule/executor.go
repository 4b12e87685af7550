package luarule

import (
	"errors"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// ErrExecutorClosed is returned when attempting to use a closed executor.
var ErrExecutorClosed = errors.New("luarule: executor is closed")

// call represents a Lua operation to be executed.
type call struct {
	fn     func(L *lua.LState) error
	result chan error
}

// executor serializes all Lua operations through a single goroutine.
//
// gopher-lua's LState is NOT goroutine-safe. All LState operations must
// occur on a single goroutine; the executor marshals operations from
// arbitrary goroutines to the one that owns the state, which also
// closes the state on shutdown.
type executor struct {
	L      *lua.LState
	queue  chan *call
	closed atomic.Bool
	done   chan struct{}

	closeOnce sync.Once
}

// newExecutor creates an executor for the given Lua state and starts
// its worker goroutine. The executor owns the state from this point on.
func newExecutor(L *lua.LState) *executor {
	e := &executor{
		L:     L,
		queue: make(chan *call, 16),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// run processes Lua operations until the executor is closed.
func (e *executor) run() {
	defer e.L.Close()

	for {
		select {
		case <-e.done:
			e.drainQueue()
			return
		case c := <-e.queue:
			err := e.executeCall(c)
			select {
			case c.result <- err:
			default:
			}
			close(c.result)
		}
	}
}

// executeCall runs a single Lua operation with panic recovery.
func (e *executor) executeCall(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = errors.New("luarule: lua panic")
			}
		}
	}()
	return c.fn(e.L)
}

// drainQueue fails any remaining queued calls.
func (e *executor) drainQueue() {
	for {
		select {
		case c := <-e.queue:
			select {
			case c.result <- ErrExecutorClosed:
			default:
			}
			close(c.result)
		default:
			return
		}
	}
}

// execute runs a Lua operation synchronously on the executor goroutine.
func (e *executor) execute(fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	c := &call{
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case e.queue <- c:
	case <-e.done:
		return ErrExecutorClosed
	}

	select {
	case err, ok := <-c.result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	case <-e.done:
		return ErrExecutorClosed
	}
}

// close shuts the executor down. Idempotent.
func (e *executor) close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}
