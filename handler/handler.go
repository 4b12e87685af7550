// Package handler provides the handler interface and result types for
// pattern dispatch.
package handler

// DefaultPriority is the priority assigned to handlers that do not
// specify one. Higher priorities are tried first.
const DefaultPriority = 10

// Handler processes an input that matched its registered pattern.
type Handler interface {
	// Handle attempts to process the input. Extra arguments supplied to
	// Dispatch are forwarded verbatim. A handler that cannot process
	// this particular input returns a declined result, which moves
	// dispatch on to the next candidate.
	Handle(input string, args ...any) Result

	// Priority returns the handler priority (higher = tried first).
	Priority() int
}

// Func is a function adapter for the Handler interface.
// It allows using a simple function as a Handler.
type Func struct {
	fn   func(input string, args ...any) Result
	prio int
}

// NewFunc creates a Func with the default priority.
func NewFunc(fn func(input string, args ...any) Result) *Func {
	return &Func{fn: fn, prio: DefaultPriority}
}

// NewFuncWithPriority creates a Func with a specified priority.
func NewFuncWithPriority(fn func(input string, args ...any) Result, priority int) *Func {
	return &Func{fn: fn, prio: priority}
}

// Handle implements Handler.Handle.
func (f *Func) Handle(input string, args ...any) Result {
	if f.fn == nil {
		return Errorf("handler function is nil")
	}
	return f.fn(input, args...)
}

// Priority implements Handler.Priority.
func (f *Func) Priority() int {
	return f.prio
}

// priorityOverride wraps a Handler with a different priority.
type priorityOverride struct {
	h    Handler
	prio int
}

// WithPriority returns a Handler that behaves like h but reports the
// given priority. The wrapped handler is a distinct identity from h.
func WithPriority(h Handler, priority int) Handler {
	return &priorityOverride{h: h, prio: priority}
}

// Handle implements Handler.Handle.
func (p *priorityOverride) Handle(input string, args ...any) Result {
	if p.h == nil {
		return Errorf("handler is nil")
	}
	return p.h.Handle(input, args...)
}

// Priority implements Handler.Priority.
func (p *priorityOverride) Priority() int {
	return p.prio
}
