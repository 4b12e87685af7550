// Package hook provides extensible pre/post dispatch hooks for the dispatcher.
package hook

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmartin/rxdispatch/handler"
)

// Context carries per-dispatch information to hooks.
type Context struct {
	// Dispatcher is the name of the dispatcher performing the dispatch.
	Dispatcher string

	// TraceID uniquely identifies this dispatch call.
	TraceID string

	// Input is the input being dispatched. Pre-dispatch hooks may
	// rewrite it before candidates are selected.
	Input string

	// Args are the extra arguments forwarded to handlers.
	Args []any

	// Start is the time the dispatch began.
	Start time.Time

	// Pattern is the registered pattern of the handler that produced
	// the terminal result. Empty until a candidate handles or fails.
	Pattern string
}

// NewContext creates a dispatch context with a fresh trace ID.
func NewContext(dispatcher, input string, args []any) *Context {
	return &Context{
		Dispatcher: dispatcher,
		TraceID:    uuid.NewString(),
		Input:      input,
		Args:       args,
		Start:      time.Now(),
	}
}

// Hook is the base interface for all dispatch hooks.
type Hook interface {
	// Name returns a unique identifier for this hook.
	Name() string

	// Priority returns the hook priority.
	// Higher values run first for pre-hooks, last for post-hooks.
	Priority() int
}

// PreDispatchHook is called before an input is dispatched.
type PreDispatchHook interface {
	Hook

	// PreDispatch is called before candidates are selected.
	// It may rewrite ctx.Input. Returns false to cancel the dispatch.
	PreDispatch(ctx *Context) bool
}

// PostDispatchHook is called after a dispatch completes.
type PostDispatchHook interface {
	Hook

	// PostDispatch is called with the terminal result of the dispatch,
	// whether handled, failed, or unmatched.
	PostDispatch(ctx *Context, result *handler.Result)
}

// PreDispatchFunc wraps a function as a PreDispatchHook.
type PreDispatchFunc struct {
	name     string
	priority int
	fn       func(ctx *Context) bool
}

// NewPreDispatchFunc creates a new PreDispatchFunc hook.
func NewPreDispatchFunc(name string, priority int, fn func(ctx *Context) bool) *PreDispatchFunc {
	return &PreDispatchFunc{
		name:     name,
		priority: priority,
		fn:       fn,
	}
}

// Name implements Hook.
func (f *PreDispatchFunc) Name() string { return f.name }

// Priority implements Hook.
func (f *PreDispatchFunc) Priority() int { return f.priority }

// PreDispatch implements PreDispatchHook.
func (f *PreDispatchFunc) PreDispatch(ctx *Context) bool {
	if f.fn == nil {
		return true
	}
	return f.fn(ctx)
}

// PostDispatchFunc wraps a function as a PostDispatchHook.
type PostDispatchFunc struct {
	name     string
	priority int
	fn       func(ctx *Context, result *handler.Result)
}

// NewPostDispatchFunc creates a new PostDispatchFunc hook.
func NewPostDispatchFunc(name string, priority int, fn func(ctx *Context, result *handler.Result)) *PostDispatchFunc {
	return &PostDispatchFunc{
		name:     name,
		priority: priority,
		fn:       fn,
	}
}

// Name implements Hook.
func (f *PostDispatchFunc) Name() string { return f.name }

// Priority implements Hook.
func (f *PostDispatchFunc) Priority() int { return f.priority }

// PostDispatch implements PostDispatchHook.
func (f *PostDispatchFunc) PostDispatch(ctx *Context, result *handler.Result) {
	if f.fn != nil {
		f.fn(ctx, result)
	}
}

// CombinedHook implements both PreDispatchHook and PostDispatchHook.
type CombinedHook interface {
	PreDispatchHook
	PostDispatchHook
}
