// Package luarule provides pattern-dispatch handlers written in Lua.
//
// A script must define a global function handle(input, ...). The return
// value of handle becomes the handler's value; calling the built-in
// decline() anywhere in the script declines the input, deferring to the
// next dispatch candidate; a Lua runtime error becomes a fatal handler
// error.
//
//	h, err := luarule.New("parse-int", `
//	    function handle(input)
//	        local n = tonumber(input)
//	        if n == nil then decline() end
//	        return n
//	    end
//	`, handler.DefaultPriority)
//	defer h.Close()
//
//	d.Register(`\d+`, h)
package luarule

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dmartin/rxdispatch/handler"
)

// declineMarker is the error value raised by the decline() built-in.
const declineMarker = "luarule:decline"

// entrypoint is the global function a script must define.
const entrypoint = "handle"

// Handler runs a Lua script as a dispatch handler.
type Handler struct {
	name     string
	priority int
	exec     *executor
}

// ScriptError indicates a script failed to load or does not define the
// handle entrypoint.
type ScriptError struct {
	// Name is the handler name.
	Name string

	// Err is the underlying load error, nil when the entrypoint is
	// simply missing.
	Err error
}

func (e *ScriptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("luarule: %s: loading script: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("luarule: %s: script does not define %s()", e.Name, entrypoint)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// New compiles a Lua script into a Handler with the given priority.
// The returned handler owns a Lua state; call Close when done with it.
func New(name, source string, priority int) (*Handler, error) {
	L := lua.NewState()
	L.SetGlobal("decline", L.NewFunction(luaDecline))

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, &ScriptError{Name: name, Err: err}
	}

	if L.GetGlobal(entrypoint).Type() != lua.LTFunction {
		L.Close()
		return nil, &ScriptError{Name: name}
	}

	return &Handler{
		name:     name,
		priority: priority,
		exec:     newExecutor(L),
	}, nil
}

// Name returns the handler name.
func (h *Handler) Name() string {
	return h.name
}

// Priority implements handler.Handler.
func (h *Handler) Priority() int {
	return h.priority
}

// Handle implements handler.Handler by calling the script's handle()
// function. Safe for concurrent use; invocations are serialized onto
// the goroutine that owns the Lua state.
func (h *Handler) Handle(input string, args ...any) handler.Result {
	var value any

	err := h.exec.execute(func(L *lua.LState) error {
		top := L.GetTop()
		defer L.SetTop(top)

		L.Push(L.GetGlobal(entrypoint))
		L.Push(lua.LString(input))
		for _, a := range args {
			L.Push(toLua(L, a))
		}

		if err := L.PCall(1+len(args), 1, nil); err != nil {
			return err
		}

		value = fromLua(L.Get(-1))
		return nil
	})

	if err != nil {
		if isDecline(err) {
			return handler.Declined()
		}
		return handler.Error(err)
	}
	return handler.Handled(value)
}

// Close releases the Lua state. Idempotent.
func (h *Handler) Close() {
	h.exec.close()
}

// luaDecline is the decline() built-in. It raises a sentinel error that
// Handle translates into a declined result.
func luaDecline(L *lua.LState) int {
	L.Error(lua.LString(declineMarker), 0)
	return 0
}

// isDecline reports whether a PCall error was raised by decline().
func isDecline(err error) bool {
	apiErr, ok := err.(*lua.ApiError)
	if !ok {
		return false
	}
	s, ok := apiErr.Object.(lua.LString)
	return ok && string(s) == declineMarker
}

// toLua converts a Go value into a Lua value. Unsupported types are
// stringified.
func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// fromLua converts a Lua value into a Go value.
func fromLua(v lua.LValue) any {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	default:
		return x.String()
	}
}
