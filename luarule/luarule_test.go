package luarule_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/dmartin/rxdispatch"
	"github.com/dmartin/rxdispatch/handler"
	"github.com/dmartin/rxdispatch/luarule"
)

func mustNew(t *testing.T, name, source string) *luarule.Handler {
	t.Helper()
	h, err := luarule.New(name, source, handler.DefaultPriority)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", name, err)
	}
	t.Cleanup(h.Close)
	return h
}

func TestHandleReturnsValue(t *testing.T) {
	h := mustNew(t, "upper", `
		function handle(input)
			return string.upper(input)
		end
	`)

	result := h.Handle("abc")
	if !result.IsHandled() {
		t.Fatalf("Handle returned %+v, want handled", result)
	}
	if result.Value != "ABC" {
		t.Errorf("Value = %v, want ABC", result.Value)
	}
}

func TestHandleNumbers(t *testing.T) {
	h := mustNew(t, "double", `
		function handle(input)
			return tonumber(input) * 2
		end
	`)

	result := h.Handle("21")
	if !result.IsHandled() {
		t.Fatalf("Handle returned %+v, want handled", result)
	}
	if result.Value != float64(42) {
		t.Errorf("Value = %v (%T), want 42.0", result.Value, result.Value)
	}
}

func TestDeclineBuiltin(t *testing.T) {
	h := mustNew(t, "picky", `
		function handle(input)
			local n = tonumber(input)
			if n == nil then decline() end
			return n
		end
	`)

	if result := h.Handle("123"); !result.IsHandled() {
		t.Errorf("Handle(\"123\") = %+v, want handled", result)
	}
	if result := h.Handle("abc"); !result.IsDeclined() {
		t.Errorf("Handle(\"abc\") = %+v, want declined", result)
	}
}

func TestRuntimeErrorIsFatal(t *testing.T) {
	h := mustNew(t, "broken", `
		function handle(input)
			error("exploded")
		end
	`)

	result := h.Handle("anything")
	if !result.IsError() {
		t.Fatalf("Handle returned %+v, want error", result)
	}
	if result.Err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestArgsForwarded(t *testing.T) {
	h := mustNew(t, "concat", `
		function handle(input, sep, suffix)
			return input .. sep .. suffix
		end
	`)

	result := h.Handle("a", "-", "b")
	if !result.IsHandled() || result.Value != "a-b" {
		t.Errorf("Handle(\"a\", \"-\", \"b\") = %+v, want a-b", result)
	}
}

func TestMissingEntrypoint(t *testing.T) {
	_, err := luarule.New("empty", `local x = 1`, 10)

	var scriptErr *luarule.ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected *ScriptError, got %T: %v", err, err)
	}
	if scriptErr.Name != "empty" {
		t.Errorf("ScriptError.Name = %q, want %q", scriptErr.Name, "empty")
	}
}

func TestSyntaxError(t *testing.T) {
	_, err := luarule.New("bad", `function handle(`, 10)

	var scriptErr *luarule.ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected *ScriptError, got %T: %v", err, err)
	}
	if scriptErr.Unwrap() == nil {
		t.Error("expected ScriptError to wrap the load error")
	}
}

func TestPriority(t *testing.T) {
	h, err := luarule.New("p", `function handle(input) return input end`, 3)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer h.Close()

	if h.Priority() != 3 {
		t.Errorf("Priority() = %d, want 3", h.Priority())
	}
	if h.Name() != "p" {
		t.Errorf("Name() = %q, want %q", h.Name(), "p")
	}
}

func TestConcurrentHandle(t *testing.T) {
	h := mustNew(t, "upper", `
		function handle(input)
			return string.upper(input)
		end
	`)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if result := h.Handle("abc"); !result.IsHandled() || result.Value != "ABC" {
					t.Errorf("concurrent Handle returned %+v", result)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCloseStopsHandler(t *testing.T) {
	h, err := luarule.New("closing", `function handle(input) return input end`, 10)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	h.Close()
	h.Close() // idempotent

	result := h.Handle("x")
	if !result.IsError() {
		t.Errorf("Handle after Close returned %+v, want error", result)
	}
	if !errors.Is(result.Err, luarule.ErrExecutorClosed) {
		t.Errorf("error = %v, want ErrExecutorClosed", result.Err)
	}
}

func TestLuaHandlerInDispatcher(t *testing.T) {
	d := rxdispatch.New("test")

	hex := mustNew(t, "hex", `
		function handle(input)
			local n = tonumber(input, 16)
			if n == nil then decline() end
			return n
		end
	`)

	if err := d.Register(`[0-9a-f]+`, hex); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	v, err := d.Dispatch("ff")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if v != float64(255) {
		t.Errorf("Dispatch(\"ff\") = %v, want 255", v)
	}
}
