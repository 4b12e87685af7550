package rxdispatch_test

import (
	"errors"
	"testing"

	"github.com/dmartin/rxdispatch"
	"github.com/dmartin/rxdispatch/handler"
	"github.com/dmartin/rxdispatch/hook"
)

func TestPreHookCancelsDispatch(t *testing.T) {
	d := rxdispatch.New("test")
	mustRegister(t, d, `\d+`, handled("digits", 10))

	d.Hooks().RegisterPre(hook.NewPreDispatchFunc("deny-all", 100, func(*hook.Context) bool {
		return false
	}))

	_, err := d.Dispatch("42")
	var cancelled *rxdispatch.CancelledError
	if !errors.As(err, &cancelled) {
		t.Fatalf("expected *CancelledError, got %T: %v", err, err)
	}
	if cancelled.Hook != "deny-all" {
		t.Errorf("CancelledError.Hook = %q, want %q", cancelled.Hook, "deny-all")
	}
	if cancelled.Input != "42" {
		t.Errorf("CancelledError.Input = %q, want %q", cancelled.Input, "42")
	}
}

func TestPreHookRewritesInput(t *testing.T) {
	d := rxdispatch.New("test")
	mustRegister(t, d, `\d+`, handler.NewFunc(func(s string, _ ...any) handler.Result {
		return handler.Handled(s)
	}))

	d.Hooks().RegisterPre(hook.NewPreDispatchFunc("strip-prefix", 100, func(ctx *hook.Context) bool {
		if len(ctx.Input) > 3 && ctx.Input[:3] == "id:" {
			ctx.Input = ctx.Input[3:]
		}
		return true
	}))

	v, err := d.Dispatch("id:42")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if v != "42" {
		t.Errorf("Dispatch(\"id:42\") = %v, want the rewritten input 42", v)
	}
}

func TestPostHookObservesTerminalResult(t *testing.T) {
	d := rxdispatch.New("test")
	mustRegister(t, d, `\d+`, handled(7, 10))

	var observed *handler.Result
	var pattern string
	var traceID string
	d.Hooks().RegisterPost(hook.NewPostDispatchFunc("observe", 0, func(ctx *hook.Context, result *handler.Result) {
		observed = result
		pattern = ctx.Pattern
		traceID = ctx.TraceID
	}))

	if _, err := d.Dispatch("42"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if observed == nil {
		t.Fatal("post hook did not run")
	}
	if !observed.IsHandled() || observed.Value != 7 {
		t.Errorf("post hook saw %+v, want handled result with value 7", observed)
	}
	if pattern != `\d+` {
		t.Errorf("post hook saw pattern %q, want `\\d+`", pattern)
	}
	if traceID == "" {
		t.Error("expected a non-empty trace ID")
	}
}

func TestPostHookRunsOnNoMatch(t *testing.T) {
	d := rxdispatch.New("test")

	var observed *handler.Result
	d.Hooks().RegisterPost(hook.NewPostDispatchFunc("observe", 0, func(_ *hook.Context, result *handler.Result) {
		observed = result
	}))

	if _, err := d.Dispatch("anything"); err == nil {
		t.Fatal("expected NoMatchError")
	}

	if observed == nil {
		t.Fatal("post hook did not run on no-match")
	}
	if !observed.IsError() {
		t.Errorf("post hook saw status %v, want error", observed.Status)
	}
	var noMatch *rxdispatch.NoMatchError
	if !errors.As(observed.Err, &noMatch) {
		t.Errorf("post hook error = %v, want *NoMatchError", observed.Err)
	}
}

func TestDispatchTraceIDsAreUnique(t *testing.T) {
	d := rxdispatch.New("test")
	mustRegister(t, d, `\d+`, handled("digits", 10))

	seen := make(map[string]bool)
	d.Hooks().RegisterPost(hook.NewPostDispatchFunc("trace", 0, func(ctx *hook.Context, _ *handler.Result) {
		if seen[ctx.TraceID] {
			t.Errorf("trace ID %q repeated", ctx.TraceID)
		}
		seen[ctx.TraceID] = true
	}))

	for i := 0; i < 10; i++ {
		if _, err := d.Dispatch("42"); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}
	if len(seen) != 10 {
		t.Errorf("observed %d trace IDs, want 10", len(seen))
	}
}
