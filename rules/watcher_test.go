package rules_test

import (
	"os"
	"testing"
	"time"

	"github.com/dmartin/rxdispatch"
	"github.com/dmartin/rxdispatch/rules"
)

const watcherRulesetV1 = `
name = "watched"

[[rules]]
pattern = '\d+'
handler = "parse-int"
`

const watcherRulesetV2 = `
name = "watched"

[[rules]]
pattern = '\d+'
handler = "echo"
`

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "watched.toml", watcherRulesetV1)

	reloaded := make(chan *rxdispatch.Dispatcher, 1)
	w, err := rules.Watch(path, testResolver(), func(d *rxdispatch.Dispatcher) {
		select {
		case reloaded <- d:
		default:
		}
	}, rules.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(watcherRulesetV2), 0o644); err != nil {
		t.Fatalf("rewriting ruleset: %v", err)
	}

	select {
	case d := <-reloaded:
		// v2 routes digits to echo, so the value is a string now.
		v, err := d.Dispatch("42")
		if err != nil {
			t.Fatalf("Dispatch on reloaded dispatcher failed: %v", err)
		}
		if v != "42" {
			t.Errorf("Dispatch(\"42\") = %v (%T), want the echo string", v, v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherReportsReloadErrors(t *testing.T) {
	path := writeFile(t, "watched.toml", watcherRulesetV1)

	w, err := rules.Watch(path, testResolver(), nil, rules.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[[rules\n"), 0o644); err != nil {
		t.Fatalf("rewriting ruleset: %v", err)
	}

	select {
	case err := <-w.Errors():
		if err == nil {
			t.Fatal("expected a non-nil reload error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeFile(t, "watched.toml", watcherRulesetV1)

	reloaded := make(chan *rxdispatch.Dispatcher, 1)
	w, err := rules.Watch(path, testResolver(), func(d *rxdispatch.Dispatcher) {
		reloaded <- d
	}, rules.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	// A sibling file changing must not trigger a reload.
	sibling := path + ".bak"
	if err := os.WriteFile(sibling, []byte("unrelated"), 0o644); err != nil {
		t.Fatalf("writing sibling: %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("reload triggered by an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	path := writeFile(t, "watched.toml", watcherRulesetV1)

	w, err := rules.Watch(path, testResolver(), nil)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}
