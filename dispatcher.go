package rxdispatch

import (
	"fmt"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmartin/rxdispatch/handler"
	"github.com/dmartin/rxdispatch/hook"
)

// Dispatcher routes input strings to handlers by regular expression match.
//
// Each registration associates an anchored pattern with a handler and a
// priority. Dispatch tries every matching handler in priority order
// (higher first) until one handles the input; a handler may decline,
// deferring to the next candidate.
type Dispatcher struct {
	name   string
	config Config

	mu         sync.RWMutex
	entries    map[string]*entry       // normalized pattern -> entry
	priorities map[handler.Handler]int // handler identity -> priority
	nextSeq    uint64

	metrics *Metrics
	hooks   *hook.Manager
}

// entry is one registration in the pattern registry.
type entry struct {
	raw string // pattern as supplied to Register
	re  *regexp.Regexp
	h   handler.Handler
	seq uint64 // registration order, breaks priority ties
}

// New constructs an empty, named dispatcher with the default
// configuration. The name is diagnostic only.
func New(name string) *Dispatcher {
	return NewWithConfig(name, DefaultConfig())
}

// NewWithConfig constructs an empty, named dispatcher.
func NewWithConfig(name string, config Config) *Dispatcher {
	d := &Dispatcher{
		name:       name,
		config:     config,
		entries:    make(map[string]*entry),
		priorities: make(map[handler.Handler]int),
		hooks:      hook.NewManager(),
	}

	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}

	return d
}

// Name returns the dispatcher's diagnostic name.
func (d *Dispatcher) Name() string {
	return d.name
}

// Register associates a pattern with a handler.
//
// The pattern is normalized to match the entire input: existing ^ and $
// anchors are stripped and the pattern is re-wrapped so that a handler
// registered for `\d+` never matches a prefix of "12a". Registering
// `^\d+$` and `\d+` are therefore equivalent.
//
// The handler's priority is recorded by handler identity at
// registration time; re-registering the same handler overwrites its
// priority. Handlers must be comparable values (pointer handlers such
// as *handler.Func are). An invalid pattern fails with *PatternError.
// Registering the same (pattern, handler) pair again is a no-op.
func (d *Dispatcher) Register(pattern string, h handler.Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	normalized := Normalize(pattern)
	re, err := regexp.Compile(normalized)
	if err != nil {
		return &PatternError{Pattern: pattern, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.priorities[h] = h.Priority()

	// Same (pattern, handler) pair: keep the original registration
	// order so repeated registration is observably a no-op.
	if e, ok := d.entries[normalized]; ok && e.h == h {
		return nil
	}

	d.nextSeq++
	d.entries[normalized] = &entry{
		raw: pattern,
		re:  re,
		h:   h,
		seq: d.nextSeq,
	}
	return nil
}

// Len returns the number of registered patterns.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Patterns returns all registered patterns in normalized form, sorted.
func (d *Dispatcher) Patterns() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	patterns := make([]string, 0, len(d.entries))
	for p := range d.entries {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return patterns
}

// Candidates returns every handler whose pattern fully matches the
// input, sorted by priority descending. Equal priorities are ordered by
// registration, earlier first, so repeated calls against an unchanged
// registry return the same sequence every time.
//
// The slice is built from a point-in-time snapshot of the registry
// taken under a read lock; registrations made while a dispatch is in
// flight do not affect its candidate list.
func (d *Dispatcher) Candidates(input string) []handler.Handler {
	matched := d.candidates(input)

	handlers := make([]handler.Handler, len(matched))
	for i, e := range matched {
		handlers[i] = e.h
	}
	return handlers
}

// candidates returns matching registry entries in dispatch order.
func (d *Dispatcher) candidates(input string) []*entry {
	d.mu.RLock()
	matched := make([]*entry, 0, len(d.entries))
	prio := make(map[uint64]int, len(d.entries))
	for _, e := range d.entries {
		if e.re.MatchString(input) {
			matched = append(matched, e)
			prio[e.seq] = d.priorities[e.h]
		}
	}
	d.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		pi, pj := prio[matched[i].seq], prio[matched[j].seq]
		if pi != pj {
			return pi > pj
		}
		return matched[i].seq < matched[j].seq
	})
	return matched
}

// Dispatch routes the input to the best matching handler.
//
// Candidates are invoked in order with the input plus any extra
// arguments forwarded verbatim. A declined result moves to the next
// candidate; a handler error terminates the dispatch and is returned
// unchanged; a handled result returns the handler's value as-is. If no
// pattern matches, or every matching handler declines, Dispatch fails
// with *NoMatchError carrying the input.
func (d *Dispatcher) Dispatch(input string, args ...any) (any, error) {
	start := time.Now()
	ctx := hook.NewContext(d.name, input, args)

	if ok, name := d.hooks.RunPreDispatch(ctx); !ok {
		err := &CancelledError{Name: d.name, Input: input, Hook: name}
		result := handler.Error(err)
		d.hooks.RunPostDispatch(ctx, &result)
		return nil, err
	}

	// Pre-hooks may have rewritten the input.
	input = ctx.Input

	for _, e := range d.candidates(input) {
		invStart := time.Now()
		result := d.invoke(e, input, args)

		if d.metrics != nil {
			d.metrics.RecordDispatch(e.raw, time.Since(invStart), result.Status)
		}

		switch result.Status {
		case handler.StatusHandled:
			ctx.Pattern = e.raw
			d.hooks.RunPostDispatch(ctx, &result)
			return result.Value, nil

		case handler.StatusDeclined:
			continue

		case handler.StatusError:
			if result.Err == nil {
				result.Err = fmt.Errorf("rxdispatch: %s: handler for pattern %q failed", d.name, e.raw)
			}
			ctx.Pattern = e.raw
			d.hooks.RunPostDispatch(ctx, &result)
			return nil, result.Err
		}
	}

	err := &NoMatchError{Name: d.name, Input: input}
	if d.metrics != nil {
		d.metrics.RecordNoMatch(time.Since(start))
	}
	result := handler.Error(err)
	d.hooks.RunPostDispatch(ctx, &result)
	return nil, err
}

// invoke executes a single candidate, with panic recovery if configured.
func (d *Dispatcher) invoke(e *entry, input string, args []any) (result handler.Result) {
	if d.config.RecoverFromPanic {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				n := runtime.Stack(stack, false)

				result = handler.Errorf("rxdispatch: %s: handler panic for pattern %q: %v\n%s",
					d.name, e.raw, r, string(stack[:n]))

				if d.metrics != nil {
					d.metrics.RecordPanic(e.raw)
				}
			}
		}()
	}

	return e.h.Handle(input, args...)
}

// Hooks returns the dispatcher's hook manager.
func (d *Dispatcher) Hooks() *hook.Manager {
	return d.hooks
}

// Metrics returns the metrics collector (nil if metrics are disabled).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Normalize rewrites a pattern into its anchored, full-match form.
// Leading ^ and trailing unescaped $ anchors are stripped and the
// remainder is wrapped in a non-capturing group anchored at both ends,
// so `^\d+$` and `\d+` normalize to the same pattern.
func Normalize(pattern string) string {
	pattern = strings.TrimLeft(pattern, "^")
	for strings.HasSuffix(pattern, "$") && !endsWithEscape(pattern[:len(pattern)-1]) {
		pattern = pattern[:len(pattern)-1]
	}
	return "^(?:" + pattern + ")$"
}

// endsWithEscape reports whether s ends with an odd run of backslashes,
// meaning the next character is escaped.
func endsWithEscape(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}
