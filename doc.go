// Package rxdispatch routes input strings to handlers by regular
// expression match, breaking ties between matching patterns with an
// explicit priority.
//
// It generalizes type-based multiple dispatch to dispatch keyed on
// unstructured strings whose "type" is inferred by pattern matching,
// which is useful for format sniffing, URI-scheme routing, and
// protocol detection.
//
// # Registration
//
// Every pattern is normalized to an anchored, full-string form before
// storage, so a handler registered for `\d+` never matches "12a".
// Invalid patterns fail at registration with *PatternError, not at
// dispatch time. Priorities are recorded by handler identity; the
// default is handler.DefaultPriority (10).
//
// # Dispatch
//
// When an input is dispatched:
//
//  1. Pre-dispatch hooks run (they may rewrite or cancel the input)
//  2. All matching handlers are collected into a candidate list,
//     sorted by priority descending, registration order on ties
//  3. Candidates are invoked in order; a declined result moves to the
//     next candidate, a handled result ends the dispatch, and any
//     handler error terminates the dispatch immediately
//  4. Post-dispatch hooks run with the terminal result
//
// If no pattern matches, or every matching handler declines, Dispatch
// fails with *NoMatchError carrying the unrouted input.
//
// # Usage
//
//	d := rxdispatch.New("parse")
//
//	d.Register(`\d+`, handler.NewFunc(func(s string, _ ...any) handler.Result {
//	    n, err := strconv.Atoi(s)
//	    if err != nil {
//	        return handler.Declined()
//	    }
//	    return handler.Handled(n)
//	}))
//
//	d.Register(`\w+`, handler.NewFuncWithPriority(func(s string, _ ...any) handler.Result {
//	    return handler.Handled(s)
//	}, 9))
//
//	v, err := d.Dispatch("123") // v == 123
//
// Dispatchers are constructed explicitly and never shared through
// package-level state; an application that wants a process-wide
// dispatcher holds one itself.
//
// Handlers may also be declared in TOML or YAML rulesets (package
// rules), including inline Lua scripts (package luarule).
package rxdispatch
