// Command rxroute routes input strings through a pattern dispatcher.
//
// With no ruleset it uses a built-in table (integers, floats, words);
// with -rules it loads a TOML or YAML ruleset that may reference the
// built-in handlers by name or embed Lua scripts.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/dmartin/rxdispatch"
	"github.com/dmartin/rxdispatch/handler"
	"github.com/dmartin/rxdispatch/rules"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		rulesPath   string
		watch       bool
		stats       bool
		showVersion bool
	)

	flag.StringVar(&rulesPath, "rules", "", "Path to a TOML or YAML ruleset")
	flag.BoolVar(&watch, "watch", false, "Reload the ruleset when it changes (requires -rules)")
	flag.BoolVar(&stats, "stats", false, "Print dispatch statistics on exit")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("rxroute %s (%s, built %s)\n", version, commit, date)
		return 0
	}

	config := rxdispatch.DefaultConfig()
	if stats {
		config = config.WithMetrics()
	}

	resolver := builtinResolver()

	d, err := buildDispatcher(rulesPath, config, resolver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// The current dispatcher; -watch swaps in rebuilt ones.
	var current atomic.Pointer[rxdispatch.Dispatcher]
	current.Store(d)

	if watch {
		if rulesPath == "" {
			fmt.Fprintln(os.Stderr, "Error: -watch requires -rules")
			return 1
		}
		w, err := rules.Watch(rulesPath, resolver, func(next *rxdispatch.Dispatcher) {
			current.Store(next)
			fmt.Fprintf(os.Stderr, "rxroute: reloaded %s\n", rulesPath)
		}, rules.WithConfig(config))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: watching %s: %v\n", rulesPath, err)
			return 1
		}
		defer w.Close()

		go func() {
			for err := range w.Errors() {
				fmt.Fprintf(os.Stderr, "rxroute: reload failed: %v\n", err)
			}
		}()
	}

	code := route(&current, flag.Args())

	if stats {
		printStats(current.Load())
	}
	return code
}

// route dispatches each input, reading stdin when none are given.
func route(current *atomic.Pointer[rxdispatch.Dispatcher], inputs []string) int {
	code := 0

	dispatch := func(in string) {
		v, err := current.Load().Dispatch(in)
		if err != nil {
			var noMatch *rxdispatch.NoMatchError
			if errors.As(err, &noMatch) {
				fmt.Fprintf(os.Stderr, "rxroute: no handler for %q\n", in)
			} else {
				fmt.Fprintf(os.Stderr, "rxroute: %v\n", err)
			}
			code = 1
			return
		}
		fmt.Printf("%v\n", v)
	}

	if len(inputs) == 0 || (len(inputs) == 1 && inputs[0] == "-") {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			dispatch(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "rxroute: reading stdin: %v\n", err)
			return 1
		}
		return code
	}

	for _, in := range inputs {
		dispatch(in)
	}
	return code
}

// buildDispatcher loads the ruleset, or falls back to the built-in table.
func buildDispatcher(rulesPath string, config rxdispatch.Config, resolver rules.Resolver) (*rxdispatch.Dispatcher, error) {
	if rulesPath != "" {
		rs, err := rules.Load(rulesPath)
		if err != nil {
			return nil, err
		}
		return rs.Build(config, resolver)
	}

	d := rxdispatch.NewWithConfig("rxroute", config)
	for _, b := range builtins() {
		if err := d.Register(b.pattern, b.handler); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// binding pairs a pattern with one of the built-in handlers.
type binding struct {
	name    string
	pattern string
	handler handler.Handler
}

// builtins returns the default dispatch table: integers parse as int,
// decimals as float64, and any remaining word echoes back unchanged.
func builtins() []binding {
	return []binding{
		{"parse-int", `\d+`, handler.NewFunc(parseInt)},
		{"parse-float", `\d+\.\d+`, handler.NewFunc(parseFloat)},
		{"echo", `\w+`, handler.NewFuncWithPriority(echo, 9)},
	}
}

// builtinResolver exposes the built-in handlers to rulesets by name.
func builtinResolver() rules.ResolverMap {
	m := make(rules.ResolverMap)
	for _, b := range builtins() {
		m[b.name] = b.handler
	}
	return m
}

func parseInt(input string, _ ...any) handler.Result {
	n, err := strconv.Atoi(input)
	if err != nil {
		return handler.Declined()
	}
	return handler.Handled(n)
}

func parseFloat(input string, _ ...any) handler.Result {
	f, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return handler.Declined()
	}
	return handler.Handled(f)
}

func echo(input string, _ ...any) handler.Result {
	return handler.Handled(input)
}

// printStats summarizes dispatch metrics on stderr.
func printStats(d *rxdispatch.Dispatcher) {
	m := d.Metrics()
	if m == nil {
		return
	}

	snap := m.Snapshot()
	fmt.Fprintf(os.Stderr, "rxroute: %d invocations (%d declined, %d errors, %d unmatched), avg %s\n",
		snap.TotalDispatches, snap.TotalDeclines, snap.TotalErrors, snap.TotalNoMatches, snap.AverageDuration)

	for _, pm := range m.TopPatterns(10) {
		fmt.Fprintf(os.Stderr, "  %-24s %6d calls, avg %s\n",
			pm.Pattern, pm.DispatchCount, pm.AveragePatternDuration())
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `rxroute - route strings through a pattern dispatcher

Usage:
  rxroute [flags] [input ...]

Reads inputs from the command line, or from stdin when none are given
(or when the single input is "-"). Each input is matched against the
dispatch table and the chosen handler's output is printed.

Flags:
`)
	flag.PrintDefaults()
}
