// Package rules loads pattern-dispatch tables from TOML or YAML files.
//
// A ruleset binds patterns to named Go handlers or inline Lua scripts:
//
//	name = "parse"
//
//	[[rules]]
//	pattern = '\d+'
//	handler = "parse-int"
//
//	[[rules]]
//	pattern = '\w+'
//	handler = "echo"
//	priority = 9
//
//	[[rules]]
//	pattern = '#[0-9a-fA-F]{6}'
//	script = '''
//	function handle(input)
//	    return string.lower(input)
//	end
//	'''
//
// The file format is selected by filename, using a PatternDispatcher.
package rules

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dmartin/rxdispatch"
	"github.com/dmartin/rxdispatch/handler"
	"github.com/dmartin/rxdispatch/luarule"
)

// Rule is a single pattern binding in a ruleset.
type Rule struct {
	// Pattern is the regular expression to register. Required.
	Pattern string `toml:"pattern" yaml:"pattern"`

	// Handler names a Go handler supplied by the host through a
	// Resolver. Exactly one of Handler and Script must be set.
	Handler string `toml:"handler" yaml:"handler"`

	// Script is inline Lua source for the rule's handler.
	Script string `toml:"script" yaml:"script"`

	// Priority overrides the handler priority for this rule.
	// Defaults to handler.DefaultPriority.
	Priority *int `toml:"priority" yaml:"priority"`
}

// Ruleset is a named collection of rules.
type Ruleset struct {
	// Name becomes the dispatcher name when the ruleset is built.
	Name string `toml:"name" yaml:"name"`

	// Rules are applied in file order.
	Rules []Rule `toml:"rules" yaml:"rules"`
}

// Resolver maps handler names referenced by rules to handlers.
type Resolver interface {
	Resolve(name string) (handler.Handler, bool)
}

// ResolverMap is a map-based Resolver.
type ResolverMap map[string]handler.Handler

// Resolve implements Resolver.
func (m ResolverMap) Resolve(name string) (handler.Handler, bool) {
	h, ok := m[name]
	return h, ok
}

// formats routes a ruleset filename to its decoder. The dispatcher
// library eating its own cooking: format sniffing is string dispatch.
var formats = newFormatDispatcher()

func newFormatDispatcher() *rxdispatch.Dispatcher {
	d := rxdispatch.New("rules.format")
	mustRegister(d, `.*\.toml`, decodeWith(toml.Unmarshal))
	mustRegister(d, `.*\.ya?ml`, decodeWith(yaml.Unmarshal))
	return d
}

func mustRegister(d *rxdispatch.Dispatcher, pattern string, h handler.Handler) {
	if err := d.Register(pattern, h); err != nil {
		panic(err)
	}
}

// decodeWith adapts an unmarshal function into a format handler. The
// raw file bytes travel as the first dispatch argument.
func decodeWith(unmarshal func([]byte, any) error) handler.Handler {
	return handler.NewFunc(func(_ string, args ...any) handler.Result {
		data := args[0].([]byte)
		var rs Ruleset
		if err := unmarshal(data, &rs); err != nil {
			return handler.Error(err)
		}
		return handler.Handled(&rs)
	})
}

// Load reads and validates a ruleset file. The format is chosen by the
// file name: .toml parses as TOML, .yaml/.yml as YAML.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: reading %s: %w", path, err)
	}
	return parse(path, data)
}

// LoadReader reads a ruleset from r. The name selects the format the
// same way a file name does.
func LoadReader(name string, r io.Reader) (*Ruleset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rules: reading %s: %w", name, err)
	}
	return parse(name, data)
}

// parse decodes and validates ruleset data.
func parse(path string, data []byte) (*Ruleset, error) {
	v, err := formats.Dispatch(path, data)
	if err != nil {
		var noMatch *rxdispatch.NoMatchError
		if errors.As(err, &noMatch) {
			return nil, &ParseError{Path: path, Message: "unsupported ruleset format"}
		}
		return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
	}

	rs := v.(*Ruleset)
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return rs, nil
}

// Validate checks the ruleset for structural problems.
func (rs *Ruleset) Validate() error {
	if len(rs.Rules) == 0 {
		return ErrEmptyRuleset
	}

	for i, r := range rs.Rules {
		switch {
		case r.Pattern == "":
			return fmt.Errorf("rule %d: %w", i, ErrNoPattern)
		case r.Handler != "" && r.Script != "":
			return fmt.Errorf("rule %d (%q): %w", i, r.Pattern, ErrAmbiguousRule)
		case r.Handler == "" && r.Script == "":
			return fmt.Errorf("rule %d (%q): %w", i, r.Pattern, ErrNoHandler)
		}
	}
	return nil
}

// Bind registers every rule against the dispatcher. Named handlers are
// looked up through the resolver; script rules compile to Lua handlers.
// Binding stops at the first failing rule.
func (rs *Ruleset) Bind(d *rxdispatch.Dispatcher, res Resolver) error {
	for i, r := range rs.Rules {
		h, err := rs.buildHandler(i, r, res)
		if err != nil {
			return err
		}
		if err := d.Register(r.Pattern, h); err != nil {
			return fmt.Errorf("rules: rule %d: %w", i, err)
		}
	}
	return nil
}

// Build constructs a fresh dispatcher from the ruleset. The dispatcher
// is named after the ruleset, falling back to "rules".
func (rs *Ruleset) Build(config rxdispatch.Config, res Resolver) (*rxdispatch.Dispatcher, error) {
	name := rs.Name
	if name == "" {
		name = "rules"
	}

	d := rxdispatch.NewWithConfig(name, config)
	if err := rs.Bind(d, res); err != nil {
		return nil, err
	}
	return d, nil
}

// buildHandler turns one rule into a handler.
func (rs *Ruleset) buildHandler(i int, r Rule, res Resolver) (handler.Handler, error) {
	priority := handler.DefaultPriority
	if r.Priority != nil {
		priority = *r.Priority
	}

	if r.Script != "" {
		name := fmt.Sprintf("%s.rule%d", rs.Name, i)
		h, err := luarule.New(name, r.Script, priority)
		if err != nil {
			return nil, fmt.Errorf("rules: rule %d (%q): %w", i, r.Pattern, err)
		}
		return h, nil
	}

	if res == nil {
		return nil, fmt.Errorf("rules: rule %d (%q) names handler %q but no resolver was given: %w",
			i, r.Pattern, r.Handler, ErrUnknownHandler)
	}

	h, ok := res.Resolve(r.Handler)
	if !ok {
		return nil, fmt.Errorf("rules: rule %d (%q): handler %q: %w", i, r.Pattern, r.Handler, ErrUnknownHandler)
	}

	if r.Priority != nil && *r.Priority != h.Priority() {
		h = handler.WithPriority(h, priority)
	}
	return h, nil
}
