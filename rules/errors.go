package rules

import (
	"errors"
	"fmt"
)

// Ruleset errors.
var (
	// ErrEmptyRuleset indicates a ruleset contains no rules.
	ErrEmptyRuleset = errors.New("rules: ruleset has no rules")

	// ErrNoPattern indicates a rule is missing its pattern.
	ErrNoPattern = errors.New("rules: rule is missing a pattern")

	// ErrAmbiguousRule indicates a rule specifies both a named handler
	// and an inline script.
	ErrAmbiguousRule = errors.New("rules: rule specifies both handler and script")

	// ErrNoHandler indicates a rule specifies neither a named handler
	// nor an inline script.
	ErrNoHandler = errors.New("rules: rule specifies neither handler nor script")

	// ErrUnknownHandler indicates a rule names a handler the resolver
	// does not know.
	ErrUnknownHandler = errors.New("rules: unknown handler")
)

// ParseError represents an error while parsing a ruleset file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rules: parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
