package rxdispatch

import (
	"errors"
	"fmt"
)

// ErrNilHandler indicates a nil handler was passed to Register.
var ErrNilHandler = errors.New("rxdispatch: nil handler")

// PatternError indicates a registration pattern is not a valid regular
// expression. It is returned by Register, never at dispatch time.
type PatternError struct {
	// Pattern is the pattern as supplied to Register.
	Pattern string

	// Err is the underlying compile error.
	Err error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("rxdispatch: invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// NoMatchError indicates no registered pattern matched the input, or
// every matching handler declined it.
type NoMatchError struct {
	// Name is the dispatcher name.
	Name string

	// Input is the input that could not be routed.
	Input string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("rxdispatch: %s: no handler for input %q", e.Name, e.Input)
}

// CancelledError indicates a pre-dispatch hook cancelled the dispatch.
type CancelledError struct {
	// Name is the dispatcher name.
	Name string

	// Input is the input whose dispatch was cancelled.
	Input string

	// Hook is the name of the hook that cancelled.
	Hook string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("rxdispatch: %s: dispatch of %q cancelled by hook %q", e.Name, e.Input, e.Hook)
}
