package handler

import "fmt"

// Status indicates the outcome of a handler invocation.
type Status uint8

const (
	// StatusHandled indicates the handler processed the input.
	StatusHandled Status = iota
	// StatusDeclined indicates the handler matched the pattern but
	// cannot process this particular input.
	StatusDeclined
	// StatusError indicates the handler failed.
	StatusError
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHandled:
		return "handled"
	case StatusDeclined:
		return "declined"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result represents the outcome of handling an input.
//
// A result is one of three things: a successful value, an explicit
// decline that defers to the next candidate, or an error that stops
// dispatch entirely.
type Result struct {
	// Status indicates the result status.
	Status Status

	// Value holds the handler's return value when Status is StatusHandled.
	Value any

	// Err contains the failure when Status is StatusError.
	Err error

	// Message is an optional diagnostic message.
	Message string
}

// IsHandled returns true if the result carries a value.
func (r Result) IsHandled() bool {
	return r.Status == StatusHandled
}

// IsDeclined returns true if the handler declined the input.
func (r Result) IsDeclined() bool {
	return r.Status == StatusDeclined
}

// IsError returns true if the result indicates an error.
func (r Result) IsError() bool {
	return r.Status == StatusError
}

// Handled creates a successful result carrying a value.
func Handled(value any) Result {
	return Result{Status: StatusHandled, Value: value}
}

// HandledWithMessage creates a successful result with a message.
func HandledWithMessage(value any, msg string) Result {
	return Result{Status: StatusHandled, Value: value, Message: msg}
}

// Declined creates a declined result.
func Declined() Result {
	return Result{Status: StatusDeclined}
}

// DeclinedWithMessage creates a declined result with a message.
func DeclinedWithMessage(msg string) Result {
	return Result{Status: StatusDeclined, Message: msg}
}

// Error creates an error result.
func Error(err error) Result {
	return Result{Status: StatusError, Err: err}
}

// Errorf creates an error result with a formatted message.
func Errorf(format string, args ...any) Result {
	return Result{
		Status: StatusError,
		Err:    fmt.Errorf(format, args...),
	}
}

// WithMessage returns a copy of the result with the specified message.
func (r Result) WithMessage(msg string) Result {
	r.Message = msg
	return r
}
