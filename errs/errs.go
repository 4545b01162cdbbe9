// Package errs defines the error kinds reported by the load pipeline.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how far it is allowed to propagate.
type Kind int

const (
	Unknown Kind = iota
	// Configuration errors abort the run before any store interaction.
	Configuration
	// Validation errors are scoped to the offending batch.
	Validation
	// NotFound errors are fatal to the stage that needed the input.
	NotFound
	// Store errors are scoped to the current batch.
	Store
	// Permission errors only occur during cleanup and are never fatal.
	Permission
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "ConfigurationError"
	case Validation:
		return "ValidationError"
	case NotFound:
		return "NotFoundError"
	case Store:
		return "StoreError"
	case Permission:
		return "PermissionError"
	default:
		return "UnknownError"
	}
}

// Error is an error tagged with its Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and op. A nil err is allowed; the op then
// serves as the message.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is New with a formatted cause.
func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
