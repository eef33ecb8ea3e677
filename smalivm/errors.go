package smalivm

import (
	"errors"
	"fmt"
)

var (
	// ErrClassNotFound is returned when the requested method's class is not
	// in the catalog.
	ErrClassNotFound = errors.New("class not found")
	// ErrMethodNotFound is returned when the class exists but the method
	// does not, or has no body to interpret.
	ErrMethodNotFound = errors.New("method not found")
	// ErrUnresolvedEntryState is returned for an explicit initial state that
	// cannot describe an entry to the method.
	ErrUnresolvedEntryState = errors.New("unresolved entry state")
	// ErrInvariantViolation wraps internal engine faults.
	ErrInvariantViolation = errors.New("invariant violation")
)

// InvariantViolationError reports an engine fault recovered at the API
// boundary. The run is aborted.
type InvariantViolationError struct {
	Method  string
	Address int
	Detail  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: %s at %d: %s", ErrInvariantViolation, e.Method, e.Address, e.Detail)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// invariant is the panic payload used inside the engine.
type invariant struct{ msg string }

func invariantf(format string, args ...any) invariant {
	return invariant{msg: fmt.Sprintf(format, args...)}
}

// recoverInvariant converts a panic into an InvariantViolationError.
func recoverInvariant(r any, method string, addr int) error {
	switch p := r.(type) {
	case invariant:
		return &InvariantViolationError{Method: method, Address: addr, Detail: p.msg}
	case error:
		return &InvariantViolationError{Method: method, Address: addr, Detail: p.Error()}
	default:
		return &InvariantViolationError{Method: method, Address: addr, Detail: fmt.Sprint(p)}
	}
}
