package iecstack

import "github.com/vuuvv/errors"

// StackError is the uniform error type the stack contract (spec.md §6.3)
// returns from any fallible operation. Its Error() string is what
// handlers pass straight through to the RPC response's error.message
// per spec.md §7 ("<stack error string> — passed through from the
// external stack").
type StackError struct {
	cause error
}

func (e *StackError) Error() string {
	return e.cause.Error()
}

func newStackError(format string, args ...any) error {
	return &StackError{cause: errors.Errorf(format, args...)}
}
