package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError wraps a panic value as an error
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(r any) *PanicError {
	stack := string(debug.Stack())
	slog.Error("Recovered from panic", "panic", r, "stack", stack)
	return &PanicError{Value: r, StackTrace: stack}
}

// RecoverAsError recovers from a panic and stores it in *errPtr.
// It must be deferred directly:
//
//	func doWork() (err error) {
//	    defer RecoverAsError(&err)
//	    // ... code that might panic
//	}
func RecoverAsError(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = newPanicError(r)
	}
}

// RecoverWithCallback recovers from a panic and calls the callback with the error.
// Useful when you can't use the error return pattern.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		err := newPanicError(r)
		if callback != nil {
			callback(err)
		}
	}
}
