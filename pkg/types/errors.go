package types

import "fmt"

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError reports that the datastore was unreachable when the
// operation started. Nothing was written.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: datastore unavailable: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError reports a failed ingestion step. Partial is true when steps
// before Step are committed and remain in the graph.
type WriteError struct {
	Op       string
	RecordID string
	Step     string
	Partial  bool
	Err      error
}

func (e *WriteError) Error() string {
	state := "nothing committed"
	if e.Partial {
		state = "earlier steps committed"
	}
	return fmt.Sprintf("%s %s: step %s failed (%s): %v", e.Op, e.RecordID, e.Step, state, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// QueryError reports a read-side failure, including connectivity loss
// in the middle of a query.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: query failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
