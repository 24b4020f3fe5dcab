package preview

import "fmt"

// ExecutionError reports a failed preview: either the executor itself failed
// or the backend answered with a genuine ERROR_MESSAGE payload.
type ExecutionError struct {
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("preview execution failed: %s", e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// BusyError is returned when a preview is requested while another one is
// still running on the same bridge.
type BusyError struct{}

func (e *BusyError) Error() string {
	return "a preview is already running"
}
