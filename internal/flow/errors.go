package flow

import (
	"errors"
	"fmt"
)

// ErrFlowDisabled is returned when the catalog disables a flow.
var ErrFlowDisabled = errors.New("flow is disabled")

// ValidationError reports malformed input. It is raised before any I/O and
// its message is safe to show to the caller.
type ValidationError struct {
	Flow string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid input: %v", e.Flow, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds the error a Validate function returns.
func Invalid(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// GenerationError wraps a failure of the text-generation endpoint. Its
// detail is logged but not shown to end users.
type GenerationError struct {
	Flow string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Flow, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError wraps a document-store failure that aborted a run. Write
// failures after generation never surface; only cache reads do.
type PersistenceError struct {
	Flow string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Flow, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsGeneration reports whether err is a GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
