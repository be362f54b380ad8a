package operations

import (
	"context"
	"errors"
	"fmt"

	"sovpanel/internal/ingest"
	"sovpanel/internal/normalize"
	"sovpanel/internal/panel"
	"sovpanel/internal/worldbank"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeDependency   ErrorType = "dependency"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeFatal        ErrorType = "fatal"

	// Recoverable: the record or request is skipped and counted
	ErrorTypeUnresolvedIdentifier ErrorType = "unresolved_identifier"
	ErrorTypeMalformedRow         ErrorType = "malformed_row"
	ErrorTypeExternalAPI          ErrorType = "external_api"

	// Fatal: the run stops
	ErrorTypeEmptySource  ErrorType = "empty_source"
	ErrorTypeDuplicateKey ErrorType = "duplicate_key"
)

// OperationError represents a pipeline-specific error
type OperationError struct {
	Type        ErrorType              `json:"type"`
	Step        string                 `json:"step,omitempty"`
	Message     string                 `json:"message"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Recoverable bool                   `json:"recoverable"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(step, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// NewDependencyError creates a new dependency error
func NewDependencyError(step, dependsOn, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeDependency,
		Step:    step,
		Message: message,
		Context: map[string]interface{}{
			"depends_on": dependsOn,
		},
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: "step execution failed",
		Cause:   cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(step string, timeout string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeTimeout,
		Step:    step,
		Message: fmt.Sprintf("step exceeded timeout of %s", timeout),
		Context: map[string]interface{}{
			"timeout": timeout,
		},
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(step string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "operation was cancelled",
	}
}

// NewFatalError creates a new fatal error
func NewFatalError(message string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeFatal,
		Message: message,
		Cause:   cause,
	}
}

// NewRecoverableError records a skipped record or request
func NewRecoverableError(errType ErrorType, step, message string, context map[string]interface{}) *OperationError {
	return &OperationError{
		Type:        errType,
		Step:        step,
		Message:     message,
		Context:     context,
		Recoverable: true,
	}
}

// Classify maps an error returned by a domain package onto the pipeline
// error taxonomy. OperationErrors pass through with their step filled in.
func Classify(step string, err error) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Step == "" {
			opErr.Step = step
		}
		return opErr
	}

	var (
		dupKey      *panel.DuplicateKeyError
		cardinality *panel.CardinalityError
		conflict    *normalize.ConflictError
		apiErr      *worldbank.APIError
		statusErr   *worldbank.StatusError
	)
	e := &OperationError{Step: step, Cause: err}
	switch {
	case errors.Is(err, context.Canceled):
		e.Type, e.Message = ErrorTypeCancellation, "operation was cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		e.Type, e.Message = ErrorTypeTimeout, "step deadline exceeded"
	case errors.Is(err, ingest.ErrEmptySource), errors.Is(err, ingest.ErrNoFiles):
		e.Type, e.Message = ErrorTypeEmptySource, "source produced no rows"
	case errors.As(err, &dupKey), errors.As(err, &conflict), errors.Is(err, panel.ErrDuplicateColumn):
		e.Type, e.Message = ErrorTypeDuplicateKey, "join key is not unique"
	case errors.As(err, &cardinality):
		e.Type, e.Message = ErrorTypeFatal, "merge changed the row count unexpectedly"
	case errors.As(err, &apiErr), errors.As(err, &statusErr), errors.Is(err, worldbank.ErrMalformedResponse):
		e.Type, e.Message, e.Recoverable = ErrorTypeExternalAPI, "World Bank request failed", true
	default:
		e.Type, e.Message = ErrorTypeExecution, "step execution failed"
	}
	return e
}

// IsRecoverable checks if an error only skips a record or request
func IsRecoverable(err error) bool {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Recoverable
	}
	return false
}

// GetErrorType returns the type of the error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}

// ErrorList collects recoverable errors of a run
type ErrorList struct {
	Errors []*OperationError `json:"errors"`
}

// Error implements the error interface
func (e *ErrorList) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors: %d errors occurred", len(e.Errors))
}

// Add adds an error to the list
func (e *ErrorList) Add(err *OperationError) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *ErrorList) HasErrors() bool {
	return len(e.Errors) > 0
}

// GetByStep returns errors for a specific step
func (e *ErrorList) GetByStep(step string) []*OperationError {
	var out []*OperationError
	for _, err := range e.Errors {
		if err.Step == step {
			out = append(out, err)
		}
	}
	return out
}

// GetByType returns errors of one type
func (e *ErrorList) GetByType(t ErrorType) []*OperationError {
	var out []*OperationError
	for _, err := range e.Errors {
		if err.Type == t {
			out = append(out, err)
		}
	}
	return out
}
