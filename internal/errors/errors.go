package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory represents the stage of a run an error belongs to
type ErrorCategory string

const (
	// Errors that stop a run before it starts
	ErrorCategoryData          ErrorCategory = "DATA"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Errors recovered locally
	ErrorCategoryTrade      ErrorCategory = "TRADE"
	ErrorCategoryParameter  ErrorCategory = "PARAMETER"
	ErrorCategoryNumeric    ErrorCategory = "NUMERIC"
	ErrorCategoryEvaluation ErrorCategory = "EVALUATION"
	ErrorCategoryTimeout    ErrorCategory = "TIMEOUT"
	ErrorCategoryStorage    ErrorCategory = "STORAGE"
)

// Sentinel errors shared across packages
var (
	ErrCandleNotFound    = stderrors.New("timestamp not found in candle series")
	ErrInvalidParams     = stderrors.New("invalid parameter tuple")
	ErrNoTrades          = stderrors.New("no trades to evaluate")
	ErrEvaluationTimeout = stderrors.New("evaluation timed out")
)

// OptimizerError represents a categorized error with context
type OptimizerError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *OptimizerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *OptimizerError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *OptimizerError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error must stop the run
func (e *OptimizerError) IsFatal() bool {
	return e.Category == ErrorCategoryData || e.Category == ErrorCategoryConfiguration
}

// NewOptimizerError creates a new categorized error
func NewOptimizerError(category ErrorCategory, component, operation, message string) *OptimizerError {
	return &OptimizerError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with optimizer context
func WrapError(err error, category ErrorCategory, component, operation string) *OptimizerError {
	if err == nil {
		return nil
	}

	return &OptimizerError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

// WithContext adds context information to the error
func (e *OptimizerError) WithContext(key string, value interface{}) *OptimizerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithMessage replaces the human readable message
func (e *OptimizerError) WithMessage(msg string) *OptimizerError {
	e.Message = msg
	return e
}

// isRetryableCategory determines if an error category is generally retryable
func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryTimeout, ErrorCategoryStorage:
		return true
	default:
		return false
	}
}

// IsCategory reports whether err is an OptimizerError of the given category
func IsCategory(err error, category ErrorCategory) bool {
	var oe *OptimizerError
	if stderrors.As(err, &oe) {
		return oe.Category == category
	}
	return false
}

// Common error constructors
func NewDataError(component, operation string, err error) *OptimizerError {
	return WrapError(err, ErrorCategoryData, component, operation).WithMessage("invalid input data")
}

func NewTradeError(component string, tradeNum int, err error) *OptimizerError {
	return WrapError(err, ErrorCategoryTrade, component, "simulate").
		WithMessage("trade skipped").
		WithContext("trade", tradeNum)
}

func NewParameterError(component, operation, message string) *OptimizerError {
	e := NewOptimizerError(ErrorCategoryParameter, component, operation, message)
	e.Underlying = ErrInvalidParams
	return e
}

func NewEvaluationError(component, operation string, err error) *OptimizerError {
	return WrapError(err, ErrorCategoryEvaluation, component, operation).WithMessage("evaluation failed")
}

func NewTimeoutError(component, operation string, err error) *OptimizerError {
	return WrapError(err, ErrorCategoryTimeout, component, operation).WithMessage("evaluation timed out")
}

func NewConfigurationError(component, operation, message string) *OptimizerError {
	return NewOptimizerError(ErrorCategoryConfiguration, component, operation, message)
}

func NewNumericError(component, operation, message string) *OptimizerError {
	return NewOptimizerError(ErrorCategoryNumeric, component, operation, message)
}

func NewStorageError(component, operation string, err error) *OptimizerError {
	return WrapError(err, ErrorCategoryStorage, component, operation).WithMessage("storage failure")
}
