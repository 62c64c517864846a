package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeMalformedInput indicates a user supplied parameter that does not
	// parse against its declared Solidity type
	ErrCodeMalformedInput ErrorCode = "MALFORMED_INPUT"

	// ErrCodeEstimation indicates a failed gas simulation (would revert or rejected)
	ErrCodeEstimation ErrorCode = "ESTIMATION"

	// ErrCodeProvider indicates a network or provider level failure
	ErrCodeProvider ErrorCode = "PROVIDER"

	// ErrCodeConfiguration indicates a failed connection setup
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeValidation indicates invalid arguments passed by a caller
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeDatabase indicates database operation errors
	ErrCodeDatabase ErrorCode = "DATABASE"

	// ErrCodeTimeout indicates timeout errors
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInternal indicates internal errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// CodedError is an error raised while talking to a contract or a provider.
// Network is the net version of the active connection when known.
type CodedError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Network  string                 `json:"network,omitempty"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// New creates a new CodedError
func New(code ErrorCode, network, message string, cause error) *CodedError {
	return &CodedError{
		Code:     code,
		Message:  message,
		Network:  network,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *CodedError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Network != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Network, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *CodedError) WithContext(key string, value interface{}) *CodedError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity
func (e *CodedError) WithSeverity(severity Severity) *CodedError {
	e.Severity = severity
	return e
}

// IsRetryable returns true if the error is retryable
func (e *CodedError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeProvider, ErrCodeTimeout:
		return true
	case ErrCodeDatabase:
		return e.Severity != SeverityCritical
	default:
		return false
	}
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeDatabase:
		return SeverityHigh
	case ErrCodeProvider, ErrCodeTimeout, ErrCodeEstimation, ErrCodeConfiguration:
		return SeverityMedium
	case ErrCodeMalformedInput, ErrCodeValidation:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// NewMalformedInputError reports a parameter string that failed to parse
// against its declared type. param is the parameter name, possibly empty.
func NewMalformedInputError(param, message string, cause error) *CodedError {
	err := New(ErrCodeMalformedInput, "", message, cause)
	if param != "" {
		err.Context["parameter"] = param
	}
	return err
}

// NewEstimationError creates a gas estimation error
func NewEstimationError(network, message string, cause error) *CodedError {
	return New(ErrCodeEstimation, network, message, cause)
}

// NewProviderError creates a provider error
func NewProviderError(network, message string, cause error) *CodedError {
	return New(ErrCodeProvider, network, message, cause)
}

// NewConfigurationError creates a connection configuration error
func NewConfigurationError(message string, cause error) *CodedError {
	return New(ErrCodeConfiguration, "", message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *CodedError {
	return New(ErrCodeValidation, "", message, nil)
}

// NewDatabaseError creates a database error
func NewDatabaseError(message string, cause error) *CodedError {
	return New(ErrCodeDatabase, "", message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CodedError {
	return New(ErrCodeInternal, "", message, cause)
}
