package errors

import (
	"fmt"
)

// ErrorType classifies application errors raised outside request handling
type ErrorType string

const (
	ErrTypeConfig    ErrorType = "CONFIG"
	ErrTypeOracle    ErrorType = "ORACLE"
	ErrTypeTelemetry ErrorType = "TELEMETRY"
	ErrTypeServer    ErrorType = "SERVER"
)

// AppError is an application error with a type and optional context
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to see the cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewOracleError creates an error raised while building the ownership oracle
func NewOracleError(message string, cause error) *AppError {
	return NewAppError(ErrTypeOracle, message, cause)
}

// NewTelemetryError creates a telemetry setup error
func NewTelemetryError(message string, cause error) *AppError {
	return NewAppError(ErrTypeTelemetry, message, cause)
}

// NewServerError creates an HTTP server lifecycle error
func NewServerError(message string, cause error) *AppError {
	return NewAppError(ErrTypeServer, message, cause)
}
