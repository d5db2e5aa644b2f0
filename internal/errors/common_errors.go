package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeParsing              ErrorType = "PARSING"
	ErrTypeUnsupportedStructure ErrorType = "UNSUPPORTED_STRUCTURE"
	ErrTypeNoData               ErrorType = "NO_DATA"
	ErrTypeInsufficientData     ErrorType = "INSUFFICIENT_DATA"
	ErrTypeValidation           ErrorType = "VALIDATION"
	ErrTypeNotFound             ErrorType = "NOT_FOUND"
	ErrTypeStorage              ErrorType = "STORAGE"
	ErrTypeNetwork              ErrorType = "NETWORK"
	ErrTypeConfig               ErrorType = "CONFIG"
)

// Sentinels for errors.Is checks. Matching is by Type only, so
// errors.Is(NewParsingError("sales.csv", ...), ErrParse) is true.
var (
	ErrParse                = &AppError{Type: ErrTypeParsing, Message: "file could not be parsed"}
	ErrUnsupportedStructure = &AppError{Type: ErrTypeUnsupportedStructure, Message: "unsupported data structure"}
	ErrNoData               = &AppError{Type: ErrTypeNoData, Message: "no datasets provided"}
	ErrInsufficientData     = &AppError{Type: ErrTypeInsufficientData, Message: "not enough valid data points"}
	ErrNotFound             = &AppError{Type: ErrTypeNotFound, Message: "resource not found"}
	ErrValidation           = &AppError{Type: ErrTypeValidation, Message: "validation failed"}
)

// AppError represents an application-specific error
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

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same type.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
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

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// NewParsingError reports malformed file content. The file name is part of
// the message so callers can show it to users directly.
func NewParsingError(fileName string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, fmt.Sprintf("failed to parse %s", fileName), cause).
		WithContext("file", fileName)
}

// NewUnsupportedStructureError reports a JSON document that is not an array of objects.
func NewUnsupportedStructureError(fileName, detail string) *AppError {
	return NewAppError(ErrTypeUnsupportedStructure, fmt.Sprintf("%s: %s", fileName, detail), nil).
		WithContext("file", fileName)
}

// NewNoDataError creates a no-data error
func NewNoDataError(message string) *AppError {
	return NewAppError(ErrTypeNoData, message, nil)
}

// NewInsufficientDataError creates an insufficient-data error
func NewInsufficientDataError(have, need int) *AppError {
	return NewAppError(ErrTypeInsufficientData,
		fmt.Sprintf("need at least %d valid points, have %d", need, have), nil).
		WithContext("have", have).
		WithContext("need", need)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
