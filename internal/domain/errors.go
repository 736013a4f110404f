package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code and message so wrapped causes compare equal
// to their sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeUnprocessable = "UNPROCESSABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeValidation, "unsupported file format")
	ErrEmptyPayload      = NewDomainError(ErrCodeValidation, "empty file")
	ErrEmptyQuestion     = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrEmptySelection    = NewDomainError(ErrCodeValidation, "document ids list cannot be empty")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// Already exists errors
var (
	ErrChunkAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "chunk index already exists for document")
)

// Empty result conditions surfaced by the API layer only
var (
	ErrNothingToIngest = NewDomainError(ErrCodeUnprocessable, "no extractable text in document")
)

// Fatal configuration faults
var (
	ErrDimensionMismatch    = NewDomainError(ErrCodeInternalError, "embedding dimension mismatch")
	ErrArchiveNotConfigured = NewDomainError(ErrCodeInternalError, "document archive not configured")
)

// GenerationError is returned by a generation backend that answered with a non-success status.
type GenerationError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Backend, e.StatusCode, e.Body)
}
