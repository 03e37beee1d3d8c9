package services

import (
	"errors"
	"fmt"

	"github.com/alchemy-tracker/backend/repositories"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error. Call it on errors built with
// NewDomainError, never on the shared sentinels below.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// Not Found Errors
	ErrUserNotFound       = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrRoleNotFound       = NewDomainError(ErrorTypeNotFound, "role not found", nil)
	ErrPermissionNotFound = NewDomainError(ErrorTypeNotFound, "permission not found", nil)
	ErrGrantNotFound      = NewDomainError(ErrorTypeNotFound, "permission grant not found", nil)

	// Validation Errors
	ErrInvalidInput          = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidEmail          = NewDomainError(ErrorTypeValidation, "invalid email format", nil)
	ErrInvalidPermissionCode = NewDomainError(ErrorTypeValidation, "invalid permission code", nil)
	ErrUnknownRole           = NewDomainError(ErrorTypeValidation, "unknown role", nil)
	ErrExpiryInPast          = NewDomainError(ErrorTypeValidation, "expiry must be in the future", nil)

	// Authentication Errors
	ErrUnauthorized          = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidCredentials    = NewDomainError(ErrorTypeUnauthorized, "invalid email or password", nil)
	ErrPasswordLoginDisabled = NewDomainError(ErrorTypeUnauthorized, "password login not enabled for this user", nil)

	// Permission Errors
	ErrForbidden    = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrUserInactive = NewDomainError(ErrorTypeForbidden, "user account is inactive", nil)

	// Conflict Errors
	ErrDuplicateEmail = NewDomainError(ErrorTypeConflict, "user with this email already exists", nil)
	ErrDuplicateRole  = NewDomainError(ErrorTypeConflict, "role with this name already exists", nil)
	ErrBuiltInRole    = NewDomainError(ErrorTypeConflict, "built-in roles cannot be deleted or renamed", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
)

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool { return isType(err, ErrorTypeUnauthorized) }

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool { return isType(err, ErrorTypeForbidden) }

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool { return isType(err, ErrorTypeConflict) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// GetErrorMessage returns the client-facing message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// fromRepository translates repository sentinels into domain errors.
// notFound is returned for repositories.ErrNotFound and conflict for
// repositories.ErrDuplicate; anything else is an internal database error.
func fromRepository(err error, notFound, conflict *DomainError) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound) && notFound != nil:
		return NewDomainError(notFound.Type, notFound.Message, err)
	case errors.Is(err, repositories.ErrDuplicate) && conflict != nil:
		return NewDomainError(conflict.Type, conflict.Message, err)
	default:
		return NewDomainError(ErrorTypeInternal, ErrDatabaseError.Message, err)
	}
}
