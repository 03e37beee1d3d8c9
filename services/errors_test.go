package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemy-tracker/backend/repositories"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     &DomainError{Type: ErrorTypeNotFound, Message: "user not found", Err: errors.New("db error")},
			wantMsg: "not_found: user not found (db error)",
		},
		{
			name:    "error without wrapped error",
			err:     &DomainError{Type: ErrorTypeValidation, Message: "invalid input"},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	assert.True(t, errors.Is(NewDomainError(ErrorTypeNotFound, "x", nil), ErrRoleNotFound))
	assert.False(t, errors.Is(NewDomainError(ErrorTypeValidation, "x", nil), ErrRoleNotFound))
	assert.False(t, errors.Is(ErrRoleNotFound, errors.New("regular error")))
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", ErrUserNotFound, IsNotFoundError, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", ErrRoleNotFound), IsNotFoundError, true},
		{"validation", ErrUnknownRole, IsValidationError, true},
		{"validation is not not-found", ErrInvalidInput, IsNotFoundError, false},
		{"unauthorized", ErrInvalidCredentials, IsUnauthorizedError, true},
		{"forbidden", ErrUserInactive, IsForbiddenError, true},
		{"conflict", ErrDuplicateEmail, IsConflictError, true},
		{"internal", ErrDatabaseError, IsInternalError, true},
		{"regular error", errors.New("regular"), IsInternalError, false},
		{"nil error", nil, IsNotFoundError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorTypeAndMessage(t *testing.T) {
	assert.Equal(t, ErrorTypeConflict, GetErrorType(ErrBuiltInRole))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("regular")))
	assert.Equal(t, "role not found", GetErrorMessage(fmt.Errorf("ctx: %w", ErrRoleNotFound)))
	assert.Empty(t, GetErrorMessage(errors.New("regular")))
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "email").WithDetail("reason", "invalid format")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "email", details["field"])
	assert.Equal(t, "invalid format", details["reason"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to connect", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestFromRepository(t *testing.T) {
	notFound := fmt.Errorf("%w: user 1", repositories.ErrNotFound)
	duplicate := fmt.Errorf("%w: user with email a@b.c", repositories.ErrDuplicate)
	other := errors.New("connection reset")

	assert.NoError(t, fromRepository(nil, ErrUserNotFound, nil))

	err := fromRepository(notFound, ErrUserNotFound, nil)
	assert.True(t, IsNotFoundError(err))
	assert.Equal(t, "user not found", GetErrorMessage(err))
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	err = fromRepository(duplicate, ErrUserNotFound, ErrDuplicateEmail)
	assert.True(t, IsConflictError(err))

	assert.True(t, IsInternalError(fromRepository(other, ErrUserNotFound, ErrDuplicateEmail)))
	assert.True(t, IsInternalError(fromRepository(notFound, nil, nil)))
}

func TestSentinelsUntouchedByDetails(t *testing.T) {
	f := newServicesFixture()
	f.roles.On("GetByName", anyCtx, "Ghost").Return(nil, repositories.ErrNotFound)

	svc := NewUserService(f.repos, f.txMgr, testLogger)
	_, err := svc.CreateUser(bg, CreateUserInput{Email: "a@example.com", Role: "Ghost"})
	require.Error(t, err)
	assert.Equal(t, "Ghost", GetErrorDetails(err)["role"])
	assert.Empty(t, ErrUnknownRole.Details)
}
