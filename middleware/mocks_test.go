package middleware

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/tokens"
)

// MockSessionLookup is a mock implementation of SessionLookup
type MockSessionLookup struct {
	mock.Mock
}

func (m *MockSessionLookup) LookupSession(ctx context.Context, token string) (*models.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) Validate(token string) (*tokens.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tokens.Claims), args.Error(1)
}

// MockVerifier is a mock implementation of Verifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, authorization string) (*models.Identity, error) {
	args := m.Called(ctx, authorization)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockResolver is a mock implementation of PermissionResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) HasPermission(ctx context.Context, identity *models.Identity, code string) bool {
	args := m.Called(ctx, identity, code)
	return args.Bool(0)
}

func (m *MockResolver) CurrentRole(ctx context.Context, identity *models.Identity) (string, bool) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Bool(1)
}
