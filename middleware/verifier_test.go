package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/config"
	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/supabase"
	"github.com/alchemy-tracker/backend/tokens"
)

const verifierSecret = "verifier-test-secret-0123456789abcdef"

func newCodecAt(t *testing.T, now *time.Time) *tokens.Codec {
	t.Helper()
	codec, err := tokens.NewCodec(config.AuthConfig{TokenSecret: verifierSecret, TokenAlgorithm: "HS256"},
		tokens.WithClock(func() time.Time { return *now }))
	require.NoError(t, err)
	return codec
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer    ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc", "", false},
		{"Token abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := ParseBearer(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestVerify_MissingCredential(t *testing.T) {
	sessions := new(MockSessionLookup)
	validator := new(MockTokenValidator)
	verifier := NewCredentialVerifier(sessions, validator, zap.NewNop(), nil)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer"} {
		identity, err := verifier.Verify(context.Background(), header)
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, ErrMissingCredential, header)
	}
	sessions.AssertNotCalled(t, "LookupSession", mock.Anything, mock.Anything)
	validator.AssertNotCalled(t, "Validate", mock.Anything)
}

func TestVerify_SessionTokenAccepted(t *testing.T) {
	sessions := new(MockSessionLookup)
	validator := new(MockTokenValidator)
	verifier := NewCredentialVerifier(sessions, validator, zap.NewNop(), nil)

	sessions.On("LookupSession", mock.Anything, "session-tok").
		Return(&models.Identity{SubjectID: "u-1", Email: "u@example.com"}, nil)

	identity, err := verifier.Verify(context.Background(), "Bearer session-tok")
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.SubjectID)
	assert.Equal(t, models.OriginSessionToken, identity.Origin)
	assert.Empty(t, identity.Role)
	validator.AssertNotCalled(t, "Validate", mock.Anything)
}

func TestVerify_FallsThroughToSignedToken(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	codec := newCodecAt(t, &now)
	signed, err := codec.Issue(tokens.IssueRequest{SubjectID: "u-2", Email: "dev@example.com", Role: "Developer"}, time.Hour)
	require.NoError(t, err)

	sessionErrors := []error{
		supabase.ErrNoSession,
		supabase.ErrUnavailable,
		errors.New("connection reset by peer"),
	}

	for _, sessionErr := range sessionErrors {
		t.Run(sessionErr.Error(), func(t *testing.T) {
			sessions := new(MockSessionLookup)
			sessions.On("LookupSession", mock.Anything, signed).Return(nil, sessionErr)
			verifier := NewCredentialVerifier(sessions, codec, zap.NewNop(), nil)

			identity, err := verifier.Verify(context.Background(), "Bearer "+signed)
			require.NoError(t, err)
			assert.Equal(t, "u-2", identity.SubjectID)
			assert.Equal(t, "Developer", identity.Role)
			assert.Equal(t, models.OriginSignedToken, identity.Origin)
			sessions.AssertExpectations(t)
		})
	}
}

func TestVerify_SessionAlwaysTriedFirst(t *testing.T) {
	var order []string

	sessions := new(MockSessionLookup)
	sessions.On("LookupSession", mock.Anything, "tok").
		Run(func(mock.Arguments) { order = append(order, "session") }).
		Return(nil, supabase.ErrNoSession)

	validator := new(MockTokenValidator)
	validator.On("Validate", "tok").
		Run(func(mock.Arguments) { order = append(order, "signed") }).
		Return(&tokens.Claims{UserID: "u-3"}, nil)

	verifier := NewCredentialVerifier(sessions, validator, zap.NewNop(), nil)
	_, err := verifier.Verify(context.Background(), "Bearer tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"session", "signed"}, order)
}

func TestVerify_BothPathsReject(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	codec := newCodecAt(t, &now)

	t.Run("three-segment garbage", func(t *testing.T) {
		sessions := new(MockSessionLookup)
		sessions.On("LookupSession", mock.Anything, "abc.def.ghi").Return(nil, supabase.ErrNoSession)
		verifier := NewCredentialVerifier(sessions, codec, zap.NewNop(), nil)

		identity, err := verifier.Verify(context.Background(), "Bearer abc.def.ghi")
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredCredential)
		assert.ErrorIs(t, err, tokens.ErrMalformed)
	})

	t.Run("expired signed token", func(t *testing.T) {
		signed, err := codec.Issue(tokens.IssueRequest{SubjectID: "u-4"}, time.Second)
		require.NoError(t, err)
		later := now.Add(2 * time.Second)
		expiredView := newCodecAt(t, &later)

		sessions := new(MockSessionLookup)
		sessions.On("LookupSession", mock.Anything, signed).Return(nil, supabase.ErrNoSession)
		verifier := NewCredentialVerifier(sessions, expiredView, zap.NewNop(), nil)

		identity, err := verifier.Verify(context.Background(), "Bearer "+signed)
		assert.Nil(t, identity)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredCredential)
		assert.ErrorIs(t, err, tokens.ErrExpired)
	})
}

func TestVerify_WithoutSessionLookup(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	codec := newCodecAt(t, &now)
	signed, err := codec.Issue(tokens.IssueRequest{SubjectID: "u-5", Role: "User"}, 0)
	require.NoError(t, err)

	verifier := NewCredentialVerifier(nil, codec, zap.NewNop(), nil)
	identity, err := verifier.Verify(context.Background(), "Bearer "+signed)
	require.NoError(t, err)
	assert.Equal(t, "u-5", identity.SubjectID)
}

func TestVerify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sessions := new(MockSessionLookup)
	sessions.On("LookupSession", mock.Anything, "tok").
		Run(func(mock.Arguments) { cancel() }).
		Return(&models.Identity{SubjectID: "u-6"}, nil)
	validator := new(MockTokenValidator)

	verifier := NewCredentialVerifier(sessions, validator, zap.NewNop(), nil)
	identity, err := verifier.Verify(ctx, "Bearer tok")
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, context.Canceled)
	validator.AssertNotCalled(t, "Validate", mock.Anything)
}
