// Package supabase talks to the managed auth and database service: session
// lookup for managed-auth tokens, and PostgREST reads and RPCs for the
// permission store.
package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	auth "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/config"
	"github.com/alchemy-tracker/backend/internal/observability"
	"github.com/alchemy-tracker/backend/models"
)

var (
	// ErrNoSession is returned when the service does not recognise the token
	ErrNoSession = errors.New("no active session for token")

	// ErrUnavailable is returned when the service could not give an answer
	ErrUnavailable = errors.New("supabase unavailable")
)

const (
	breakerName = "supabase-session-lookup"
	// maxBodyBytes bounds how much of an auth response is kept
	maxBodyBytes = 1 << 20
)

// appRole returns the application role stored in the user's metadata, if any
func appRole(user *types.User) string {
	for _, meta := range []map[string]interface{}{user.AppMetadata, user.UserMetadata} {
		if role, ok := meta["role"].(string); ok && role != "" {
			return role
		}
	}
	return ""
}

// Client is safe for concurrent use
type Client struct {
	auth       auth.Client
	restURL    string
	restHeader map[string]string
	transport  http.RoundTripper
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[*types.UserResponse]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a client for the configured project
func NewClient(cfg config.SupabaseConfig, logger *zap.Logger, metrics *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	baseURL := strings.TrimSuffix(cfg.URL, "/")

	c := &Client{
		auth:    auth.New("", cfg.AnonKey).WithCustomAuthURL(baseURL + "/auth/v1"),
		restURL: baseURL + "/rest/v1",
		restHeader: map[string]string{
			"apikey":        cfg.ServiceRoleKey,
			"Authorization": "Bearer " + cfg.ServiceRoleKey,
		},
		transport: http.DefaultTransport,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[*types.UserResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// An unknown token is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoSession) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("session lookup breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetBreakerState(name, float64(to))
		},
	})
	metrics.SetBreakerState(breakerName, float64(gobreaker.StateClosed))

	return c
}

// LookupSession resolves a managed-auth access token to an Identity. It
// returns ErrNoSession when the token is not a live session and
// ErrUnavailable when the service could not answer.
func (c *Client) LookupSession(ctx context.Context, accessToken string) (*models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	user, err := c.breaker.Execute(func() (*types.UserResponse, error) {
		return c.GetUser(ctx, accessToken)
	})

	switch {
	case err == nil:
		c.metrics.ObserveSessionLookup("ok", time.Since(start))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.ObserveSessionLookup("rejected", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, ErrNoSession):
		c.metrics.ObserveSessionLookup("no_session", time.Since(start))
		return nil, err
	default:
		c.metrics.ObserveSessionLookup("error", time.Since(start))
		return nil, err
	}

	id := user.ID.String()
	identity := &models.Identity{
		SubjectID: id,
		Email:     user.Email,
		Role:      appRole(&user.User),
		Origin:    models.OriginSessionToken,
		RawClaims: map[string]interface{}{
			"sub":           id,
			"email":         user.Email,
			"aud_role":      user.Role,
			"user_metadata": user.UserMetadata,
		},
	}
	return identity, nil
}

// GetUser fetches the auth user behind accessToken. auth-go reports every
// non-200 the same way, so the recorded status decides between "no session"
// and "unavailable".
func (c *Client) GetUser(ctx context.Context, accessToken string) (*types.UserResponse, error) {
	rec := &recordingTransport{ctx: ctx, base: c.transport}
	user, err := c.auth.
		WithClient(http.Client{Timeout: c.timeout, Transport: rec}).
		WithToken(accessToken).
		GetUser()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	switch {
	case rec.status == 0:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case rec.status == http.StatusUnauthorized, rec.status == http.StatusForbidden, rec.status == http.StatusNotFound:
		return nil, ErrNoSession
	case rec.status != http.StatusOK:
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, Normalize(rec.status, rec.body).Err)
	case err != nil:
		return nil, fmt.Errorf("%w: decoding user: %v", ErrUnavailable, err)
	}

	if user == nil || user.ID == uuid.Nil {
		return nil, ErrNoSession
	}
	return user, nil
}

// Select reads the rows of table whose columns equal the given values.
// columns is the PostgREST select list.
func (c *Client) Select(ctx context.Context, table, columns string, eq map[string]string) Result {
	if columns == "" {
		columns = "*"
	}
	return c.callREST(ctx, func(rest *postgrest.Client) Result {
		query := rest.From(table).Select(columns, "", false)
		for column, value := range eq {
			query = query.Eq(column, value)
		}
		body, _, err := query.Execute()
		if err != nil {
			return Result{Err: err.Error()}
		}
		return Normalize(http.StatusOK, body)
	})
}

// RPC invokes a database function. postgrest-go hands back the body without
// its status; Normalize recognises the error envelope instead.
func (c *Client) RPC(ctx context.Context, fn string, params map[string]interface{}) Result {
	return c.callREST(ctx, func(rest *postgrest.Client) Result {
		var payload interface{}
		if params != nil {
			payload = params
		}
		body := rest.Rpc(fn, "", payload)
		if rest.ClientError != nil {
			return Result{Err: rest.ClientError.Error()}
		}
		return Normalize(http.StatusOK, []byte(body))
	})
}

// Ping checks that the REST endpoint answers with the service key
func (c *Client) Ping(ctx context.Context) error {
	res := c.callREST(ctx, func(rest *postgrest.Client) Result {
		if !rest.Ping() {
			return Result{Err: fmt.Sprint(rest.ClientError)}
		}
		return Result{}
	})
	if !res.OK() {
		return fmt.Errorf("%w: %s", ErrUnavailable, res.Err)
	}
	return nil
}

// callREST runs fn on a fresh PostgREST client, since a client keeps the
// first error it sees. postgrest-go takes no context, so when ctx or the
// timeout ends first the call is abandoned rather than aborted.
func (c *Client) callREST(ctx context.Context, fn func(rest *postgrest.Client) Result) Result {
	if err := ctx.Err(); err != nil {
		return Result{Err: err.Error()}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- fn(postgrest.NewClient(c.restURL, "public", c.restHeader))
	}()

	select {
	case res := <-done:
		if !res.OK() {
			c.logger.Warn("supabase data call failed", zap.String("error", res.Err))
		}
		return res
	case <-ctx.Done():
		c.logger.Warn("supabase data call abandoned", zap.Error(ctx.Err()))
		return Result{Err: ctx.Err().Error()}
	}
}

// recordingTransport binds a request context and keeps the status and body
// of the response for callers whose client library hides them.
type recordingTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
	body   []byte
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	t.status = resp.StatusCode
	t.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
