package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/alchemy-tracker/backend/internal/observability"
	"github.com/alchemy-tracker/backend/models"
	"github.com/alchemy-tracker/backend/utils"
)

// RequirementKind names how a Requirement's values are combined
type RequirementKind string

const (
	KindPermission     RequirementKind = "permission"
	KindAnyPermission  RequirementKind = "any_permission"
	KindAllPermissions RequirementKind = "all_permissions"
	KindRole           RequirementKind = "role"
	KindAnyRole        RequirementKind = "any_role"
)

// unknownRole is shown in denial messages when no role could be resolved
const unknownRole = "Unknown"

// Requirement is what a route demands of its caller
type Requirement struct {
	Kind   RequirementKind
	Values []string
}

// RequirePermission demands a single permission code
func RequirePermission(code string) Requirement {
	return Requirement{Kind: KindPermission, Values: []string{code}}
}

// RequireAnyPermission demands at least one of the codes
func RequireAnyPermission(codes ...string) Requirement {
	return Requirement{Kind: KindAnyPermission, Values: codes}
}

// RequireAllPermissions demands every one of the codes
func RequireAllPermissions(codes ...string) Requirement {
	return Requirement{Kind: KindAllPermissions, Values: codes}
}

// RequireRole demands an exact role name
func RequireRole(role string) Requirement {
	return Requirement{Kind: KindRole, Values: []string{role}}
}

// RequireAnyRole demands one of the role names
func RequireAnyRole(roles ...string) Requirement {
	return Requirement{Kind: KindAnyRole, Values: roles}
}

func (r Requirement) String() string {
	return string(r.Kind) + ":" + strings.Join(r.Values, ",")
}

func (r Requirement) valid() error {
	switch r.Kind {
	case KindPermission, KindRole:
		if len(r.Values) != 1 || r.Values[0] == "" {
			return fmt.Errorf("%s requirement needs exactly one value", r.Kind)
		}
	case KindAnyPermission, KindAllPermissions, KindAnyRole:
		if len(r.Values) == 0 {
			return fmt.Errorf("%s requirement needs at least one value", r.Kind)
		}
	default:
		return fmt.Errorf("unknown requirement kind %q", r.Kind)
	}
	for _, v := range r.Values {
		if v == "" {
			return fmt.Errorf("%s requirement has an empty value", r.Kind)
		}
	}
	return nil
}

// PermissionResolver answers the guard's questions about an identity
type PermissionResolver interface {
	HasPermission(ctx context.Context, identity *models.Identity, code string) bool
	CurrentRole(ctx context.Context, identity *models.Identity) (string, bool)
}

// Decision is the outcome of checking one Requirement
type Decision struct {
	Allowed     bool
	Requirement Requirement
	// Missing lists the unmet codes or roles
	Missing []string
	// CurrentRole is the caller's resolved role, empty when unknown
	CurrentRole string
}

// Message is the client-facing denial text
func (d Decision) Message() string {
	role := d.CurrentRole
	if role == "" {
		role = unknownRole
	}
	values := strings.Join(d.Requirement.Values, ", ")

	switch d.Requirement.Kind {
	case KindPermission:
		return fmt.Sprintf("Insufficient permissions. Required: %s. Current role: %s", values, role)
	case KindAnyPermission:
		return fmt.Sprintf("Insufficient permissions. Required any of: %s. Current role: %s", values, role)
	case KindAllPermissions:
		return fmt.Sprintf("Insufficient permissions. Missing: %s. Current role: %s", strings.Join(d.Missing, ", "), role)
	case KindRole:
		return fmt.Sprintf("Insufficient role. Required: %s. Current role: %s", values, role)
	case KindAnyRole:
		return fmt.Sprintf("Insufficient role. Required any of: %s. Current role: %s", values, role)
	default:
		return fmt.Sprintf("Access denied. Current role: %s", role)
	}
}

// Guard enforces Requirements in front of handlers
type Guard struct {
	verifier Verifier
	resolver PermissionResolver
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewGuard creates a guard
func NewGuard(verifier Verifier, resolver PermissionResolver, logger *zap.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{
		verifier: verifier,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// Authorize decides req for an already verified identity
func (g *Guard) Authorize(ctx context.Context, identity *models.Identity, req Requirement) Decision {
	decision := Decision{Requirement: req}
	if !identity.Authenticated() || req.valid() != nil {
		decision.Missing = req.Values
		return decision
	}

	switch req.Kind {
	case KindPermission:
		decision.Allowed = g.resolver.HasPermission(ctx, identity, req.Values[0])
		if !decision.Allowed {
			decision.Missing = req.Values
		}

	case KindAnyPermission:
		for _, code := range req.Values {
			if g.resolver.HasPermission(ctx, identity, code) {
				decision.Allowed = true
				break
			}
		}
		if !decision.Allowed {
			decision.Missing = req.Values
		}

	case KindAllPermissions:
		for _, code := range req.Values {
			if !g.resolver.HasPermission(ctx, identity, code) {
				decision.Missing = append(decision.Missing, code)
			}
		}
		decision.Allowed = len(decision.Missing) == 0

	case KindRole, KindAnyRole:
		role, ok := g.resolver.CurrentRole(ctx, identity)
		if ok {
			decision.CurrentRole = role
			for _, want := range req.Values {
				if role == want {
					decision.Allowed = true
					break
				}
			}
		}
		if !decision.Allowed {
			decision.Missing = req.Values
		}
		return decision
	}

	if !decision.Allowed {
		if role, ok := g.resolver.CurrentRole(ctx, identity); ok {
			decision.CurrentRole = role
		}
	}
	return decision
}

// Require returns middleware enforcing req. An Identity already placed in
// the context by RequireAuth is reused; otherwise the request is verified
// here. Passing requests reach next untouched. It panics on a malformed
// requirement, which is a route registration bug.
func (g *Guard) Require(req Requirement) func(http.Handler) http.Handler {
	if err := req.valid(); err != nil {
		panic("middleware: " + err.Error())
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			identity := GetIdentityFromContext(ctx)
			if !identity.Authenticated() {
				var err error
				identity, err = g.verifier.Verify(ctx, r.Header.Get("Authorization"))
				if err != nil {
					logVerifyFailure(g.logger, err,
						zap.String("request_id", requestID),
						zap.String("requirement", req.String()))
					writeAuthError(w, err)
					return
				}
				if !identity.Authenticated() {
					writeAuthError(w, ErrUnauthenticated)
					return
				}
			}

			decision := g.Authorize(ctx, identity, req)
			g.metrics.RecordDecision(string(req.Kind), decision.Allowed)

			if !decision.Allowed {
				g.logger.Warn("authorization denied",
					zap.String("request_id", requestID),
					zap.String("subject_id", identity.SubjectID),
					zap.String("requirement", req.String()),
					zap.Strings("missing", decision.Missing),
					zap.String("current_role", decision.CurrentRole))
				_ = utils.WriteForbidden(w, decision.Message())
				return
			}

			g.logger.Debug("authorization granted",
				zap.String("request_id", requestID),
				zap.String("subject_id", identity.SubjectID),
				zap.String("requirement", req.String()))

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}
