package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/api/helpers"
	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/di"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/storage"
)

// Authorization failure messages.
const (
	msgTokenMissing  = "Token is missing"
	msgTokenInvalid  = "Invalid token provided"
	msgTokenExpired  = "Token is invalid or expired"
	msgRoleRequired  = "Permission denied, role is required"
	msgPermissionNil = "Permission denied"
)

// Authorizer guards the private route tree: Authenticate resolves the
// caller from the bearer token, Enforce applies the route's permission rule.
type Authorizer struct {
	tokens        auth.TokenProvider
	authenticator auth.Authenticator
}

func NewAuthorizer(tokens auth.TokenProvider, authenticator auth.Authenticator) *Authorizer {
	return &Authorizer{tokens: tokens, authenticator: authenticator}
}

// Authenticate verifies the access token, loads the caller with roles onto
// the request record, and rejects users without any role. It runs before
// routing; route-specific checks happen in Enforce.
func (a *Authorizer) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			helpers.RespondError(w, r, apperr.Unauthorized(msgTokenMissing))
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			helpers.RespondError(w, r, apperr.Unauthorized(msgTokenInvalid))
			return
		}

		claims, err := a.tokens.Verify(token, auth.TokenTypeAccess)
		if err != nil {
			helpers.RespondError(w, r, apperr.Unauthorized(msgTokenExpired).WithCause(err))
			return
		}
		userID, err := uuid.Parse(claims.Sub)
		if err != nil {
			helpers.RespondError(w, r, apperr.Unauthorized(msgTokenExpired).WithCause(err))
			return
		}

		gw, err := replicaGateway(r.Context())
		if err != nil {
			helpers.RespondError(w, r, err)
			return
		}
		user, err := a.authenticator.Authenticate(r.Context(), gw, domain.UserFilter{ID: &userID})
		if err != nil {
			helpers.RespondError(w, r, err)
			return
		}
		if user == nil {
			helpers.RespondError(w, r, apperr.Unauthorized(msgTokenExpired))
			return
		}
		if !user.HasRoles() {
			helpers.RespondError(w, r, apperr.Forbidden(msgRoleRequired))
			return
		}

		rctx := policy.FromContext(r.Context()).WithUser(user)
		next.ServeHTTP(w, r.WithContext(policy.IntoContext(r.Context(), rctx)))
	})
}

// Enforce applies one route's rule: superusers short-circuit, everyone else
// needs the effective permission plus passing scope and field checks. It
// wraps the endpoint handler, so chi's path parameters are available.
func (a *Authorizer) Enforce(rule *policy.RouteRule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rctx := policy.FromContext(r.Context())
			rctx.PathParams = pathParams(r)

			if rctx.User != nil && rctx.User.IsSuperuser {
				next.ServeHTTP(w, r)
				return
			}
			if rule == nil {
				next.ServeHTTP(w, r)
				return
			}

			gw, err := replicaGateway(r.Context())
			if err != nil {
				helpers.RespondError(w, r, err)
				return
			}
			perm, err := a.authenticator.PermissionFor(r.Context(), gw, rctx.User, rule.Permission.Key())
			if err != nil {
				helpers.RespondError(w, r, err)
				return
			}
			if perm == nil {
				helpers.RespondError(w, r, apperr.Forbidden(msgPermissionNil).
					WithContext("permission", rule.Permission.Key()))
				return
			}

			if rule.CheckScope != nil {
				if err := rule.CheckScope(r.Context(), gw, rctx, perm.Scope); err != nil {
					helpers.RespondError(w, r, err)
					return
				}
			}
			if rule.CheckFields != nil {
				if err := rule.CheckFields(perm, rctx); err != nil {
					helpers.RespondError(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func pathParams(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		params[key] = rctx.URLParams.Values[i]
	}
	return params
}

func replicaGateway(ctx context.Context) (domain.Gateway, error) {
	scope := di.ScopeFrom(ctx)
	if scope == nil {
		return nil, apperr.Internal("No dependency scope on request")
	}
	return di.ResolveNamed[domain.Gateway](ctx, scope, storage.GatewayReplica)
}
