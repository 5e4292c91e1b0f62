// Package api is the HTTP surface: routing, middleware assembly and the
// request handlers that translate between the wire and the message buses.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"golang.org/x/time/rate"

	"github.com/wardenhq/warden/internal/api/helpers"
	mw "github.com/wardenhq/warden/internal/api/middleware"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/di"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
)

// publicRate is the per-IP budget on the public group.
const (
	publicRate  = rate.Limit(1.0 / 12.0) // 5 per minute
	publicBurst = 5
)

// Server owns the router and the buses the handlers dispatch into.
type Server struct {
	Router *chi.Mux

	commands *bus.Bus
	queries  *bus.Bus
	registry *policy.Registry
}

// NewServer assembles the middleware stack and the full route table. Every
// private route registers its policy rule with the registry so the
// bootstrapper can persist the permission catalog at startup.
func NewServer(
	cfg *config.Config,
	container *di.Container,
	commands, queries *bus.Bus,
	authorizer *mw.Authorizer,
	registry *policy.Registry,
) *Server {
	s := &Server{
		Router:   chi.NewRouter(),
		commands: commands,
		queries:  queries,
		registry: registry,
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})

	r := s.Router
	r.Use(mw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(sentryHandler.Handle)
	if cfg.Server.Log {
		r.Use(mw.RequestLogger)
	}
	r.Use(mw.PanicRecovery)
	r.Use(mw.CORS(cfg.App.CORSOrigins))
	r.Use(mw.ConcurrencyLimit(config.ConcurrencyLimit(
		cfg.Database.MaxConnections,
		cfg.Database.ReplicaMaxConnections,
		int32(cfg.Server.Workers),
	)))
	r.Use(mw.DependencyScope(container))
	r.Use(mw.RequestContext)

	r.Get("/healthcheck", s.healthcheck)

	limiter := mw.NewIPRateLimiter(publicRate, publicBurst)
	r.Route("/public", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/users", s.signup)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)
			r.Post("/refresh", s.refresh)
		})
	})

	r.Route("/private", func(r chi.Router) {
		r.Use(authorizer.Authenticate)

		s.route(r, authorizer, http.MethodGet, "/private/users/me", nil, s.me)
		s.route(r, authorizer, http.MethodGet, "/private/users/{user_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "users",
				Action:      domain.ActionRead,
				Operation:   "detail",
				Description: "Read a single user record",
			},
			CheckScope: policy.ScopeByUserID,
		}, s.getUser)
		s.route(r, authorizer, http.MethodGet, "/private/users", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "users",
				Action:      domain.ActionRead,
				Operation:   "list",
				Description: "List and filter user records",
				Fields: map[domain.Source][]string{
					domain.SourceQuery: {"email", "from_date", "to_date"},
				},
			},
			CheckScope:  policy.ScopeByUserEmail,
			CheckFields: policy.Mixed,
		}, s.listUsers)
		s.route(r, authorizer, http.MethodPatch, "/private/users/{user_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "users",
				Action:      domain.ActionUpdate,
				Operation:   "update",
				Description: "Update a user record",
				Fields: map[domain.Source][]string{
					domain.SourceJSON: {"email", "password"},
				},
			},
			CheckScope:  policy.ScopeByUserID,
			CheckFields: policy.Mixed,
		}, s.updateUser)
		s.route(r, authorizer, http.MethodDelete, "/private/users/{user_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "users",
				Action:      domain.ActionDelete,
				Operation:   "delete",
				Description: "Delete a user record",
			},
			CheckScope: policy.ScopeByUserID,
		}, s.deleteUser)

		s.route(r, authorizer, http.MethodPost, "/private/rbac/roles", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionCreate,
				Operation:   "create-role",
				Description: "Create a role",
				Fields: map[domain.Source][]string{
					domain.SourceJSON: {"name", "level", "is_superuser"},
				},
			},
			CheckFields: policy.Mixed,
		}, s.createRole)
		s.route(r, authorizer, http.MethodGet, "/private/rbac/roles", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionRead,
				Operation:   "get-roles",
				Description: "List roles",
			},
		}, s.getRoles)
		s.route(r, authorizer, http.MethodPatch, "/private/rbac/roles/{role_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionUpdate,
				Operation:   "update-role",
				Description: "Update a role",
				Fields: map[domain.Source][]string{
					domain.SourceJSON: {"name", "level", "is_superuser"},
				},
			},
			CheckFields: policy.Mixed,
		}, s.updateRole)
		s.route(r, authorizer, http.MethodGet, "/private/rbac/users/{user_id}/roles", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionRead,
				Operation:   "get-user-roles",
				Description: "List the roles assigned to a user",
			},
		}, s.getUserRoles)
		s.route(r, authorizer, http.MethodGet, "/private/rbac/users/{user_id}/permissions", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionRead,
				Operation:   "get-user-permissions",
				Description: "List a user's effective permissions",
			},
		}, s.getUserPermissions)
		s.route(r, authorizer, http.MethodGet, "/private/rbac/roles/{role_id}/users", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionRead,
				Operation:   "get-role-users",
				Description: "List the users holding a role",
			},
		}, s.getRoleUsers)
		s.route(r, authorizer, http.MethodGet, "/private/rbac/permissions", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionRead,
				Operation:   "list-permissions",
				Description: "List the permission catalog",
			},
		}, s.listPermissions)
		s.route(r, authorizer, http.MethodPost, "/private/rbac/roles/{role_id}/users/{user_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionCreate,
				Operation:   "set-role",
				Description: "Assign a role to a user",
			},
		}, s.assignRole)
		s.route(r, authorizer, http.MethodDelete, "/private/rbac/roles/{role_id}/users/{user_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionDelete,
				Operation:   "unset-role",
				Description: "Remove a role from a user",
			},
		}, s.unassignRole)
		s.route(r, authorizer, http.MethodPost, "/private/rbac/role-permissions", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionCreate,
				Operation:   "grant-role-permission",
				Description: "Grant a permission to a role",
				Fields: map[domain.Source][]string{
					domain.SourceJSON: {"role_id", "permission_id", "scope"},
				},
			},
			CheckFields: policy.Mixed,
		}, s.grantRolePermission)
		s.route(r, authorizer, http.MethodDelete, "/private/rbac/roles/{role_id}/permissions/{permission_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionDelete,
				Operation:   "revoke-permission",
				Description: "Revoke a permission from a role",
			},
		}, s.revokeRolePermission)
		s.route(r, authorizer, http.MethodPost, "/private/rbac/permission-fields", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionCreate,
				Operation:   "grant-permission-field",
				Description: "Attach a field constraint to a role permission",
				Fields: map[domain.Source][]string{
					domain.SourceJSON: {"role_id", "permission_id", "field_id", "effect"},
				},
			},
			CheckFields: policy.Mixed,
		}, s.grantRolePermissionField)
		s.route(r, authorizer, http.MethodPatch, "/private/rbac/roles/{role_id}/permissions/{permission_id}/fields/{field_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionUpdate,
				Operation:   "update-role-permission",
				Description: "Change the effect of a field constraint",
				Fields: map[domain.Source][]string{
					domain.SourceJSON: {"effect"},
				},
			},
			CheckFields: policy.Mixed,
		}, s.updateRolePermissionField)
		s.route(r, authorizer, http.MethodDelete, "/private/rbac/roles/{role_id}/permissions/{permission_id}/fields/{field_id}", &policy.RouteRule{
			Permission: policy.PermissionSpec{
				Resource:    "rbac",
				Action:      domain.ActionDelete,
				Operation:   "revoke-permission-field",
				Description: "Detach a field constraint from a role permission",
			},
		}, s.revokeRolePermissionField)
	})

	return s
}

// route mounts one endpoint with its enforcement middleware and records the
// rule for the bootstrapper. Patterns are absolute; chi subrouters want them
// relative, so the group prefix is stripped at mount time.
func (s *Server) route(r chi.Router, authorizer *mw.Authorizer, method, pattern string, rule *policy.RouteRule, h http.HandlerFunc) {
	if rule != nil {
		s.registry.Add(method, pattern, rule)
	}
	relative := pattern[len("/private"):]
	r.With(authorizer.Enforce(rule)).Method(method, relative, h)
}

func (s *Server) healthcheck(w http.ResponseWriter, _ *http.Request) {
	helpers.Respond(w, http.StatusOK, map[string]bool{"status": true})
}

// HTTPServer wraps the router in a server with sane timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
