// Package query defines the read-side messages and their handlers. Handlers
// run against the replica gateway resolved from the request scope; their
// responses flow through the epoch-indexed cache middleware.
package query

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/di"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/storage"
)

// User queries.
type (
	GetMe struct{}

	GetUser struct {
		UserID uuid.UUID
	}

	ListUsers struct {
		Email    *string
		FromDate *time.Time
		ToDate   *time.Time
		Page     domain.PageQuery
	}
)

// RBAC queries.
type (
	GetRoles struct {
		Page domain.PageQuery
	}

	GetUserRoles struct {
		UserID uuid.UUID
	}

	GetUserPermissions struct {
		UserID uuid.UUID
	}

	GetRoleUsers struct {
		RoleID uuid.UUID
		Page   domain.PageQuery
	}

	ListPermissions struct {
		Page domain.PageQuery
	}
)

// replicaGateway resolves the read-side unit of work from the request scope.
func replicaGateway(ctx context.Context) (domain.Gateway, error) {
	scope := di.ScopeFrom(ctx)
	if scope == nil {
		return nil, apperr.Internal("No dependency scope on request")
	}
	return di.ResolveNamed[domain.Gateway](ctx, scope, storage.GatewayReplica)
}
