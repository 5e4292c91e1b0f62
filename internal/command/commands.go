// Package command defines the write-side messages and their handlers. Every
// handler runs against the master gateway resolved from the request scope;
// RBAC mutations publish PermissionsChanged after they succeed.
package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/di"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/storage"
)

// Account commands.
type (
	CreateUser struct {
		Email    string
		Password string
	}

	UpdateUser struct {
		UserID   uuid.UUID
		Email    *string
		Password *string
	}

	DeleteUser struct {
		UserID uuid.UUID
	}
)

// Credential commands. These are dispatched directly, outside the cached
// middleware chain.
type (
	Login struct {
		Email       string
		Password    string
		Fingerprint string
	}

	Logout struct {
		Fingerprint  string
		RefreshToken string
	}

	Refresh struct {
		Fingerprint  string
		RefreshToken string
	}
)

// RBAC commands.
type (
	CreateRole struct {
		Name        string
		Level       int
		IsSuperuser bool
	}

	UpdateRole struct {
		RoleID      uuid.UUID
		Name        *string
		Level       *int
		IsSuperuser *bool
	}

	AssignRole struct {
		RoleID uuid.UUID
		UserID uuid.UUID
	}

	UnassignRole struct {
		RoleID uuid.UUID
		UserID uuid.UUID
	}

	GrantRolePermission struct {
		RoleID       uuid.UUID
		PermissionID uuid.UUID
		Scope        domain.Scope
	}

	RevokeRolePermission struct {
		RoleID       uuid.UUID
		PermissionID uuid.UUID
	}

	GrantRolePermissionField struct {
		RoleID       uuid.UUID
		PermissionID uuid.UUID
		FieldID      uuid.UUID
		Effect       domain.Effect
	}

	UpdateRolePermissionField struct {
		RoleID       uuid.UUID
		PermissionID uuid.UUID
		FieldID      uuid.UUID
		Effect       domain.Effect
	}

	RevokeRolePermissionField struct {
		RoleID       uuid.UUID
		PermissionID uuid.UUID
		FieldID      uuid.UUID
	}
)

// Status is the generic acknowledgement payload of mutations.
type Status struct {
	Status bool `json:"status"`
}

// Created is the payload of id-returning creations.
type Created struct {
	ID uuid.UUID `json:"id"`
}

// masterGateway resolves the write-side unit of work from the request scope.
func masterGateway(ctx context.Context) (domain.Gateway, error) {
	scope := di.ScopeFrom(ctx)
	if scope == nil {
		return nil, apperr.Internal("No dependency scope on request")
	}
	return di.ResolveNamed[domain.Gateway](ctx, scope, storage.GatewayMaster)
}
