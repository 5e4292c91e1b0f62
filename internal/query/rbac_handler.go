package query

import (
	"context"

	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

// RBACHandler answers role, permission and grant reads.
type RBACHandler struct{}

func NewRBACHandler() *RBACHandler { return &RBACHandler{} }

// Register binds the RBAC queries on the bus.
func (h *RBACHandler) Register(b *bus.Bus) {
	b.Register(GetRoles{}, h.getRoles)
	b.Register(GetUserRoles{}, h.getUserRoles)
	b.Register(GetUserPermissions{}, h.getUserPermissions)
	b.Register(GetRoleUsers{}, h.getRoleUsers)
	b.Register(ListPermissions{}, h.listPermissions)
}

func (h *RBACHandler) getRoles(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	q := msg.(GetRoles)
	gw, err := replicaGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}
	page, err := gw.RBAC().GetRoles(ctx, q.Page).Unwrap()
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](page)
}

func (h *RBACHandler) getUserRoles(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	q := msg.(GetUserRoles)
	gw, err := replicaGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}
	roles, err := gw.RBAC().GetUserRoles(ctx, q.UserID).Unwrap()
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](roles)
}

func (h *RBACHandler) getUserPermissions(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	q := msg.(GetUserPermissions)
	gw, err := replicaGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}
	perms, err := gw.RBAC().GetUserPermissions(ctx, q.UserID).Unwrap()
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](perms)
}

func (h *RBACHandler) getRoleUsers(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	q := msg.(GetRoleUsers)
	gw, err := replicaGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}
	page, err := gw.RBAC().GetRoleUsers(ctx, q.RoleID, q.Page).Unwrap()
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](page)
}

func (h *RBACHandler) listPermissions(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	q := msg.(ListPermissions)
	gw, err := replicaGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}
	page, err := gw.RBAC().GetPermissions(ctx, q.Page).Unwrap()
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](page)
}
