package command

import (
	"context"
	"time"

	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

// RBACHandler processes role and grant mutations. Every successful mutation
// publishes PermissionsChanged so the flattened permission view is rebuilt
// before the affected users' next requests.
type RBACHandler struct {
	events *bus.EventBus
}

func NewRBACHandler(events *bus.EventBus) *RBACHandler {
	return &RBACHandler{events: events}
}

// Register binds the RBAC commands on the bus.
func (h *RBACHandler) Register(b *bus.Bus) {
	b.Register(CreateRole{}, h.createRole)
	b.Register(UpdateRole{}, h.updateRole)
	b.Register(AssignRole{}, h.assignRole)
	b.Register(UnassignRole{}, h.unassignRole)
	b.Register(GrantRolePermission{}, h.grantPermission)
	b.Register(RevokeRolePermission{}, h.revokePermission)
	b.Register(GrantRolePermissionField{}, h.grantField)
	b.Register(UpdateRolePermissionField{}, h.updateField)
	b.Register(RevokeRolePermissionField{}, h.revokeField)
}

// mutate wraps the shared shape of RBAC commands: one transaction on the
// master gateway, then the change notification.
func (h *RBACHandler) mutate(ctx context.Context, fn func(ctx context.Context, gw domain.Gateway) (any, error)) result.Result[any] {
	gw, err := masterGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}

	var payload any
	err = gw.Manager().WithTransaction(ctx, func(ctx context.Context) error {
		p, err := fn(ctx, gw)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return result.Err[any](err)
	}

	h.events.Publish(ctx, domain.PermissionsChanged{At: time.Now()})
	return result.Ok[any](payload)
}

func (h *RBACHandler) createRole(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(CreateRole)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		id, err := gw.RBAC().CreateRole(ctx, domain.RoleInput{
			Name:        cmd.Name,
			Level:       cmd.Level,
			IsSuperuser: cmd.IsSuperuser,
		}).Unwrap()
		if err != nil {
			return nil, err
		}
		return Created{ID: id}, nil
	})
}

func (h *RBACHandler) updateRole(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(UpdateRole)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().UpdateRole(ctx, cmd.RoleID, domain.RolePatch{
			Name:        cmd.Name,
			Level:       cmd.Level,
			IsSuperuser: cmd.IsSuperuser,
		}).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}

func (h *RBACHandler) assignRole(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(AssignRole)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().AssignRole(ctx, cmd.RoleID, cmd.UserID).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}

func (h *RBACHandler) unassignRole(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(UnassignRole)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().UnassignRole(ctx, cmd.RoleID, cmd.UserID).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}

func (h *RBACHandler) grantPermission(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(GrantRolePermission)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().GrantRolePermission(ctx, cmd.RoleID, cmd.PermissionID, cmd.Scope).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}

func (h *RBACHandler) revokePermission(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(RevokeRolePermission)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().RevokeRolePermission(ctx, cmd.RoleID, cmd.PermissionID).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}

func (h *RBACHandler) grantField(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(GrantRolePermissionField)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().GrantRolePermissionField(ctx, cmd.RoleID, cmd.PermissionID, cmd.FieldID, cmd.Effect).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}

func (h *RBACHandler) updateField(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(UpdateRolePermissionField)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().UpdateRolePermissionField(ctx, cmd.RoleID, cmd.PermissionID, cmd.FieldID, cmd.Effect).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}

func (h *RBACHandler) revokeField(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(RevokeRolePermissionField)
	return h.mutate(ctx, func(ctx context.Context, gw domain.Gateway) (any, error) {
		ok, err := gw.RBAC().RevokeRolePermissionField(ctx, cmd.RoleID, cmd.PermissionID, cmd.FieldID).Unwrap()
		if err != nil {
			return nil, err
		}
		return Status{Status: ok}, nil
	})
}
