package command

import (
	"context"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

// UserHandler processes account mutations.
type UserHandler struct {
	hasher auth.PasswordHasher
}

func NewUserHandler(hasher auth.PasswordHasher) *UserHandler {
	return &UserHandler{hasher: hasher}
}

// Register binds the account commands on the bus.
func (h *UserHandler) Register(b *bus.Bus) {
	b.Register(CreateUser{}, h.createUser)
	b.Register(UpdateUser{}, h.updateUser)
	b.Register(DeleteUser{}, h.deleteUser)
}

func (h *UserHandler) createUser(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(CreateUser)

	if err := domain.ValidateEmail(cmd.Email); err != nil {
		return result.Err[any](err)
	}
	if err := domain.ValidatePassword(cmd.Password); err != nil {
		return result.Err[any](err)
	}

	gw, err := masterGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}

	hashed, err := h.hasher.Hash(cmd.Password)
	if err != nil {
		return result.Err[any](err)
	}

	var created Created
	err = gw.Manager().WithTransaction(ctx, func(ctx context.Context) error {
		id, err := gw.User().Create(ctx, cmd.Email, hashed).Unwrap()
		if err != nil {
			return err
		}
		created.ID = id
		return nil
	})
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](created)
}

func (h *UserHandler) updateUser(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(UpdateUser)

	patch := domain.UserPatch{Email: cmd.Email}
	if cmd.Email != nil {
		if err := domain.ValidateEmail(*cmd.Email); err != nil {
			return result.Err[any](err)
		}
	}
	if cmd.Password != nil {
		if err := domain.ValidatePassword(*cmd.Password); err != nil {
			return result.Err[any](err)
		}
		hashed, err := h.hasher.Hash(*cmd.Password)
		if err != nil {
			return result.Err[any](err)
		}
		patch.PasswordHash = &hashed
	}

	gw, err := masterGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}

	var status Status
	err = gw.Manager().WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := gw.User().Update(ctx, cmd.UserID, patch).Unwrap()
		if err != nil {
			return err
		}
		status.Status = ok
		return nil
	})
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](status)
}

func (h *UserHandler) deleteUser(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(DeleteUser)

	gw, err := masterGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}

	err = gw.Manager().WithTransaction(ctx, func(ctx context.Context) error {
		_, err := gw.User().Delete(ctx, cmd.UserID).Unwrap()
		return err
	})
	if err != nil {
		return result.Err[any](err)
	}
	return result.Ok[any](Status{Status: true})
}
