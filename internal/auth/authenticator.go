package auth

import (
	"context"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/domain"
)

// Authenticator resolves request credentials into an AuthUser and looks up
// effective permissions.
type Authenticator interface {
	Authenticate(ctx context.Context, gw domain.Gateway, filter domain.UserFilter) (*domain.AuthUser, error)
	PermissionFor(ctx context.Context, gw domain.Gateway, user *domain.AuthUser, key string) (*domain.EffectivePermission, error)
}

// DBAuthenticator loads users and their flattened permissions through the
// repository gateway.
type DBAuthenticator struct{}

var _ Authenticator = (*DBAuthenticator)(nil)

func NewAuthenticator() *DBAuthenticator { return &DBAuthenticator{} }

// Authenticate loads the user with roles. Returns (nil, nil) when no user
// matches the filter.
func (a *DBAuthenticator) Authenticate(ctx context.Context, gw domain.Gateway, filter domain.UserFilter) (*domain.AuthUser, error) {
	user, err := gw.User().GetOne(ctx, filter, true).Unwrap()
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	au := domain.AuthUserFrom(user)
	return &au, nil
}

// PermissionFor reads the user's effective grant for the permission key.
// Returns (nil, nil) when the user holds no grant for the key.
func (a *DBAuthenticator) PermissionFor(ctx context.Context, gw domain.Gateway, user *domain.AuthUser, key string) (*domain.EffectivePermission, error) {
	perm, err := gw.RBAC().GetUserPermission(ctx, user.ID, key).Unwrap()
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &perm, nil
}
