package command

import (
	"context"
	"errors"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/cache"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

const msgInvalidCredentials = "Invalid credentials"

// AuthHandler processes the credential lifecycle: login, logout, refresh
// rotation. The route layer dispatches these directly so they never pass
// the response cache or bump the epoch.
type AuthHandler struct {
	hasher        auth.PasswordHasher
	sessions      *auth.RefreshStore
	authenticator auth.Authenticator
}

func NewAuthHandler(hasher auth.PasswordHasher, sessions *auth.RefreshStore, authenticator auth.Authenticator) *AuthHandler {
	return &AuthHandler{hasher: hasher, sessions: sessions, authenticator: authenticator}
}

// Register binds the credential commands on the bus.
func (h *AuthHandler) Register(b *bus.Bus) {
	b.Register(Login{}, h.login)
	b.Register(Logout{}, h.logout)
	b.Register(Refresh{}, h.refresh)
}

func (h *AuthHandler) login(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(Login)

	gw, err := masterGateway(ctx)
	if err != nil {
		return result.Err[any](err)
	}

	user, err := h.authenticator.Authenticate(ctx, gw, domain.UserFilter{Email: &cmd.Email})
	if err != nil {
		return result.Err[any](err)
	}
	// A missing account and a wrong password fail identically.
	if user == nil || !h.hasher.Verify(user.Password, cmd.Password) {
		return result.Err[any](apperr.Unauthorized(msgInvalidCredentials))
	}

	pair, err := h.sessions.MakeToken(ctx, user.ID, cmd.Fingerprint)
	if err != nil {
		return result.Err[any](mapSessionError(err))
	}
	return result.Ok[any](pair)
}

func (h *AuthHandler) logout(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(Logout)

	revoked, err := h.sessions.Revoke(ctx, cmd.Fingerprint, cmd.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
			return result.Err[any](apperr.Unauthorized("Token is invalid or expired").WithCause(err))
		}
		return result.Err[any](mapSessionError(err))
	}
	return result.Ok[any](Status{Status: revoked})
}

func (h *AuthHandler) refresh(ctx context.Context, _ *policy.Context, msg any) result.Result[any] {
	cmd := msg.(Refresh)

	pair, err := h.sessions.Rotate(ctx, cmd.Fingerprint, cmd.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken),
			errors.Is(err, auth.ErrSessionNotFound):
			return result.Err[any](apperr.Unauthorized("Token is invalid or expired").WithCause(err))
		default:
			return result.Err[any](mapSessionError(err))
		}
	}
	return result.Ok[any](pair)
}

// mapSessionError classifies session store failures: lock contention maps to
// a timeout, cache trouble to service-unavailable.
func mapSessionError(err error) error {
	switch {
	case errors.Is(err, cache.ErrLockTimeout):
		return apperr.RequestTimeout("Busy processing another request for this session").WithCause(err)
	case errors.Is(err, cache.ErrUnavailable):
		return apperr.Unavailable("Session store unavailable").WithCause(err)
	default:
		return err
	}
}
