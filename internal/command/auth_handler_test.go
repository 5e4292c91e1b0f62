package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/cache"
	"github.com/wardenhq/warden/internal/command"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/di"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/storage"
)

// fakeAuthenticator serves one known account.
type fakeAuthenticator struct {
	user *domain.AuthUser
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, _ domain.Gateway, filter domain.UserFilter) (*domain.AuthUser, error) {
	if f.user != nil && filter.Email != nil && *filter.Email == f.user.Email {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeAuthenticator) PermissionFor(context.Context, domain.Gateway, *domain.AuthUser, string) (*domain.EffectivePermission, error) {
	return nil, nil
}

type nilGateway struct{}

func (nilGateway) Manager() domain.TxManager   { return nil }
func (nilGateway) User() domain.UserRepository { return nil }
func (nilGateway) RBAC() domain.RBACRepository { return nil }

type authFixture struct {
	bus   *bus.Bus
	store *auth.RefreshStore
	user  *domain.AuthUser
	redis *miniredis.Miniredis
	ctx   context.Context
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider, err := auth.NewJWTProvider(config.SecurityConfig{
		Algorithm:       "HS256",
		SecretKey:       "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	store := auth.NewRefreshStore(cache.NewWithClient(client), provider, 24*time.Hour)

	hasher := auth.NewArgon2Hasher(auth.Argon2Profile{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	hashed, err := hasher.Hash("password_1")
	require.NoError(t, err)

	user := &domain.AuthUser{
		ID:       uuid.New(),
		Email:    "pub2@test.com",
		Password: hashed,
		Roles:    []string{"member"},
	}

	b := bus.New()
	command.NewAuthHandler(hasher, store, &fakeAuthenticator{user: user}).Register(b)

	container := di.NewContainer()
	di.ProvideNamed[domain.Gateway](container, storage.GatewayMaster, nilGateway{})
	scope := container.NewScope()
	t.Cleanup(scope.Close)

	return &authFixture{
		bus:   b,
		store: store,
		user:  user,
		redis: mr,
		ctx:   di.IntoContext(context.Background(), scope),
	}
}

func (f *authFixture) sessionKey() string {
	hex := ""
	for _, c := range f.user.ID.String() {
		if c != '-' {
			hex += string(c)
		}
	}
	return "auth:" + hex
}

func TestLoginIssuesPairAndStoresSession(t *testing.T) {
	f := newAuthFixture(t)

	res := f.bus.DispatchDirect(f.ctx, nil, command.Login{
		Email: "pub2@test.com", Password: "password_1", Fingerprint: "fp",
	})
	value, err := res.Unwrap()
	require.NoError(t, err)

	pair := value.(auth.TokenPair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64((24 * time.Hour).Seconds()), pair.ExpiresIn)

	entries, err := f.redis.List(f.sessionKey())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	f := newAuthFixture(t)

	res := f.bus.DispatchDirect(f.ctx, nil, command.Login{
		Email: "pub2@test.com", Password: "wrong_password", Fingerprint: "fp",
	})
	assert.True(t, apperr.IsKind(res.Err(), apperr.KindUnauthorized))

	// Unknown accounts fail with the identical error.
	res = f.bus.DispatchDirect(f.ctx, nil, command.Login{
		Email: "nobody@test.com", Password: "password_1", Fingerprint: "fp",
	})
	assert.True(t, apperr.IsKind(res.Err(), apperr.KindUnauthorized))
}

func TestRefreshRotatesAndDetectsReplay(t *testing.T) {
	f := newAuthFixture(t)

	loginRes := f.bus.DispatchDirect(f.ctx, nil, command.Login{
		Email: "pub2@test.com", Password: "password_1", Fingerprint: "fp",
	})
	loginValue, err := loginRes.Unwrap()
	require.NoError(t, err)
	original := loginValue.(auth.TokenPair)

	rotated, err := f.bus.DispatchDirect(f.ctx, nil, command.Refresh{
		Fingerprint: "fp", RefreshToken: original.RefreshToken,
	}).Unwrap()
	require.NoError(t, err)
	assert.NotEqual(t, original.RefreshToken, rotated.(auth.TokenPair).RefreshToken)

	// Replaying the pre-rotation token purges every session of the user.
	res := f.bus.DispatchDirect(f.ctx, nil, command.Refresh{
		Fingerprint: "fp", RefreshToken: original.RefreshToken,
	})
	assert.True(t, apperr.IsKind(res.Err(), apperr.KindUnauthorized))
	assert.False(t, f.redis.Exists(f.sessionKey()))
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newAuthFixture(t)

	loginValue, err := f.bus.DispatchDirect(f.ctx, nil, command.Login{
		Email: "pub2@test.com", Password: "password_1", Fingerprint: "fp",
	}).Unwrap()
	require.NoError(t, err)
	pair := loginValue.(auth.TokenPair)

	first, err := f.bus.DispatchDirect(f.ctx, nil, command.Logout{
		Fingerprint: "fp", RefreshToken: pair.RefreshToken,
	}).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, command.Status{Status: true}, first)

	second, err := f.bus.DispatchDirect(f.ctx, nil, command.Logout{
		Fingerprint: "fp", RefreshToken: pair.RefreshToken,
	}).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, command.Status{Status: false}, second)
}

func TestLogoutGarbageTokenIsUnauthorized(t *testing.T) {
	f := newAuthFixture(t)

	res := f.bus.DispatchDirect(f.ctx, nil, command.Logout{
		Fingerprint: "fp", RefreshToken: "not-a-jwt",
	})
	assert.True(t, apperr.IsKind(res.Err(), apperr.KindUnauthorized))
}
