package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/api"
	mw "github.com/wardenhq/warden/internal/api/middleware"
	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/command"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/di"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/query"
	"github.com/wardenhq/warden/internal/result"
	"github.com/wardenhq/warden/internal/storage"
)

type fakeAuthenticator struct {
	user *domain.AuthUser
	perm *domain.EffectivePermission
}

func (f *fakeAuthenticator) Authenticate(context.Context, domain.Gateway, domain.UserFilter) (*domain.AuthUser, error) {
	return f.user, nil
}

func (f *fakeAuthenticator) PermissionFor(context.Context, domain.Gateway, *domain.AuthUser, string) (*domain.EffectivePermission, error) {
	return f.perm, nil
}

// stubGateway satisfies the gateway contract for handlers that never touch
// storage.
type stubGateway struct{ domain.Gateway }

type fixture struct {
	server   *api.Server
	commands *bus.Bus
	queries  *bus.Bus
	tokens   auth.TokenProvider
}

func newFixture(t *testing.T, authn auth.Authenticator) *fixture {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Workers: 1},
	}

	container := di.NewContainer()
	di.ProvideNamed[domain.Gateway](container, storage.GatewayMaster, stubGateway{})
	di.ProvideNamed[domain.Gateway](container, storage.GatewayReplica, stubGateway{})

	tokens, err := auth.NewJWTProvider(config.SecurityConfig{
		Algorithm:       "HS256",
		SecretKey:       "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	commands, queries := bus.New(), bus.New()
	server := api.NewServer(cfg, container, commands, queries,
		mw.NewAuthorizer(tokens, authn), policy.NewRegistry())

	return &fixture{server: server, commands: commands, queries: queries, tokens: tokens}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Router.ServeHTTP(rec, req)
	return rec
}

func jsonReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func okHandler(payload any) bus.Handler {
	return func(context.Context, *policy.Context, any) result.Result[any] {
		return result.Ok[any](payload)
	}
}

func TestHealthcheck(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":true}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set("X-Request-Id", "trace-407")
	rec := f.do(req)

	assert.Equal(t, "trace-407", rec.Header().Get("X-Request-Id"))
}

func TestSignup(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})
	id := uuid.New()
	var got command.CreateUser
	f.commands.Register(command.CreateUser{}, func(_ context.Context, _ *policy.Context, msg any) result.Result[any] {
		got = msg.(command.CreateUser)
		return result.Ok[any](command.Created{ID: id})
	})

	rec := f.do(jsonReq(http.MethodPost, "/public/users", `{"email":"a@b.co","password":"hunter2hunter2"}`))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, rec.Body.String())
	assert.Equal(t, "a@b.co", got.Email)
	assert.Equal(t, "hunter2hunter2", got.Password)
}

func TestSignupRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})

	rec := f.do(jsonReq(http.MethodPost, "/public/users", `{"email":`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})
	pair := auth.TokenPair{AccessToken: "acc", RefreshToken: "ref", ExpiresIn: 86400}
	f.commands.Register(command.Login{}, okHandler(pair))

	rec := f.do(jsonReq(http.MethodPost, "/public/auth/login",
		`{"fingerprint":"device-a","email":"a@b.co","password":"pw"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"acc"}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "refresh", c.Name)
	assert.Equal(t, "ref", c.Value)
	assert.Equal(t, 86400, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
}

func TestLogoutTokenSources(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})
	var received string
	f.commands.Register(command.Logout{}, func(_ context.Context, _ *policy.Context, msg any) result.Result[any] {
		received = msg.(command.Logout).RefreshToken
		return result.Ok[any](command.Status{Status: true})
	})

	// No cookie, no header.
	rec := f.do(jsonReq(http.MethodPost, "/public/auth/logout", `{"fingerprint":"d"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Non-bearer Authorization is rejected, not silently ignored.
	req := jsonReq(http.MethodPost, "/public/auth/logout", `{"fingerprint":"d"}`)
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	rec = f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Cookie wins and gets cleared on the way out.
	req = jsonReq(http.MethodPost, "/public/auth/logout", `{"fingerprint":"d"}`)
	req.AddCookie(&http.Cookie{Name: "refresh", Value: "session-token"})
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "session-token", received)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestRefreshFallsBackToBearerHeader(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})
	var received string
	f.commands.Register(command.Refresh{}, func(_ context.Context, _ *policy.Context, msg any) result.Result[any] {
		received = msg.(command.Refresh).RefreshToken
		return result.Ok[any](auth.TokenPair{AccessToken: "next", RefreshToken: "rotated", ExpiresIn: 10})
	})

	req := jsonReq(http.MethodPost, "/public/auth/refresh", `{"fingerprint":"d"}`)
	req.Header.Set("Authorization", "Bearer header-token")
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "header-token", received)
	assert.JSONEq(t, `{"token":"next"}`, rec.Body.String())
}

func TestPublicRateLimit(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})
	f.commands.Register(command.Login{}, okHandler(auth.TokenPair{}))

	var last int
	for i := 0; i < 6; i++ {
		rec := f.do(jsonReq(http.MethodPost, "/public/auth/login",
			`{"fingerprint":"d","email":"a@b.co","password":"pw"}`))
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestPrivateRequiresToken(t *testing.T) {
	f := newFixture(t, &fakeAuthenticator{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/private/users/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body struct {
		Content map[string]any `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Token is missing", body.Content["message"])
}

func bearer(t *testing.T, f *fixture, sub uuid.UUID) string {
	t.Helper()
	pair, err := f.tokens.IssuePair(sub.String(), "jti-t")
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func TestPrivateMe(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "a@b.co", Roles: []string{"member"}}
	f := newFixture(t, &fakeAuthenticator{user: user})
	f.queries.Register(query.GetMe{}, okHandler(domain.UserPublic{ID: user.ID, Email: user.Email}))

	req := httptest.NewRequest(http.MethodGet, "/private/users/me", nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), user.ID.String())
}

func TestPrivateRejectsRolelessUser(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "a@b.co"}
	f := newFixture(t, &fakeAuthenticator{user: user})

	req := httptest.NewRequest(http.MethodGet, "/private/users/me", nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	rec := f.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPrivatePermissionDenied(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "a@b.co", Roles: []string{"member"}}
	// No effective permission for the route's key.
	f := newFixture(t, &fakeAuthenticator{user: user})

	req := httptest.NewRequest(http.MethodGet, "/private/users/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	rec := f.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPrivateScopeOwnDeniesForeignRecord(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "a@b.co", Roles: []string{"member"}}
	perm := &domain.EffectivePermission{
		Resource: "users", Action: domain.ActionRead, Operation: "detail",
		Scope: domain.ScopeOwn,
	}
	f := newFixture(t, &fakeAuthenticator{user: user, perm: perm})
	f.queries.Register(query.GetUser{}, okHandler(domain.UserPublic{}))

	// Own record passes.
	req := httptest.NewRequest(http.MethodGet, "/private/users/"+user.ID.String(), nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	// Someone else's record does not.
	req = httptest.NewRequest(http.MethodGet, "/private/users/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
}

func TestPrivateFieldPolicyDeniesExtraQueryParams(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "a@b.co", Roles: []string{"member"}}
	perm := &domain.EffectivePermission{
		Resource: "users", Action: domain.ActionRead, Operation: "list",
		Scope:       domain.ScopeAny,
		AllowFields: map[domain.Source][]string{domain.SourceQuery: {"email"}},
	}
	f := newFixture(t, &fakeAuthenticator{user: user, perm: perm})
	f.queries.Register(query.ListUsers{}, okHandler(domain.Page[domain.UserPublic]{}))

	req := httptest.NewRequest(http.MethodGet, "/private/users?email=a@b.co", nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/private/users?email=a@b.co&from_date=2026-01-01", nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	rec := f.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "from_date")
}

func TestSuperuserBypassesRules(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "root@b.co", IsSuperuser: true, Roles: []string{"admin"}}
	f := newFixture(t, &fakeAuthenticator{user: user})
	f.queries.Register(query.GetUser{}, okHandler(domain.UserPublic{}))

	req := httptest.NewRequest(http.MethodGet, "/private/users/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestDeleteUserRepliesNoContent(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "root@b.co", IsSuperuser: true, Roles: []string{"admin"}}
	f := newFixture(t, &fakeAuthenticator{user: user})
	f.commands.Register(command.DeleteUser{}, okHandler(command.Status{Status: true}))

	req := httptest.NewRequest(http.MethodDelete, "/private/users/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))
	rec := f.do(req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestGrantRolePermissionValidatesScope(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "root@b.co", IsSuperuser: true, Roles: []string{"admin"}}
	f := newFixture(t, &fakeAuthenticator{user: user})
	f.commands.Register(command.GrantRolePermission{}, okHandler(command.Status{Status: true}))

	body := `{"role_id":"` + uuid.NewString() + `","permission_id":"` + uuid.NewString() + `","scope":"global"}`
	req := jsonReq(http.MethodPost, "/private/rbac/role-permissions", body)
	req.Header.Set("Authorization", bearer(t, f, user.ID))

	assert.Equal(t, http.StatusUnprocessableEntity, f.do(req).Code)
}

func TestBadPathUUID(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "root@b.co", IsSuperuser: true, Roles: []string{"admin"}}
	f := newFixture(t, &fakeAuthenticator{user: user})

	req := httptest.NewRequest(http.MethodGet, "/private/users/not-a-uuid", nil)
	req.Header.Set("Authorization", bearer(t, f, user.ID))

	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
}
