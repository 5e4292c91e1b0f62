package policy_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
)

func requestContext(query url.Values, body map[string]any) *policy.Context {
	return &policy.Context{
		RequestID:   "req-1",
		Method:      "PATCH",
		Path:        "/private/users/abc",
		QueryParams: query,
		JSONParams:  body,
	}
}

func TestDenyListBlocksDeniedField(t *testing.T) {
	perm := &domain.EffectivePermission{
		DenyFields: map[domain.Source][]string{domain.SourceJSON: {"password"}},
	}
	rctx := requestContext(nil, map[string]any{"password": "x", "email": "a@b.c"})

	err := policy.DenyList(perm, rctx)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "json", ae.Context["source"])
	assert.Equal(t, []string{"password"}, ae.Context["fields"])
}

func TestDenyListPassesCleanRequest(t *testing.T) {
	perm := &domain.EffectivePermission{
		DenyFields: map[domain.Source][]string{domain.SourceJSON: {"password"}},
	}
	rctx := requestContext(nil, map[string]any{"email": "a@b.c"})

	assert.NoError(t, policy.DenyList(perm, rctx))
}

func TestAllowListBlocksUnlistedField(t *testing.T) {
	perm := &domain.EffectivePermission{
		AllowFields: map[domain.Source][]string{domain.SourceQuery: {"email"}},
	}
	rctx := requestContext(url.Values{"email": {"a@b.c"}, "from_date": {"2024-01-01"}}, nil)

	err := policy.AllowList(perm, rctx)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "query", ae.Context["source"])
	assert.Equal(t, []string{"from_date"}, ae.Context["fields"])
}

func TestMixedRunsDenyBeforeAllow(t *testing.T) {
	perm := &domain.EffectivePermission{
		AllowFields: map[domain.Source][]string{domain.SourceJSON: {"email"}},
		DenyFields:  map[domain.Source][]string{domain.SourceJSON: {"password"}},
	}

	// password is both denied and unlisted; the deny wins the error shape.
	rctx := requestContext(nil, map[string]any{"password": "x"})
	err := policy.Mixed(perm, rctx)
	require.Error(t, err)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"password"}, ae.Context["fields"])

	rctx = requestContext(nil, map[string]any{"email": "a@b.c"})
	assert.NoError(t, policy.Mixed(perm, rctx))
}

func TestNestedKeysAreChecked(t *testing.T) {
	perm := &domain.EffectivePermission{
		DenyFields: map[domain.Source][]string{domain.SourceJSON: {"password"}},
	}
	rctx := requestContext(nil, map[string]any{
		"profile": map[string]any{"password": "smuggled"},
	})

	err := policy.DenyList(perm, rctx)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestKeyWalkDepthBound(t *testing.T) {
	deep := map[string]any{}
	leaf := deep
	for i := 0; i < policy.MaxKeyDepth+1; i++ {
		next := map[string]any{}
		leaf["nested"] = next
		leaf = next
	}
	rctx := requestContext(nil, deep)

	_, err := rctx.Keys(domain.SourceJSON)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnprocessable))
}

func TestScopeByUserID(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "own@test.com"}
	rctx := requestContext(nil, nil).WithUser(user)
	rctx.PathParams = map[string]string{"user_id": user.ID.String()}

	assert.NoError(t, policy.ScopeByUserID(context.Background(), nil, rctx, domain.ScopeOwn))
	assert.NoError(t, policy.ScopeByUserID(context.Background(), nil, rctx, domain.ScopeAny))

	rctx.PathParams["user_id"] = uuid.NewString()
	err := policy.ScopeByUserID(context.Background(), nil, rctx, domain.ScopeOwn)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	// ANY never restricts, even on foreign ids.
	assert.NoError(t, policy.ScopeByUserID(context.Background(), nil, rctx, domain.ScopeAny))
}

func TestScopeByUserEmail(t *testing.T) {
	user := &domain.AuthUser{ID: uuid.New(), Email: "list1@test.com"}

	own := requestContext(url.Values{"email": {"LIST1@test.com"}}, nil).WithUser(user)
	assert.NoError(t, policy.ScopeByUserEmail(context.Background(), nil, own, domain.ScopeOwn))

	other := requestContext(url.Values{"email": {"list2@test.com"}}, nil).WithUser(user)
	err := policy.ScopeByUserEmail(context.Background(), nil, other, domain.ScopeOwn)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	missing := requestContext(url.Values{}, nil).WithUser(user)
	err = policy.ScopeByUserEmail(context.Background(), nil, missing, domain.ScopeOwn)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestRegistryLookup(t *testing.T) {
	reg := policy.NewRegistry()
	rule := &policy.RouteRule{
		Permission: policy.PermissionSpec{Resource: "users", Action: domain.ActionRead, Operation: "detail"},
	}
	reg.Add("GET", "/private/users/{user_id}", rule)

	assert.Same(t, rule, reg.Lookup("GET", "/private/users/{user_id}"))
	assert.Nil(t, reg.Lookup("DELETE", "/private/users/{user_id}"))
	assert.Len(t, reg.All(), 1)
}

func TestPermissionSpecKey(t *testing.T) {
	spec := policy.PermissionSpec{Resource: "Users", Action: domain.ActionRead, Operation: "List"}
	assert.Equal(t, "users:read:list", spec.Key())
}
