package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/wardenhq/warden/internal/api/middleware"
	"github.com/wardenhq/warden/internal/policy"
)

func TestRequestIDFreshFormat(t *testing.T) {
	var captured string
	h := mw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = mw.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, captured, 32, "uuid7 without dashes")
	assert.NotContains(t, captured, "-")
	assert.Equal(t, captured, rec.Header().Get(mw.RequestIDHeader))
}

func TestRequestContextBuffersJSON(t *testing.T) {
	var rctx *policy.Context
	var body string
	h := mw.RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx = policy.FromContext(r.Context())
		raw := make([]byte, 64)
		n, _ := r.Body.Read(raw)
		body = string(raw[:n])
	}))

	req := httptest.NewRequest(http.MethodPost, "/x?limit=5", strings.NewReader(`{"email":"a@b.co"}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, rctx)
	assert.Equal(t, "a@b.co", rctx.JSONParams["email"])
	assert.Equal(t, "5", rctx.QueryParams.Get("limit"))
	assert.JSONEq(t, `{"email":"a@b.co"}`, body, "body stays readable for the handler")
}

func TestRequestContextRejectsOversizedBody(t *testing.T) {
	h := mw.RequestContext(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	huge := `{"pad":"` + strings.Repeat("x", 1<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(huge))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRequestContextLeavesMalformedJSONToHandler(t *testing.T) {
	var rctx *policy.Context
	h := mw.RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx = policy.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"broken":`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, rctx)
	assert.Nil(t, rctx.JSONParams)
}

func TestCORSListedOrigin(t *testing.T) {
	h := mw.CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSUnlistedOriginGetsNoHeaders(t *testing.T) {
	h := mw.CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	h := mw.CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight must short-circuit")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestConcurrencyLimitZeroIsNoop(t *testing.T) {
	called := false
	h := mw.ConcurrencyLimit(0)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestRateLimiterPerIP(t *testing.T) {
	limiter := mw.NewIPRateLimiter(1, 2)
	h := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1"))
	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1"))
}
