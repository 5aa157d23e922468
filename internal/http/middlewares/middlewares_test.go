package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mk("A"), mk("B"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"A", "B", "h"}, order)
}

func TestClientIP_TrustProxy(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "10.0.0.1", ClientIP(r, false))
	assert.Equal(t, "203.0.113.7", ClientIP(r, true))

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.0.0.1", ClientIP(r, true))
}

func TestWithClientMeta_TruncatesUserAgent(t *testing.T) {
	var got jwtx.ClientMeta
	h := WithClientMeta(false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = GetClient(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", strings.Repeat("x", 1000))
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.1", got.Address)
	assert.Len(t, got.UserAgent, maxUserAgentLen)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(rr, r)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
}

func TestWithRecover(t *testing.T) {
	h := WithRecover()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(r))
	r.Header.Set("Authorization", "Basic Zm9v")
	assert.Empty(t, BearerToken(r))
	r.Header.Set("Authorization", "bearer  tok ")
	assert.Equal(t, "tok", BearerToken(r))
}

type verifierFunc func(ctx context.Context, tok string) (*jwtx.Claims, error)

func (f verifierFunc) Verify(ctx context.Context, tok string) (*jwtx.Claims, error) { return f(ctx, tok) }

func TestRequireAuth(t *testing.T) {
	v := verifierFunc(func(_ context.Context, tok string) (*jwtx.Claims, error) {
		if tok == "good" {
			c := &jwtx.Claims{Kind: jwtx.KindAccess, Role: jwtx.RoleUser}
			c.Subject = "u1"
			return c, nil
		}
		return nil, session.ErrRevoked
	})
	var sub, raw string
	h := RequireAuth(v)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		sub, raw = GetSubjectID(r.Context()), GetAccessToken(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer revoked")
	h.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "REAUTHENTICATE")

	rr = httptest.NewRecorder()
	r.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(rr, r)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", sub)
	assert.Equal(t, "good", raw)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", normalizePath(""))
	assert.Equal(t, "/v1/auth/login", normalizePath("/v1/auth/login"))
	assert.Equal(t, "/users/:param/x", normalizePath("/users/123/x"))
	assert.Equal(t, "/t/:param", normalizePath("/t/0123456789abcdef"))
	assert.Equal(t, "/s/:param", normalizePath("/s/3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
}
