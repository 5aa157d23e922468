package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/sessionguard/internal/http/errors"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
)

// Verifier es la parte de session.Service que necesita RequireAuth.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (*jwtx.Claims, error)
}

// BearerToken extrae el token de "Authorization: Bearer <token>" ("" si no hay).
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("bearer "):])
}

// RequireAuth valida el bearer token (firma, exp y blacklist) y guarda las claims en el contexto.
// Cualquier rechazo sale como 401 reauthenticate, sin distinguir la causa.
func RequireAuth(v Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}

			claims, err := v.Verify(r.Context(), raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = withAccessToken(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
