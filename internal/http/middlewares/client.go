package middlewares

import (
	"net"
	"net/http"
	"strings"

	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
)

// maxUserAgentLen acota lo que termina embebido en los tokens.
const maxUserAgentLen = 256

// ClientIP devuelve la IP del cliente. X-Forwarded-For solo se respeta con trustProxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			parts := strings.Split(xf, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithClientMeta resuelve la dirección y el user agent una sola vez por request.
func WithClientMeta(trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := r.UserAgent()
			if len(ua) > maxUserAgentLen {
				ua = ua[:maxUserAgentLen]
			}
			meta := jwtx.ClientMeta{Address: ClientIP(r, trustProxy), UserAgent: ua}
			next.ServeHTTP(w, r.WithContext(withClient(r.Context(), meta)))
		})
	}
}
