// Package router arma el chi.Router de la API de sesiones.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/sessionguard/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/sessionguard/internal/http/controllers/health"
	"github.com/dropDatabas3/sessionguard/internal/http/errors"
	mw "github.com/dropDatabas3/sessionguard/internal/http/middlewares"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Auth     *authctrl.Controllers
	Health   *healthctrl.Controller
	Verifier mw.Verifier

	// Metrics es el handler de /metrics; nil lo deshabilita.
	Metrics     http.Handler
	MetricsPath string

	// TrustProxy habilita X-Forwarded-For para la IP del cliente.
	TrustProxy bool
}

// New registra todas las rutas.
//
//	POST /v1/auth/login
//	POST /v1/auth/refresh
//	POST /v1/auth/logout       (bearer)
//	POST /v1/auth/logout-all   (bearer)
//	GET  /v1/auth/sessions     (bearer)
//	GET  /v1/auth/me           (bearer)
//	GET  /healthz, /readyz, /metrics
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrMethodNotAllowed)
	})

	// Infra sin logging (health checks y scrapes son muy frecuentes)
	r.Group(func(r chi.Router) {
		r.Use(mw.WithRecover(), mw.WithRequestID())
		if deps.Health != nil {
			r.Get("/healthz", deps.Health.Healthz)
			r.Get("/readyz", deps.Health.Readyz)
		}
		if deps.Metrics != nil {
			path := deps.MetricsPath
			if path == "" {
				path = "/metrics"
			}
			r.Method(http.MethodGet, path, deps.Metrics)
		}
	})

	if deps.Auth != nil {
		r.Route("/v1/auth", func(r chi.Router) {
			r.Use(
				mw.WithRecover(),
				mw.WithRequestID(),
				mw.WithMetrics(),
				mw.WithClientMeta(deps.TrustProxy),
				mw.WithLogging(),
				mw.WithSecurityHeaders(),
				mw.WithNoStore(),
			)

			r.Post("/login", deps.Auth.Login.Login)
			r.Post("/refresh", deps.Auth.Refresh.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAuth(deps.Verifier))
				r.Post("/logout", deps.Auth.Logout.Logout)
				r.Post("/logout-all", deps.Auth.Logout.LogoutAll)
				r.Get("/sessions", deps.Auth.Sessions.List)
				r.Get("/me", deps.Auth.Sessions.Me)
			})
		})
	}

	return r
}
