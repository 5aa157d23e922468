// Package health expone los checks de liveness/readiness.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/http/helpers"
)

// Checker reporta si una dependencia está lista (p.ej. ping a Redis).
type Checker func(ctx context.Context) error

type Controller struct {
	version string
	checks  map[string]Checker
}

func NewController(version string, checks map[string]Checker) *Controller {
	return &Controller{version: version, checks: checks}
}

// Healthz es liveness: si el proceso responde, está vivo.
func (c *Controller) Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": c.version})
}

// Readyz corre los checks con un timeout corto; cualquier falla es 503.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{}
	for name, check := range c.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	helpers.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": out})
}
