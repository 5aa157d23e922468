package auth

import (
	"net/http"

	"github.com/dropDatabas3/sessionguard/internal/http/dto"
	"github.com/dropDatabas3/sessionguard/internal/http/errors"
	"github.com/dropDatabas3/sessionguard/internal/http/helpers"
	mw "github.com/dropDatabas3/sessionguard/internal/http/middlewares"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/dropDatabas3/sessionguard/internal/session"
)

// LogoutController maneja POST /v1/auth/logout y /v1/auth/logout-all.
// Ambos corren detrás de RequireAuth.
type LogoutController struct {
	service session.Service
}

// Logout revoca el access token del request y, si viene, el refresh token. Siempre 204.
func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.LogoutRequest
	if r.ContentLength != 0 {
		if !helpers.ReadJSON(w, r, &req) {
			return
		}
	}

	if err := c.service.Logout(ctx, mw.GetAccessToken(ctx), req.RefreshToken); err != nil {
		logger.From(ctx).Error("logout failed",
			logger.Layer("controller"), logger.Op("LogoutController.Logout"), logger.Err(err))
		errors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll mata todas las sesiones del subject autenticado, incluido el access token actual.
func (c *LogoutController) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := c.service.LogoutAll(ctx, mw.GetSubjectID(ctx), mw.GetAccessToken(ctx))
	if err != nil {
		logger.From(ctx).Error("logout-all failed",
			logger.Layer("controller"), logger.Op("LogoutController.LogoutAll"), logger.Err(err))
		errors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.LogoutAllResponse{Revoked: n})
}
