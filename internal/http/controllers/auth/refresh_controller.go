package auth

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/http/dto"
	"github.com/dropDatabas3/sessionguard/internal/http/errors"
	"github.com/dropDatabas3/sessionguard/internal/http/helpers"
	mw "github.com/dropDatabas3/sessionguard/internal/http/middlewares"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/dropDatabas3/sessionguard/internal/session"
)

// RefreshController maneja POST /v1/auth/refresh
type RefreshController struct {
	service session.Service
	clock   clock.Clock
}

func (c *RefreshController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RefreshController.Refresh"))

	var req dto.RefreshRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("refresh_token es obligatorio"))
		return
	}

	pair, err := c.service.Refresh(ctx, req.RefreshToken, mw.GetClient(ctx))
	if err != nil {
		log.Debug("refresh failed", logger.Err(err))
		errors.WriteError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, tokenResponse(pair, c.clock))
}
