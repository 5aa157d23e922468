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

// LoginController maneja POST /v1/auth/login
type LoginController struct {
	service session.Service
	clock   clock.Clock
}

func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if req.SubjectID == "" || req.Password == "" {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("subject_id y password son obligatorios"))
		return
	}

	pair, err := c.service.Authenticate(ctx, session.Credentials{
		SubjectID: req.SubjectID,
		Secret:    req.Password,
		Client:    mw.GetClient(ctx),
	})
	if err != nil {
		log.Debug("login failed", logger.Err(err))
		errors.WriteError(w, err)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, tokenResponse(pair, c.clock))
}
