package auth

import (
	"net/http"

	"github.com/dropDatabas3/sessionguard/internal/http/dto"
	"github.com/dropDatabas3/sessionguard/internal/http/errors"
	"github.com/dropDatabas3/sessionguard/internal/http/helpers"
	mw "github.com/dropDatabas3/sessionguard/internal/http/middlewares"
	"github.com/dropDatabas3/sessionguard/internal/session"
)

// SessionsController expone GET /v1/auth/sessions y GET /v1/auth/me.
type SessionsController struct {
	service session.Service
}

func (c *SessionsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, err := c.service.Sessions(ctx, mw.GetSubjectID(ctx))
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	out := dto.SessionsResponse{Sessions: make([]dto.SessionItem, 0, len(recs))}
	for _, rec := range recs {
		out.Sessions = append(out.Sessions, dto.SessionItem{
			JTI:       rec.JTI,
			IssuedAt:  rec.IssuedAt,
			ExpiresAt: rec.ExpiresAt,
			Address:   rec.Client.Address,
			UserAgent: rec.Client.UserAgent,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

func (c *SessionsController) Me(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetClaims(r.Context())
	if claims == nil {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	resp := dto.MeResponse{
		SubjectID: claims.Subject,
		Role:      string(claims.Role),
		JTI:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
