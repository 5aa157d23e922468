// Package auth contiene los controllers de /v1/auth.
package auth

import (
	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/http/dto"
	"github.com/dropDatabas3/sessionguard/internal/session"
)

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Login    *LoginController
	Refresh  *RefreshController
	Logout   *LogoutController
	Sessions *SessionsController
}

// NewControllers crea el agregador de controllers. c puede ser nil (reloj del sistema).
func NewControllers(s session.Service, c clock.Clock) *Controllers {
	c = clock.OrSystem(c)
	return &Controllers{
		Login:    &LoginController{service: s, clock: c},
		Refresh:  &RefreshController{service: s, clock: c},
		Logout:   &LogoutController{service: s},
		Sessions: &SessionsController{service: s},
	}
}

func tokenResponse(p *session.Pair, c clock.Clock) dto.TokenResponse {
	expiresIn := int64(p.AccessExpiresAt.Sub(c.Now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return dto.TokenResponse{
		AccessToken:      p.AccessToken,
		TokenType:        "Bearer",
		ExpiresIn:        expiresIn,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
