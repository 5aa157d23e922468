// Package revocation mantiene la lista negra de access tokens y el conjunto de
// refresh tokens vivos por subject.
//
// Garantía de lectura: ninguna consulta devuelve true para una entrada cuyo
// expiresAt ya pasó, sin importar cuándo corrió el último barrido. Los
// barridos solo acotan memoria.
package revocation

import (
	"context"
	"strings"
	"time"

	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/metrics"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	tokens "github.com/dropDatabas3/sessionguard/internal/security/token"
)

// RefreshRecord describe un refresh token vivo. El token crudo no se guarda.
type RefreshRecord struct {
	JTI       string          `json:"jti"`
	Role      jwtx.Role       `json:"role,omitempty"` // snapshot al emitir
	IssuedAt  time.Time       `json:"iat"`
	ExpiresAt time.Time       `json:"exp"`
	Client    jwtx.ClientMeta `json:"client"`
}

// SweepStats resume un barrido.
type SweepStats struct {
	Blacklist int
	Refresh   int
}

// Stats es un snapshot de tamaño.
type Stats struct {
	Backend          string
	BlacklistEntries int
	Subjects         int
	RefreshEntries   int
}

// Registry es el contrato del registro de revocación. Ninguna operación falla:
// una entrada ausente es un resultado normal (false / cero).
type Registry interface {
	// BlacklistAccessToken marca el token (o su jti) como inválido hasta expiresAt. Idempotente.
	BlacklistAccessToken(tokenOrJTI string, expiresAt time.Time)
	IsAccessTokenBlacklisted(tokenOrJTI string) bool

	RecordRefreshToken(subjectID, token string, rec RefreshRecord)
	IsRefreshTokenLive(subjectID, token string) bool
	// LookupRefreshToken devuelve el registro si el token está vivo, sin tocarlo.
	LookupRefreshToken(subjectID, token string) (RefreshRecord, bool)
	// RotateRefreshToken mata oldToken y registra newToken como un único paso
	// del subject: un KillAllRefreshTokens concurrente ocurre antes (y la
	// rotación falla) o después (y mata también newToken). Si oldToken no
	// estaba vivo no registra nada.
	RotateRefreshToken(subjectID, oldToken, newToken string, rec RefreshRecord) (RefreshRecord, bool)
	// ConsumeRefreshToken verifica que el token esté vivo y lo mata en un solo paso.
	// Solo una de N llamadas concurrentes con el mismo token devuelve true.
	ConsumeRefreshToken(subjectID, token string) (RefreshRecord, bool)
	KillRefreshToken(subjectID, token string) bool
	KillAllRefreshTokens(subjectID string) int
	ListRefreshTokens(subjectID string) []RefreshRecord

	Sweep() SweepStats
	Stats() Stats
}

// blacklistKey normaliza la clave: un JWT completo se guarda por fingerprint,
// un jti suelto tal cual.
func blacklistKey(tokenOrJTI string) string {
	s := strings.TrimSpace(tokenOrJTI)
	if strings.Count(s, ".") == 2 {
		return "fp:" + tokens.Fingerprint(s)
	}
	return "jti:" + s
}

// Run barre r cada interval hasta que ctx se cancele.
func Run(ctx context.Context, r Registry, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	log := logger.Named("revocation").With(logger.Op("sweep"))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			st := r.Sweep()
			if st.Blacklist > 0 {
				metrics.SweepEvicted.WithLabelValues("blacklist").Add(float64(st.Blacklist))
			}
			if st.Refresh > 0 {
				metrics.SweepEvicted.WithLabelValues("refresh").Add(float64(st.Refresh))
			}
			if st.Blacklist+st.Refresh > 0 {
				log.Debug("expired entries evicted", logger.Count(st.Blacklist+st.Refresh))
			}
		}
	}
}
