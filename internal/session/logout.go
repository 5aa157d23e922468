package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/sessionguard/internal/audit"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
)

func (s *service) Verify(ctx context.Context, accessToken string) (*jwtx.Claims, error) {
	claims, err := s.deps.Codec.Verify(strings.TrimSpace(accessToken), jwtx.KindAccess)
	if err != nil {
		o := codecOutcome(err)
		if o == OutcomeMalformed {
			logger.From(ctx).Warn("malformed access token",
				logger.Component("session"), logger.Op("Verify"), logger.Err(err))
			s.emit(audit.Event{Type: audit.TokenRejected, Operation: "verify", Outcome: string(o), Reason: err.Error()})
		}
		return nil, deny(o)
	}
	if s.deps.Registry.IsAccessTokenBlacklisted(claims.ID) {
		s.emit(audit.Event{
			Type:      audit.TokenRejected,
			SubjectID: claims.Subject,
			Operation: "verify",
			Outcome:   string(OutcomeRevoked),
			JTI:       claims.ID,
		})
		return nil, ErrRevoked
	}
	return claims, nil
}

// blacklist revoca un access token hasta su exp. Los vencidos o inválidos se ignoran.
func (s *service) blacklist(accessToken string) (*jwtx.Claims, bool) {
	claims, err := s.deps.Codec.Verify(strings.TrimSpace(accessToken), jwtx.KindAccess)
	if err != nil || claims.ExpiresAt == nil {
		return nil, false
	}
	s.deps.Registry.BlacklistAccessToken(claims.ID, claims.ExpiresAt.Time)
	return claims, true
}

func (s *service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Logout"),
	)

	if claims, ok := s.blacklist(accessToken); ok {
		log.Info("access token revoked", logger.SubjectID(claims.Subject), logger.JTI(claims.ID))
		s.emit(audit.Event{
			Type:      audit.TokenRevoked,
			SubjectID: claims.Subject,
			Operation: "logout",
			Outcome:   "ok",
			Reason:    string(jwtx.KindAccess),
			JTI:       claims.ID,
		})
	}

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	rc, err := s.deps.Codec.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		// vencido o inválido: no hay nada vivo que matar
		log.Debug("refresh token not verifiable, nothing to kill", logger.Outcome(string(codecOutcome(err))))
		return nil
	}
	if s.deps.Registry.KillRefreshToken(rc.Subject, refreshToken) {
		log.Info("refresh token revoked", logger.SubjectID(rc.Subject), logger.JTI(rc.ID))
		s.emit(audit.Event{
			Type:      audit.TokenRevoked,
			SubjectID: rc.Subject,
			Operation: "logout",
			Outcome:   "ok",
			Reason:    string(jwtx.KindRefresh),
			JTI:       rc.ID,
		})
	}
	return nil
}

func (s *service) LogoutAll(ctx context.Context, subjectID string, accessTokens ...string) (int, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("LogoutAll"),
	)
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return 0, errors.New("session: subject id required")
	}

	n := s.deps.Registry.KillAllRefreshTokens(subjectID)
	blacklisted := 0
	for _, at := range accessTokens {
		// solo tokens del mismo subject
		if claims, err := s.deps.Codec.Verify(strings.TrimSpace(at), jwtx.KindAccess); err == nil && claims.Subject == subjectID {
			if _, ok := s.blacklist(at); ok {
				blacklisted++
			}
		}
	}

	log.Info("logout-all", logger.SubjectID(subjectID), logger.Count(n), logger.Any("access_revoked", blacklisted))
	s.emit(audit.Event{
		Type:      audit.LogoutAll,
		SubjectID: subjectID,
		Operation: "logout",
		Outcome:   "ok",
		Reason:    fmt.Sprintf("refresh=%d access=%d", n, blacklisted),
	})
	return n, nil
}
