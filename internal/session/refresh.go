package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/sessionguard/internal/audit"
	"github.com/dropDatabas3/sessionguard/internal/identity"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/dropDatabas3/sessionguard/internal/rate"
	tokens "github.com/dropDatabas3/sessionguard/internal/security/token"
)

// codecOutcome traduce un error del codec.
func codecOutcome(err error) Outcome {
	if errors.Is(err, jwtx.ErrExpired) {
		return OutcomeExpired
	}
	return OutcomeMalformed
}

func (s *service) Refresh(ctx context.Context, refreshToken string, meta jwtx.ClientMeta) (*Pair, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Refresh"),
	)
	refreshToken = strings.TrimSpace(refreshToken)
	id := identifierOf(meta.Address)
	log = log.With(logger.Identifier(id))

	reject := func(o Outcome, subjectID, jti, reason string) error {
		log.Info("refresh rejected", logger.Outcome(string(o)), logger.Fingerprint(tokens.Fingerprint(refreshToken)))
		s.emit(audit.Event{
			Type:       audit.TokenRejected,
			SubjectID:  subjectID,
			Identifier: id,
			Operation:  string(rate.OpRefresh),
			Outcome:    string(o),
			Reason:     reason,
			JTI:        jti,
		})
		return deny(o)
	}

	if d := s.throttled(ctx, log, id, rate.OpRefresh); d != nil {
		s.emit(audit.Event{
			Type:       audit.TokenRejected,
			Identifier: id,
			Operation:  string(rate.OpRefresh),
			Outcome:    string(OutcomeRateLimited),
			RetryAfter: d.RetryAfter,
		})
		return nil, d
	}

	claims, err := s.deps.Codec.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		o := codecOutcome(err)
		if o == OutcomeMalformed {
			s.penalize(ctx, log, id, rate.OpRefresh, "")
		}
		return nil, reject(o, "", "", err.Error())
	}
	subjectID := claims.Subject
	log = log.With(logger.SubjectID(subjectID))

	rec, live := s.deps.Registry.LookupRefreshToken(subjectID, refreshToken)
	if !live {
		s.penalize(ctx, log, id, rate.OpRefresh, subjectID)
		return nil, reject(OutcomeRevoked, subjectID, claims.ID, "refresh token not live")
	}

	// el principal se resuelve antes de rotar
	role := rec.Role
	if s.deps.Identity != nil {
		p, err := s.deps.Identity.Lookup(ctx, subjectID)
		switch {
		case errors.Is(err, identity.ErrNotFound), errors.Is(err, identity.ErrDisabled):
			s.deps.Registry.KillRefreshToken(subjectID, refreshToken)
			return nil, reject(OutcomeRevoked, subjectID, claims.ID, err.Error())
		case err != nil:
			log.Error("identity lookup failed", logger.Err(err))
			return nil, fmt.Errorf("lookup principal: %w", err)
		}
		role = p.Role
	}
	if !role.Valid() {
		s.deps.Registry.KillRefreshToken(subjectID, refreshToken)
		return nil, reject(OutcomeRevoked, subjectID, claims.ID, "no role for subject")
	}

	if meta.IsZero() {
		meta = claims.Meta()
	}
	pair, next, err := s.mintPair(subjectID, role, meta)
	if err != nil {
		log.Error("issue failed", logger.Err(err))
		return nil, err
	}
	// check-and-rotate atómico: de N refresh concurrentes con el mismo token
	// gana uno, y un logout-all concurrente mata el viejo o el nuevo
	rec, live = s.deps.Registry.RotateRefreshToken(subjectID, refreshToken, pair.RefreshToken, next)
	if !live {
		s.penalize(ctx, log, id, rate.OpRefresh, subjectID)
		return nil, reject(OutcomeRevoked, subjectID, claims.ID, "refresh token not live")
	}
	s.forgive(ctx, log, id, rate.OpRefresh)

	log.Info("refresh rotated", logger.JTI(pair.RefreshJTI))
	s.emit(audit.Event{
		Type:       audit.TokenRotated,
		SubjectID:  subjectID,
		Identifier: id,
		Operation:  string(rate.OpRefresh),
		Outcome:    "ok",
		JTI:        rec.JTI,
	})
	s.emit(audit.Event{
		Type:       audit.TokenRefreshed,
		SubjectID:  subjectID,
		Identifier: id,
		Operation:  string(rate.OpRefresh),
		Outcome:    "ok",
		JTI:        pair.RefreshJTI,
	})
	return pair, nil
}
