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
	"github.com/dropDatabas3/sessionguard/internal/util"
)

func (s *service) Login(ctx context.Context, subjectID string, role jwtx.Role, meta jwtx.ClientMeta) (*Pair, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Login"),
	)
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrInvalidCredentials
	}
	if !role.Valid() {
		return nil, fmt.Errorf("login %s: unknown role %q", subjectID, role)
	}

	pair, err := s.issuePair(subjectID, role, meta)
	if err != nil {
		log.Error("issue failed", logger.Err(err))
		return nil, err
	}
	log.Info("login ok", logger.SubjectID(subjectID), logger.JTI(pair.RefreshJTI))
	s.emit(audit.Event{
		Type:       audit.LoginSuccess,
		SubjectID:  subjectID,
		Identifier: meta.Address,
		Operation:  string(rate.OpLogin),
		Outcome:    "ok",
		JTI:        pair.RefreshJTI,
	})
	return pair, nil
}

func (s *service) Authenticate(ctx context.Context, in Credentials) (*Pair, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Authenticate"),
	)
	if s.deps.Identity == nil {
		return nil, fmt.Errorf("%w: identity directory", ErrMissingDependency)
	}

	subjectID := strings.TrimSpace(in.SubjectID)
	id := identifierOf(in.Client.Address)
	log = log.With(logger.Identifier(id), logger.Any("account", util.MaskID(subjectID)))

	if subjectID == "" || in.Secret == "" {
		return nil, ErrInvalidCredentials
	}

	failure := func(o Outcome, d *Denial) error {
		s.emit(audit.Event{
			Type:       audit.LoginFailure,
			SubjectID:  subjectID,
			Identifier: id,
			Operation:  string(rate.OpLogin),
			Outcome:    string(o),
			RetryAfter: d.RetryAfter,
		})
		return d
	}

	// 1) lockout por cuenta: reserva el intento. Bloqueada, o con el umbral ya
	// cubierto por intentos en curso => se rechaza sin mirar credenciales
	lockHeld := false
	if s.deps.Lockout != nil {
		st := s.deps.Lockout.Reserve(subjectID)
		if st.Cleared {
			s.emit(audit.Event{Type: audit.LockoutCleared, SubjectID: subjectID, Identifier: id, Outcome: "expired"})
		}
		switch {
		case st.Locked:
			now := s.deps.Clock.Now()
			log.Info("account locked", logger.Until(st.Until))
			return nil, failure(OutcomeLocked, &Denial{Outcome: OutcomeLocked, Until: st.Until, RetryAfter: st.RetryAfter(now)})
		case !st.Reserved:
			log.Info("account attempts in flight at threshold")
			return nil, failure(OutcomeRateLimited, &Denial{Outcome: OutcomeRateLimited, RetryAfter: rate.BusyRetry})
		}
		lockHeld = true
	}

	// 2) rate limit por cliente, también con reserva
	rateHeld, d := s.reserve(ctx, log, id, rate.OpLogin)
	if d != nil {
		if lockHeld {
			s.deps.Lockout.Release(subjectID)
		}
		log.Info("client rate limited", logger.RetryAfter(d.RetryAfter))
		return nil, failure(OutcomeRateLimited, d)
	}
	release := func() {
		if lockHeld {
			s.deps.Lockout.Release(subjectID)
		}
		if rateHeld {
			s.unreserve(ctx, log, id, rate.OpLogin)
		}
	}

	// 3) credenciales. Cada reserva se cierra con RecordFailure/RecordSuccess o release
	ok, err := s.deps.Identity.VerifySecret(ctx, subjectID, in.Secret)
	if err != nil {
		release()
		log.Error("identity verify failed", logger.Err(err))
		return nil, fmt.Errorf("verify secret: %w", err)
	}
	var principal identity.Principal
	if ok {
		principal, err = s.deps.Identity.Lookup(ctx, subjectID)
		switch {
		case errors.Is(err, identity.ErrNotFound), errors.Is(err, identity.ErrDisabled):
			ok = false
		case err != nil:
			release()
			log.Error("identity lookup failed", logger.Err(err))
			return nil, fmt.Errorf("lookup principal: %w", err)
		}
	}
	if !ok {
		s.penalize(ctx, log, id, rate.OpLogin, subjectID)
		if s.deps.Lockout != nil {
			st := s.deps.Lockout.RecordFailure(subjectID)
			if st.Engaged {
				log.Warn("account lockout engaged", logger.Until(st.Until))
				s.emit(audit.Event{
					Type:       audit.LockoutEngaged,
					SubjectID:  subjectID,
					Identifier: id,
					Operation:  string(rate.OpLogin),
					Outcome:    string(OutcomeLocked),
					RetryAfter: st.RetryAfter(s.deps.Clock.Now()),
				})
			}
		}
		log.Info("invalid credentials")
		return nil, failure(OutcomeInvalidCredentials, ErrInvalidCredentials)
	}

	// 4) éxito: resetea ambos trackers y emite
	if s.deps.Lockout != nil {
		s.deps.Lockout.RecordSuccess(subjectID)
	}
	s.forgive(ctx, log, id, rate.OpLogin)

	return s.Login(ctx, principal.ID, principal.Role, in.Client)
}
