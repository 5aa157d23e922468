package session

import (
	"context"

	"github.com/dropDatabas3/sessionguard/internal/audit"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/dropDatabas3/sessionguard/internal/rate"
	"go.uber.org/zap"
)

// identifierOf es la clave del rate limiter: la dirección del cliente.
// Los callers in-process sin dirección comparten el bucket "unknown".
func identifierOf(addr string) string {
	if addr == "" {
		return "unknown"
	}
	return addr
}

// throttled consulta el limiter. Si el backend falla se deja pasar (fail-open).
func (s *service) throttled(ctx context.Context, log *zap.Logger, id string, op rate.Operation) *Denial {
	if s.deps.Limiter == nil {
		return nil
	}
	dec, err := s.deps.Limiter.Check(ctx, id, op)
	if err != nil {
		log.Warn("rate limiter check failed, allowing", logger.Err(err))
		return nil
	}
	if dec.Allowed {
		return nil
	}
	return &Denial{Outcome: OutcomeRateLimited, RetryAfter: dec.RetryAfter}
}

// reserve toma un lugar en la ventana del limiter para un intento lento.
// held indica si quedó una reserva que cerrar (penalize, forgive o unreserve).
// Si el backend falla se deja pasar sin reserva (fail-open).
func (s *service) reserve(ctx context.Context, log *zap.Logger, id string, op rate.Operation) (held bool, d *Denial) {
	if s.deps.Limiter == nil {
		return false, nil
	}
	dec, err := s.deps.Limiter.Reserve(ctx, id, op)
	if err != nil {
		log.Warn("rate limiter reserve failed, allowing", logger.Err(err))
		return false, nil
	}
	if !dec.Allowed {
		return false, &Denial{Outcome: OutcomeRateLimited, RetryAfter: dec.RetryAfter}
	}
	return true, nil
}

// unreserve cierra una reserva sin contar fallo ni éxito.
func (s *service) unreserve(ctx context.Context, log *zap.Logger, id string, op rate.Operation) {
	if err := s.deps.Limiter.Release(context.WithoutCancel(ctx), id, op); err != nil {
		log.Warn("rate limiter release failed", logger.Err(err))
	}
}

// penalize registra un fallo para id y emite ratelimit.blocked si ese fallo
// enganchó el bloqueo.
func (s *service) penalize(ctx context.Context, log *zap.Logger, id string, op rate.Operation, subjectID string) {
	if s.deps.Limiter == nil {
		return
	}
	dec, err := s.deps.Limiter.RecordFailure(ctx, id, op)
	if err != nil {
		log.Warn("rate limiter record failed", logger.Err(err))
		return
	}
	if !dec.Allowed {
		log.Warn("rate limit engaged", logger.Identifier(id), logger.RetryAfter(dec.RetryAfter))
		s.emit(audit.Event{
			Type:       audit.RateLimitBlocked,
			SubjectID:  subjectID,
			Identifier: id,
			Operation:  string(op),
			Outcome:    string(OutcomeRateLimited),
			RetryAfter: dec.RetryAfter,
		})
	}
}

func (s *service) forgive(ctx context.Context, log *zap.Logger, id string, op rate.Operation) {
	if s.deps.Limiter == nil {
		return
	}
	if err := s.deps.Limiter.RecordSuccess(ctx, id, op); err != nil {
		log.Warn("rate limiter reset failed", logger.Err(err))
	}
}
