package rate

import (
	"context"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/dropDatabas3/sessionguard/internal/util/shard"
)

// window guarda los fallos recientes (orden cronológico), el bloqueo activo y
// los intentos reservados todavía sin resultado.
type window struct {
	fails        []time.Time
	blockedUntil time.Time
	inflight     int
}

func (w *window) settle() {
	if w.inflight > 0 {
		w.inflight--
	}
}

// prune descarta los fallos anteriores a from.
func (w *window) prune(from time.Time) {
	i := 0
	for i < len(w.fails) && w.fails[i].Before(from) {
		i++
	}
	if i > 0 {
		w.fails = append(w.fails[:0], w.fails[i:]...)
	}
}

func (w *window) last() time.Time {
	if len(w.fails) == 0 {
		return time.Time{}
	}
	return w.fails[len(w.fails)-1]
}

// MemoryLimiter es el limiter in-process, particionado por shard.
type MemoryLimiter struct {
	policies  Policies
	retention time.Duration
	clock     clock.Clock
	buckets   *shard.Map[*window]
}

// NewMemoryLimiter valida las políticas. retention <= 0 usa 1h; nunca es
// menor que el Window más largo.
func NewMemoryLimiter(policies Policies, retention time.Duration, c clock.Clock) (*MemoryLimiter, error) {
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	if retention <= 0 {
		retention = time.Hour
	}
	for _, p := range policies {
		if p.Window > retention {
			retention = p.Window
		}
	}
	return &MemoryLimiter{
		policies:  policies,
		retention: retention,
		clock:     clock.OrSystem(c),
		buckets:   shard.New[*window](shard.DefaultCount),
	}, nil
}

func (l *MemoryLimiter) Check(_ context.Context, identifier string, op Operation) (Decision, error) {
	p, err := l.policies.get(op)
	if err != nil {
		return allowed(), err
	}
	now := l.clock.Now()
	dec := allowed()
	l.buckets.With(bucketKey(identifier, op), func(w *window, ok bool) (*window, bool) {
		if !ok {
			return nil, false
		}
		if now.Before(w.blockedUntil) {
			dec = blocked(w.blockedUntil.Sub(now))
			return w, true
		}
		w.prune(now.Add(-p.Window))
		if len(w.fails) >= p.MaxAttempts {
			w.blockedUntil = now.Add(p.Block)
			w.fails = w.fails[:0]
			dec = blocked(p.Block)
			return w, true
		}
		return w, len(w.fails) > 0 || w.inflight > 0
	})
	return dec, nil
}

func (l *MemoryLimiter) Reserve(_ context.Context, identifier string, op Operation) (Decision, error) {
	p, err := l.policies.get(op)
	if err != nil {
		return allowed(), err
	}
	now := l.clock.Now()
	dec := allowed()
	l.buckets.With(bucketKey(identifier, op), func(w *window, ok bool) (*window, bool) {
		if !ok {
			w = &window{}
		}
		if now.Before(w.blockedUntil) {
			dec = blocked(w.blockedUntil.Sub(now))
			return w, true
		}
		w.prune(now.Add(-p.Window))
		switch {
		case len(w.fails) >= p.MaxAttempts:
			w.blockedUntil = now.Add(p.Block)
			w.fails = w.fails[:0]
			dec = blocked(p.Block)
		case len(w.fails)+w.inflight >= p.MaxAttempts:
			dec = blocked(BusyRetry)
		default:
			w.inflight++
		}
		return w, true
	})
	return dec, nil
}

func (l *MemoryLimiter) Release(_ context.Context, identifier string, op Operation) error {
	if _, err := l.policies.get(op); err != nil {
		return err
	}
	l.buckets.With(bucketKey(identifier, op), func(w *window, ok bool) (*window, bool) {
		if !ok {
			return nil, false
		}
		w.settle()
		return w, len(w.fails) > 0 || w.inflight > 0 || !w.blockedUntil.IsZero()
	})
	return nil
}

func (l *MemoryLimiter) RecordFailure(_ context.Context, identifier string, op Operation) (Decision, error) {
	p, err := l.policies.get(op)
	if err != nil {
		return allowed(), err
	}
	now := l.clock.Now()
	dec := allowed()
	l.buckets.With(bucketKey(identifier, op), func(w *window, ok bool) (*window, bool) {
		if !ok {
			w = &window{}
		}
		w.settle()
		if now.Before(w.blockedUntil) {
			// ya bloqueado: no se acumula para después
			return w, true
		}
		w.prune(now.Add(-p.Window))
		w.fails = append(w.fails, now)
		if len(w.fails) >= p.MaxAttempts {
			w.blockedUntil = now.Add(p.Block)
			w.fails = w.fails[:0]
			dec = blocked(p.Block)
		}
		return w, true
	})
	return dec, nil
}

func (l *MemoryLimiter) RecordSuccess(_ context.Context, identifier string, op Operation) error {
	if _, err := l.policies.get(op); err != nil {
		return err
	}
	l.buckets.With(bucketKey(identifier, op), func(w *window, ok bool) (*window, bool) {
		if !ok {
			return nil, false
		}
		w.settle()
		if w.inflight == 0 {
			return nil, false
		}
		return &window{inflight: w.inflight}, true
	})
	return nil
}

// Purge olvida buckets sin bloqueo activo cuyo último fallo es anterior a la
// retención. Un bloqueo vigente nunca se purga.
func (l *MemoryLimiter) Purge() int {
	now := l.clock.Now()
	cutoff := now.Add(-l.retention)
	return l.buckets.Sweep(func(_ string, w *window) bool {
		if w.inflight > 0 || now.Before(w.blockedUntil) {
			return false
		}
		return w.last().Before(cutoff)
	})
}

// Len retorna la cantidad de buckets.
func (l *MemoryLimiter) Len() int { return l.buckets.Len() }

// Run purga cada interval hasta que ctx se cancele.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log := logger.Named("rate").With(logger.Op("purge"))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := l.Purge(); n > 0 {
				log.Debug("stale buckets purged", logger.Count(n))
			}
		}
	}
}

var _ Limiter = (*MemoryLimiter)(nil)
