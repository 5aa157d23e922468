// Package lockout cuenta fallos de autenticación por cuenta y bloquea la
// cuenta por un tiempo fijo al llegar al umbral.
//
//	Normal --fallo x(threshold-1)--> Normal
//	Normal --fallo #threshold------> Locked(until)
//	Locked --now >= until----------> Normal (contador en 0)
//	*      --éxito-----------------> Normal (contador en 0)
//
// Mientras está bloqueada los fallos no extienden el bloqueo.
//
// Los intentos en curso se reservan con Reserve antes de verificar
// credenciales: fallos más reservas nunca superan el umbral, así N intentos
// concurrentes no pueden hacer más de Threshold verificaciones por bloqueo.
package lockout

import (
	"context"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/dropDatabas3/sessionguard/internal/util/shard"
)

const (
	DefaultThreshold = 5
	DefaultDuration  = 30 * time.Minute
	DefaultRetention = 24 * time.Hour
)

// Config del tracker. Los ceros toman los defaults.
type Config struct {
	Threshold int           `yaml:"threshold"`
	Duration  time.Duration `yaml:"duration"`
	Retention time.Duration `yaml:"retention"`
}

// Status es la foto de una cuenta.
type Status struct {
	Locked   bool
	Attempts int
	Until    time.Time // solo si Locked
	// Engaged: esta llamada bloqueó la cuenta. Cleared: esta llamada observó el fin del bloqueo.
	Engaged bool
	Cleared bool
	// Reserved: Reserve tomó un lugar. Saturated: no lo tomó porque fallos +
	// intentos en curso ya llegan al umbral.
	Reserved  bool
	Saturated bool
}

// RetryAfter es lo que falta para el desbloqueo (0 si no está bloqueada).
func (s Status) RetryAfter(now time.Time) time.Duration {
	if !s.Locked || !now.Before(s.Until) {
		return 0
	}
	return s.Until.Sub(now)
}

type state struct {
	attempts    int
	inflight    int
	lastFailure time.Time
	lockedUntil time.Time
}

func (s state) empty() bool {
	return s.attempts == 0 && s.inflight == 0 && s.lockedUntil.IsZero()
}

// settle descuenta una reserva si la hay.
func (s *state) settle() {
	if s.inflight > 0 {
		s.inflight--
	}
}

// Tracker es seguro para uso concurrente; las operaciones sobre una misma
// cuenta son linealizables.
type Tracker struct {
	cfg      Config
	clock    clock.Clock
	accounts *shard.Map[state]
}

func New(cfg Config, c clock.Clock) *Tracker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Tracker{cfg: cfg, clock: clock.OrSystem(c), accounts: shard.New[state](shard.DefaultCount)}
}

// Threshold retorna el umbral efectivo.
func (t *Tracker) Threshold() int { return t.cfg.Threshold }

// Check informa si la cuenta está bloqueada. Si el bloqueo ya venció lo
// levanta y deja el contador en 0.
func (t *Tracker) Check(subjectID string) Status {
	now := t.clock.Now()
	var st Status
	t.accounts.With(subjectID, func(cur state, ok bool) (state, bool) {
		if !ok {
			return cur, false
		}
		if !cur.lockedUntil.IsZero() {
			if now.Before(cur.lockedUntil) {
				st = Status{Locked: true, Attempts: cur.attempts, Until: cur.lockedUntil}
				return cur, true
			}
			st.Cleared = true
			next := state{inflight: cur.inflight}
			return next, !next.empty()
		}
		st.Attempts = cur.attempts
		return cur, true
	})
	return st
}

// Reserve es Check más la reserva de un intento. Solo reserva si la cuenta no
// está bloqueada y los fallos más los intentos en curso no llegan al umbral.
// Cada reserva se cierra con exactamente una de RecordFailure, RecordSuccess
// o Release.
func (t *Tracker) Reserve(subjectID string) Status {
	now := t.clock.Now()
	var st Status
	t.accounts.With(subjectID, func(cur state, ok bool) (state, bool) {
		if !cur.lockedUntil.IsZero() {
			if now.Before(cur.lockedUntil) {
				st = Status{Locked: true, Attempts: cur.attempts, Until: cur.lockedUntil}
				return cur, true
			}
			cur = state{inflight: cur.inflight}
			st.Cleared = true
		}
		st.Attempts = cur.attempts
		if cur.attempts+cur.inflight >= t.cfg.Threshold {
			st.Saturated = true
			return cur, !cur.empty()
		}
		cur.inflight++
		st.Reserved = true
		return cur, true
	})
	return st
}

// Release devuelve una reserva sin contar fallo ni éxito.
func (t *Tracker) Release(subjectID string) {
	t.accounts.With(subjectID, func(cur state, ok bool) (state, bool) {
		if !ok {
			return cur, false
		}
		cur.settle()
		return cur, !cur.empty()
	})
}

// RecordFailure suma un fallo y cierra la reserva del intento, si la hay.
// El fallo número Threshold bloquea la cuenta.
func (t *Tracker) RecordFailure(subjectID string) Status {
	now := t.clock.Now()
	var st Status
	t.accounts.With(subjectID, func(cur state, ok bool) (state, bool) {
		cur.settle()
		if !cur.lockedUntil.IsZero() {
			if now.Before(cur.lockedUntil) {
				st = Status{Locked: true, Attempts: cur.attempts, Until: cur.lockedUntil}
				return cur, true
			}
			cur = state{inflight: cur.inflight}
			st.Cleared = true
		}
		cur.attempts++
		cur.lastFailure = now
		if cur.attempts >= t.cfg.Threshold {
			cur.lockedUntil = now.Add(t.cfg.Duration)
			st.Locked, st.Engaged, st.Until = true, true, cur.lockedUntil
		}
		st.Attempts = cur.attempts
		return cur, true
	})
	return st
}

// RecordSuccess vuelve la cuenta a Normal y cierra la reserva del intento.
// Retorna true si había fallos o bloqueo que limpiar.
func (t *Tracker) RecordSuccess(subjectID string) bool {
	had := false
	t.accounts.With(subjectID, func(cur state, ok bool) (state, bool) {
		had = ok && (cur.attempts > 0 || !cur.lockedUntil.IsZero())
		cur.settle()
		next := state{inflight: cur.inflight}
		return next, !next.empty()
	})
	return had
}

// Purge olvida bloqueos vencidos y contadores sin fallos dentro de la retención.
func (t *Tracker) Purge() int {
	now := t.clock.Now()
	cutoff := now.Add(-t.cfg.Retention)
	return t.accounts.Sweep(func(_ string, s state) bool {
		if s.inflight > 0 {
			return false
		}
		if !s.lockedUntil.IsZero() {
			return !now.Before(s.lockedUntil)
		}
		return s.lastFailure.Before(cutoff)
	})
}

// Len retorna la cantidad de cuentas con estado.
func (t *Tracker) Len() int { return t.accounts.Len() }

// Run purga cada interval hasta que ctx se cancele.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	log := logger.Named("lockout").With(logger.Op("purge"))
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			if n := t.Purge(); n > 0 {
				log.Debug("stale lockout state purged", logger.Count(n))
			}
		}
	}
}
