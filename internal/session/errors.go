package session

import (
	"errors"
	"fmt"
	"time"
)

// Outcome clasifica el rechazo de una operación.
type Outcome string

const (
	OutcomeMalformed          Outcome = "malformed"
	OutcomeExpired            Outcome = "expired"
	OutcomeRevoked            Outcome = "revoked"
	OutcomeRateLimited        Outcome = "rate_limited"
	OutcomeLocked             Outcome = "locked"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	// OutcomeReauthenticate es la vista pública de Malformed/Expired/Revoked.
	OutcomeReauthenticate Outcome = "reauthenticate"
)

// Denial es el resultado tipado de toda operación rechazada. Nunca se entra
// en pánico por un rechazo: el caller hace errors.Is / errors.As.
type Denial struct {
	Outcome    Outcome
	RetryAfter time.Duration // RateLimited / Locked
	Until      time.Time     // Locked
}

func (d *Denial) Error() string {
	if d.RetryAfter > 0 {
		return fmt.Sprintf("session: %s (retry after %s)", d.Outcome, d.RetryAfter)
	}
	return "session: " + string(d.Outcome)
}

// Is compara por Outcome, así errors.Is(err, ErrLocked) matchea cualquier bloqueo.
func (d *Denial) Is(target error) bool {
	t, ok := target.(*Denial)
	return ok && t.Outcome == d.Outcome
}

// Sentinels para errors.Is.
var (
	ErrMalformed          = &Denial{Outcome: OutcomeMalformed}
	ErrExpired            = &Denial{Outcome: OutcomeExpired}
	ErrRevoked            = &Denial{Outcome: OutcomeRevoked}
	ErrRateLimited        = &Denial{Outcome: OutcomeRateLimited}
	ErrLocked             = &Denial{Outcome: OutcomeLocked}
	ErrInvalidCredentials = &Denial{Outcome: OutcomeInvalidCredentials}
	ErrReauthenticate     = &Denial{Outcome: OutcomeReauthenticate}
)

// Errores de construcción (ConfigurationFatal).
var (
	ErrMissingDependency = errors.New("session: missing dependency")
	ErrInvalidTTL        = errors.New("session: invalid ttl")
)

func deny(o Outcome) *Denial { return &Denial{Outcome: o} }

// OutcomeOf extrae el Outcome de err ("" si no es un Denial).
func OutcomeOf(err error) Outcome {
	var d *Denial
	if errors.As(err, &d) {
		return d.Outcome
	}
	return ""
}

// Public colapsa Malformed/Expired/Revoked en un único Reauthenticate para no
// revelar qué chequeo falló. RateLimited, Locked e InvalidCredentials pasan tal cual.
func Public(err error) error {
	switch OutcomeOf(err) {
	case OutcomeMalformed, OutcomeExpired, OutcomeRevoked:
		return ErrReauthenticate
	}
	return err
}
