// Package rate limita intentos fallidos por identificador (normalmente la IP
// del cliente) y tipo de operación, con ventana deslizante y bloqueo duro.
//
// El reset por éxito es por (identificador, operación): un login correcto no
// limpia los fallos de refresh de la misma IP.
package rate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Operation es el tipo de operación limitada.
type Operation string

const (
	OpLogin    Operation = "login"
	OpRegister Operation = "register"
	OpRefresh  Operation = "refresh"
)

var ErrUnknownOperation = errors.New("rate: unknown operation")

// Policy: con MaxAttempts fallos dentro de Window el identificador queda
// bloqueado durante Block.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
	Block       time.Duration `yaml:"block"`
}

func (p Policy) validate() error {
	if p.MaxAttempts <= 0 || p.Window <= 0 || p.Block <= 0 {
		return fmt.Errorf("rate: invalid policy %+v", p)
	}
	return nil
}

// Policies mapea cada operación a su política.
type Policies map[Operation]Policy

// DefaultPolicies: login y register estrictos, refresh más laxo.
func DefaultPolicies() Policies {
	return Policies{
		OpLogin:    {MaxAttempts: 5, Window: 15 * time.Minute, Block: 15 * time.Minute},
		OpRegister: {MaxAttempts: 5, Window: time.Hour, Block: time.Hour},
		OpRefresh:  {MaxAttempts: 20, Window: 15 * time.Minute, Block: 15 * time.Minute},
	}
}

// Validate exige las tres operaciones con valores positivos.
func (ps Policies) Validate() error {
	for _, op := range []Operation{OpLogin, OpRegister, OpRefresh} {
		p, ok := ps[op]
		if !ok {
			return fmt.Errorf("rate: missing policy for %q", op)
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (ps Policies) get(op Operation) (Policy, error) {
	p, ok := ps[op]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	return p, nil
}

// BusyRetry es el hint que devuelve Reserve cuando la ventana ya está
// cubierta por intentos en curso.
const BusyRetry = time.Second

// Decision es el resultado de Check / Reserve / RecordFailure.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

func allowed() Decision { return Decision{Allowed: true} }

func blocked(d time.Duration) Decision { return Decision{RetryAfter: d} }

// RetryAfterSeconds redondea hacia arriba, mínimo 1 si está bloqueado.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// Limiter es el contrato común de memory y redis.
//
// RecordFailure devuelve Allowed=false cuando ese fallo enganchó un bloqueo
// nuevo; el siguiente Check del mismo identificador ya reporta Blocked.
// Reserve es Check más la reserva de un intento en curso: fallos más reservas
// nunca superan MaxAttempts. Con Allowed=true la reserva se cierra con
// RecordFailure, RecordSuccess o Release.
//
// Ante errores del backend las implementaciones devuelven Allowed=true junto
// con el error (fail-open); en ese caso no queda reserva abierta.
type Limiter interface {
	Check(ctx context.Context, identifier string, op Operation) (Decision, error)
	Reserve(ctx context.Context, identifier string, op Operation) (Decision, error)
	Release(ctx context.Context, identifier string, op Operation) error
	RecordFailure(ctx context.Context, identifier string, op Operation) (Decision, error)
	RecordSuccess(ctx context.Context, identifier string, op Operation) error
}

func bucketKey(identifier string, op Operation) string {
	return string(op) + "|" + strings.ReplaceAll(strings.TrimSpace(identifier), " ", "_")
}
