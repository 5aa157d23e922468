// Package audit define los eventos de seguridad que emite el núcleo de sesiones
// y los sinks que los consumen (log, métricas, Sentry).
//
// Emit nunca bloquea ni falla la operación principal: los sinks lentos se
// envuelven en Async, que descarta cuando el buffer está lleno.
package audit

import (
	"time"
)

// EventType identifica la transición de seguridad.
type EventType string

const (
	LoginSuccess     EventType = "login.success"
	LoginFailure     EventType = "login.failure"
	TokenRefreshed   EventType = "token.refresh"
	TokenRotated     EventType = "token.rotated"
	TokenRevoked     EventType = "token.revoked"
	TokenRejected    EventType = "token.rejected"
	LogoutAll        EventType = "session.logout_all"
	LockoutEngaged   EventType = "lockout.engaged"
	LockoutCleared   EventType = "lockout.cleared"
	RateLimitBlocked EventType = "ratelimit.blocked"
)

// Severity ordena eventos para los sinks que filtran (Sentry).
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityWarn:
		return "warn"
	default:
		return "info"
	}
}

// Event es un registro estructurado de una transición.
type Event struct {
	Type       EventType
	SubjectID  string // vacío si no se conoce
	Identifier string // dirección del cliente u otra clave del limiter
	Operation  string // login | register | refresh | logout | verify
	Outcome    string // ok | malformed | expired | revoked | rate_limited | locked | invalid_credentials
	Reason     string
	JTI        string
	RetryAfter time.Duration
	Time       time.Time
}

// Severity deriva la severidad del evento: tokens forjados y bloqueos de
// cuenta pesan más que una expiración normal.
func (e Event) Severity() Severity {
	switch {
	case e.Outcome == "malformed":
		return SeverityHigh
	case e.Type == LockoutEngaged:
		return SeverityHigh
	case e.Type == LoginFailure, e.Type == RateLimitBlocked, e.Type == TokenRejected:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// Sink recibe eventos. Las implementaciones no deben bloquear.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapta una función a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard ignora todo.
var Discard Sink = SinkFunc(func(Event) {})

// Multi reparte cada evento a todos los sinks no nil.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return multi(out)
}

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
