package logger

import (
	"time"

	"go.uber.org/zap"
)

// ───────── HTTP ─────────

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }
func RetryAfter(v time.Duration) zap.Field { return zap.Duration("retry_after", v) }
func Until(v time.Time) zap.Field { return zap.Time("until", v) }

// ───────── sesión ─────────

// SubjectID identifica al principal dueño de los tokens.
func SubjectID(v string) zap.Field { return zap.String("subject_id", v) }

// JTI es el identificador único del token (nunca el token crudo).
func JTI(v string) zap.Field { return zap.String("jti", v) }

// Fingerprint es sha256 base64url del token, para correlacionar sin exponerlo.
func Fingerprint(v string) zap.Field { return zap.String("token_fp", v) }

// TokenKind: access | refresh.
func TokenKind(v string) zap.Field { return zap.String("token_kind", v) }

// Identifier es la clave del rate limiter (normalmente la IP del cliente).
func Identifier(v string) zap.Field { return zap.String("identifier", v) }

// Operation es el tipo de operación limitada (login, register, refresh).
func Operation(v string) zap.Field { return zap.String("operation", v) }

// Outcome es el resultado de una operación de seguridad.
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// ───────── sistema ─────────

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field { return zap.Error(err) }
func Count(v int) zap.Field { return zap.Int("count", v) }
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
