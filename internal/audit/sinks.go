package audit

import (
	"time"

	"github.com/dropDatabas3/sessionguard/internal/metrics"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink escribe cada evento como una línea estructurada.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink usa l, o logger.Named("audit") si l es nil.
func NewLogSink(l *zap.Logger) *LogSink {
	if l == nil {
		l = logger.Named("audit")
	}
	return &LogSink{log: l}
}

func (s *LogSink) Emit(e Event) {
	lvl := zapcore.InfoLevel
	switch e.Severity() {
	case SeverityHigh:
		lvl = zapcore.ErrorLevel
	case SeverityWarn:
		lvl = zapcore.WarnLevel
	}
	fields := []zap.Field{
		zap.String("event", string(e.Type)),
		logger.Outcome(e.Outcome),
		zap.Time("ts", e.Time),
	}
	if e.SubjectID != "" {
		fields = append(fields, logger.SubjectID(e.SubjectID))
	}
	if e.Identifier != "" {
		fields = append(fields, logger.Identifier(e.Identifier))
	}
	if e.Operation != "" {
		fields = append(fields, logger.Operation(e.Operation))
	}
	if e.JTI != "" {
		fields = append(fields, logger.JTI(e.JTI))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	if e.RetryAfter > 0 {
		fields = append(fields, logger.RetryAfter(e.RetryAfter))
	}
	if ce := s.log.Check(lvl, "audit"); ce != nil {
		ce.Write(fields...)
	}
}

// MetricsSink cuenta eventos en Prometheus.
type MetricsSink struct{}

func (MetricsSink) Emit(e Event) {
	metrics.AuditEvents.WithLabelValues(string(e.Type), e.Outcome).Inc()
	switch e.Type {
	case LockoutEngaged:
		metrics.Lockouts.Inc()
	case RateLimitBlocked:
		metrics.RateBlocks.WithLabelValues(e.Operation).Inc()
	}
}

// capturer es la parte de *sentry.Hub que usamos.
type capturer interface {
	CaptureEvent(event *sentry.Event) *sentry.EventID
}

// SentrySink reenvía a Sentry los eventos con severidad >= min.
type SentrySink struct {
	hub capturer
	min Severity
}

// InitSentry inicializa el cliente global. dsn vacío = deshabilitado (nil, nil).
func InitSentry(dsn, environment string) (*SentrySink, error) {
	if dsn == "" {
		return nil, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: false,
	}); err != nil {
		return nil, err
	}
	return NewSentrySink(sentry.CurrentHub(), SeverityWarn), nil
}

// FlushSentry espera a que se envíen los eventos pendientes.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

func NewSentrySink(hub capturer, min Severity) *SentrySink {
	return &SentrySink{hub: hub, min: min}
}

func (s *SentrySink) Emit(e Event) {
	if s == nil || s.hub == nil || e.Severity() < s.min {
		return
	}
	lvl := sentry.LevelWarning
	if e.Severity() == SeverityHigh {
		lvl = sentry.LevelError
	}
	ev := sentry.NewEvent()
	ev.Level = lvl
	ev.Message = string(e.Type) + ": " + e.Outcome
	ev.Timestamp = e.Time
	ev.Tags = map[string]string{
		"event":     string(e.Type),
		"outcome":   e.Outcome,
		"operation": e.Operation,
	}
	ev.Extra = map[string]any{
		"identifier": e.Identifier,
		"reason":     e.Reason,
	}
	if e.SubjectID != "" {
		ev.User = sentry.User{ID: e.SubjectID, IPAddress: e.Identifier}
	}
	s.hub.CaptureEvent(ev)
}
