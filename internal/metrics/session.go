package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del núcleo de sesiones. Viven en un paquete propio para que audit,
// revocation y rate las usen sin ciclos de import con http.

var (
	AuditEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionguard_audit_events_total",
		Help: "Eventos de seguridad emitidos por tipo y resultado",
	}, []string{"event", "outcome"})

	AuditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessionguard_audit_dropped_total",
		Help: "Eventos de auditoría descartados por buffer lleno",
	})

	SweepEvicted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionguard_sweep_evicted_total",
		Help: "Entradas expiradas eliminadas por los barridos periódicos",
	}, []string{"store"})

	RateBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionguard_rate_blocks_total",
		Help: "Bloqueos del rate limiter establecidos por operación",
	}, []string{"operation"})

	Lockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessionguard_lockouts_total",
		Help: "Cuentas bloqueadas por intentos fallidos",
	})
)

// Register registra las métricas en reg (o el default si es nil). Ignora duplicados.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{AuditEvents, AuditDropped, SweepEvicted, RateBlocks, Lockouts} {
		if err := register(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterGauge expone fn como gauge (p.ej. tamaño de un store en memoria).
func RegisterGauge(reg prometheus.Registerer, name, help string, fn func() float64) error {
	return register(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}
