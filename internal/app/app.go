// Package app arma el grafo de dependencias de sessiond a partir de la config.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/sessionguard/internal/audit"
	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/config"
	authctrl "github.com/dropDatabas3/sessionguard/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/sessionguard/internal/http/controllers/health"
	mw "github.com/dropDatabas3/sessionguard/internal/http/middlewares"
	"github.com/dropDatabas3/sessionguard/internal/http/router"
	"github.com/dropDatabas3/sessionguard/internal/identity"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/lockout"
	"github.com/dropDatabas3/sessionguard/internal/metrics"
	"github.com/dropDatabas3/sessionguard/internal/observability/logger"
	"github.com/dropDatabas3/sessionguard/internal/rate"
	"github.com/dropDatabas3/sessionguard/internal/revocation"
	"github.com/dropDatabas3/sessionguard/internal/session"
)

// Options permite inyectar piezas en tests. Todo es opcional.
type Options struct {
	Clock      clock.Clock
	Registerer prometheus.Registerer
	Directory  identity.Directory
	Redis      *rdb.Client
}

// Container agrupa todo lo construido por Build.
type Container struct {
	Config   *config.Config
	Handler  http.Handler
	Sessions session.Service
	Registry revocation.Registry
	Limiter  rate.Limiter
	Lockout  *lockout.Tracker

	audit   *audit.Async
	sentry  bool
	redis   *rdb.Client
	runners []func(ctx context.Context) error
}

// Build valida cfg y construye el container. No arranca goroutines: eso lo hace Run.
func Build(cfg *config.Config, opts Options) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	clk := clock.OrSystem(opts.Clock)
	log := logger.L().With(logger.Component("app"))
	c := &Container{Config: cfg}

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		Issuer:        cfg.JWT.Issuer,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
	}, clk)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}

	// Stores
	checks := map[string]healthctrl.Checker{}
	switch cfg.Store.Kind {
	case "redis":
		client := opts.Redis
		if client == nil {
			client = rdb.NewClient(&rdb.Options{
				Addr:     cfg.Store.Redis.Addr,
				DB:       cfg.Store.Redis.DB,
				Password: cfg.Store.Redis.Password,
			})
			c.redis = client
		}
		c.Registry = revocation.NewRedis(client, revocation.RedisOptions{Prefix: cfg.Store.Redis.Prefix, Clock: clk})
		lim, err := rate.NewRedisLimiter(client, cfg.Store.Redis.Prefix+"rl:", cfg.RatePolicies(), clk)
		if err != nil {
			return nil, fmt.Errorf("rate: %w", err)
		}
		c.Limiter = lim
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info("using redis stores", zap.String("addr", cfg.Store.Redis.Addr))
	default:
		mem := revocation.NewMemory(clk)
		c.Registry = mem
		lim, err := rate.NewMemoryLimiter(cfg.RatePolicies(), cfg.Rate.Retention, clk)
		if err != nil {
			return nil, fmt.Errorf("rate: %w", err)
		}
		c.Limiter = lim
		c.runners = append(c.runners,
			func(ctx context.Context) error { return revocation.Run(ctx, mem, cfg.Revocation.SweepInterval) },
			func(ctx context.Context) error { return lim.Run(ctx, cfg.Rate.SweepInterval) },
		)
		log.Info("using in-memory stores")
	}

	c.Lockout = lockout.New(cfg.LockoutConfig(), clk)
	c.runners = append(c.runners, func(ctx context.Context) error {
		return c.Lockout.Run(ctx, cfg.Lockout.SweepInterval)
	})

	dir := opts.Directory
	if dir == nil && cfg.Identity.UsersFile != "" {
		md, err := identity.LoadFile(cfg.Identity.UsersFile)
		if err != nil {
			return nil, fmt.Errorf("identity: %w", err)
		}
		log.Info("identity directory loaded", logger.Count(md.Len()))
		dir = md
	}
	if dir == nil {
		log.Warn("no identity directory configured, /v1/auth/login will fail")
	}

	// Auditoría: log + métricas + sentry (opcional), desacoplado del request
	sentrySink, err := audit.InitSentry(cfg.Audit.SentryDSN, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	sinks := []audit.Sink{audit.NewLogSink(logger.Named("audit")), audit.MetricsSink{}}
	if sentrySink != nil {
		sinks = append(sinks, sentrySink)
		c.sentry = true
	}
	c.audit = audit.NewAsync(audit.Multi(sinks...), cfg.Audit.Buffer)
	c.runners = append(c.runners, c.audit.Run)

	svc, err := session.NewService(session.Deps{
		Codec:      codec,
		Registry:   c.Registry,
		Limiter:    c.Limiter,
		Lockout:    c.Lockout,
		Identity:   dir,
		Audit:      c.audit,
		Clock:      clk,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	c.Sessions = svc

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		if metricsHandler, err = c.registerMetrics(opts.Registerer); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	c.Handler = router.New(router.Deps{
		Auth:        authctrl.NewControllers(svc, clk),
		Health:      healthctrl.NewController(cfg.App.Version, checks),
		Verifier:    svc,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
		TrustProxy:  cfg.Server.TrustProxy,
	})
	return c, nil
}

func (c *Container) registerMetrics(reg prometheus.Registerer) (http.Handler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h, err := mw.RegisterMetrics(reg)
	if err != nil {
		return nil, err
	}
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	type gauge struct {
		name, help string
		fn         func() float64
	}
	gauges := []gauge{
		{"sessionguard_blacklist_entries", "Access tokens en blacklist", func() float64 { return float64(c.Registry.Stats().BlacklistEntries) }},
		{"sessionguard_refresh_entries", "Refresh tokens vivos registrados", func() float64 { return float64(c.Registry.Stats().RefreshEntries) }},
		{"sessionguard_lockout_accounts", "Cuentas con intentos fallidos registrados", func() float64 { return float64(c.Lockout.Len()) }},
		{"sessionguard_audit_pending", "Eventos de auditoría en buffer", func() float64 { return float64(c.audit.Pending()) }},
	}
	if ml, ok := c.Limiter.(*rate.MemoryLimiter); ok {
		gauges = append(gauges, gauge{"sessionguard_rate_buckets", "Buckets del rate limiter en memoria", func() float64 { return float64(ml.Len()) }})
	}
	for _, g := range gauges {
		if err := metrics.RegisterGauge(reg, g.name, g.help, g.fn); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Run arranca los barridos y el pump de auditoría hasta que ctx se cancele.
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, run := range c.runners {
		run := run
		g.Go(func() error { return run(ctx) })
	}
	return g.Wait()
}

// Close libera conexiones y vacía sentry. Llamar después de que Run retorne.
func (c *Container) Close() error {
	if c.sentry {
		audit.FlushSentry()
	}
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
