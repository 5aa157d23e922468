package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/lockout"
	"github.com/dropDatabas3/sessionguard/internal/rate"
	tokens "github.com/dropDatabas3/sessionguard/internal/security/token"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		// Si true, la IP del cliente sale de X-Forwarded-For.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	JWT struct {
		Issuer        string        `yaml:"issuer"`
		AccessSecret  string        `yaml:"access_secret"`
		RefreshSecret string        `yaml:"refresh_secret"`
		AccessTTL     time.Duration `yaml:"access_ttl"`
		RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Rate struct {
		Login         rate.Policy   `yaml:"login"`
		Register      rate.Policy   `yaml:"register"`
		Refresh       rate.Policy   `yaml:"refresh"`
		Retention     time.Duration `yaml:"retention"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"rate"`

	Lockout struct {
		Threshold     int           `yaml:"threshold"`
		Duration      time.Duration `yaml:"duration"`
		Retention     time.Duration `yaml:"retention"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"lockout"`

	Revocation struct {
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"revocation"`

	Store struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Identity struct {
		UsersFile string `yaml:"users_file"`
	} `yaml:"identity"`

	Audit struct {
		Buffer    int    `yaml:"buffer"`
		SentryDSN string `yaml:"sentry_dsn"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load lee path (si no es vacío), completa defaults y aplica las variables de
// entorno. No valida: el caller llama Validate.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

func defPolicy(p *rate.Policy, def rate.Policy) {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Window == 0 {
		p.Window = def.Window
	}
	if p.Block == 0 {
		p.Block = def.Block
	}
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "sessiond"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "sessionguard"
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTTL == 0 {
		c.JWT.RefreshTTL = 168 * time.Hour // 7d
	}

	defs := rate.DefaultPolicies()
	defPolicy(&c.Rate.Login, defs[rate.OpLogin])
	defPolicy(&c.Rate.Register, defs[rate.OpRegister])
	defPolicy(&c.Rate.Refresh, defs[rate.OpRefresh])
	if c.Rate.Retention == 0 {
		c.Rate.Retention = time.Hour
	}
	if c.Rate.SweepInterval == 0 {
		c.Rate.SweepInterval = 5 * time.Minute
	}

	if c.Lockout.Threshold == 0 {
		c.Lockout.Threshold = lockout.DefaultThreshold
	}
	if c.Lockout.Duration == 0 {
		c.Lockout.Duration = lockout.DefaultDuration
	}
	if c.Lockout.Retention == 0 {
		c.Lockout.Retention = lockout.DefaultRetention
	}
	if c.Lockout.SweepInterval == 0 {
		c.Lockout.SweepInterval = 10 * time.Minute
	}

	if c.Revocation.SweepInterval == 0 {
		c.Revocation.SweepInterval = time.Minute
	}

	if c.Store.Kind == "" {
		c.Store.Kind = "memory"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "sg:"
	}

	if c.Audit.Buffer == 0 {
		c.Audit.Buffer = 1024
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func envPolicy(prefix string, p *rate.Policy) {
	if v, ok := getEnvInt(prefix + "_MAX_ATTEMPTS"); ok {
		p.MaxAttempts = v
	}
	if v, ok := getEnvDur(prefix + "_WINDOW"); ok {
		p.Window = v
	}
	if v, ok := getEnvDur(prefix + "_BLOCK"); ok {
		p.Block = v
	}
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvBool("SERVER_TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_SECRET"); ok {
		c.JWT.AccessSecret = v
	}
	if v, ok := getEnvStr("JWT_REFRESH_SECRET"); ok {
		c.JWT.RefreshSecret = v
	}
	if v, ok := getEnvDur("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvDur("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// RATE
	envPolicy("RATE_LOGIN", &c.Rate.Login)
	envPolicy("RATE_REGISTER", &c.Rate.Register)
	envPolicy("RATE_REFRESH", &c.Rate.Refresh)

	// LOCKOUT
	if v, ok := getEnvInt("LOCKOUT_THRESHOLD"); ok {
		c.Lockout.Threshold = v
	}
	if v, ok := getEnvDur("LOCKOUT_DURATION"); ok {
		c.Lockout.Duration = v
	}

	// STORE
	if v, ok := getEnvStr("STORE_KIND"); ok {
		c.Store.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Store.Redis.Password = v
	}

	if v, ok := getEnvStr("IDENTITY_USERS_FILE"); ok {
		c.Identity.UsersFile = v
	}
	if v, ok := getEnvStr("SENTRY_DSN"); ok {
		c.Audit.SentryDSN = v
	}
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

// Errores de validación. Cualquiera de ellos es fatal al arrancar.
var (
	ErrMissingSecret = errors.New("jwt secret missing")
	ErrWeakSecret    = fmt.Errorf("jwt secret shorter than %d bytes", tokens.MinSecretBytes)
	ErrSharedSecret  = errors.New("jwt access and refresh secrets must differ")
	ErrInvalidTTL    = errors.New("jwt ttl invalid")
	ErrInvalidStore  = errors.New("store config invalid")
	ErrInvalidRate   = errors.New("rate config invalid")
)

// Validate junta todos los problemas en un solo error.
func (c *Config) Validate() error {
	var errs []error

	for name, s := range map[string]string{"access": c.JWT.AccessSecret, "refresh": c.JWT.RefreshSecret} {
		switch {
		case s == "":
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrMissingSecret))
		case len(s) < tokens.MinSecretBytes:
			errs = append(errs, fmt.Errorf("%s: %w", name, ErrWeakSecret))
		}
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, ErrSharedSecret)
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		errs = append(errs, fmt.Errorf("%w: access=%s refresh=%s", ErrInvalidTTL, c.JWT.AccessTTL, c.JWT.RefreshTTL))
	}

	if err := c.RatePolicies().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidRate, err))
	}
	if c.Lockout.Threshold <= 0 || c.Lockout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("lockout: threshold and duration must be positive"))
	}

	switch c.Store.Kind {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("%w: redis addr required", ErrInvalidStore))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown kind %q", ErrInvalidStore, c.Store.Kind))
	}
	return errors.Join(errs...)
}

// RatePolicies arma el mapa de políticas del limiter.
func (c *Config) RatePolicies() rate.Policies {
	return rate.Policies{
		rate.OpLogin:    c.Rate.Login,
		rate.OpRegister: c.Rate.Register,
		rate.OpRefresh:  c.Rate.Refresh,
	}
}

// LockoutConfig arma la config del tracker.
func (c *Config) LockoutConfig() lockout.Config {
	return lockout.Config{Threshold: c.Lockout.Threshold, Duration: c.Lockout.Duration, Retention: c.Lockout.Retention}
}

// IsProd: app.env == prod.
func (c *Config) IsProd() bool { return c.App.Env == "prod" || c.App.Env == "production" }
