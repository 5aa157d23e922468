// Package session orquesta login, rotación de refresh tokens y logout sobre
// el codec, el registro de revocación, el rate limiter y el lockout.
//
// Toda operación rechazada devuelve un *Denial; los errores que no son Denial
// son fallas internas (configuración o backend del directorio).
package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/audit"
	"github.com/dropDatabas3/sessionguard/internal/clock"
	"github.com/dropDatabas3/sessionguard/internal/identity"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	"github.com/dropDatabas3/sessionguard/internal/lockout"
	"github.com/dropDatabas3/sessionguard/internal/rate"
	"github.com/dropDatabas3/sessionguard/internal/revocation"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Codec es la parte de *jwt.Codec que usa el servicio.
type Codec interface {
	Issue(subject string, role jwtx.Role, kind jwtx.Kind, ttl time.Duration, meta jwtx.ClientMeta) (jwtx.Issued, error)
	Verify(token string, kind jwtx.Kind) (*jwtx.Claims, error)
}

// Credentials es un intento de login.
type Credentials struct {
	SubjectID string
	Secret    string
	Client    jwtx.ClientMeta
}

// Pair es el par de credenciales emitido por Login / Refresh.
type Pair struct {
	SubjectID        string    `json:"-"`
	Role             jwtx.Role `json:"-"`
	AccessToken      string    `json:"access_token"`
	AccessJTI        string    `json:"-"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshJTI       string    `json:"-"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Service es el emisor de sesiones.
type Service interface {
	// Login emite un par para un principal ya autenticado.
	Login(ctx context.Context, subjectID string, role jwtx.Role, meta jwtx.ClientMeta) (*Pair, error)
	// Authenticate aplica lockout + rate limit, verifica el secreto contra el directorio y emite.
	Authenticate(ctx context.Context, in Credentials) (*Pair, error)
	// Refresh rota: el refresh token recibido queda muerto y se emite un par nuevo.
	Refresh(ctx context.Context, refreshToken string, meta jwtx.ClientMeta) (*Pair, error)
	// Verify valida un access token (firma, expiración, blacklist).
	Verify(ctx context.Context, accessToken string) (*jwtx.Claims, error)
	// Logout revoca el access token y mata el refresh token. Idempotente.
	Logout(ctx context.Context, accessToken, refreshToken string) error
	// LogoutAll mata todos los refresh del subject y, si se pasan, blacklistea esos access tokens.
	LogoutAll(ctx context.Context, subjectID string, accessTokens ...string) (int, error)
	// Sessions lista los refresh tokens vivos del subject, del más nuevo al más viejo.
	Sessions(ctx context.Context, subjectID string) ([]revocation.RefreshRecord, error)
}

// Deps son las dependencias del servicio. Limiter, Lockout, Identity y Audit
// son opcionales; Identity es obligatorio para Authenticate.
type Deps struct {
	Codec      Codec
	Registry   revocation.Registry
	Limiter    rate.Limiter
	Lockout    *lockout.Tracker
	Identity   identity.Directory
	Audit      audit.Sink
	Clock      clock.Clock
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type service struct {
	deps Deps
}

// NewService valida las dependencias. Un error acá es fatal al arrancar.
func NewService(deps Deps) (Service, error) {
	if deps.Codec == nil {
		return nil, fmt.Errorf("%w: codec", ErrMissingDependency)
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	}
	if deps.AccessTTL == 0 {
		deps.AccessTTL = DefaultAccessTTL
	}
	if deps.RefreshTTL == 0 {
		deps.RefreshTTL = DefaultRefreshTTL
	}
	if deps.AccessTTL < 0 || deps.RefreshTTL < 0 {
		return nil, ErrInvalidTTL
	}
	if deps.RefreshTTL <= deps.AccessTTL {
		return nil, fmt.Errorf("%w: refresh ttl (%s) must exceed access ttl (%s)", ErrInvalidTTL, deps.RefreshTTL, deps.AccessTTL)
	}
	if deps.Audit == nil {
		deps.Audit = audit.Discard
	}
	deps.Clock = clock.OrSystem(deps.Clock)
	return &service{deps: deps}, nil
}

func (s *service) emit(e audit.Event) {
	e.Time = s.deps.Clock.Now()
	s.deps.Audit.Emit(e)
}

// mintPair firma access + refresh sin registrar nada.
func (s *service) mintPair(subjectID string, role jwtx.Role, meta jwtx.ClientMeta) (*Pair, revocation.RefreshRecord, error) {
	at, err := s.deps.Codec.Issue(subjectID, role, jwtx.KindAccess, s.deps.AccessTTL, meta)
	if err != nil {
		return nil, revocation.RefreshRecord{}, fmt.Errorf("issue access token: %w", err)
	}
	rt, err := s.deps.Codec.Issue(subjectID, role, jwtx.KindRefresh, s.deps.RefreshTTL, meta)
	if err != nil {
		return nil, revocation.RefreshRecord{}, fmt.Errorf("issue refresh token: %w", err)
	}
	rec := revocation.RefreshRecord{
		JTI:       rt.JTI,
		Role:      role,
		IssuedAt:  rt.IssuedAt,
		ExpiresAt: rt.ExpiresAt,
		Client:    meta,
	}
	return &Pair{
		SubjectID:        subjectID,
		Role:             role,
		AccessToken:      at.Token,
		AccessJTI:        at.JTI,
		AccessExpiresAt:  at.ExpiresAt,
		RefreshToken:     rt.Token,
		RefreshJTI:       rt.JTI,
		RefreshExpiresAt: rt.ExpiresAt,
	}, rec, nil
}

// issuePair emite access + refresh y registra el refresh como vivo.
func (s *service) issuePair(subjectID string, role jwtx.Role, meta jwtx.ClientMeta) (*Pair, error) {
	pair, rec, err := s.mintPair(subjectID, role, meta)
	if err != nil {
		return nil, err
	}
	s.deps.Registry.RecordRefreshToken(subjectID, pair.RefreshToken, rec)
	return pair, nil
}

func (s *service) Sessions(_ context.Context, subjectID string) ([]revocation.RefreshRecord, error) {
	recs := s.deps.Registry.ListRefreshTokens(subjectID)
	sort.Slice(recs, func(i, j int) bool { return recs[i].IssuedAt.After(recs[j].IssuedAt) })
	return recs, nil
}
