package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	tokens "github.com/dropDatabas3/sessionguard/internal/security/token"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Errores de verificación. Malformed cubre estructura, firma, tipo e issuer;
// Expired solo se devuelve para tokens bien firmados cuyo exp ya pasó.
var (
	ErrMalformed = errors.New("token malformed")
	ErrExpired   = errors.New("token expired")
)

// Errores de configuración (fatales al arrancar).
var (
	ErrSecretTooShort = fmt.Errorf("signing secret must be at least %d bytes", tokens.MinSecretBytes)
	ErrSecretReused   = errors.New("access and refresh secrets must differ")
)

// CodecConfig agrupa issuer y secretos de firma.
type CodecConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
}

// Codec firma y verifica tokens HS256 con un secreto por Kind.
type Codec struct {
	iss     string
	secrets map[Kind][]byte
	clock   clock.Clock
}

// Issued es el resultado de Issue.
type Issued struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewCodec valida los secretos y construye el codec.
// Un error acá es ConfigurationFatal: el proceso no debe arrancar.
func NewCodec(cfg CodecConfig, c clock.Clock) (*Codec, error) {
	access := []byte(cfg.AccessSecret)
	refresh := []byte(cfg.RefreshSecret)
	if len(access) < tokens.MinSecretBytes {
		return nil, fmt.Errorf("access: %w", ErrSecretTooShort)
	}
	if len(refresh) < tokens.MinSecretBytes {
		return nil, fmt.Errorf("refresh: %w", ErrSecretTooShort)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrSecretReused
	}
	return &Codec{
		iss:     strings.TrimRight(cfg.Issuer, "/"),
		secrets: map[Kind][]byte{KindAccess: access, KindRefresh: refresh},
		clock:   clock.OrSystem(c),
	}, nil
}

// Issue emite un token nuevo con jti único.
func (c *Codec) Issue(subject string, role Role, kind Kind, ttl time.Duration, meta ClientMeta) (Issued, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return Issued{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if subject == "" {
		return Issued{}, errors.New("empty subject")
	}
	if ttl <= 0 {
		return Issued{}, fmt.Errorf("non-positive ttl %s", ttl)
	}

	now := c.clock.Now().Truncate(time.Second)
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    c.iss,
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	if kind == KindAccess {
		claims.Role = role
	}
	if !meta.IsZero() {
		m := meta
		claims.Client = &m
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, JTI: jti, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify valida firma, tipo, issuer y expiración.
func (c *Codec) Verify(token string, kind Kind) (*Claims, error) {
	secret, ok := c.secrets[kind]
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrMalformed
	}

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithTimeFunc(c.clock.Now),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
	}
	if c.iss != "" {
		opts = append(opts, jwtv5.WithIssuer(c.iss))
	}

	var claims Claims
	tk, err := jwtv5.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		// v5 verifica la firma antes que los claims: expired implica firma válida
		if onlyExpired(err) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !tk.Valid || claims.Kind != kind || claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	if kind == KindAccess && !claims.Role.Valid() {
		return nil, ErrMalformed
	}
	return &claims, nil
}

func onlyExpired(err error) bool {
	if !errors.Is(err, jwtv5.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwtv5.ErrTokenSignatureInvalid,
		jwtv5.ErrTokenInvalidIssuer,
		jwtv5.ErrTokenUsedBeforeIssued,
		jwtv5.ErrTokenNotValidYet,
		jwtv5.ErrTokenMalformed,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

// Inspect parsea sin verificar firma. Solo para tooling (sessionctl), nunca para autorizar.
func Inspect(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := jwtv5.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &claims, nil
}
