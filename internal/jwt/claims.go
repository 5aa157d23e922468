package jwt

import (
	"fmt"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Kind distingue access de refresh. Cada uno se firma con su propio secreto.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool { return k == KindAccess || k == KindRefresh }

// Role es el rol del principal al momento de emitir. Conjunto cerrado.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}

// ParseRole normaliza y valida un rol ("standard" se acepta como alias de user).
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "standard":
		return RoleUser, nil
	default:
		if r.Valid() {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ClientMeta describe el cliente que originó la emisión. Todos los campos son opcionales.
type ClientMeta struct {
	Address   string `json:"addr,omitempty"`
	UserAgent string `json:"ua,omitempty"`
}

func (m ClientMeta) IsZero() bool { return m.Address == "" && m.UserAgent == "" }

// Claims es el set de claims de ambos tipos de token.
// Role solo viaja en access tokens.
type Claims struct {
	Kind   Kind        `json:"token_use"`
	Role   Role        `json:"role,omitempty"`
	Client *ClientMeta `json:"cli,omitempty"`
	jwtv5.RegisteredClaims
}

// Meta devuelve la metadata del cliente (zero value si no vino).
func (c *Claims) Meta() ClientMeta {
	if c == nil || c.Client == nil {
		return ClientMeta{}
	}
	return *c.Client
}
