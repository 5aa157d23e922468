// Package dto define los cuerpos de request/response de la API de sesiones.
package dto

import "time"

type LoginRequest struct {
	SubjectID string `json:"subject_id"`
	Password  string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest: el access token viaja en Authorization, el refresh en el body (opcional).
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenResponse sigue la forma de RFC 6749 §5.1 más los vencimientos absolutos.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type LogoutAllResponse struct {
	Revoked int `json:"revoked"`
}

type SessionItem struct {
	JTI       string    `json:"jti"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Address   string    `json:"addr,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

type SessionsResponse struct {
	Sessions []SessionItem `json:"sessions"`
}

type MeResponse struct {
	SubjectID string    `json:"subject_id"`
	Role      string    `json:"role"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}
