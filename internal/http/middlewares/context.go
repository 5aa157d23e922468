package middlewares

import (
	"context"

	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
)

type ctxKey string

const (
	ctxClaimsKey    ctxKey = "claims"
	ctxTokenKey     ctxKey = "access_token"
	ctxRequestIDKey ctxKey = "request_id"
	ctxClientKey    ctxKey = "client"
)

// WithClaims inyecta las claims del access token ya verificado.
func WithClaims(ctx context.Context, claims *jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, claims)
}

func withAccessToken(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, ctxTokenKey, raw)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

func withClient(ctx context.Context, meta jwtx.ClientMeta) context.Context {
	return context.WithValue(ctx, ctxClientKey, meta)
}

// GetClaims devuelve las claims del request o nil si RequireAuth no corrió.
func GetClaims(ctx context.Context) *jwtx.Claims {
	c, _ := ctx.Value(ctxClaimsKey).(*jwtx.Claims)
	return c
}

// GetAccessToken devuelve el bearer token crudo que validó RequireAuth.
func GetAccessToken(ctx context.Context) string {
	s, _ := ctx.Value(ctxTokenKey).(string)
	return s
}

// GetSubjectID es un atajo para GetClaims(ctx).Subject.
func GetSubjectID(ctx context.Context) string {
	if c := GetClaims(ctx); c != nil {
		return c.Subject
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}

// GetClient devuelve la metadata de cliente que cargó WithClientMeta.
func GetClient(ctx context.Context) jwtx.ClientMeta {
	m, _ := ctx.Value(ctxClientKey).(jwtx.ClientMeta)
	return m
}
