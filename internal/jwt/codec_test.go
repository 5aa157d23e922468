package jwt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/sessionguard/internal/clock"
	jwtx "github.com/dropDatabas3/sessionguard/internal/jwt"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "access-secret-access-secret-0123456789"
	refreshSecret = "refresh-secret-refresh-secret-012345678"
)

func newCodec(t *testing.T) (*jwtx.Codec, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	c, err := jwtx.NewCodec(jwtx.CodecConfig{
		Issuer:        "https://auth.example.test/",
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
	}, fc)
	require.NoError(t, err)
	return c, fc
}

func TestNewCodec_ConfigErrors(t *testing.T) {
	_, err := jwtx.NewCodec(jwtx.CodecConfig{AccessSecret: "short", RefreshSecret: refreshSecret}, nil)
	assert.ErrorIs(t, err, jwtx.ErrSecretTooShort)

	_, err = jwtx.NewCodec(jwtx.CodecConfig{AccessSecret: accessSecret, RefreshSecret: ""}, nil)
	assert.ErrorIs(t, err, jwtx.ErrSecretTooShort)

	_, err = jwtx.NewCodec(jwtx.CodecConfig{AccessSecret: accessSecret, RefreshSecret: accessSecret}, nil)
	assert.ErrorIs(t, err, jwtx.ErrSecretReused)
}

func TestIssueVerify_Access(t *testing.T) {
	c, fc := newCodec(t)
	meta := jwtx.ClientMeta{Address: "10.0.0.1", UserAgent: "curl/8"}

	iss, err := c.Issue("u1", jwtx.RoleAdmin, jwtx.KindAccess, 15*time.Minute, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, iss.JTI)
	assert.Equal(t, fc.Now().Add(15*time.Minute), iss.ExpiresAt)

	claims, err := c.Verify(iss.Token, jwtx.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, iss.JTI, claims.ID)
	assert.Equal(t, jwtx.RoleAdmin, claims.Role)
	assert.Equal(t, jwtx.KindAccess, claims.Kind)
	assert.Equal(t, "https://auth.example.test", claims.Issuer)
	assert.Equal(t, meta, claims.Meta())
}

func TestIssue_UniqueJTI(t *testing.T) {
	c, _ := newCodec(t)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		iss, err := c.Issue("u1", jwtx.RoleUser, jwtx.KindRefresh, time.Hour, jwtx.ClientMeta{})
		require.NoError(t, err)
		require.False(t, seen[iss.JTI], "duplicated jti")
		seen[iss.JTI] = true
	}
}

func TestRefreshClaims_NoRole(t *testing.T) {
	c, _ := newCodec(t)
	iss, err := c.Issue("u1", jwtx.RoleAdmin, jwtx.KindRefresh, time.Hour, jwtx.ClientMeta{})
	require.NoError(t, err)
	claims, err := c.Verify(iss.Token, jwtx.KindRefresh)
	require.NoError(t, err)
	assert.Empty(t, claims.Role)
	assert.Nil(t, claims.Client)
}

func TestVerify_Expired(t *testing.T) {
	c, fc := newCodec(t)
	iss, err := c.Issue("u1", jwtx.RoleUser, jwtx.KindAccess, 10*time.Second, jwtx.ClientMeta{})
	require.NoError(t, err)

	fc.Advance(9 * time.Second)
	_, err = c.Verify(iss.Token, jwtx.KindAccess)
	require.NoError(t, err)

	fc.Advance(time.Second)
	_, err = c.Verify(iss.Token, jwtx.KindAccess)
	assert.ErrorIs(t, err, jwtx.ErrExpired)
	assert.NotErrorIs(t, err, jwtx.ErrMalformed)
}

func TestVerify_WrongKindIsMalformed(t *testing.T) {
	c, _ := newCodec(t)
	rt, err := c.Issue("u1", jwtx.RoleUser, jwtx.KindRefresh, time.Hour, jwtx.ClientMeta{})
	require.NoError(t, err)

	// distinto secreto: la firma no verifica como access
	_, err = c.Verify(rt.Token, jwtx.KindAccess)
	assert.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestVerify_ForgedWithRefreshSecretClaimingAccess(t *testing.T) {
	c, _ := newCodec(t)
	now := time.Now()
	forged := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtx.Claims{
		Kind: jwtx.KindAccess,
		Role: jwtx.RoleSuperuser,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    "https://auth.example.test",
			Subject:   "attacker",
			ID:        "x",
			ExpiresAt: jwtv5.NewNumericDate(now.Add(time.Hour)),
		},
	})
	s, err := forged.SignedString([]byte(refreshSecret))
	require.NoError(t, err)

	_, err = c.Verify(s, jwtx.KindAccess)
	assert.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestVerify_TamperedAndGarbage(t *testing.T) {
	c, fc := newCodec(t)
	iss, err := c.Issue("u1", jwtx.RoleUser, jwtx.KindAccess, time.Minute, jwtx.ClientMeta{})
	require.NoError(t, err)

	parts := strings.Split(iss.Token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	for _, tok := range []string{"", "   ", "abc", "a.b.c", tampered} {
		_, err := c.Verify(tok, jwtx.KindAccess)
		assert.ErrorIs(t, err, jwtx.ErrMalformed, tok)
	}

	// firma rota y además expirado: sigue siendo malformed, nunca "expired"
	fc.Advance(2 * time.Minute)
	_, err = c.Verify(tampered, jwtx.KindAccess)
	assert.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestVerify_NoneAlgRejected(t *testing.T) {
	c, _ := newCodec(t)
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, jwtx.Claims{
		Kind: jwtx.KindAccess,
		Role: jwtx.RoleAdmin,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   "u1",
			ID:        "j",
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tk.SignedString(jwtv5.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Verify(s, jwtx.KindAccess)
	assert.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestParseRole(t *testing.T) {
	r, err := jwtx.ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, jwtx.RoleAdmin, r)

	r, err = jwtx.ParseRole("standard")
	require.NoError(t, err)
	assert.Equal(t, jwtx.RoleUser, r)

	_, err = jwtx.ParseRole("root")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	c, _ := newCodec(t)
	iss, err := c.Issue("u9", jwtx.RoleUser, jwtx.KindRefresh, time.Hour, jwtx.ClientMeta{})
	require.NoError(t, err)
	claims, err := jwtx.Inspect(iss.Token)
	require.NoError(t, err)
	assert.Equal(t, "u9", claims.Subject)
	assert.Equal(t, jwtx.KindRefresh, claims.Kind)
}
