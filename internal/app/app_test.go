package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/sessionguard/internal/config"
	"github.com/dropDatabas3/sessionguard/internal/identity"
	"github.com/dropDatabas3/sessionguard/internal/security/password"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.JWT.AccessSecret = strings.Repeat("a", 32)
	cfg.JWT.RefreshSecret = strings.Repeat("b", 32)
	cfg.Metrics.Enabled = true
	return cfg
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	_, err = Build(cfg, Options{})
	assert.ErrorIs(t, err, config.ErrMissingSecret)
}

func TestBuild_MemoryStackServesLoginAndMetrics(t *testing.T) {
	h, err := password.Hash(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}, "pw")
	require.NoError(t, err)
	dir, err := identity.NewMemoryDirectory(identity.User{ID: "u1", Role: "user", PasswordHash: h})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	c, err := Build(testConfig(t), Options{Registerer: reg, Directory: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"subject_id":"u1","password":"pw"}`))
	r.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	c.Handler.ServeHTTP(rr, r)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, c.Registry.Stats().RefreshEntries)

	rr = httptest.NewRecorder()
	c.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sessionguard_refresh_entries 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.NoError(t, c.Close())
}

func TestBuild_MissingUsersFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Identity.UsersFile = t.TempDir() + "/missing.yaml"
	_, err := Build(cfg, Options{Registerer: prometheus.NewRegistry()})
	assert.Error(t, err)
}
