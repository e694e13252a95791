package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchConnectAPI/handlers"
	"matchConnectAPI/internal/config"
	"matchConnectAPI/internal/logger"
	"matchConnectAPI/middleware"
	"matchConnectAPI/services"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger.InitNop()

	cfg = &config.Config{
		AppEnv:            config.EnvDevelopment,
		Storage:           config.StorageMemory,
		DailyRequestLimit: config.DefaultDailyLimit,
		QuotaTimezone:     config.DefaultQuotaTimezone,
		MetricsUser:       "prom",
		MetricsPass:       "secret",
	}

	store := services.NewMemoryStore(services.QuotaPolicy{Limit: cfg.DailyRequestLimit, Location: time.UTC})
	reg := prometheus.NewRegistry()

	return newRouter(routerDeps{
		requests:    handlers.NewRequestHandler(services.NewRequestService(store, nil, nil)),
		health:      handlers.NewHealthHandler(store, serviceName),
		verifier:    middleware.DevVerifier{},
		rateLimiter: middleware.NewRateLimiter(1000, 1000),
		metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
}

func TestRouter_Wiring(t *testing.T) {
	router := testRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		body       string
		basicAuth  bool
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics requires auth", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusUnauthorized},
		{name: "metrics with auth", method: http.MethodGet, path: "/metrics", basicAuth: true, wantStatus: http.StatusOK},
		{name: "requests need bearer", method: http.MethodGet, path: "/api/v1/requests/my-requests", wantStatus: http.StatusUnauthorized},
		{name: "my requests", method: http.MethodGet, path: "/api/v1/requests/my-requests", auth: "alice", wantStatus: http.StatusOK},
		{name: "quota", method: http.MethodGet, path: "/api/v1/requests/quota", auth: "alice", wantStatus: http.StatusOK},
		{name: "send", method: http.MethodPost, path: "/api/v1/requests/send", auth: "alice", body: `{"receiverId":"bob"}`, wantStatus: http.StatusCreated},
		{name: "unknown request", method: http.MethodDelete, path: "/api/v1/requests/6f1c1d1e-8c5f-4c43-9d0e-3f1a2b3c4d5e", auth: "alice", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", "Bearer "+tt.auth)
			}
			if tt.basicAuth {
				req.SetBasicAuth("prom", "secret")
			}
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestBuildVerifier(t *testing.T) {
	logger.InitNop()

	cfg = &config.Config{AppEnv: config.EnvProduction, JWTSecret: strings.Repeat("k", 32)}
	v, err := buildVerifier()
	require.NoError(t, err)
	_, ok := v.(*middleware.HMACVerifier)
	assert.True(t, ok)

	cfg = &config.Config{AppEnv: config.EnvDevelopment}
	v, err = buildVerifier()
	require.NoError(t, err)
	_, ok = v.(middleware.DevVerifier)
	assert.True(t, ok)
}

func TestBuildVerifier_RefusesDevVerifierOutsideDevelopment(t *testing.T) {
	logger.InitNop()

	for _, env := range []string{"", config.EnvProduction, "staging"} {
		cfg = &config.Config{AppEnv: env}
		v, err := buildVerifier()
		assert.Error(t, err, "APP_ENV=%q", env)
		assert.Nil(t, v)
	}
}

func TestOpenStore_Memory(t *testing.T) {
	logger.InitNop()
	cfg = &config.Config{Storage: config.StorageMemory, DailyRequestLimit: 3, QuotaTimezone: "UTC"}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store, closeStore, err := openStore(ctx)
	require.NoError(t, err)
	defer closeStore()

	assert.Equal(t, 3, store.DailyLimit())
	assert.NoError(t, store.Ping(ctx))
}
