package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"matchConnectAPI/handlers"
	"matchConnectAPI/internal/config"
	"matchConnectAPI/internal/database"
	"matchConnectAPI/internal/logger"
	"matchConnectAPI/internal/metrics"
	notify "matchConnectAPI/internal/notification"
	"matchConnectAPI/internal/workers"
	"matchConnectAPI/middleware"
	"matchConnectAPI/services"
)

const serviceName = "matchConnect-api"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

type pingableStore interface {
	services.Store
	Ping(ctx context.Context) error
}

func runServe(ctx context.Context) error {
	verifier, err := buildVerifier()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	dispatcher := services.NewNotificationDispatcher(
		buildSinks(ctx),
		cfg.NotifyWorkers,
		cfg.NotifyQueueSize,
		cfg.NotifyMaxAttempts,
		cfg.NotifyRetryDelay,
	)
	defer dispatcher.Stop()

	requestService := services.NewRequestService(store, dispatcher, time.Now)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	cleanup := workers.NewQuotaCleanupWorker(store, 24*time.Hour, cfg.QuotaRetention(), cfg.QuotaLocation())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	middleware.InitPrometheus(reg)
	metrics.Register(reg)

	router := newRouter(routerDeps{
		requests:    handlers.NewRequestHandler(requestService),
		health:      handlers.NewHealthHandler(store, serviceName),
		verifier:    verifier,
		rateLimiter: rateLimiter,
		metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      corsHandler(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "addr", server.Addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return rateLimiter.CleanupVisitors(gctx)
	})

	g.Go(func() error {
		return cleanup.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("Server shutdown complete")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context) (pingableStore, func(), error) {
	policy := services.QuotaPolicy{
		Limit:    cfg.DailyRequestLimit,
		Location: cfg.QuotaLocation(),
	}

	if cfg.Storage == config.StorageMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return services.NewMemoryStore(policy), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if _, err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return services.NewPostgresStore(pool, policy), func() {
		logger.Info("Closing database connection pool...")
		pool.Close()
	}, nil
}

func buildSinks(ctx context.Context) []notify.Sink {
	sinks := []notify.Sink{notify.NewLogSink()}

	if cfg.FCMCredentialsB64 == "" && cfg.FCMCredentialsFile == "" {
		logger.Info("FCM not configured, push notifications disabled")
		return sinks
	}

	fcm, err := notify.NewFCMSink(ctx, cfg.FCMCredentialsB64, cfg.FCMCredentialsFile)
	if err != nil {
		logger.Warn("Could not initialize FCM", "error", err)
		return sinks
	}

	logger.Info("FCM push sink initialized successfully")
	return append(sinks, fcm)
}

// buildVerifier picks the token verifier. DevVerifier is only handed out
// when APP_ENV is explicitly development.
func buildVerifier() (middleware.TokenVerifier, error) {
	switch {
	case cfg.ClerkSecretKey != "":
		logger.Info("Auth: verifying Clerk session tokens")
		return middleware.NewClerkVerifier(cfg.ClerkSecretKey), nil
	case cfg.JWTSecret != "":
		logger.Info("Auth: verifying HS256 tokens")
		return middleware.NewHMACVerifier(cfg.JWTSecret), nil
	case cfg.IsDevelopment():
		logger.Warn("Auth: no verifier configured, trusting bearer value as user id (development only)")
		return middleware.DevVerifier{}, nil
	default:
		return nil, fmt.Errorf("no token verifier configured for APP_ENV=%q: set CLERK_SECRET_KEY or JWT_SECRET", cfg.AppEnv)
	}
}

type routerDeps struct {
	requests    *handlers.RequestHandler
	health      *handlers.HealthHandler
	verifier    middleware.TokenVerifier
	rateLimiter *middleware.RateLimiter
	metrics     http.Handler
}

func newRouter(deps routerDeps) *mux.Router {
	r := mux.NewRouter()

	r.Use(deps.rateLimiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(deps.metrics)).Methods("GET")
	r.HandleFunc("/health", deps.health.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(deps.verifier))

	protected.HandleFunc("/requests/send", deps.requests.SendRequest).Methods("POST")
	protected.HandleFunc("/requests/my-requests", deps.requests.GetMyRequests).Methods("GET")
	protected.HandleFunc("/requests/quota", deps.requests.GetQuota).Methods("GET")
	protected.HandleFunc("/requests/respond/{requestId}", deps.requests.RespondToRequest).Methods("PUT")
	protected.HandleFunc("/requests/{requestId}", deps.requests.GetRequest).Methods("GET")
	protected.HandleFunc("/requests/{requestId}", deps.requests.CancelRequest).Methods("DELETE")

	return r
}
