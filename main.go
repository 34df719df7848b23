package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s1natex/tasktracker/internal/auth"
	"github.com/s1natex/tasktracker/internal/config"
	"github.com/s1natex/tasktracker/internal/middleware"
	"github.com/s1natex/tasktracker/internal/tasks"
	"github.com/s1natex/tasktracker/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger) // for third-party packages that use slog

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.TraceExporter, cfg.ServiceName)
	if err != nil {
		logger.Error("tracing_setup_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Error("store_open_failed", slog.String("store", cfg.Store), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("store_ready", slog.String("store", cfg.Store))

	handler, err := newHandler(cfg, st, logger)
	if err != nil {
		logger.Error("server_setup_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("server_listen", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// stores close only after in-flight requests have drained
			"http-server": func(ctx context.Context) error {
				logger.Info("server_shutdown")
				err := srv.Shutdown(ctx)
				return errors.Join(err, st.close(ctx))
			},
			"tracing": shutdownTracing,
		},
	)

	exitCode := <-wait
	logger.Info("server_exit", slog.Int("code", exitCode))
	os.Exit(exitCode)
}

// newHandler builds the services on top of st and returns the router.
func newHandler(cfg config.Config, st stores, logger *slog.Logger) (http.Handler, error) {
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTTTL,
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		return nil, err
	}
	authSvc := auth.NewService(st.users, auth.NewPasswordHasher(0), tokens)
	taskSvc := tasks.NewService(st.tasks)
	return newRouter(cfg, authSvc, tokens, taskSvc, logger), nil
}

// newRouter wires the health and metrics endpoints, auth and task routes,
// and the middleware stack.
func newRouter(cfg config.Config, authSvc *auth.Service, verifier middleware.TokenVerifier, taskSvc *tasks.Service, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "traceparent"},
		ExposedHeaders:   []string{"X-Request-ID", "Trace-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", middleware.MetricsHandler())

	protect := middleware.AuthMiddleware(middleware.AuthConfig{Verifier: verifier, Realm: "tasktracker"})

	// credential endpoints are limited per client IP
	authLimiter := middleware.NewKeyedLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(authLimiter, middleware.ByClientIP))
		auth.RegisterRoutes(r, authSvc, protect, logger)
	})

	taskLimiter := middleware.NewKeyedLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Group(func(r chi.Router) {
		r.Use(protect)
		r.Use(middleware.RateLimitMiddleware(taskLimiter, middleware.ByIdentity))
		tasks.RegisterRoutes(r, taskSvc, logger)
	})

	return r
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
