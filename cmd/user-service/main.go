package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jvaesteves/user-service/internal/auth"
	"github.com/jvaesteves/user-service/internal/config"
	"github.com/jvaesteves/user-service/internal/db"
	userHttp "github.com/jvaesteves/user-service/internal/handler/http"
	"github.com/jvaesteves/user-service/internal/metrics"
	"github.com/jvaesteves/user-service/internal/ratelimit"
	"github.com/jvaesteves/user-service/internal/session"
	userService "github.com/jvaesteves/user-service/internal/user"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg.App)
	log.Info().Str("port", cfg.App.Port).Msg("Starting user-service...")

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	if cfg.Postgres.AutoMigrate {
		if err := db.Migrate(cfg.Postgres); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database migrations")
		}
	}

	dbPool, err := db.New(startupCtx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	tokens, err := auth.NewTokenIssuer(cfg.Token.Secret, cfg.Token.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token issuer")
	}

	userRepository := userService.NewRepository(dbPool.Pool)
	userSvc := userService.NewService(userRepository, tokens, session.NewPolicy(cfg.Session.IdleTimeout))
	userHandler := userHttp.NewUserHandler(userSvc)

	var authMiddlewares []func(http.Handler) http.Handler
	if cfg.Redis.Enabled() {
		redisClient, err := ratelimit.NewRedisClient(startupCtx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Redis client")
			}
		}()

		policy := ratelimit.NewPolicy("auth", cfg.RateLimit.Window, cfg.RateLimit.IPLimit, cfg.RateLimit.EmailLimit)
		authMiddlewares = append(authMiddlewares, ratelimit.Middleware(policy, ratelimit.NewRedisStore(redisClient)))
	} else {
		log.Warn().Msg("REDIS_URL is not set, rate limiting is disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(userHttp.RequestLogger)
	router.Use(middleware.Recoverer)
	router.Use(httpMetrics.Middleware)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	userHandler.RegisterRoutes(router, authMiddlewares...)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.App.Port).Msg("Could not listen")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	dbPool.Close()

	log.Info().Msg("User-service stopped gracefully.")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(os.Stdout)
	if strings.EqualFold(cfg.LogFormat, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	name := cfg.Name
	if name == "" {
		name = "user-service"
	}
	log.Logger = logger.With().Timestamp().Str("service", name).Logger()
}
