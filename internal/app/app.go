package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/socialapp/backend/internal/config"
	"github.com/socialapp/backend/internal/handlers"
	"github.com/socialapp/backend/internal/httpserver"
	"github.com/socialapp/backend/internal/logging"
	"github.com/socialapp/backend/internal/metrics"
	"github.com/socialapp/backend/internal/middleware"
)

const memorySeedUsers = 20

// Run bootstraps the social backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	m := metrics.New()
	deps, err := buildDependencies(ctx, cfg, b, m)
	if err != nil {
		return err
	}

	if cfg.Store == config.StoreMemory {
		if err := seedMemoryBackend(ctx, cfg, b, deps.Friendships, logger); err != nil {
			return err
		}
	}

	srv := httpserver.New(cfg.AppPort, newHandler(cfg, deps, m, logger), httpserver.Options{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	})

	logger.Info("starting http server", "port", cfg.AppPort, "store", cfg.Store)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-srvErr:
		if err != nil {
			return err
		}
		return nil
	}

	return srv.ShutdownWithin(cfg.ShutdownTimeout)
}

// newHandler assembles the router and the outer middleware chain.
func newHandler(cfg config.Config, deps handlers.Dependencies, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RouteTemplate())
	handlers.RegisterRoutes(router, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})

	return middleware.RequestLogger(logger)(middleware.Metrics(m)(corsHandler.Handler(router)))
}
