package app

import (
	"context"
	"fmt"
	"time"

	"github.com/socialapp/backend/internal/auth"
	"github.com/socialapp/backend/internal/config"
	"github.com/socialapp/backend/internal/db"
	"github.com/socialapp/backend/internal/friendships"
	"github.com/socialapp/backend/internal/handlers"
	"github.com/socialapp/backend/internal/metrics"
	"github.com/socialapp/backend/internal/middleware"
	"github.com/socialapp/backend/internal/models"
	"github.com/socialapp/backend/internal/repositories"
	"github.com/socialapp/backend/internal/storage"
)

const rateLimitIdleTTL = 10 * time.Minute

type userWriter interface {
	Create(ctx context.Context, user models.UserSummary) error
}

// backend bundles the persistence collaborators selected by configuration.
type backend struct {
	store     repositories.RelationshipStore
	directory repositories.UserDirectory
	users     userWriter
	pinger    handlers.Pinger
	close     func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		directory := repositories.NewInMemoryUserDirectory()
		return &backend{
			store:     repositories.NewInMemoryRelationshipStore(),
			directory: directory,
			users:     directory,
			close:     func() {},
		}, nil
	case config.StorePostgres, "":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		directory := repositories.NewPostgresUserDirectory(pool)
		return &backend{
			store:     repositories.NewPostgresRelationshipStore(pool),
			directory: directory,
			users:     directory,
			pinger:    pool,
			close:     pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// newService builds the friendship service over the backend, caching directory
// lookups and resolving avatars when an object store is configured.
func newService(ctx context.Context, cfg config.Config, b *backend, observer friendships.Observer) (*friendships.Service, error) {
	directory := b.directory
	if cfg.DirectoryCacheTTL > 0 {
		directory = repositories.NewCachingUserDirectory(directory, cfg.DirectoryCacheTTL)
	}

	service := friendships.NewService(b.store, directory)
	service.DefaultPageSize = cfg.DefaultPageSize
	service.MaxPageSize = cfg.MaxPageSize
	service.Observer = observer

	if cfg.ObjectStore.Enabled() {
		resolver, err := storage.NewS3AvatarResolver(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		service.Avatars = resolver
	}
	return service, nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, cfg config.Config, b *backend, m *metrics.Metrics) (handlers.Dependencies, error) {
	service, err := newService(ctx, cfg, b, m)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	return handlers.Dependencies{
		Friendships: service,
		Tokens:      verifier,
		Limiter:     middleware.NewKeyedRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitBurst, rateLimitIdleTTL),
		Database:    b.pinger,
		Metrics:     m.Handler(),
	}, nil
}
