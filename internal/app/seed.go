package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/socialapp/backend/internal/auth"
	"github.com/socialapp/backend/internal/config"
	"github.com/socialapp/backend/internal/friendships"
	"github.com/socialapp/backend/internal/models"
)

const (
	defaultSeedUsers = 20
	seedTokenUsers   = 3
)

// graphSeeder is the subset of the friendship service used to build sample data.
type graphSeeder interface {
	SendFriendRequest(ctx context.Context, currentUserID, requesteeID string) (friendships.EdgeView, error)
	AcceptFriendRequest(ctx context.Context, currentUserID, requestID string) (friendships.EdgeView, error)
}

type seedSummary struct {
	Users    []models.UserSummary
	Accepted int
	Pending  int
}

// seedGraph creates count users and a random friendship graph between them.
// Requests go through the service so every edge obeys the normal lifecycle.
func seedGraph(ctx context.Context, users userWriter, service graphSeeder, faker *gofakeit.Faker, count int) (seedSummary, error) {
	var summary seedSummary
	for i := 0; i < count; i++ {
		id := faker.UUID()
		user := models.UserSummary{
			ID:        id,
			FullName:  faker.Name(),
			AvatarRef: "avatars/" + id + ".png",
		}
		if err := users.Create(ctx, user); err != nil {
			return summary, fmt.Errorf("create user %d: %w", i, err)
		}
		summary.Users = append(summary.Users, user)
	}

	if count < 2 {
		return summary, nil
	}

	for i, requester := range summary.Users {
		links := faker.Number(1, 4)
		for l := 0; l < links; l++ {
			j := faker.Number(0, count-1)
			if j == i {
				continue
			}
			requestee := summary.Users[j]

			edge, err := service.SendFriendRequest(ctx, requester.ID, requestee.ID)
			if errors.Is(err, friendships.ErrConflict) {
				continue
			}
			if err != nil {
				return summary, fmt.Errorf("send request %s -> %s: %w", requester.ID, requestee.ID, err)
			}

			if faker.Number(1, 100) <= 70 {
				if _, err := service.AcceptFriendRequest(ctx, requestee.ID, edge.ID); err != nil {
					return summary, fmt.Errorf("accept request %s: %w", edge.ID, err)
				}
				summary.Accepted++
				continue
			}
			summary.Pending++
		}
	}
	return summary, nil
}

func runSeed(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	count := defaultSeedUsers
	if len(args) > 0 {
		count, err = strconv.Atoi(args[0])
		if err != nil || count < 1 {
			return fmt.Errorf("invalid seed count %q", args[0])
		}
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	service, err := newService(ctx, cfg, b, nil)
	if err != nil {
		return err
	}

	summary, err := seedGraph(ctx, b.users, service, gofakeit.New(0), count)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d users, %d friendships, %d pending requests\n", len(summary.Users), summary.Accepted, summary.Pending)

	return printTokens(cfg, summary.Users)
}

// seedMemoryBackend fills an empty in-memory store so a fresh server has data.
func seedMemoryBackend(ctx context.Context, cfg config.Config, b *backend, service graphSeeder, logger *slog.Logger) error {
	summary, err := seedGraph(ctx, b.users, service, gofakeit.New(0), memorySeedUsers)
	if err != nil {
		return fmt.Errorf("seed in-memory store: %w", err)
	}
	logger.Info("seeded in-memory store",
		slog.Int("users", len(summary.Users)),
		slog.Int("friendships", summary.Accepted),
		slog.Int("pending", summary.Pending),
	)
	return printTokens(cfg, summary.Users)
}

func printTokens(cfg config.Config, users []models.UserSummary) error {
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	for i, user := range users {
		if i == seedTokenUsers {
			break
		}
		token, expires, err := verifier.Issue(user.ID)
		if err != nil {
			return fmt.Errorf("issue token for %s: %w", user.ID, err)
		}
		fmt.Printf("%s (%s) token, expires %s:\n%s\n", user.FullName, user.ID, expires.Format("2006-01-02 15:04"), token)
	}
	return nil
}
