package repositories

import (
	"context"

	"github.com/socialapp/backend/internal/models"
)

// UserDirectory resolves user ids to existence and display summaries.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Get(ctx context.Context, userID string) (models.UserSummary, error)
	// GetMany returns the summaries that exist; unknown ids are omitted.
	GetMany(ctx context.Context, userIDs []string) (map[string]models.UserSummary, error)
}
