package repositories

import (
	"context"
	"time"

	"github.com/socialapp/backend/internal/models"
)

// RelationshipStore defines data access for friendship edges. Every method is a
// single atomic round trip; callers never read-then-write outside of these.
type RelationshipStore interface {
	// FindEdge returns the edge between a and b regardless of direction.
	FindEdge(ctx context.Context, a, b string) (models.FriendshipEdge, error)
	GetEdge(ctx context.Context, edgeID string) (models.FriendshipEdge, error)
	FindAcceptedFriends(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendLink], error)
	FindPendingOutgoing(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendshipEdge], error)
	FindPendingIncoming(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendshipEdge], error)
	// InsertEdge stores a new edge, returning ErrConflict when the unordered pair
	// already has a live (non-rejected) edge.
	InsertEdge(ctx context.Context, edge models.FriendshipEdge) (models.FriendshipEdge, error)
	// ConditionalUpdateStatus moves the edge from expected to next only when
	// requesteeID owns it and the current status still matches.
	ConditionalUpdateStatus(ctx context.Context, edgeID, requesteeID string, expected, next models.FriendshipStatus, at time.Time) (bool, error)
	// DeleteEdge removes the edge only if its status still matches expected.
	DeleteEdge(ctx context.Context, edgeID string, expected models.FriendshipStatus) (bool, error)
	CountAcceptedSince(ctx context.Context, userID string, since time.Time) (int, error)
}
