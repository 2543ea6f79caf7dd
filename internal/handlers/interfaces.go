package handlers

import (
	"context"

	"github.com/socialapp/backend/internal/friendships"
)

// FriendshipService captures the relationship operations exposed over HTTP.
type FriendshipService interface {
	SendFriendRequest(ctx context.Context, currentUserID, requesteeID string) (friendships.EdgeView, error)
	AcceptFriendRequest(ctx context.Context, currentUserID, requestID string) (friendships.EdgeView, error)
	RejectFriendRequest(ctx context.Context, currentUserID, requestID string) (friendships.EdgeView, error)
	Unfriend(ctx context.Context, currentUserID, otherUserID string) error
	GetFriendship(ctx context.Context, currentUserID, otherUserID string) (friendships.EdgeView, error)
	GetFriends(ctx context.Context, currentUserID string, pageNo, pageSize int) (friendships.PageView[friendships.FriendView], error)
	GetFriendRequests(ctx context.Context, currentUserID string, pageNo, pageSize int) (friendships.PageView[friendships.RequestView], error)
	GetFriendRequestsToUser(ctx context.Context, currentUserID string, pageNo, pageSize int) (friendships.PageView[friendships.RequestView], error)
	CountNewFriends(ctx context.Context, currentUserID string, days int) (friendships.NewFriendsView, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
