package friendships

import (
	"time"

	"github.com/socialapp/backend/internal/models"
)

// EdgeView is the caller-facing shape of a single friendship edge.
type EdgeView struct {
	ID          string                  `json:"id"`
	RequesterID string                  `json:"requesterId"`
	RequesteeID string                  `json:"requesteeId"`
	Status      models.FriendshipStatus `json:"status"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// UserView is the display projection of a user.
type UserView struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// FriendView is a single entry of a friend listing.
type FriendView struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	FriendsSince time.Time `json:"friendsSince"`
}

// RequestView is a pending request as seen by one of its endpoints.
type RequestView struct {
	RequestID   string                  `json:"requestId"`
	Counterpart UserView                `json:"counterpart"`
	Status      models.FriendshipStatus `json:"status"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// PageView is the fixed paginated envelope. PageNo is 1-based.
type PageView[T any] struct {
	Items      []T `json:"items"`
	PageNo     int `json:"pageNo"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
}

// NewFriendsView reports how many friendships were accepted within a window.
type NewFriendsView struct {
	Days  int `json:"days"`
	Count int `json:"count"`
}

func toEdgeView(edge models.FriendshipEdge) EdgeView {
	return EdgeView{
		ID:          edge.ID,
		RequesterID: edge.RequesterID,
		RequesteeID: edge.RequesteeID,
		Status:      edge.Status,
		CreatedAt:   edge.CreatedAt,
		UpdatedAt:   edge.UpdatedAt,
	}
}

func newPageView[T any, S any](page models.Page[S], items []T) PageView[T] {
	if items == nil {
		items = []T{}
	}
	return PageView[T]{
		Items:      items,
		PageNo:     page.Index + 1,
		PageSize:   page.Size,
		TotalPages: page.TotalPages(),
		TotalItems: page.Total,
	}
}
