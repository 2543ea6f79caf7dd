package models

import "time"

// FriendshipStatus enumerates the lifecycle states of a friendship edge.
type FriendshipStatus string

const (
	StatusPending  FriendshipStatus = "PENDING"
	StatusAccepted FriendshipStatus = "ACCEPTED"
	StatusRejected FriendshipStatus = "REJECTED"
)

// Valid reports whether s is one of the known statuses.
func (s FriendshipStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// UserSummary is the read-only projection of a user supplied by the directory.
type UserSummary struct {
	ID        string
	FullName  string
	AvatarRef string
	CreatedAt time.Time
}

// FriendshipEdge is a single relationship record between two users. Storage is
// directional (who initiated) but accepted edges are symmetric for reads.
type FriendshipEdge struct {
	ID          string
	RequesterID string
	RequesteeID string
	Status      FriendshipStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Involves reports whether userID is either endpoint of the edge.
func (e FriendshipEdge) Involves(userID string) bool {
	return e.RequesterID == userID || e.RequesteeID == userID
}

// Counterpart returns the endpoint that is not userID.
func (e FriendshipEdge) Counterpart(userID string) string {
	if e.RequesterID == userID {
		return e.RequesteeID
	}
	return e.RequesterID
}

// PairKey orders the two endpoints so the unordered pair has a single representation.
func PairKey(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// FriendLink is the counterpart of an accepted edge as seen from one user.
type FriendLink struct {
	UserID string
	EdgeID string
	Since  time.Time
}

// PageRequest addresses a zero-based page of results.
type PageRequest struct {
	Index int
	Size  int
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Index * p.Size
}

// Page is a slice of results along with the total number of matching rows.
type Page[T any] struct {
	Items []T
	Index int
	Size  int
	Total int
}

// TotalPages returns the number of pages of Size needed to hold Total rows.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// Paginate slices items according to req. Used by in-memory stores.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	page := Page[T]{Index: req.Index, Size: req.Size, Total: len(items)}
	start := req.Offset()
	if start < 0 || start >= len(items) || req.Size <= 0 {
		page.Items = []T{}
		return page
	}
	end := start + req.Size
	if end > len(items) || end < start {
		end = len(items)
	}
	page.Items = append([]T(nil), items[start:end]...)
	return page
}
