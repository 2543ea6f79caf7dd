package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/socialapp/backend/internal/models"
)

type pairKey struct {
	low  string
	high string
}

// InMemoryRelationshipStore keeps edges in process memory. It enforces the same
// pair uniqueness and conditional transitions as the PostgreSQL store.
type InMemoryRelationshipStore struct {
	mu     sync.RWMutex
	edges  map[string]models.FriendshipEdge
	byPair map[pairKey]string
}

// NewInMemoryRelationshipStore constructs an empty store.
func NewInMemoryRelationshipStore() *InMemoryRelationshipStore {
	return &InMemoryRelationshipStore{
		edges:  make(map[string]models.FriendshipEdge),
		byPair: make(map[pairKey]string),
	}
}

func keyFor(a, b string) pairKey {
	low, high := models.PairKey(a, b)
	return pairKey{low: low, high: high}
}

func (s *InMemoryRelationshipStore) FindEdge(ctx context.Context, a, b string) (models.FriendshipEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[keyFor(a, b)]
	if !ok {
		return models.FriendshipEdge{}, ErrNotFound
	}
	return s.edges[id], nil
}

func (s *InMemoryRelationshipStore) GetEdge(ctx context.Context, edgeID string) (models.FriendshipEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[edgeID]
	if !ok {
		return models.FriendshipEdge{}, ErrNotFound
	}
	return edge, nil
}

func (s *InMemoryRelationshipStore) FindAcceptedFriends(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendLink], error) {
	s.mu.RLock()
	matches := s.collect(func(e models.FriendshipEdge) bool {
		return e.Status == models.StatusAccepted && e.Involves(userID)
	})
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	links := make([]models.FriendLink, 0, len(matches))
	for _, edge := range matches {
		links = append(links, models.FriendLink{
			UserID: edge.Counterpart(userID),
			EdgeID: edge.ID,
			Since:  edge.UpdatedAt,
		})
	}
	return models.Paginate(links, page), nil
}

func (s *InMemoryRelationshipStore) FindPendingOutgoing(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendshipEdge], error) {
	return s.pending(func(e models.FriendshipEdge) bool { return e.RequesterID == userID }, page), nil
}

func (s *InMemoryRelationshipStore) FindPendingIncoming(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendshipEdge], error) {
	return s.pending(func(e models.FriendshipEdge) bool { return e.RequesteeID == userID }, page), nil
}

func (s *InMemoryRelationshipStore) pending(match func(models.FriendshipEdge) bool, page models.PageRequest) models.Page[models.FriendshipEdge] {
	s.mu.RLock()
	matches := s.collect(func(e models.FriendshipEdge) bool {
		return e.Status == models.StatusPending && match(e)
	})
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return models.Paginate(matches, page)
}

// collect must be called with the read lock held.
func (s *InMemoryRelationshipStore) collect(match func(models.FriendshipEdge) bool) []models.FriendshipEdge {
	var out []models.FriendshipEdge
	for _, edge := range s.edges {
		if match(edge) {
			out = append(out, edge)
		}
	}
	return out
}

func (s *InMemoryRelationshipStore) InsertEdge(ctx context.Context, edge models.FriendshipEdge) (models.FriendshipEdge, error) {
	if edge.RequesterID == edge.RequesteeID {
		return models.FriendshipEdge{}, ErrConflict
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.edges[edge.ID]; exists {
		return models.FriendshipEdge{}, ErrConflict
	}

	key := keyFor(edge.RequesterID, edge.RequesteeID)
	if existingID, ok := s.byPair[key]; ok {
		if s.edges[existingID].Status != models.StatusRejected {
			return models.FriendshipEdge{}, ErrConflict
		}
		delete(s.edges, existingID)
	}

	s.edges[edge.ID] = edge
	s.byPair[key] = edge.ID
	return edge, nil
}

func (s *InMemoryRelationshipStore) ConditionalUpdateStatus(ctx context.Context, edgeID, requesteeID string, expected, next models.FriendshipStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[edgeID]
	if !ok || edge.RequesteeID != requesteeID || edge.Status != expected {
		return false, nil
	}
	edge.Status = next
	edge.UpdatedAt = at
	s.edges[edgeID] = edge
	return true, nil
}

func (s *InMemoryRelationshipStore) DeleteEdge(ctx context.Context, edgeID string, expected models.FriendshipStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[edgeID]
	if !ok || edge.Status != expected {
		return false, nil
	}
	delete(s.edges, edgeID)
	delete(s.byPair, keyFor(edge.RequesterID, edge.RequesteeID))
	return true, nil
}

func (s *InMemoryRelationshipStore) CountAcceptedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, edge := range s.edges {
		if edge.Status == models.StatusAccepted && edge.Involves(userID) && !edge.UpdatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// InMemoryUserDirectory is a map-backed directory used for tests and local runs.
type InMemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]models.UserSummary
}

// NewInMemoryUserDirectory returns a directory pre-populated with users.
func NewInMemoryUserDirectory(users ...models.UserSummary) *InMemoryUserDirectory {
	d := &InMemoryUserDirectory{users: make(map[string]models.UserSummary, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Create adds a user, returning ErrConflict when the id is taken.
func (d *InMemoryUserDirectory) Create(ctx context.Context, user models.UserSummary) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[user.ID]; ok {
		return ErrConflict
	}
	d.users[user.ID] = user
	return nil
}

func (d *InMemoryUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[userID]
	return ok, nil
}

func (d *InMemoryUserDirectory) Get(ctx context.Context, userID string) (models.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return models.UserSummary{}, ErrNotFound
	}
	return user, nil
}

func (d *InMemoryUserDirectory) GetMany(ctx context.Context, userIDs []string) (map[string]models.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]models.UserSummary, len(userIDs))
	for _, id := range userIDs {
		if user, ok := d.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

var _ RelationshipStore = (*InMemoryRelationshipStore)(nil)
var _ UserDirectory = (*InMemoryUserDirectory)(nil)
