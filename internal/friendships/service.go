package friendships

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/socialapp/backend/internal/logging"
	"github.com/socialapp/backend/internal/models"
	"github.com/socialapp/backend/internal/repositories"
)

const (
	DefaultPageSize   = 10
	MaxPageSize       = 100
	DefaultWindowDays = 7
)

// AvatarResolver turns a stored avatar reference into a URL a client can fetch.
type AvatarResolver interface {
	ResolveAvatar(ctx context.Context, ref string) (string, error)
}

// Observer records the outcome of each service operation.
type Observer interface {
	ObserveOperation(operation, outcome string)
}

// Service enforces the friendship state machine on top of a RelationshipStore.
// Every operation takes the acting user explicitly.
type Service struct {
	Store     repositories.RelationshipStore
	Directory repositories.UserDirectory
	Avatars   AvatarResolver
	Observer  Observer

	DefaultPageSize int
	MaxPageSize     int

	NowFunc func() time.Time
	NewID   func() string
}

// NewService constructs a Service with default pagination, clock and id source.
func NewService(store repositories.RelationshipStore, directory repositories.UserDirectory) *Service {
	return &Service{
		Store:           store,
		Directory:       directory,
		DefaultPageSize: DefaultPageSize,
		MaxPageSize:     MaxPageSize,
		NowFunc:         time.Now,
		NewID:           uuid.NewString,
	}
}

func (s *Service) now() time.Time {
	now := time.Now
	if s.NowFunc != nil {
		now = s.NowFunc
	}
	return now().UTC().Truncate(time.Microsecond)
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) observe(span *logging.Span, operation string, err error) {
	outcome := Outcome(err)
	span.SetOutcome(outcome)
	if s.Observer != nil {
		s.Observer.ObserveOperation(operation, outcome)
	}
}

// SendFriendRequest creates a PENDING edge from current to requesteeID.
func (s *Service) SendFriendRequest(ctx context.Context, currentUserID, requesteeID string) (view EdgeView, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.send_request")
	defer span.End()
	defer func() { s.observe(span, "send_request", err) }()

	if currentUserID == requesteeID {
		return EdgeView{}, fmt.Errorf("%w: cannot send a friend request to yourself", ErrConflict)
	}

	exists, err := s.Directory.Exists(ctx, requesteeID)
	if err != nil {
		return EdgeView{}, fmt.Errorf("look up requestee: %w", err)
	}
	if !exists {
		return EdgeView{}, fmt.Errorf("%w: user %s", ErrNotFound, requesteeID)
	}

	existing, err := s.Store.FindEdge(ctx, currentUserID, requesteeID)
	switch {
	case err == nil:
		if existing.Status != models.StatusRejected {
			return EdgeView{}, fmt.Errorf("%w: a %s relationship already exists", ErrConflict, existing.Status)
		}
	case errors.Is(err, repositories.ErrNotFound):
	default:
		return EdgeView{}, fmt.Errorf("look up existing relationship: %w", err)
	}

	now := s.now()
	edge, err := s.Store.InsertEdge(ctx, models.FriendshipEdge{
		ID:          s.newID(),
		RequesterID: currentUserID,
		RequesteeID: requesteeID,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return EdgeView{}, translate(err, "insert friend request")
	}

	logging.FromContext(ctx).Info("friend request sent",
		slog.String("request_id", edge.ID),
		slog.String("requester_id", currentUserID),
		slog.String("requestee_id", requesteeID),
	)

	return toEdgeView(edge), nil
}

// AcceptFriendRequest moves a PENDING edge addressed to current into ACCEPTED.
func (s *Service) AcceptFriendRequest(ctx context.Context, currentUserID, requestID string) (view EdgeView, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.accept_request")
	defer span.End()
	defer func() { s.observe(span, "accept_request", err) }()

	edge, err := s.transition(ctx, currentUserID, requestID, models.StatusAccepted)
	if err != nil {
		return EdgeView{}, err
	}

	logging.FromContext(ctx).Info("friend request accepted", slog.String("request_id", edge.ID))
	return toEdgeView(edge), nil
}

// RejectFriendRequest moves a PENDING edge addressed to current into REJECTED and
// then removes it so the pair may connect again. The returned view is the final
// REJECTED snapshot.
func (s *Service) RejectFriendRequest(ctx context.Context, currentUserID, requestID string) (view EdgeView, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.reject_request")
	defer span.End()
	defer func() { s.observe(span, "reject_request", err) }()

	edge, err := s.transition(ctx, currentUserID, requestID, models.StatusRejected)
	if err != nil {
		return EdgeView{}, err
	}

	logger := logging.FromContext(ctx)
	// A leftover REJECTED row is swept by the next InsertEdge for the pair.
	if _, err := s.Store.DeleteEdge(ctx, edge.ID, models.StatusRejected); err != nil {
		logger.Warn("delete rejected friend request", slog.String("request_id", edge.ID), slog.Any("error", err))
	}

	logger.Info("friend request rejected", slog.String("request_id", edge.ID))
	return toEdgeView(edge), nil
}

func (s *Service) transition(ctx context.Context, currentUserID, requestID string, next models.FriendshipStatus) (models.FriendshipEdge, error) {
	edge, err := s.Store.GetEdge(ctx, requestID)
	if err != nil {
		return models.FriendshipEdge{}, translate(err, "load friend request")
	}
	if edge.RequesteeID != currentUserID {
		return models.FriendshipEdge{}, fmt.Errorf("%w: friend request %s", ErrNotFound, requestID)
	}
	if edge.Status != models.StatusPending {
		return models.FriendshipEdge{}, fmt.Errorf("%w: friend request is %s", ErrConflict, edge.Status)
	}

	at := s.now()
	applied, err := s.Store.ConditionalUpdateStatus(ctx, edge.ID, currentUserID, models.StatusPending, next, at)
	if err != nil {
		return models.FriendshipEdge{}, fmt.Errorf("update friend request: %w", err)
	}
	if !applied {
		return models.FriendshipEdge{}, s.lostTransition(ctx, edge.ID)
	}

	edge.Status = next
	edge.UpdatedAt = at
	return edge, nil
}

// lostTransition explains why a conditional update matched nothing.
func (s *Service) lostTransition(ctx context.Context, requestID string) error {
	current, err := s.Store.GetEdge(ctx, requestID)
	if err != nil {
		return translate(err, "reload friend request")
	}
	return fmt.Errorf("%w: friend request is %s", ErrConflict, current.Status)
}

// Unfriend removes the ACCEPTED edge between current and otherUserID.
func (s *Service) Unfriend(ctx context.Context, currentUserID, otherUserID string) (err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.unfriend")
	defer span.End()
	defer func() { s.observe(span, "unfriend", err) }()

	if currentUserID == otherUserID {
		return fmt.Errorf("%w: cannot unfriend yourself", ErrConflict)
	}

	edge, err := s.Store.FindEdge(ctx, currentUserID, otherUserID)
	if err != nil {
		return translate(err, "load friendship")
	}
	if edge.Status != models.StatusAccepted {
		return fmt.Errorf("%w: relationship is %s", ErrConflict, edge.Status)
	}

	removed, err := s.Store.DeleteEdge(ctx, edge.ID, models.StatusAccepted)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if !removed {
		return fmt.Errorf("%w: friendship already removed", ErrNotFound)
	}

	logging.FromContext(ctx).Info("friendship removed",
		slog.String("user_id", currentUserID),
		slog.String("friend_id", otherUserID),
	)
	return nil
}

// GetFriendship returns the edge between current and otherUserID in either direction.
func (s *Service) GetFriendship(ctx context.Context, currentUserID, otherUserID string) (view EdgeView, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.get_friendship")
	defer span.End()
	defer func() { s.observe(span, "get_friendship", err) }()

	edge, err := s.Store.FindEdge(ctx, currentUserID, otherUserID)
	if err != nil {
		return EdgeView{}, translate(err, "load friendship")
	}
	return toEdgeView(edge), nil
}

// GetFriends lists the users with an ACCEPTED edge to current, most recent first.
func (s *Service) GetFriends(ctx context.Context, currentUserID string, pageNo, pageSize int) (view PageView[FriendView], err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.list_friends")
	defer span.End()
	defer func() { s.observe(span, "list_friends", err) }()

	page, err := s.Store.FindAcceptedFriends(ctx, currentUserID, s.pageRequest(pageNo, pageSize))
	if err != nil {
		return PageView[FriendView]{}, fmt.Errorf("list friends: %w", err)
	}

	ids := make([]string, 0, len(page.Items))
	for _, link := range page.Items {
		ids = append(ids, link.UserID)
	}
	users, err := s.users(ctx, ids)
	if err != nil {
		return PageView[FriendView]{}, err
	}

	items := make([]FriendView, 0, len(page.Items))
	for _, link := range page.Items {
		user := users[link.UserID]
		items = append(items, FriendView{
			ID:           user.ID,
			FullName:     user.FullName,
			AvatarURL:    user.AvatarURL,
			FriendsSince: link.Since,
		})
	}
	return newPageView(page, items), nil
}

// GetFriendRequests lists PENDING requests sent by current.
func (s *Service) GetFriendRequests(ctx context.Context, currentUserID string, pageNo, pageSize int) (view PageView[RequestView], err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.list_outgoing")
	defer span.End()
	defer func() { s.observe(span, "list_outgoing", err) }()

	page, err := s.Store.FindPendingOutgoing(ctx, currentUserID, s.pageRequest(pageNo, pageSize))
	if err != nil {
		return PageView[RequestView]{}, fmt.Errorf("list outgoing requests: %w", err)
	}
	return s.requestPage(ctx, currentUserID, page)
}

// GetFriendRequestsToUser lists PENDING requests addressed to current.
func (s *Service) GetFriendRequestsToUser(ctx context.Context, currentUserID string, pageNo, pageSize int) (view PageView[RequestView], err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.list_incoming")
	defer span.End()
	defer func() { s.observe(span, "list_incoming", err) }()

	page, err := s.Store.FindPendingIncoming(ctx, currentUserID, s.pageRequest(pageNo, pageSize))
	if err != nil {
		return PageView[RequestView]{}, fmt.Errorf("list incoming requests: %w", err)
	}
	return s.requestPage(ctx, currentUserID, page)
}

func (s *Service) requestPage(ctx context.Context, currentUserID string, page models.Page[models.FriendshipEdge]) (PageView[RequestView], error) {
	ids := make([]string, 0, len(page.Items))
	for _, edge := range page.Items {
		ids = append(ids, edge.Counterpart(currentUserID))
	}
	users, err := s.users(ctx, ids)
	if err != nil {
		return PageView[RequestView]{}, err
	}

	items := make([]RequestView, 0, len(page.Items))
	for _, edge := range page.Items {
		items = append(items, RequestView{
			RequestID:   edge.ID,
			Counterpart: users[edge.Counterpart(currentUserID)],
			Status:      edge.Status,
			CreatedAt:   edge.CreatedAt,
		})
	}
	return newPageView(page, items), nil
}

// CountNewFriends counts friendships touching current accepted within the last days.
func (s *Service) CountNewFriends(ctx context.Context, currentUserID string, days int) (view NewFriendsView, err error) {
	ctx, span := logging.StartSpan(ctx, "friendships.count_new")
	defer span.End()
	defer func() { s.observe(span, "count_new", err) }()

	if days < 1 {
		days = DefaultWindowDays
	}
	since := s.now().AddDate(0, 0, -days)

	count, err := s.Store.CountAcceptedSince(ctx, currentUserID, since)
	if err != nil {
		return NewFriendsView{}, fmt.Errorf("count new friends: %w", err)
	}
	return NewFriendsView{Days: days, Count: count}, nil
}

// pageRequest clamps 1-based caller input into a 0-based store request.
func (s *Service) pageRequest(pageNo, pageSize int) models.PageRequest {
	defaultSize := s.DefaultPageSize
	if defaultSize < 1 {
		defaultSize = DefaultPageSize
	}
	maxSize := s.MaxPageSize
	if maxSize < 1 {
		maxSize = MaxPageSize
	}

	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	// Pages past this bound are empty anyway; capping keeps the offset in range.
	if maxIndex := math.MaxInt32 / pageSize; pageNo-1 > maxIndex {
		pageNo = maxIndex + 1
	}
	return models.PageRequest{Index: pageNo - 1, Size: pageSize}
}

// users resolves display data for ids in one directory call. Ids the directory
// does not know are shaped with the id only.
func (s *Service) users(ctx context.Context, ids []string) (map[string]UserView, error) {
	out := make(map[string]UserView, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	summaries, err := s.Directory.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	for _, id := range ids {
		summary, ok := summaries[id]
		if !ok {
			out[id] = UserView{ID: id}
			continue
		}
		out[id] = UserView{
			ID:        id,
			FullName:  summary.FullName,
			AvatarURL: s.avatarURL(ctx, summary.AvatarRef),
		}
	}
	return out, nil
}

func (s *Service) avatarURL(ctx context.Context, ref string) string {
	if ref == "" || s.Avatars == nil {
		return ref
	}
	url, err := s.Avatars.ResolveAvatar(ctx, ref)
	if err != nil {
		logging.FromContext(ctx).Warn("resolve avatar", slog.String("ref", ref), slog.Any("error", err))
		return ref
	}
	return url
}
