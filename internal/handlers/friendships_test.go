package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/socialapp/backend/internal/auth"
	"github.com/socialapp/backend/internal/friendships"
	"github.com/socialapp/backend/internal/models"
)

type stubFriendshipService struct {
	edge    friendships.EdgeView
	friends friendships.PageView[friendships.FriendView]
	reqs    friendships.PageView[friendships.RequestView]
	count   friendships.NewFriendsView
	err     error

	calls []string
}

func (s *stubFriendshipService) record(format string, args ...any) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *stubFriendshipService) SendFriendRequest(_ context.Context, current, requestee string) (friendships.EdgeView, error) {
	s.record("send %s %s", current, requestee)
	return s.edge, s.err
}

func (s *stubFriendshipService) AcceptFriendRequest(_ context.Context, current, requestID string) (friendships.EdgeView, error) {
	s.record("accept %s %s", current, requestID)
	return s.edge, s.err
}

func (s *stubFriendshipService) RejectFriendRequest(_ context.Context, current, requestID string) (friendships.EdgeView, error) {
	s.record("reject %s %s", current, requestID)
	return s.edge, s.err
}

func (s *stubFriendshipService) Unfriend(_ context.Context, current, other string) error {
	s.record("unfriend %s %s", current, other)
	return s.err
}

func (s *stubFriendshipService) GetFriendship(_ context.Context, current, other string) (friendships.EdgeView, error) {
	s.record("get %s %s", current, other)
	return s.edge, s.err
}

func (s *stubFriendshipService) GetFriends(_ context.Context, current string, pageNo, pageSize int) (friendships.PageView[friendships.FriendView], error) {
	s.record("friends %s %d %d", current, pageNo, pageSize)
	return s.friends, s.err
}

func (s *stubFriendshipService) GetFriendRequests(_ context.Context, current string, pageNo, pageSize int) (friendships.PageView[friendships.RequestView], error) {
	s.record("outgoing %s %d %d", current, pageNo, pageSize)
	return s.reqs, s.err
}

func (s *stubFriendshipService) GetFriendRequestsToUser(_ context.Context, current string, pageNo, pageSize int) (friendships.PageView[friendships.RequestView], error) {
	s.record("incoming %s %d %d", current, pageNo, pageSize)
	return s.reqs, s.err
}

func (s *stubFriendshipService) CountNewFriends(_ context.Context, current string, days int) (friendships.NewFriendsView, error) {
	s.record("count %s %d", current, days)
	return s.count, s.err
}

func authedRequest(method, target string, body []byte, userID string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	return req
}

func TestFriendshipHandlerSendRequest(t *testing.T) {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	service := &stubFriendshipService{edge: friendships.EdgeView{
		ID: "req-1", RequesterID: "u1", RequesteeID: "u2", Status: models.StatusPending,
		CreatedAt: created, UpdatedAt: created,
	}}
	handler := FriendshipHandler{Friendships: service}

	rec := httptest.NewRecorder()
	handler.SendRequest(rec, authedRequest(http.MethodPost, "/api/v1/friendships/requests", []byte(`{"requesteeId":" u2 "}`), "u1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	if service.calls[0] != "send u1 u2" {
		t.Fatalf("unexpected call %q", service.calls[0])
	}

	var resp friendships.EdgeView
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "req-1" || resp.Status != models.StatusPending || !resp.CreatedAt.Equal(created) {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestFriendshipHandlerSendRequestValidation(t *testing.T) {
	service := &stubFriendshipService{}
	handler := FriendshipHandler{Friendships: service}

	tests := map[string]struct {
		body   string
		userID string
		status int
	}{
		"unauthenticated":   {body: `{"requesteeId":"u2"}`, status: http.StatusUnauthorized},
		"malformed json":    {body: `{`, userID: "u1", status: http.StatusBadRequest},
		"missing requestee": {body: `{"requesteeId":"  "}`, userID: "u1", status: http.StatusBadRequest},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.SendRequest(rec, authedRequest(http.MethodPost, "/", []byte(tt.body), tt.userID))
			if rec.Code != tt.status {
				t.Fatalf("expected status %d got %d", tt.status, rec.Code)
			}
		})
	}

	if len(service.calls) != 0 {
		t.Fatalf("expected service not to be called, got %v", service.calls)
	}
}

func TestFriendshipHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: fmt.Errorf("%w: friend request", friendships.ErrNotFound), status: http.StatusNotFound},
		{name: "conflict", err: fmt.Errorf("%w: already friends", friendships.ErrConflict), status: http.StatusConflict},
		{name: "store failure", err: errors.New("connection refused"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := FriendshipHandler{Friendships: &stubFriendshipService{err: tt.err}}

			req := authedRequest(http.MethodPost, "/", nil, "u2")
			req = mux.SetURLVars(req, map[string]string{"requestId": "req-1"})
			rec := httptest.NewRecorder()

			handler.AcceptRequest(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d got %d", tt.status, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tt.status == http.StatusInternalServerError && body["error"] != "internal server error" {
				t.Fatalf("expected store error to be hidden, got %q", body["error"])
			}
		})
	}
}

func TestFriendshipHandlerPathParameters(t *testing.T) {
	service := &stubFriendshipService{edge: friendships.EdgeView{ID: "req-9", Status: models.StatusRejected}}
	handler := FriendshipHandler{Friendships: service}

	req := mux.SetURLVars(authedRequest(http.MethodPost, "/", nil, "u2"), map[string]string{"requestId": "req-9"})
	rec := httptest.NewRecorder()
	handler.RejectRequest(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: expected 200 got %d", rec.Code)
	}

	req = mux.SetURLVars(authedRequest(http.MethodDelete, "/", nil, "u2"), map[string]string{"userId": "u1"})
	rec = httptest.NewRecorder()
	handler.Unfriend(rec, req)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("unfriend: expected empty 204 got %d %q", rec.Code, rec.Body.String())
	}

	req = mux.SetURLVars(authedRequest(http.MethodGet, "/", nil, "u2"), map[string]string{"userId": "u1"})
	rec = httptest.NewRecorder()
	handler.GetFriendship(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200 got %d", rec.Code)
	}

	want := []string{"reject u2 req-9", "unfriend u2 u1", "get u2 u1"}
	for i, call := range want {
		if service.calls[i] != call {
			t.Fatalf("call %d: expected %q got %q", i, call, service.calls[i])
		}
	}
}

func TestFriendshipHandlerListings(t *testing.T) {
	service := &stubFriendshipService{
		friends: friendships.PageView[friendships.FriendView]{
			Items:  []friendships.FriendView{{ID: "u2", FullName: "Grace"}},
			PageNo: 2, PageSize: 10, TotalPages: 2, TotalItems: 11,
		},
		reqs:  friendships.PageView[friendships.RequestView]{Items: []friendships.RequestView{}, PageNo: 1, PageSize: 10},
		count: friendships.NewFriendsView{Days: 7, Count: 3},
	}
	handler := FriendshipHandler{Friendships: service}

	rec := httptest.NewRecorder()
	handler.ListFriends(rec, authedRequest(http.MethodGet, "/api/v1/friendships?page=2&pageSize=10", nil, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("list friends: expected 200 got %d", rec.Code)
	}
	var page map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"items", "pageNo", "pageSize", "totalPages", "totalItems"} {
		if _, ok := page[key]; !ok {
			t.Fatalf("expected %q in page envelope: %v", key, page)
		}
	}

	rec = httptest.NewRecorder()
	handler.ListOutgoing(rec, authedRequest(http.MethodGet, "/x?page=abc", nil, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("list outgoing: expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ListIncoming(rec, authedRequest(http.MethodGet, "/x?pageSize=500", nil, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("list incoming: expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.NewFriendsCount(rec, authedRequest(http.MethodGet, "/x?days=30", nil, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("count: expected 200 got %d", rec.Code)
	}

	want := []string{"friends u1 2 10", "outgoing u1 1 0", "incoming u1 1 500", "count u1 30"}
	for i, call := range want {
		if service.calls[i] != call {
			t.Fatalf("call %d: expected %q got %q", i, call, service.calls[i])
		}
	}
}

func TestFriendshipHandlerMissingService(t *testing.T) {
	handler := FriendshipHandler{}
	rec := httptest.NewRecorder()
	handler.ListFriends(rec, authedRequest(http.MethodGet, "/", nil, "u1"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
}
