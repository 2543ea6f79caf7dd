package repositories

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialapp/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserDirectory_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	dir := NewPostgresUserDirectory(testPool)
	ada := createTestUser(t, dir, "Ada Lovelace")
	grace := createTestUser(t, dir, "Grace Hopper")

	if err := dir.Create(ctx, ada); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict creating duplicate id, got %v", err)
	}

	exists, err := dir.Exists(ctx, ada.ID)
	if err != nil || !exists {
		t.Fatalf("expected user to exist, exists=%v err=%v", exists, err)
	}
	exists, err = dir.Exists(ctx, uuid.NewString())
	if err != nil || exists {
		t.Fatalf("expected unknown user to be missing, exists=%v err=%v", exists, err)
	}

	fetched, err := dir.Get(ctx, grace.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if fetched.FullName != grace.FullName || fetched.AvatarRef != grace.AvatarRef {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	if _, err := dir.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	many, err := dir.GetMany(ctx, []string{ada.ID, grace.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(many) != 2 || many[ada.ID].FullName != ada.FullName {
		t.Fatalf("unexpected batch result: %+v", many)
	}
}

func TestPostgresRelationshipStore_InsertAndTransition(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	dir := NewPostgresUserDirectory(testPool)
	alice := createTestUser(t, dir, "Alice")
	bob := createTestUser(t, dir, "Bob")

	store := NewPostgresRelationshipStore(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	edge := newEdge(uuid.NewString(), alice.ID, bob.ID, models.StatusPending, now)
	if _, err := store.InsertEdge(ctx, edge); err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	reversed := newEdge(uuid.NewString(), bob.ID, alice.ID, models.StatusPending, now)
	if _, err := store.InsertEdge(ctx, reversed); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for reversed pair, got %v", err)
	}

	self := newEdge(uuid.NewString(), alice.ID, alice.ID, models.StatusPending, now)
	if _, err := store.InsertEdge(ctx, self); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for self edge, got %v", err)
	}

	found, err := store.FindEdge(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("find edge: %v", err)
	}
	if found.ID != edge.ID || found.Status != models.StatusPending || !found.CreatedAt.Equal(now) {
		t.Fatalf("unexpected edge: %+v", found)
	}

	ok, err := store.ConditionalUpdateStatus(ctx, edge.ID, alice.ID, models.StatusPending, models.StatusAccepted, now)
	if err != nil || ok {
		t.Fatalf("expected requester transition to be refused, ok=%v err=%v", ok, err)
	}

	accepted := now.Add(time.Minute)
	ok, err = store.ConditionalUpdateStatus(ctx, edge.ID, bob.ID, models.StatusPending, models.StatusAccepted, accepted)
	if err != nil || !ok {
		t.Fatalf("accept: ok=%v err=%v", ok, err)
	}

	loaded, err := store.GetEdge(ctx, edge.ID)
	if err != nil {
		t.Fatalf("get edge: %v", err)
	}
	if loaded.Status != models.StatusAccepted || !loaded.UpdatedAt.Equal(accepted) {
		t.Fatalf("unexpected edge after accept: %+v", loaded)
	}

	count, err := store.CountAcceptedSince(ctx, alice.ID, now)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 new friend, count=%d err=%v", count, err)
	}

	if ok, err := store.DeleteEdge(ctx, edge.ID, models.StatusPending); err != nil || ok {
		t.Fatalf("expected stale delete to be refused, ok=%v err=%v", ok, err)
	}
	if ok, err := store.DeleteEdge(ctx, edge.ID, models.StatusAccepted); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := store.GetEdge(ctx, edge.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if _, err := store.InsertEdge(ctx, reversed); err != nil {
		t.Fatalf("expected re-request after unfriend to succeed, got %v", err)
	}
}

func TestPostgresRelationshipStore_InsertSweepsRejected(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	dir := NewPostgresUserDirectory(testPool)
	alice := createTestUser(t, dir, "Alice")
	bob := createTestUser(t, dir, "Bob")

	store := NewPostgresRelationshipStore(testPool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	edge := newEdge(uuid.NewString(), alice.ID, bob.ID, models.StatusPending, now)
	if _, err := store.InsertEdge(ctx, edge); err != nil {
		t.Fatalf("insert edge: %v", err)
	}
	if ok, err := store.ConditionalUpdateStatus(ctx, edge.ID, bob.ID, models.StatusPending, models.StatusRejected, now); err != nil || !ok {
		t.Fatalf("reject: ok=%v err=%v", ok, err)
	}

	again := newEdge(uuid.NewString(), alice.ID, bob.ID, models.StatusPending, now.Add(time.Second))
	if _, err := store.InsertEdge(ctx, again); err != nil {
		t.Fatalf("expected insert over rejected edge, got %v", err)
	}
	if _, err := store.GetEdge(ctx, edge.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rejected edge to be swept, got %v", err)
	}
}

func TestFriendshipsSchemaTiesPairToEndpoints(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	dir := NewPostgresUserDirectory(testPool)
	alice := createTestUser(t, dir, "Alice")
	bob := createTestUser(t, dir, "Bob")
	carol := createTestUser(t, dir, "Carol")

	low, high := models.PairKey(alice.ID, carol.ID)
	now := time.Now().UTC()
	_, err := testPool.Exec(ctx, `
        INSERT INTO friendships (id, requester_id, requestee_id, pair_low, pair_high, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, $6)
    `, uuid.NewString(), alice.ID, bob.ID, low, high, now)
	if !errors.Is(constraintError(err), ErrConflict) {
		t.Fatalf("expected check violation for a pair that does not match the endpoints, got %v", err)
	}
}

func TestPostgresRelationshipStore_Listings(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	dir := NewPostgresUserDirectory(testPool)
	store := NewPostgresRelationshipStore(testPool)

	me := createTestUser(t, dir, "Me")
	base := time.Now().UTC().Truncate(time.Microsecond).Add(-24 * time.Hour)

	for i := 0; i < 15; i++ {
		friend := createTestUser(t, dir, fmt.Sprintf("Friend %02d", i))
		edge := newEdge(uuid.NewString(), me.ID, friend.ID, models.StatusAccepted, base.Add(time.Duration(i)*time.Minute))
		if _, err := store.InsertEdge(ctx, edge); err != nil {
			t.Fatalf("insert friend edge: %v", err)
		}
	}

	sent := createTestUser(t, dir, "Sent")
	received := createTestUser(t, dir, "Received")
	if _, err := store.InsertEdge(ctx, newEdge(uuid.NewString(), me.ID, sent.ID, models.StatusPending, base)); err != nil {
		t.Fatalf("insert outgoing: %v", err)
	}
	if _, err := store.InsertEdge(ctx, newEdge(uuid.NewString(), received.ID, me.ID, models.StatusPending, base)); err != nil {
		t.Fatalf("insert incoming: %v", err)
	}

	page, err := store.FindAcceptedFriends(ctx, me.ID, models.PageRequest{Index: 1, Size: 10})
	if err != nil {
		t.Fatalf("find friends: %v", err)
	}
	if page.Total != 15 || len(page.Items) != 5 || page.TotalPages() != 2 {
		t.Fatalf("unexpected second page: total=%d items=%d pages=%d", page.Total, len(page.Items), page.TotalPages())
	}
	if !sort.SliceIsSorted(page.Items, func(i, j int) bool { return page.Items[i].Since.After(page.Items[j].Since) }) {
		t.Fatalf("expected friends ordered newest first: %+v", page.Items)
	}

	outgoing, err := store.FindPendingOutgoing(ctx, me.ID, models.PageRequest{Index: 0, Size: 10})
	if err != nil {
		t.Fatalf("find outgoing: %v", err)
	}
	if outgoing.Total != 1 || outgoing.Items[0].RequesteeID != sent.ID {
		t.Fatalf("unexpected outgoing: %+v", outgoing)
	}

	incoming, err := store.FindPendingIncoming(ctx, me.ID, models.PageRequest{Index: 0, Size: 10})
	if err != nil {
		t.Fatalf("find incoming: %v", err)
	}
	if incoming.Total != 1 || incoming.Items[0].RequesterID != received.ID {
		t.Fatalf("unexpected incoming: %+v", incoming)
	}
}

func TestPostgresRelationshipStore_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	dir := NewPostgresUserDirectory(testPool)
	alice := createTestUser(t, dir, "Alice")
	bob := createTestUser(t, dir, "Bob")
	store := NewPostgresRelationshipStore(testPool)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requester, requestee := alice.ID, bob.ID
			if i%2 == 1 {
				requester, requestee = bob.ID, alice.ID
			}
			_, err := store.InsertEdge(ctx, newEdge(uuid.NewString(), requester, requestee, models.StatusPending, time.Now().UTC()))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if !errors.Is(err, ErrConflict) {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one insert to win, got %d", successes)
	}
	if len(failures) > 0 {
		t.Fatalf("expected losers to see ErrConflict, got %v", failures)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE friendships, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, dir *PostgresUserDirectory, name string) models.UserSummary {
	t.Helper()
	user := models.UserSummary{
		ID:        uuid.NewString(),
		FullName:  name,
		AvatarRef: "avatars/" + uuid.NewString() + ".png",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := dir.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}
