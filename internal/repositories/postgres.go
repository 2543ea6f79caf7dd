package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/socialapp/backend/internal/db"
	"github.com/socialapp/backend/internal/models"
)

const edgeColumns = `id, requester_id, requestee_id, status, created_at, updated_at`

// PostgresRelationshipStore provides PostgreSQL-backed persistence for friendship edges.
type PostgresRelationshipStore struct {
	pool db.Pool
}

// NewPostgresRelationshipStore constructs a relationship store backed by PostgreSQL.
func NewPostgresRelationshipStore(pool db.Pool) *PostgresRelationshipStore {
	return &PostgresRelationshipStore{pool: pool}
}

// FindEdge looks up the edge for the unordered pair {a, b}.
func (s *PostgresRelationshipStore) FindEdge(ctx context.Context, a, b string) (models.FriendshipEdge, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.FriendshipEdge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	low, high := models.PairKey(a, b)
	row := conn.QueryRow(ctx, `
        SELECT `+edgeColumns+`
        FROM friendships
        WHERE pair_low = $1 AND pair_high = $2
    `, low, high)

	edge, err := scanEdge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FriendshipEdge{}, ErrNotFound
		}
		return models.FriendshipEdge{}, fmt.Errorf("select friendship by pair: %w", err)
	}
	return edge, nil
}

// GetEdge loads an edge by its identifier.
func (s *PostgresRelationshipStore) GetEdge(ctx context.Context, edgeID string) (models.FriendshipEdge, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.FriendshipEdge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+edgeColumns+`
        FROM friendships
        WHERE id = $1
    `, edgeID)

	edge, err := scanEdge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FriendshipEdge{}, ErrNotFound
		}
		return models.FriendshipEdge{}, fmt.Errorf("select friendship by id: %w", err)
	}
	return edge, nil
}

// FindAcceptedFriends pages through the counterparts of accepted edges touching userID,
// most recently accepted first. The count and the page are sent as one batch.
func (s *PostgresRelationshipStore) FindAcceptedFriends(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendLink], error) {
	result := models.Page[models.FriendLink]{Index: page.Index, Size: page.Size, Items: []models.FriendLink{}}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return result, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	batch.Queue(`
        SELECT count(*)
        FROM friendships
        WHERE status = 'ACCEPTED' AND (requester_id = $1 OR requestee_id = $1)
    `, userID)
	batch.Queue(`
        SELECT
            CASE WHEN requester_id = $1 THEN requestee_id ELSE requester_id END AS friend_id,
            id,
            updated_at
        FROM friendships
        WHERE status = 'ACCEPTED' AND (requester_id = $1 OR requestee_id = $1)
        ORDER BY updated_at DESC, id
        LIMIT $2 OFFSET $3
    `, userID, page.Size, page.Offset())

	br := conn.SendBatch(ctx, batch)
	defer br.Close()

	if err := br.QueryRow().Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count friends: %w", err)
	}

	rows, err := br.Query()
	if err != nil {
		return result, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link models.FriendLink
		if err := rows.Scan(&link.UserID, &link.EdgeID, &link.Since); err != nil {
			return result, fmt.Errorf("scan friend: %w", err)
		}
		link.Since = link.Since.UTC()
		result.Items = append(result.Items, link)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate friends: %w", err)
	}

	return result, nil
}

// FindPendingOutgoing pages through pending requests sent by userID.
func (s *PostgresRelationshipStore) FindPendingOutgoing(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendshipEdge], error) {
	return s.pendingPage(ctx, "requester_id", userID, page)
}

// FindPendingIncoming pages through pending requests addressed to userID.
func (s *PostgresRelationshipStore) FindPendingIncoming(ctx context.Context, userID string, page models.PageRequest) (models.Page[models.FriendshipEdge], error) {
	return s.pendingPage(ctx, "requestee_id", userID, page)
}

// column is one of two fixed identifiers chosen by the caller above, never user input.
func (s *PostgresRelationshipStore) pendingPage(ctx context.Context, column, userID string, page models.PageRequest) (models.Page[models.FriendshipEdge], error) {
	result := models.Page[models.FriendshipEdge]{Index: page.Index, Size: page.Size, Items: []models.FriendshipEdge{}}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return result, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	batch.Queue(`SELECT count(*) FROM friendships WHERE status = 'PENDING' AND `+column+` = $1`, userID)
	batch.Queue(`
        SELECT `+edgeColumns+`
        FROM friendships
        WHERE status = 'PENDING' AND `+column+` = $1
        ORDER BY created_at DESC, id
        LIMIT $2 OFFSET $3
    `, userID, page.Size, page.Offset())

	br := conn.SendBatch(ctx, batch)
	defer br.Close()

	if err := br.QueryRow().Scan(&result.Total); err != nil {
		return result, fmt.Errorf("count pending requests: %w", err)
	}

	rows, err := br.Query()
	if err != nil {
		return result, fmt.Errorf("query pending requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return result, fmt.Errorf("scan pending request: %w", err)
		}
		result.Items = append(result.Items, edge)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate pending requests: %w", err)
	}

	return result, nil
}

// InsertEdge persists a new edge. A REJECTED row for the same pair is swept in the
// same transaction; any other existing row trips the pair uniqueness constraint.
func (s *PostgresRelationshipStore) InsertEdge(ctx context.Context, edge models.FriendshipEdge) (models.FriendshipEdge, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.FriendshipEdge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	low, high := models.PairKey(edge.RequesterID, edge.RequesteeID)

	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            DELETE FROM friendships
            WHERE pair_low = $1 AND pair_high = $2 AND status = 'REJECTED'
        `, low, high); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO friendships (id, requester_id, requestee_id, pair_low, pair_high, status, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `, edge.ID, edge.RequesterID, edge.RequesteeID, low, high, string(edge.Status), edge.CreatedAt, edge.UpdatedAt)
		return err
	})
	if err != nil {
		if mapped := constraintError(err); mapped != nil {
			return models.FriendshipEdge{}, mapped
		}
		return models.FriendshipEdge{}, fmt.Errorf("insert friendship: %w", err)
	}

	return edge, nil
}

// ConditionalUpdateStatus applies the transition in a single UPDATE guarded by
// ownership and the expected current status.
func (s *PostgresRelationshipStore) ConditionalUpdateStatus(ctx context.Context, edgeID, requesteeID string, expected, next models.FriendshipStatus, at time.Time) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE friendships
        SET status = $4, updated_at = $5
        WHERE id = $1 AND requestee_id = $2 AND status = $3
    `, edgeID, requesteeID, string(expected), string(next), at)
	if err != nil {
		return false, fmt.Errorf("update friendship status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteEdge removes the edge when its status still equals expected.
func (s *PostgresRelationshipStore) DeleteEdge(ctx context.Context, edgeID string, expected models.FriendshipStatus) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM friendships
        WHERE id = $1 AND status = $2
    `, edgeID, string(expected))
	if err != nil {
		return false, fmt.Errorf("delete friendship: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// CountAcceptedSince counts accepted edges touching userID whose last transition is at or after since.
func (s *PostgresRelationshipStore) CountAcceptedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRow(ctx, `
        SELECT count(*)
        FROM friendships
        WHERE status = 'ACCEPTED'
          AND (requester_id = $1 OR requestee_id = $1)
          AND updated_at >= $2
    `, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count new friends: %w", err)
	}

	return count, nil
}

func scanEdge(row pgx.Row) (models.FriendshipEdge, error) {
	var (
		edge   models.FriendshipEdge
		status string
	)
	if err := row.Scan(&edge.ID, &edge.RequesterID, &edge.RequesteeID, &status, &edge.CreatedAt, &edge.UpdatedAt); err != nil {
		return models.FriendshipEdge{}, err
	}
	edge.Status = models.FriendshipStatus(status)
	edge.CreatedAt = edge.CreatedAt.UTC()
	edge.UpdatedAt = edge.UpdatedAt.UTC()
	return edge, nil
}

// PostgresUserDirectory resolves users from the users table.
type PostgresUserDirectory struct {
	pool db.Pool
}

// NewPostgresUserDirectory constructs a directory backed by PostgreSQL.
func NewPostgresUserDirectory(pool db.Pool) *PostgresUserDirectory {
	return &PostgresUserDirectory{pool: pool}
}

// Create inserts a directory entry. Only the seed command writes users.
func (d *PostgresUserDirectory) Create(ctx context.Context, user models.UserSummary) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, full_name, avatar_ref, created_at)
        VALUES ($1, $2, $3, $4)
    `, user.ID, user.FullName, user.AvatarRef, user.CreatedAt)
	if err != nil {
		if errors.Is(constraintError(err), ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// Exists reports whether the user id is known.
func (d *PostgresUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// Get fetches a single user summary.
func (d *PostgresUserDirectory) Get(ctx context.Context, userID string) (models.UserSummary, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return models.UserSummary{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var user models.UserSummary
	err = conn.QueryRow(ctx, `
        SELECT id, full_name, avatar_ref, created_at
        FROM users
        WHERE id = $1
    `, userID).Scan(&user.ID, &user.FullName, &user.AvatarRef, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserSummary{}, ErrNotFound
		}
		return models.UserSummary{}, fmt.Errorf("select user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// GetMany fetches the summaries for the provided ids in one query.
func (d *PostgresUserDirectory) GetMany(ctx context.Context, userIDs []string) (map[string]models.UserSummary, error) {
	out := make(map[string]models.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, full_name, avatar_ref, created_at
        FROM users
        WHERE id = ANY($1)
    `, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user models.UserSummary
		if err := rows.Scan(&user.ID, &user.FullName, &user.AvatarRef, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.CreatedAt = user.CreatedAt.UTC()
		out[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return out, nil
}

var _ RelationshipStore = (*PostgresRelationshipStore)(nil)
var _ UserDirectory = (*PostgresUserDirectory)(nil)
