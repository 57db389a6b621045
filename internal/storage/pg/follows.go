package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
)

// AddFollowRequest inserts a pending edge unless any edge between the two already exists.
func (s *Storage) AddFollowRequest(ctx context.Context, owner, follower domain.AccountId, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (owner_id, follower_id, state, requested_at)
		VALUES ($1, $2, 'requested', $3)
		ON CONFLICT (owner_id, follower_id) DO NOTHING`,
		owner, follower, at)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23503": // foreign_key_violation
				return false, internal_errors.ErrAccountNotFound
			case "23514": // check_violation
				return false, internal_errors.ErrSelfFollow
			}
		}
		return false, fmt.Errorf("failed to insert follow request: %w", err)
	}
	return affected(res)
}

func (s *Storage) AcceptFollowRequest(ctx context.Context, owner, follower domain.AccountId, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE follows SET state = 'accepted', accepted_at = $3
		WHERE owner_id = $1 AND follower_id = $2 AND state = 'requested'`,
		owner, follower, at)
	if err != nil {
		return false, fmt.Errorf("failed to accept follow request: %w", err)
	}
	return affected(res)
}

func (s *Storage) RemoveFollowRequest(ctx context.Context, owner, follower domain.AccountId) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM follows WHERE owner_id = $1 AND follower_id = $2 AND state = 'requested'",
		owner, follower)
	if err != nil {
		return false, fmt.Errorf("failed to remove follow request: %w", err)
	}
	return affected(res)
}

func (s *Storage) Connections(ctx context.Context, owner domain.AccountId, state domain.FollowState, offset, limit int) ([]domain.Connection, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.connections(ctx, s.db, owner, state, offset, limit)
}

// CountConnections counts the edges of owner in state whose follower is not soft-deleted.
func (s *Storage) CountConnections(ctx context.Context, owner domain.AccountId, state domain.FollowState) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.countConnections(ctx, s.db, owner, state)
}

func (s *Storage) countConnections(ctx context.Context, q Querier, owner domain.AccountId, state domain.FollowState) (int, error) {
	var total int
	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM follows f JOIN accounts a ON a.id = f.follower_id
		WHERE f.owner_id = $1 AND f.state = $2 AND NOT a.deleted`,
		owner, state).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count connections: %w", err)
	}
	return total, nil
}

func (s *Storage) connections(ctx context.Context, q Querier, owner domain.AccountId, state domain.FollowState, offset, limit int) ([]domain.Connection, int, error) {
	total, err := s.countConnections(ctx, q, owner, state)
	if err != nil {
		return nil, 0, err
	}

	order := "a.first_name, a.last_name, a.id"
	if state == domain.FollowRequested {
		order = "f.requested_at DESC, a.id DESC"
	}
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.username, a.first_name, a.last_name, f.state, f.requested_at
		FROM follows f JOIN accounts a ON a.id = f.follower_id
		WHERE f.owner_id = $1 AND f.state = $2 AND NOT a.deleted
		ORDER BY `+order+`
		LIMIT $3 OFFSET $4`,
		owner, state, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query connections: %w", err)
	}
	defer rows.Close()

	items := []domain.Connection{}
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.AccountId, &c.Username, &c.FirstName, &c.LastName, &c.State, &c.RequestedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan connection: %w", err)
		}
		c.RequestedAt = c.RequestedAt.UTC()
		items = append(items, c)
	}
	return items, total, rows.Err()
}
