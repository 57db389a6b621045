package memory

import (
	"context"
	"sort"
	"time"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
)

func (s *Storage) AddFollowRequest(ctx context.Context, owner, follower domain.AccountId, at time.Time) (bool, error) {
	if owner == follower {
		return false, internal_errors.ErrSelfFollow
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[owner]; !ok {
		return false, internal_errors.ErrAccountNotFound
	}
	if _, ok := s.accounts[follower]; !ok {
		return false, internal_errors.ErrAccountNotFound
	}
	key := edgeKey{owner, follower}
	if _, ok := s.edges[key]; ok {
		return false, nil
	}
	s.edges[key] = edge{state: domain.FollowRequested, requestedAt: at}
	return true, nil
}

func (s *Storage) AcceptFollowRequest(ctx context.Context, owner, follower domain.AccountId, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{owner, follower}
	e, ok := s.edges[key]
	if !ok || e.state != domain.FollowRequested {
		return false, nil
	}
	e.state = domain.FollowAccepted
	s.edges[key] = e
	return true, nil
}

func (s *Storage) RemoveFollowRequest(ctx context.Context, owner, follower domain.AccountId) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{owner, follower}
	e, ok := s.edges[key]
	if !ok || e.state != domain.FollowRequested {
		return false, nil
	}
	delete(s.edges, key)
	return true, nil
}

// CountConnections counts the edges of owner in state whose follower is not soft-deleted.
func (s *Storage) CountConnections(ctx context.Context, owner domain.AccountId, state domain.FollowState) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k, e := range s.edges {
		if k.owner != owner || e.state != state {
			continue
		}
		if a, ok := s.accounts[k.follower]; ok && !a.Deleted {
			n++
		}
	}
	return n, nil
}

func (s *Storage) Connections(ctx context.Context, owner domain.AccountId, state domain.FollowState, offset, limit int) ([]domain.Connection, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Connection
	for k, e := range s.edges {
		if k.owner != owner || e.state != state {
			continue
		}
		a, ok := s.accounts[k.follower]
		if !ok || a.Deleted {
			continue
		}
		all = append(all, domain.Connection{
			AccountId:   a.Id,
			Username:    a.Username,
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			State:       e.state,
			RequestedAt: e.requestedAt,
		})
	}

	if state == domain.FollowAccepted {
		sort.Slice(all, func(i, j int) bool {
			if all[i].FirstName != all[j].FirstName {
				return all[i].FirstName < all[j].FirstName
			}
			if all[i].LastName != all[j].LastName {
				return all[i].LastName < all[j].LastName
			}
			return all[i].AccountId < all[j].AccountId
		})
	} else {
		sort.Slice(all, func(i, j int) bool {
			if !all[i].RequestedAt.Equal(all[j].RequestedAt) {
				return all[i].RequestedAt.After(all[j].RequestedAt)
			}
			return all[i].AccountId > all[j].AccountId
		})
	}

	total := len(all)
	if offset >= total {
		return []domain.Connection{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}
