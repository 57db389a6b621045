// Package memory is a process-local account store with the same conditional
// update semantics as the PostgreSQL store. It backs the dev mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
)

type edgeKey struct {
	owner, follower domain.AccountId
}

type edge struct {
	state       domain.FollowState
	requestedAt time.Time
}

type Storage struct {
	mu       sync.RWMutex
	nextId   domain.AccountId
	accounts map[domain.AccountId]*domain.Account
	edges    map[edgeKey]edge
}

func New() *Storage {
	return &Storage{
		accounts: make(map[domain.AccountId]*domain.Account),
		edges:    make(map[edgeKey]edge),
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) find(id domain.AccountId, opts []domain.LookupOption) (*domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok || !domain.NewLookup(opts...).Visible(a) {
		return nil, internal_errors.ErrAccountNotFound
	}
	return a, nil
}

func (s *Storage) findBy(match func(*domain.Account) bool, opts []domain.LookupOption) (domain.Account, error) {
	lookup := domain.NewLookup(opts...)
	for _, a := range s.accounts {
		if match(a) && lookup.Visible(a) {
			return *a, nil
		}
	}
	return domain.Account{}, internal_errors.ErrAccountNotFound
}

func (s *Storage) CreateAccount(ctx context.Context, account domain.Account) (domain.AccountId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return 0, internal_errors.ErrEmailTaken
		}
		if a.Username == account.Username {
			return 0, internal_errors.ErrUsernameTaken
		}
	}
	s.nextId++
	account.Id = s.nextId
	if account.Role == "" {
		account.Role = domain.RoleUser
	}
	s.accounts[account.Id] = &account
	return account.Id, nil
}

func (s *Storage) AccountByID(ctx context.Context, id domain.AccountId, opts ...domain.LookupOption) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := s.find(id, opts)
	if err != nil {
		return domain.Account{}, err
	}
	return *a, nil
}

func (s *Storage) AccountByLogin(ctx context.Context, login string, opts ...domain.LookupOption) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findBy(func(a *domain.Account) bool {
		return a.Username == login || strings.EqualFold(a.Email, login)
	}, opts)
}

func (s *Storage) AccountByEmail(ctx context.Context, email domain.Email, opts ...domain.LookupOption) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findBy(func(a *domain.Account) bool {
		return strings.EqualFold(a.Email, email)
	}, opts)
}

func (s *Storage) ListAccounts(ctx context.Context, onlineOnly bool) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.Deleted || (onlineOnly && a.Availability != domain.Online) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

// update applies fn to a live account under the write lock.
func (s *Storage) update(id domain.AccountId, opts []domain.LookupOption, fn func(a *domain.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.find(id, opts)
	if err != nil {
		return err
	}
	fn(a)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// cas applies fn only when cond holds and reports whether it did.
func (s *Storage) cas(id domain.AccountId, cond func(a *domain.Account) bool, fn func(a *domain.Account)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return false, internal_errors.ErrAccountNotFound
	}
	if !cond(a) {
		return false, nil
	}
	fn(a)
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Storage) ConfirmByActivationCode(ctx context.Context, code string) (domain.AccountId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.ActivationCode != nil && *a.ActivationCode == code && !a.Deleted {
			a.Confirmed = true
			a.ActivationCode = nil
			a.UpdatedAt = time.Now().UTC()
			return a.Id, nil
		}
	}
	return 0, internal_errors.ErrAccountNotFound
}

func (s *Storage) SetSessionFlags(ctx context.Context, id domain.AccountId, status domain.Status, availability domain.Availability) error {
	return s.update(id, nil, func(a *domain.Account) {
		a.Status = status
		a.Availability = availability
	})
}

func (s *Storage) SetAvailability(ctx context.Context, id domain.AccountId, availability domain.Availability) error {
	return s.update(id, []domain.LookupOption{domain.WithDeleted()}, func(a *domain.Account) {
		a.Availability = availability
	})
}

func (s *Storage) UpdatePassword(ctx context.Context, id domain.AccountId, passHash string, changedAt time.Time, deactivate bool) error {
	return s.update(id, nil, func(a *domain.Account) {
		a.PassHash = passHash
		a.ChangeAccountInfo = &changedAt
		if deactivate {
			a.Status = domain.StatusNotActive
		}
	})
}

func (s *Storage) SetOTP(ctx context.Context, id domain.AccountId, otpHash string, expires time.Time) error {
	return s.update(id, nil, func(a *domain.Account) {
		a.OTPHash = &otpHash
		a.OTPExpires = &expires
	})
}

func (s *Storage) ResetPasswordWithOTP(ctx context.Context, id domain.AccountId, otpHash string, passHash string, changedAt time.Time) (bool, error) {
	return s.cas(id,
		func(a *domain.Account) bool {
			return !a.Deleted && a.OTPHash != nil && *a.OTPHash == otpHash
		},
		func(a *domain.Account) {
			a.PassHash = passHash
			a.ChangeAccountInfo = &changedAt
			a.Status = domain.StatusNotActive
			a.OTPHash = nil
			a.OTPExpires = nil
		})
}

func (s *Storage) SetBlocked(ctx context.Context, id domain.AccountId, blocked bool) (bool, error) {
	return s.cas(id,
		func(a *domain.Account) bool { return a.Blocked != blocked },
		func(a *domain.Account) { a.Blocked = blocked })
}

func (s *Storage) SoftDelete(ctx context.Context, id domain.AccountId, deadline time.Time) (bool, error) {
	return s.cas(id,
		func(a *domain.Account) bool { return !a.Deleted },
		func(a *domain.Account) {
			a.Deleted = true
			a.Status = domain.StatusNotActive
			a.PermanentlyDeleted = &deadline
		})
}

func (s *Storage) RestoreSoftDeleted(ctx context.Context, id domain.AccountId, status domain.Status) error {
	_, err := s.cas(id,
		func(a *domain.Account) bool { return a.Deleted },
		func(a *domain.Account) {
			a.Deleted = false
			a.Status = status
			a.PermanentlyDeleted = nil
		})
	return err
}

func (s *Storage) Recover(ctx context.Context, id domain.AccountId, now time.Time) (bool, error) {
	return s.cas(id,
		func(a *domain.Account) bool {
			return a.Deleted && a.PermanentlyDeleted != nil && now.Before(*a.PermanentlyDeleted)
		},
		func(a *domain.Account) {
			a.Deleted = false
			a.Status = domain.StatusActive
			a.PermanentlyDeleted = nil
			a.LastRecovered = &now
		})
}

// UpdateProfile applies u to a live account. Username and email stay unique
// across all accounts, soft-deleted ones included.
func (s *Storage) UpdateProfile(ctx context.Context, id domain.AccountId, u domain.ProfileUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return false, internal_errors.ErrAccountNotFound
	}
	if a.Deleted {
		return false, nil
	}
	for _, other := range s.accounts {
		if other.Id == id {
			continue
		}
		if u.Username != nil && other.Username == *u.Username {
			return false, internal_errors.ErrUsernameTaken
		}
		if u.Email != nil && strings.EqualFold(other.Email, *u.Email) {
			return false, internal_errors.ErrEmailTaken
		}
	}
	u.Apply(a)
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

// HardDeleteExpired purges soft-deleted accounts whose deadline is not after now,
// together with their follow edges.
func (s *Storage) HardDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, a := range s.accounts {
		if a.Deleted && a.PermanentlyDeleted != nil && !a.PermanentlyDeleted.After(now) {
			delete(s.accounts, id)
			purged++
		}
	}
	for k := range s.edges {
		if _, ok := s.accounts[k.owner]; !ok {
			delete(s.edges, k)
			continue
		}
		if _, ok := s.accounts[k.follower]; !ok {
			delete(s.edges, k)
		}
	}
	return purged, nil
}
