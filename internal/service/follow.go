package service

import (
	"context"
	"time"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/metrics"
)

const (
	DefaultConnectionsPageSize = 3
	MaxConnectionsPageSize     = 10
)

type FollowService interface {
	RequestFollow(ctx context.Context, requester domain.Identity, target domain.AccountId) error
	AcceptFollow(ctx context.Context, owner domain.Identity, requester domain.AccountId) error
	RejectFollow(ctx context.Context, owner domain.Identity, requester domain.AccountId) error
	Connections(ctx context.Context, viewer domain.Identity, owner domain.AccountId, page, size int) (domain.ConnectionsPage, error)
}

// FollowStorage holds the follow sets of every owner. Each mutation is a single
// atomic statement; the bool results report whether a row was affected.
type FollowStorage interface {
	AccountByID(ctx context.Context, id domain.AccountId, opts ...domain.LookupOption) (domain.Account, error)
	AddFollowRequest(ctx context.Context, owner, follower domain.AccountId, at time.Time) (bool, error)
	AcceptFollowRequest(ctx context.Context, owner, follower domain.AccountId, at time.Time) (bool, error)
	RemoveFollowRequest(ctx context.Context, owner, follower domain.AccountId) (bool, error)
	Connections(ctx context.Context, owner domain.AccountId, state domain.FollowState, offset, limit int) ([]domain.Connection, int, error)
}

// FollowEvents receives follow graph changes for live delivery. Publishing is best effort.
type FollowEvents interface {
	FollowRequested(ctx context.Context, owner, follower domain.AccountId)
	FollowAccepted(ctx context.Context, owner, follower domain.AccountId)
}

type noEvents struct{}

func (noEvents) FollowRequested(context.Context, domain.AccountId, domain.AccountId) {}
func (noEvents) FollowAccepted(context.Context, domain.AccountId, domain.AccountId)  {}

type Follows struct {
	storage FollowStorage
	events  FollowEvents
	now     func() time.Time
}

type FollowsOption func(*Follows)

func WithFollowEvents(events FollowEvents) FollowsOption {
	return func(f *Follows) {
		if events != nil {
			f.events = events
		}
	}
}

func NewFollows(storage FollowStorage, opts ...FollowsOption) *Follows {
	f := &Follows{storage: storage, events: noEvents{}, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RequestFollow adds requester to the pending set of target.
func (f *Follows) RequestFollow(ctx context.Context, requester domain.Identity, target domain.AccountId) error {
	if requester.Id == target {
		return internal_errors.ErrSelfFollow
	}
	if _, err := f.storage.AccountByID(ctx, target); err != nil {
		return err
	}
	added, err := f.storage.AddFollowRequest(ctx, target, requester.Id, f.now().UTC())
	if err != nil {
		return err
	}
	if !added {
		return internal_errors.ErrDuplicateFollow
	}
	metrics.AccountTransitions.WithLabelValues("follow_request").Inc()
	logger.Log.Debug("follow requested", "owner", target, "follower", requester.Id)
	f.events.FollowRequested(ctx, target, requester.Id)
	return nil
}

// AcceptFollow moves requester from the pending to the established set of owner.
// A request withdrawn in the meantime yields NotFound and nothing is accepted.
func (f *Follows) AcceptFollow(ctx context.Context, owner domain.Identity, requester domain.AccountId) error {
	moved, err := f.storage.AcceptFollowRequest(ctx, owner.Id, requester, f.now().UTC())
	if err != nil {
		return err
	}
	if !moved {
		return internal_errors.ErrFollowRequestGone
	}
	metrics.AccountTransitions.WithLabelValues("follow_accept").Inc()
	f.events.FollowAccepted(ctx, owner.Id, requester)
	return nil
}

func (f *Follows) RejectFollow(ctx context.Context, owner domain.Identity, requester domain.AccountId) error {
	removed, err := f.storage.RemoveFollowRequest(ctx, owner.Id, requester)
	if err != nil {
		return err
	}
	if !removed {
		return internal_errors.ErrFollowRequestGone
	}
	metrics.AccountTransitions.WithLabelValues("follow_reject").Inc()
	return nil
}

// Connections pages both follow sets of owner independently. Only the owner
// and admins may read them.
func (f *Follows) Connections(ctx context.Context, viewer domain.Identity, owner domain.AccountId, page, size int) (domain.ConnectionsPage, error) {
	if viewer.Id != owner && !viewer.IsAdmin() {
		return domain.ConnectionsPage{}, internal_errors.ErrForbidden
	}
	page, size = normalizePage(page, size)
	offset := (page - 1) * size

	accepted, err := f.slice(ctx, owner, domain.FollowAccepted, offset, size)
	if err != nil {
		return domain.ConnectionsPage{}, err
	}
	requested, err := f.slice(ctx, owner, domain.FollowRequested, offset, size)
	if err != nil {
		return domain.ConnectionsPage{}, err
	}

	return domain.ConnectionsPage{
		Page:        page,
		Size:        size,
		Accepted:    accepted,
		Requested:   requested,
		HasNextPage: page < accepted.TotalPages || page < requested.TotalPages,
	}, nil
}

func (f *Follows) slice(ctx context.Context, owner domain.AccountId, state domain.FollowState, offset, limit int) (domain.ConnectionSlice, error) {
	items, total, err := f.storage.Connections(ctx, owner, state, offset, limit)
	if err != nil {
		return domain.ConnectionSlice{}, err
	}
	if items == nil {
		items = []domain.Connection{}
	}
	return domain.ConnectionSlice{
		Items:      items,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultConnectionsPageSize
	case size > MaxConnectionsPageSize:
		size = MaxConnectionsPageSize
	}
	return page, size
}
