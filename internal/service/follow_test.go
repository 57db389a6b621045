package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFollow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.confirmed(t, "alice")
	bob := env.confirmed(t, "bob")

	assert.ErrorIs(t, env.follows.RequestFollow(ctx, identityOf(alice), alice.Id), internal_errors.ErrSelfFollow)
	assert.ErrorIs(t, env.follows.RequestFollow(ctx, identityOf(alice), 999), internal_errors.ErrAccountNotFound)

	require.NoError(t, env.follows.RequestFollow(ctx, identityOf(alice), bob.Id))
	err := env.follows.RequestFollow(ctx, identityOf(alice), bob.Id)
	assert.ErrorIs(t, err, internal_errors.ErrDuplicateFollow)
	assert.True(t, internal_errors.IsKind(err, internal_errors.KindConflict))

	page, err := env.follows.Connections(ctx, identityOf(bob), bob.Id, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Requested.Items, 1)
	assert.Equal(t, alice.Id, page.Requested.Items[0].AccountId)
	assert.Equal(t, 1, page.Requested.Total)
	assert.Empty(t, page.Accepted.Items)
}

func TestRequestFollow_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.confirmed(t, "alice")
	bob := env.confirmed(t, "bob")

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.follows.RequestFollow(ctx, identityOf(alice), bob.Id)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, internal_errors.ErrDuplicateFollow)
	}
	assert.Equal(t, 1, succeeded)

	page, err := env.follows.Connections(ctx, identityOf(bob), bob.Id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Requested.Total)
}

func TestAcceptRejectFollow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.confirmed(t, "alice")
	bob := env.confirmed(t, "bob")
	carol := env.confirmed(t, "carol")

	require.NoError(t, env.follows.RequestFollow(ctx, identityOf(alice), bob.Id))
	require.NoError(t, env.follows.RequestFollow(ctx, identityOf(carol), bob.Id))

	require.NoError(t, env.follows.AcceptFollow(ctx, identityOf(bob), alice.Id))
	assert.ErrorIs(t, env.follows.AcceptFollow(ctx, identityOf(bob), alice.Id), internal_errors.ErrFollowRequestGone)
	assert.ErrorIs(t, env.follows.RequestFollow(ctx, identityOf(alice), bob.Id), internal_errors.ErrDuplicateFollow)

	require.NoError(t, env.follows.RejectFollow(ctx, identityOf(bob), carol.Id))
	// withdrawn request can't be accepted afterwards
	assert.ErrorIs(t, env.follows.AcceptFollow(ctx, identityOf(bob), carol.Id), internal_errors.ErrFollowRequestGone)
	assert.ErrorIs(t, env.follows.RejectFollow(ctx, identityOf(bob), carol.Id), internal_errors.ErrFollowRequestGone)
	// accepted connections are not pending requests
	assert.ErrorIs(t, env.follows.RejectFollow(ctx, identityOf(bob), alice.Id), internal_errors.ErrFollowRequestGone)

	page, err := env.follows.Connections(ctx, identityOf(bob), bob.Id, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Accepted.Items, 1)
	assert.Equal(t, alice.Id, page.Accepted.Items[0].AccountId)
	assert.Equal(t, domain.FollowAccepted, page.Accepted.Items[0].State)
	assert.Empty(t, page.Requested.Items)
}

func TestAcceptFollow_RacingWithReject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.confirmed(t, "alice")
	bob := env.confirmed(t, "bob")
	require.NoError(t, env.follows.RequestFollow(ctx, identityOf(alice), bob.Id))

	var wg sync.WaitGroup
	var acceptErr, rejectErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		acceptErr = env.follows.AcceptFollow(ctx, identityOf(bob), alice.Id)
	}()
	go func() {
		defer wg.Done()
		rejectErr = env.follows.RejectFollow(ctx, identityOf(bob), alice.Id)
	}()
	wg.Wait()

	page, err := env.follows.Connections(ctx, identityOf(bob), bob.Id, 1, 10)
	require.NoError(t, err)
	if acceptErr == nil {
		assert.ErrorIs(t, rejectErr, internal_errors.ErrFollowRequestGone)
		assert.Equal(t, 1, page.Accepted.Total)
	} else {
		assert.ErrorIs(t, acceptErr, internal_errors.ErrFollowRequestGone)
		assert.NoError(t, rejectErr)
		assert.Zero(t, page.Accepted.Total)
	}
	assert.Zero(t, page.Requested.Total)
}

func TestConnections_PagingAndOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.confirmed(t, "owner")

	// requesters named so that name order and request order differ
	names := []string{"dave", "bob", "erin", "carl", "amy"}
	byName := map[string]domain.Account{}
	for _, n := range names {
		a := env.confirmed(t, n)
		byName[n] = a
		require.NoError(t, env.follows.RequestFollow(ctx, identityOf(a), owner.Id))
		env.clock.Advance(time.Minute)
	}
	for _, n := range []string{"erin", "bob", "amy"} {
		require.NoError(t, env.follows.AcceptFollow(ctx, identityOf(owner), byName[n].Id))
	}

	page, err := env.follows.Connections(ctx, identityOf(owner), owner.Id, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Size)
	assert.Equal(t, 3, page.Accepted.Total)
	assert.Equal(t, 2, page.Accepted.TotalPages)
	assert.Equal(t, []string{"amy", "bob"}, usernames(page.Accepted.Items))
	// most recent request first
	assert.Equal(t, []string{"carl", "dave"}, usernames(page.Requested.Items))
	assert.Equal(t, 1, page.Requested.TotalPages)
	assert.True(t, page.HasNextPage)

	page, err = env.follows.Connections(ctx, identityOf(owner), owner.Id, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"erin"}, usernames(page.Accepted.Items))
	assert.Empty(t, page.Requested.Items)
	assert.NotNil(t, page.Requested.Items)
	assert.False(t, page.HasNextPage)
}

func TestConnections_PageBounds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.confirmed(t, "owner")

	page, err := env.follows.Connections(ctx, identityOf(owner), owner.Id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultConnectionsPageSize, page.Size)
	assert.False(t, page.HasNextPage)

	page, err = env.follows.Connections(ctx, identityOf(owner), owner.Id, 3, 500)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, MaxConnectionsPageSize, page.Size)
}

func TestConnections_HidesSoftDeleted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.confirmed(t, "owner")
	gone, _ := env.loggedIn(t, "gone")
	stays := env.confirmed(t, "stays")

	require.NoError(t, env.follows.RequestFollow(ctx, identityOf(gone), owner.Id))
	require.NoError(t, env.follows.RequestFollow(ctx, identityOf(stays), owner.Id))
	require.NoError(t, env.accounts.SoftDelete(ctx, identityOf(gone)))

	page, err := env.follows.Connections(ctx, identityOf(owner), owner.Id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"stays"}, usernames(page.Requested.Items))
	assert.Equal(t, 1, page.Requested.Total)
}

func TestConnections_OnlyOwnerOrAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.confirmed(t, "alice")
	bob := env.confirmed(t, "bob")
	mallory := env.confirmed(t, "mallory")
	require.NoError(t, env.follows.RequestFollow(ctx, identityOf(bob), alice.Id))

	_, err := env.follows.Connections(ctx, identityOf(mallory), alice.Id, 1, 10)
	assert.ErrorIs(t, err, internal_errors.ErrForbidden)
	assert.True(t, internal_errors.IsKind(err, internal_errors.KindForbidden))

	admin := identityOf(mallory)
	admin.Role = domain.RoleAdmin
	page, err := env.follows.Connections(ctx, admin, alice.Id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, usernames(page.Requested.Items))
}

func usernames(items []domain.Connection) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.Username)
	}
	return out
}

type recordedEvent struct {
	kind            string
	owner, follower domain.AccountId
}

type MockFollowEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (m *MockFollowEvents) FollowRequested(_ context.Context, owner, follower domain.AccountId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{"requested", owner, follower})
}

func (m *MockFollowEvents) FollowAccepted(_ context.Context, owner, follower domain.AccountId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedEvent{"accepted", owner, follower})
}

func TestFollowEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.confirmed(t, "alice")
	bob := env.confirmed(t, "bob")

	events := &MockFollowEvents{}
	follows := NewFollows(env.store, WithFollowEvents(events))

	require.NoError(t, follows.RequestFollow(ctx, identityOf(alice), bob.Id))
	assert.ErrorIs(t, follows.RequestFollow(ctx, identityOf(alice), bob.Id), internal_errors.ErrDuplicateFollow)
	require.NoError(t, follows.AcceptFollow(ctx, identityOf(bob), alice.Id))

	assert.Equal(t, []recordedEvent{
		{"requested", bob.Id, alice.Id},
		{"accepted", bob.Id, alice.Id},
	}, events.events)
}
