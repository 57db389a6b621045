package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linkup-dev/linkup/internal/domain"
	"github.com/linkup-dev/linkup/internal/metrics"
	"github.com/linkup-dev/linkup/internal/storage/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockStorage struct {
	HardDeleteExpiredFunc func(ctx context.Context, now time.Time) (int64, error)
	calls                 atomic.Int32
}

func (m *MockStorage) HardDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.calls.Add(1)
	if m.HardDeleteExpiredFunc != nil {
		return m.HardDeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

func seedDeleted(t *testing.T, store *memory.Storage, username string, deadline time.Time) domain.AccountId {
	t.Helper()
	ctx := context.Background()
	id, err := store.CreateAccount(ctx, domain.Account{
		Username:     username,
		Email:        username + "@mail.test",
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		Availability: domain.Offline,
		Confirmed:    true,
	})
	require.NoError(t, err)
	swapped, err := store.SoftDelete(ctx, id, deadline)
	require.NoError(t, err)
	require.True(t, swapped)
	return id
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := memory.New()

	expired := seedDeleted(t, store, "expired", now.Add(-time.Hour))
	onDeadline := seedDeleted(t, store, "ondeadline", now)
	pending := seedDeleted(t, store, "pending", now.Add(time.Hour))

	before := testutil.ToFloat64(metrics.SweepPurged)
	s := New(store, func() time.Time { return now })
	purged, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.SweepPurged))

	for _, id := range []domain.AccountId{expired, onDeadline} {
		_, err := store.AccountByID(ctx, id, domain.WithDeleted())
		assert.Error(t, err)
	}
	_, err = store.AccountByID(ctx, pending, domain.WithDeleted())
	assert.NoError(t, err)

	stats := s.LastStats()
	assert.Equal(t, now, stats.RunAt)
	assert.Equal(t, int64(2), stats.Purged)
	assert.NoError(t, stats.Err)
}

func TestRunOnceError(t *testing.T) {
	boom := errors.New("boom")
	s := New(&MockStorage{HardDeleteExpiredFunc: func(ctx context.Context, now time.Time) (int64, error) {
		return 0, boom
	}}, nil)

	before := testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("error"))
	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.LastStats().Err, boom)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("error")))
}

func TestStartStopsWithContext(t *testing.T) {
	storage := &MockStorage{}
	s := New(storage, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return storage.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	time.Sleep(50 * time.Millisecond)
	stopped := storage.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, storage.calls.Load())
}
