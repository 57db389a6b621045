// Package sweep hard-deletes accounts whose recovery window has elapsed.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/metrics"
)

type Storage interface {
	HardDeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stats describes the last sweep run.
type Stats struct {
	RunAt      time.Time
	Purged     int64
	DurationMs int64
	Err        error
}

type Sweeper struct {
	storage Storage
	now     func() time.Time

	mu   sync.Mutex
	last Stats
}

func New(storage Storage, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{storage: storage, now: now}
}

// Start runs a sweep every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("sweeper started", "interval", interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					logger.Log.Error("sweep failed", "error", err)
				}
			case <-ctx.Done():
				logger.Log.Info("sweeper stopped")
				return
			}
		}
	}()
}

// RunOnce executes a single sweep. It is what the sweep command calls.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	runAt := s.now().UTC()

	purged, err := s.storage.HardDeleteExpired(ctx, runAt)

	stats := Stats{RunAt: runAt, Purged: purged, DurationMs: time.Since(start).Milliseconds(), Err: err}
	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.SweepRuns.WithLabelValues("ok").Inc()
	metrics.SweepPurged.Add(float64(purged))
	if purged > 0 {
		logger.Log.Info("sweep completed", "purged", purged, "duration_ms", stats.DurationMs)
	}
	return purged, nil
}

func (s *Sweeper) LastStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
