// stale_lock_sweeper.go implements the StaleLockSweeper background job, which
// periodically releases client key locks left behind by sessions that ended
// without a logout (browser crash, network drop). The sweep is a single bulk
// UPDATE and is idempotent, so overlapping runs or restarts are harmless. The
// used latch is never touched: a swept key stays consumed, it merely becomes
// able to admit its returning tenant again.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/workdesk/workdesk/internal/db/repositories"
	"github.com/workdesk/workdesk/internal/telemetry"
)

// StaleLockSweeper periodically unlocks client keys whose locks have outlived
// the configured timeout.
type StaleLockSweeper struct {
	keyRepo     *repositories.ClientKeyRepository
	lockTimeout time.Duration
	interval    time.Duration
	stopChan    chan struct{}
}

// NewStaleLockSweeper creates a new StaleLockSweeper. lockTimeout is how long
// a lock may stand before it is considered abandoned (default 30m); interval
// is how often the sweep runs (default 5m).
func NewStaleLockSweeper(keyRepo *repositories.ClientKeyRepository, lockTimeout, interval time.Duration) *StaleLockSweeper {
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StaleLockSweeper{
		keyRepo:     keyRepo,
		lockTimeout: lockTimeout,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop is called.
func (s *StaleLockSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("stale lock sweeper started",
		"lock_timeout", s.lockTimeout.String(),
		"interval", s.interval.String())

	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("stale lock sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("stale lock sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *StaleLockSweeper) Stop() {
	close(s.stopChan)
}

func (s *StaleLockSweeper) runSweep(ctx context.Context) {
	released, err := s.keyRepo.ReleaseStaleLocks(ctx, time.Now(), s.lockTimeout)
	if err != nil {
		slog.Error("stale lock sweep failed", "error", err)
		return
	}
	if released > 0 {
		telemetry.StaleLocksReleasedTotal.Add(float64(released))
		slog.Info("released stale client key locks", "count", released)
	}
}
