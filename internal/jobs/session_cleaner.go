// session_cleaner.go implements the SessionCleaner background job, which
// removes expired session rows. Expired sessions are already rejected at
// request time; this job only keeps the table from growing without bound.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/workdesk/workdesk/internal/db/repositories"
)

// SessionCleaner periodically deletes expired sessions.
type SessionCleaner struct {
	sessionRepo *repositories.SessionRepository
	interval    time.Duration
	stopChan    chan struct{}
}

// NewSessionCleaner creates a new SessionCleaner. interval defaults to 1h.
func NewSessionCleaner(sessionRepo *repositories.SessionRepository, interval time.Duration) *SessionCleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionCleaner{
		sessionRepo: sessionRepo,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the cleanup loop. The loop exits when ctx is cancelled or
// Stop is called.
func (s *SessionCleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("session cleaner started", "interval", s.interval.String())

	s.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runCleanup(ctx)
		case <-s.stopChan:
			slog.Info("session cleaner stopped")
			return
		case <-ctx.Done():
			slog.Info("session cleaner context cancelled")
			return
		}
	}
}

// Stop signals the cleanup loop to exit.
func (s *SessionCleaner) Stop() {
	close(s.stopChan)
}

func (s *SessionCleaner) runCleanup(ctx context.Context) {
	removed, err := s.sessionRepo.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		slog.Error("session cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("removed expired sessions", "count", removed)
	}
}
