// invitation_sweeper.go implements the InvitationSweeper background job, which
// periodically hard-deletes invitations whose expiry passed. Expired invitations
// are already unacceptable the moment their expires_at passes; the sweeper only
// reclaims the rows so the invitations table does not grow without bound.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/classdesk/classdesk/internal/db/repositories"
	"github.com/classdesk/classdesk/internal/telemetry"
)

// InvitationSweeper periodically deletes expired invitation rows.
type InvitationSweeper struct {
	invitationRepo *repositories.InvitationRepository
	interval       time.Duration
	stopChan       chan struct{}
}

// NewInvitationSweeper creates a new InvitationSweeper.
// intervalHours controls how often the sweep runs (default 24h).
func NewInvitationSweeper(invitationRepo *repositories.InvitationRepository, intervalHours int) *InvitationSweeper {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	return &InvitationSweeper{
		invitationRepo: invitationRepo,
		interval:       time.Duration(intervalHours) * time.Hour,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep immediately,
// then repeats on the configured interval. The loop exits when ctx is cancelled
// or Stop() is called.
func (s *InvitationSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("invitation sweeper started", "interval", s.interval)

	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("invitation sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("invitation sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *InvitationSweeper) Stop() {
	close(s.stopChan)
}

// runSweep deletes invitations that expired before now.
func (s *InvitationSweeper) runSweep(ctx context.Context) {
	deleted, err := s.invitationRepo.DeleteExpiredBefore(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("invitation sweeper: sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		telemetry.InvitationsSweptTotal.Add(float64(deleted))
		slog.Info("invitation sweeper: removed expired invitations", "count", deleted)
	}
}
