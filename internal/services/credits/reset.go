package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/Jazys/instagen-sub000/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// ProcessDueResets resets every quota whose cycle boundary has passed.
// Each quota resets in its own transaction with the same guarded update as
// the lazy path, so the sweeper and a concurrent balance read cannot both
// reset the same cycle.
func (s *Service) ProcessDueResets(ctx context.Context) (int, error) {
	var userIDs []string
	err := s.db.WithContext(ctx).
		Model(&models.UserQuota{}).
		Where("next_reset_at <= ?", s.now()).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list due quotas: %w", err)
	}

	resetCount := 0
	for _, userID := range userIDs {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var quota models.UserQuota
			if err := tx.Where("user_id = ?", userID).First(&quota).Error; err != nil {
				return err
			}
			applied, err := s.applyReset(tx, &quota)
			if applied {
				resetCount++
			}
			return err
		})
		if err != nil {
			return resetCount, fmt.Errorf("failed to reset quota for %s: %w", userID, err)
		}
	}

	return resetCount, nil
}

// ResetSweeper periodically replenishes overdue quotas so dormant accounts
// are current when they come back. The lazy reset on read remains the
// correctness mechanism; the sweeper only tightens freshness.
type ResetSweeper struct {
	creditsService *Service
	interval       time.Duration
	stopChan       chan struct{}
}

func NewResetSweeper(creditsService *Service, interval time.Duration) *ResetSweeper {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &ResetSweeper{
		creditsService: creditsService,
		interval:       interval,
		stopChan:       make(chan struct{}),
	}
}

func (s *ResetSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fiberlog.Infof("Credit reset sweeper started, running every %s", s.interval)

	for {
		select {
		case <-ticker.C:
			count, err := s.creditsService.ProcessDueResets(ctx)
			if err != nil {
				fiberlog.Errorf("Error processing scheduled quota resets: %v", err)
			} else if count > 0 {
				fiberlog.Infof("Reset %d overdue quotas", count)
			}
		case <-s.stopChan:
			fiberlog.Info("Credit reset sweeper stopped")
			return
		case <-ctx.Done():
			fiberlog.Info("Credit reset sweeper stopped due to context cancellation")
			return
		}
	}
}

func (s *ResetSweeper) Stop() {
	close(s.stopChan)
}
