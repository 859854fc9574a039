package services

import (
	"context"
	"time"

	"github.com/appverse/authapi/internal/metrics"
	"github.com/appverse/authapi/internal/store"
	"github.com/appverse/authapi/pkg/logger"
)

// ChallengeSweeper deletes expired challenges on a fixed interval. Reads
// already ignore expired rows, so sweeping only bounds table growth.
type ChallengeSweeper struct {
	Challenges store.ChallengeStore
	Interval   time.Duration
}

func NewChallengeSweeper(challenges store.ChallengeStore, interval time.Duration) *ChallengeSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ChallengeSweeper{Challenges: challenges, Interval: interval}
}

func (s *ChallengeSweeper) SweepOnce(ctx context.Context) (int64, error) {
	swept, err := s.Challenges.SweepExpired(ctx)
	if err != nil {
		logger.Error("challenge_sweep_failed", err, nil)
		return 0, err
	}
	if swept > 0 {
		metrics.ChallengesSwept.Add(float64(swept))
		logger.Info("challenge_sweep_completed", map[string]interface{}{
			"deleted": swept,
		})
	}
	return swept, nil
}

// Run sweeps until ctx is cancelled. Sweep failures are logged and retried
// on the next tick.
func (s *ChallengeSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	logger.Info("challenge_sweeper_started", map[string]interface{}{
		"interval": s.Interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			logger.Info("challenge_sweeper_stopped", nil)
			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}
