package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

// Scheduler launches scheduled campaigns once their start time has passed, and re-enqueues
// running campaigns whose dispatch never finished.
type Scheduler struct {
	Campaigns repository.CampaignRepositoryInterface
	Queue     DispatchQueue
	Interval  time.Duration
	BatchSize int

	// RecoverAfter is how long a running campaign may keep pending targets before it is
	// enqueued again. ClaimTTL matches the Dispatcher's.
	RecoverAfter time.Duration
	ClaimTTL     time.Duration

	Log zerolog.Logger
	Now func() time.Time
}

// Run polls until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Log.Info().Dur("interval", interval).Msg("⏰ scheduler started")
	for {
		if _, err := s.Tick(ctx); err != nil {
			s.Log.Error().Err(err).Msg("scheduler tick failed")
		}
		if _, err := s.Recover(ctx); err != nil {
			s.Log.Error().Err(err).Msg("dispatch recovery failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick launches every due campaign and returns how many it launched.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.Campaigns.ListDueScheduled(ctx, now, s.batch())
	if err != nil {
		return 0, err
	}

	launched := 0
	for _, id := range due {
		ok, err := s.Campaigns.Transition(ctx, id, []string{model.CampaignScheduled}, model.CampaignRunning, now)
		if err != nil {
			return launched, err
		}
		if !ok {
			// cancelled or launched elsewhere in the meantime
			continue
		}
		launched++
		s.Log.Info().Str("campaign_id", id.String()).Msg("scheduled campaign started")

		if err := s.Queue.Enqueue(ctx, id); err != nil {
			s.Log.Error().Err(err).Str("campaign_id", id.String()).Msg("failed to dispatch scheduled campaign")
		}
	}
	return launched, nil
}

// Recover enqueues running campaigns that still have unsent targets well after they started,
// which covers a failed enqueue, a crashed worker or a dropped queue message. It returns how
// many it enqueued. Dispatch claims targets, so a campaign enqueued twice is still sent once.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	now := s.now()
	after := s.RecoverAfter
	if after <= 0 {
		after = DefaultRecoverAfter
	}
	ttl := s.ClaimTTL
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}

	stalled, err := s.Campaigns.ListStalledRunning(ctx, now.Add(-after), now.Add(-ttl), s.batch())
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range stalled {
		if err := s.Queue.Enqueue(ctx, id); err != nil {
			s.Log.Error().Err(err).Str("campaign_id", id.String()).Msg("failed to re-enqueue stalled campaign")
			continue
		}
		enqueued++
		s.Log.Warn().Str("campaign_id", id.String()).Msg("🔁 stalled campaign re-enqueued")
	}
	return enqueued, nil
}

// DefaultRecoverAfter is the grace period before a running campaign counts as stalled.
const DefaultRecoverAfter = 5 * time.Minute

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Scheduler) batch() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return 50
}
