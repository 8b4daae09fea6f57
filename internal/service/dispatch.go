// internal/service/dispatch.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/mailer"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

// DispatchQueue hands a launched campaign over to whatever runs the Dispatcher.
type DispatchQueue interface {
	Enqueue(ctx context.Context, campaignID uuid.UUID) error
}

// DefaultClaimTTL is how long a target may sit in sending before another pass reclaims it.
const DefaultClaimTTL = time.Hour

// ErrInterrupted reports a dispatch whose context ended before every claimed target was tried.
// The untried targets are pending again, so the job is safe to retry.
var ErrInterrupted = errors.New("dispatch interrupted")

// DispatchResult summarizes one pass over a campaign's pending targets.
type DispatchResult struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Attempted  int       `json:"attempted"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
}

// Dispatcher sends one personalized email per pending target of a running campaign.
type Dispatcher struct {
	Campaigns repository.CampaignRepositoryInterface
	Targets   repository.TargetRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Mailer    mailer.Mailer
	Limiter   *rate.Limiter // nil sends as fast as the mailer allows

	SendTimeout time.Duration
	ClaimTTL    time.Duration // claims older than this are taken over by the next pass
	FromAddress string
	BaseURL     string

	Log zerolog.Logger
	Now func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// Dispatch claims the pending targets and walks them in order. A failed delivery marks that
// target failed and the loop moves on. If ctx ends mid-batch the unsent claims are handed back
// as pending and the error wraps ErrInterrupted. All outcomes are saved together at the end.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID) (*DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
	}

	campaign, err := d.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignRunning {
		return nil, appErrors.NewInvalidState("dispatch", campaign.Status)
	}

	tmpl, err := d.Templates.GetByID(ctx, campaign.TemplateID)
	if err != nil {
		return nil, err
	}

	now := d.now()
	recipients, err := d.Targets.ClaimPendingRecipients(ctx, campaignID, now, now.Add(-d.claimTTL()))
	if err != nil {
		return nil, err
	}

	log := d.Log.With().Str("campaign_id", campaignID.String()).Logger()
	log.Info().Int("recipients", len(recipients)).Msg("🚀 dispatching campaign")

	result := &DispatchResult{CampaignID: campaignID}
	updates := make([]model.TargetUpdate, 0, len(recipients))
	var interrupted error

	for i, rcpt := range recipients {
		if err := d.wait(ctx); err != nil {
			interrupted = err
		} else {
			email := RenderEmail(tmpl, d.BaseURL, rcpt.TrackingToken, rcpt.Name)
			msg := &mailer.Message{
				To:            rcpt.Email,
				ToName:        rcpt.Name,
				FromName:      email.FromName,
				FromAddress:   d.FromAddress,
				Subject:       email.Subject,
				HTML:          email.HTML,
				Text:          email.Text,
				CampaignID:    campaignID.String(),
				TrackingToken: rcpt.TrackingToken,
			}
			err = d.send(ctx, msg)
			if err != nil && ctx.Err() != nil {
				interrupted = ctx.Err()
			} else {
				result.Attempted++
				updates = append(updates, d.outcome(log, rcpt, err))
				if err != nil {
					result.Failed++
				}
				continue
			}
		}

		// the caller gave up; this and every later claim goes back to pending
		log.Warn().Err(interrupted).Int("released", len(recipients)-i).Msg("dispatch interrupted")
		for _, rest := range recipients[i:] {
			updates = append(updates, model.TargetUpdate{TargetID: rest.TargetID, Status: model.TargetPending})
		}
		break
	}

	// persist even if the caller's context was cancelled mid-batch
	sent, err := d.Targets.SaveDispatchResults(context.WithoutCancel(ctx), campaignID, updates)
	if err != nil {
		return nil, err
	}
	result.Sent = sent

	if interrupted != nil {
		return result, fmt.Errorf("%w: %v", ErrInterrupted, interrupted)
	}
	log.Info().Int("sent", result.Sent).Int("failed", result.Failed).Msg("✅ dispatch finished")
	return result, nil
}

func (d *Dispatcher) claimTTL() time.Duration {
	if d.ClaimTTL > 0 {
		return d.ClaimTTL
	}
	return DefaultClaimTTL
}

func (d *Dispatcher) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.Limiter == nil {
		return nil
	}
	return d.Limiter.Wait(ctx)
}

func (d *Dispatcher) outcome(log zerolog.Logger, rcpt model.TargetRecipient, err error) model.TargetUpdate {
	if err != nil {
		derr := appErrors.NewDelivery(rcpt.Email, err)
		log.Warn().Err(derr).Str("target_id", rcpt.TargetID.String()).Msg("⚠️ delivery failed")
		return model.TargetUpdate{TargetID: rcpt.TargetID, Status: model.TargetFailed, LastError: derr.Error()}
	}
	sentAt := d.now()
	return model.TargetUpdate{TargetID: rcpt.TargetID, Status: model.TargetSent, SentAt: &sentAt}
}

// send bounds one delivery by SendTimeout even when the mailer ignores its context.
func (d *Dispatcher) send(ctx context.Context, msg *mailer.Message) error {
	if d.SendTimeout <= 0 {
		return d.Mailer.Send(ctx, msg)
	}

	ctx, cancel := context.WithTimeout(ctx, d.SendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Mailer.Send(ctx, msg) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InlineDispatch runs the Dispatcher synchronously inside the launching request.
type InlineDispatch struct {
	Dispatcher *Dispatcher
}

func (q *InlineDispatch) Enqueue(ctx context.Context, campaignID uuid.UUID) error {
	_, err := q.Dispatcher.Dispatch(context.WithoutCancel(ctx), campaignID)
	return err
}
