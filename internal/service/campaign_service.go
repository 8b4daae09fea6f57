// internal/service/campaign_service.go
package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Targets   repository.TargetRepositoryInterface
	Templates repository.TemplateRepositoryInterface
	Users     repository.UserRepositoryInterface
	Resolver  *TargetResolver
	Queue     DispatchQueue

	BaseURL string
	Log     zerolog.Logger

	Now      func() time.Time
	NewToken func() (string, error)
}

type CreateCampaignInput struct {
	Name           string          `json:"name" validate:"required,max=255"`
	Description    string          `json:"description"`
	TemplateID     uuid.UUID       `json:"template_id" validate:"required"`
	TargetType     string          `json:"target_type" validate:"omitempty,oneof=all department custom"`
	TargetConfig   json.RawMessage `json:"target_config"`
	ScheduledStart *time.Time      `json:"scheduled_start"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *CampaignService) token() (string, error) {
	if s.NewToken != nil {
		return s.NewToken()
	}
	return NewTrackingToken()
}

// ====================== Create / Read ======================

// CreateCampaign resolves the audience and stores the campaign with one pending target per recipient.
// Campaigns with a future scheduled_start are created as scheduled, everything else as draft.
func (s *CampaignService) CreateCampaign(ctx context.Context, orgID, createdBy uuid.UUID, in CreateCampaignInput) (*model.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErrors.NewValidation("name", "name is required")
	}

	tmpl, err := s.Templates.GetByID(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsActive || (tmpl.OrgID != nil && *tmpl.OrgID != orgID) {
		return nil, appErrors.NewNotFound("template", in.TemplateID.String())
	}

	rule := in.TargetType
	if rule == "" {
		rule = model.TargetAll
	}
	userIDs, err := s.Resolver.Resolve(ctx, orgID, rule, in.TargetConfig)
	if err != nil {
		return nil, err
	}

	targets := make([]model.CampaignTarget, 0, len(userIDs))
	for _, uid := range userIDs {
		tok, err := s.token()
		if err != nil {
			return nil, err
		}
		targets = append(targets, model.CampaignTarget{UserID: uid, TrackingToken: tok})
	}

	c := &model.Campaign{
		OrgID:          orgID,
		TemplateID:     tmpl.ID,
		Name:           name,
		Description:    in.Description,
		Status:         model.CampaignDraft,
		TargetType:     rule,
		TargetConfig:   in.TargetConfig,
		ScheduledStart: in.ScheduledStart,
	}
	if createdBy != uuid.Nil {
		c.CreatedBy = &createdBy
	}
	if in.ScheduledStart != nil && in.ScheduledStart.After(s.now()) {
		c.Status = model.CampaignScheduled
	}

	if err := s.Campaigns.Create(ctx, c, targets); err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("campaign_id", c.ID.String()).
		Str("status", c.Status).
		Int("targets", c.TotalTargets).
		Msg("campaign created")
	return c, nil
}

// getOwned hides other organizations' campaigns behind a NotFoundError.
func (s *CampaignService) getOwned(ctx context.Context, orgID, id uuid.UUID) (*model.Campaign, error) {
	c, err := s.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OrgID != orgID {
		return nil, appErrors.NewNotFound("campaign", id.String())
	}
	return c, nil
}

// GetCampaignDetailsWithStats returns the campaign and a per-status breakdown of its targets.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, orgID, id uuid.UUID) (*CampaignDetails, error) {
	c, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.Targets.GetCampaignStats(ctx, id)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	stats["total"] = total

	return &CampaignDetails{Campaign: c, Stats: stats}, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func pagination(page, pageSize, total int) map[string]int {
	return map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
}

// ListCampaigns fetches campaigns with pagination, newest first.
func (s *CampaignService) ListCampaigns(ctx context.Context, orgID uuid.UUID, page, pageSize int, status string) ([]*model.Campaign, map[string]int, error) {
	page, pageSize = normalizePage(page, pageSize)

	campaigns, total, err := s.Campaigns.ListCampaigns(ctx, orgID, (page-1)*pageSize, pageSize, status)
	if err != nil {
		return nil, nil, err
	}
	return campaigns, pagination(page, pageSize, total), nil
}

func (s *CampaignService) ListTargets(ctx context.Context, orgID, id uuid.UUID, page, pageSize int) ([]model.CampaignTarget, map[string]int, error) {
	if _, err := s.getOwned(ctx, orgID, id); err != nil {
		return nil, nil, err
	}
	page, pageSize = normalizePage(page, pageSize)

	targets, total, err := s.Targets.ListTargets(ctx, id, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return targets, pagination(page, pageSize, total), nil
}

// PersonalizedPreview renders the campaign's template for one recipient without a real tracking token.
func (s *CampaignService) PersonalizedPreview(ctx context.Context, orgID, campaignID, userID uuid.UUID) (*RenderedEmail, error) {
	c, err := s.getOwned(ctx, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.OrgID != orgID {
		return nil, appErrors.NewNotFound("user", userID.String())
	}
	tmpl, err := s.Templates.GetByID(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}

	email := RenderEmail(tmpl, s.BaseURL, previewToken, user.Name)
	return &email, nil
}

// ====================== Lifecycle ======================

// LaunchCampaign moves a draft campaign to running and hands it to the dispatch queue.
// A campaign can be launched exactly once.
func (s *CampaignService) LaunchCampaign(ctx context.Context, orgID, id uuid.UUID) (*model.Campaign, error) {
	c, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignDraft {
		return nil, appErrors.NewInvalidState("launch", c.Status)
	}

	ok, err := s.Campaigns.Transition(ctx, id, []string{model.CampaignDraft}, model.CampaignRunning, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// another launch won the race
		return nil, s.invalidState(ctx, "launch", id)
	}
	s.Log.Info().Str("campaign_id", id.String()).Msg("campaign launched")

	if err := s.Queue.Enqueue(ctx, id); err != nil {
		// still running with pending targets; the scheduler's recovery pass enqueues it again
		s.Log.Error().Err(err).Str("campaign_id", id.String()).Msg("failed to dispatch campaign")
		return nil, err
	}
	return s.Campaigns.GetByID(ctx, id)
}

func (s *CampaignService) CancelCampaign(ctx context.Context, orgID, id uuid.UUID) (*model.Campaign, error) {
	return s.finish(ctx, orgID, id, "cancel", model.CampaignCancelled)
}

func (s *CampaignService) CompleteCampaign(ctx context.Context, orgID, id uuid.UUID) (*model.Campaign, error) {
	return s.finish(ctx, orgID, id, "complete", model.CampaignCompleted)
}

func (s *CampaignService) finish(ctx context.Context, orgID, id uuid.UUID, op, to string) (*model.Campaign, error) {
	c, err := s.getOwned(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(c.Status, to) {
		return nil, appErrors.NewInvalidState(op, c.Status)
	}

	ok, err := s.Campaigns.Transition(ctx, id, model.AllowedFrom(to), to, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.invalidState(ctx, op, id)
	}
	return s.Campaigns.GetByID(ctx, id)
}

func (s *CampaignService) invalidState(ctx context.Context, op string, id uuid.UUID) error {
	c, err := s.Campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return appErrors.NewInvalidState(op, c.Status)
}
