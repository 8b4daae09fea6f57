package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/unclebandit/phishguard-backend/internal/db"
	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign, targets []model.CampaignTarget) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, orgID uuid.UUID, offset, limit int, status string) ([]*model.Campaign, int, error)

	// Lifecycle
	Transition(ctx context.Context, id uuid.UUID, from []string, to string, at time.Time) (bool, error)
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListStalledRunning(ctx context.Context, startedBefore, staleBefore time.Time, limit int) ([]uuid.UUID, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, org_id, template_id, name, description, status, target_type, target_config,
        scheduled_start, started_at, completed_at, total_targets, emails_sent, emails_opened,
        links_clicked, credentials_submitted, emails_reported, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.OrgID, &c.TemplateID, &c.Name, &c.Description, &c.Status, &c.TargetType, &c.TargetConfig,
		&c.ScheduledStart, &c.StartedAt, &c.CompletedAt, &c.TotalTargets, &c.EmailsSent, &c.EmailsOpened,
		&c.LinksClicked, &c.CredentialsSubmitted, &c.EmailsReported, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

// Create inserts the campaign together with its targets and bumps the template usage count.
func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign, targets []model.CampaignTarget) error {
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if len(c.TargetConfig) == 0 {
		c.TargetConfig = []byte("{}")
	}
	c.TotalTargets = len(targets)
	c.CreatedAt = now
	c.UpdatedAt = now

	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO campaigns (id, org_id, template_id, name, description, status, target_type, target_config,
                scheduled_start, total_targets, created_by, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			c.ID, c.OrgID, c.TemplateID, c.Name, c.Description, c.Status, c.TargetType, string(c.TargetConfig),
			c.ScheduledStart, c.TotalTargets, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}

		if len(targets) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
                INSERT INTO campaign_targets (id, campaign_id, user_id, tracking_token, status, created_at)
                VALUES ($1, $2, $3, $4, $5, $6)`)
			if err != nil {
				return fmt.Errorf("prepare targets: %w", err)
			}
			defer stmt.Close()

			for i := range targets {
				t := &targets[i]
				if t.ID == uuid.Nil {
					t.ID = uuid.New()
				}
				t.CampaignID = c.ID
				t.Status = model.TargetPending
				t.CreatedAt = now
				if _, err := stmt.ExecContext(ctx, t.ID, t.CampaignID, t.UserID, t.TrackingToken, t.Status, t.CreatedAt); err != nil {
					return fmt.Errorf("insert target: %w", err)
				}
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE templates SET times_used = times_used + 1 WHERE id = $1`, c.TemplateID)
		return err
	})
}

func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("campaign", id.String())
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, orgID uuid.UUID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	where := ` WHERE org_id = $1`
	args := []any{orgID}

	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// ====================== Lifecycle ======================

// Transition moves the campaign to status `to` only if its current status is one of `from`.
// It reports whether the row changed, so concurrent callers cannot both win.
func (r *CampaignRepository) Transition(ctx context.Context, id uuid.UUID, from []string, to string, at time.Time) (bool, error) {
	stamp := ""
	switch to {
	case model.CampaignRunning:
		stamp = ", started_at = $4"
	case model.CampaignCompleted, model.CampaignCancelled:
		stamp = ", completed_at = $4"
	}

	args := []any{to, id, pq.Array(from)}
	if stamp != "" {
		args = append(args, at)
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW()`+stamp+` WHERE id = $2 AND status = ANY($3)`,
		args...,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CampaignRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id FROM campaigns
        WHERE status = $1 AND scheduled_start <= $2
        ORDER BY scheduled_start
        LIMIT $3`, model.CampaignScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStalledRunning returns running campaigns started before startedBefore that still have
// pending targets or targets whose sending claim is older than staleBefore.
func (r *CampaignRepository) ListStalledRunning(ctx context.Context, startedBefore, staleBefore time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT c.id FROM campaigns c
        WHERE c.status = $1 AND c.started_at <= $2
          AND EXISTS (
              SELECT 1 FROM campaign_targets t
              WHERE t.campaign_id = c.id
                AND (t.status = $3 OR (t.status = $4 AND t.claimed_at < $5)))
        ORDER BY c.started_at
        LIMIT $6`,
		model.CampaignRunning, startedBefore, model.TargetPending, model.TargetSending, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
