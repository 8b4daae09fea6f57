package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/phishguard-backend/internal/model"
)

type AnalyticsRepositoryInterface interface {
	OrgTotals(ctx context.Context, orgID uuid.UUID) (*model.OrgTotals, error)
	RecentCampaigns(ctx context.Context, orgID uuid.UUID, limit int) ([]*model.Campaign, error)
	DepartmentCounts(ctx context.Context, orgID uuid.UUID) ([]model.DepartmentCounts, error)
	DailyClicks(ctx context.Context, orgID uuid.UUID, since time.Time) ([]model.DailyCount, error)
}

type AnalyticsRepository struct {
	DB *sql.DB
}

func (r *AnalyticsRepository) OrgTotals(ctx context.Context, orgID uuid.UUID) (*model.OrgTotals, error) {
	var t model.OrgTotals
	err := r.DB.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(total_targets), 0),
               COALESCE(SUM(emails_sent), 0),
               COALESCE(SUM(emails_opened), 0),
               COALESCE(SUM(links_clicked), 0),
               COALESCE(SUM(credentials_submitted), 0),
               COALESCE(SUM(emails_reported), 0)
        FROM campaigns WHERE org_id = $1`, orgID,
	).Scan(&t.TotalCampaigns, &t.ActiveCampaigns, &t.TotalTargets, &t.EmailsSent,
		&t.EmailsOpened, &t.LinksClicked, &t.CredentialsSubmitted, &t.EmailsReported)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *AnalyticsRepository) RecentCampaigns(ctx context.Context, orgID uuid.UUID, limit int) ([]*model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// DepartmentCounts groups sent targets of the organization's campaigns by recipient department.
func (r *AnalyticsRepository) DepartmentCounts(ctx context.Context, orgID uuid.UUID) ([]model.DepartmentCounts, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT COALESCE(u.department, 'Unassigned'),
               COUNT(DISTINCT u.id),
               COUNT(*),
               COUNT(t.clicked_at)
        FROM campaign_targets t
        JOIN campaigns c ON c.id = t.campaign_id
        JOIN users u ON u.id = t.user_id
        WHERE c.org_id = $1 AND t.sent_at IS NOT NULL
        GROUP BY 1
        ORDER BY 1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DepartmentCounts{}
	for rows.Next() {
		var d model.DepartmentCounts
		if err := rows.Scan(&d.Department, &d.Users, &d.Sent, &d.Clicked); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *AnalyticsRepository) DailyClicks(ctx context.Context, orgID uuid.UUID, since time.Time) ([]model.DailyCount, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT date_trunc('day', t.clicked_at) AS day, COUNT(*)
        FROM campaign_targets t
        JOIN campaigns c ON c.id = t.campaign_id
        WHERE c.org_id = $1 AND t.clicked_at >= $2
        GROUP BY day
        ORDER BY day`, orgID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DailyCount{}
	for rows.Next() {
		var d model.DailyCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

var _ AnalyticsRepositoryInterface = (*AnalyticsRepository)(nil)
