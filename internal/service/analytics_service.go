package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

// DashboardCache stores computed dashboards for a short while.
type DashboardCache interface {
	GetDashboard(ctx context.Context, orgID uuid.UUID) (*model.Dashboard, bool)
	SetDashboard(ctx context.Context, orgID uuid.UUID, d *model.Dashboard)
}

type AnalyticsService struct {
	Repo  repository.AnalyticsRepositoryInterface
	Cache DashboardCache // optional

	RecentCampaigns int
	TrendDays       int

	Log zerolog.Logger
	Now func() time.Time
}

// Rate returns part/whole as a percentage rounded to two decimals, and 0 when whole is 0.
func Rate(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}

// Dashboard is a read-only projection over the organization's campaigns.
func (s *AnalyticsService) Dashboard(ctx context.Context, orgID uuid.UUID) (*model.Dashboard, error) {
	if s.Cache != nil {
		if d, ok := s.Cache.GetDashboard(ctx, orgID); ok {
			return d, nil
		}
	}

	totals, err := s.Repo.OrgTotals(ctx, orgID)
	if err != nil {
		return nil, err
	}

	limit := s.RecentCampaigns
	if limit <= 0 {
		limit = 5
	}
	recent, err := s.Repo.RecentCampaigns(ctx, orgID, limit)
	if err != nil {
		return nil, err
	}

	departments, err := s.Repo.DepartmentCounts(ctx, orgID)
	if err != nil {
		return nil, err
	}

	trend, err := s.clickTrend(ctx, orgID)
	if err != nil {
		return nil, err
	}

	d := &model.Dashboard{
		Summary: model.DashboardSummary{
			TotalCampaigns:        totals.TotalCampaigns,
			ActiveCampaigns:       totals.ActiveCampaigns,
			TotalTargetsSimulated: totals.TotalTargets,
			TotalSent:             totals.EmailsSent,
			TotalClicked:          totals.LinksClicked,
			TotalSubmitted:        totals.CredentialsSubmitted,
			TotalReported:         totals.EmailsReported,
			AvgClickRate:          Rate(totals.LinksClicked, totals.EmailsSent),
			AvgOpenRate:           Rate(totals.EmailsOpened, totals.EmailsSent),
		},
		RecentCampaigns:  make([]model.CampaignStats, 0, len(recent)),
		RiskByDepartment: make([]model.DepartmentRisk, 0, len(departments)),
		ClickTrend:       trend,
	}

	for _, c := range recent {
		d.RecentCampaigns = append(d.RecentCampaigns, CampaignStatsOf(c))
	}
	for _, dep := range departments {
		d.RiskByDepartment = append(d.RiskByDepartment, model.DepartmentRisk{
			Department: dep.Department,
			UserCount:  dep.Users,
			ClickRate:  Rate(dep.Clicked, dep.Sent),
		})
	}

	if s.Cache != nil {
		s.Cache.SetDashboard(ctx, orgID, d)
	}
	return d, nil
}

func CampaignStatsOf(c *model.Campaign) model.CampaignStats {
	return model.CampaignStats{
		CampaignID:           c.ID,
		Name:                 c.Name,
		Status:               c.Status,
		TotalTargets:         c.TotalTargets,
		EmailsSent:           c.EmailsSent,
		EmailsOpened:         c.EmailsOpened,
		LinksClicked:         c.LinksClicked,
		CredentialsSubmitted: c.CredentialsSubmitted,
		OpenRate:             Rate(c.EmailsOpened, c.EmailsSent),
		ClickRate:            Rate(c.LinksClicked, c.EmailsSent),
	}
}

// clickTrend returns one point per day, oldest first, with zero-filled gaps.
func (s *AnalyticsService) clickTrend(ctx context.Context, orgID uuid.UUID) ([]model.TimeSeriesPoint, error) {
	days := s.TrendDays
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))

	counts, err := s.Repo.DailyClicks(ctx, orgID, since)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]int, len(counts))
	for _, c := range counts {
		byDay[c.Day.UTC().Format(time.DateOnly)] += c.Count
	}

	points := make([]model.TimeSeriesPoint, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format(time.DateOnly)
		points = append(points, model.TimeSeriesPoint{Date: day, Count: byDay[day]})
	}
	return points, nil
}
