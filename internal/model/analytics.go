package model

import (
	"time"

	"github.com/google/uuid"
)

// OrgTotals is the raw aggregate over an organization's campaigns.
type OrgTotals struct {
	TotalCampaigns       int
	ActiveCampaigns      int
	TotalTargets         int
	EmailsSent           int
	EmailsOpened         int
	LinksClicked         int
	CredentialsSubmitted int
	EmailsReported       int
}

// DepartmentCounts is sent/clicked target counts for one department.
type DepartmentCounts struct {
	Department string
	Users      int
	Sent       int
	Clicked    int
}

type DailyCount struct {
	Day   time.Time
	Count int
}

type CampaignStats struct {
	CampaignID           uuid.UUID `json:"campaign_id"`
	Name                 string    `json:"name"`
	Status               string    `json:"status"`
	TotalTargets         int       `json:"total_targets"`
	EmailsSent           int       `json:"emails_sent"`
	EmailsOpened         int       `json:"emails_opened"`
	LinksClicked         int       `json:"links_clicked"`
	CredentialsSubmitted int       `json:"credentials_submitted"`
	OpenRate             float64   `json:"open_rate"`
	ClickRate            float64   `json:"click_rate"`
}

type DashboardSummary struct {
	TotalCampaigns        int     `json:"total_campaigns"`
	ActiveCampaigns       int     `json:"active_campaigns"`
	TotalTargetsSimulated int     `json:"total_targets_simulated"`
	TotalSent             int     `json:"total_sent"`
	TotalClicked          int     `json:"total_clicked"`
	TotalSubmitted        int     `json:"total_submitted"`
	TotalReported         int     `json:"total_reported"`
	AvgClickRate          float64 `json:"avg_click_rate"`
	AvgOpenRate           float64 `json:"avg_open_rate"`
}

type DepartmentRisk struct {
	Department string  `json:"department"`
	UserCount  int     `json:"user_count"`
	ClickRate  float64 `json:"click_rate"`
}

type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Dashboard struct {
	Summary          DashboardSummary  `json:"summary"`
	RecentCampaigns  []CampaignStats   `json:"recent_campaigns"`
	RiskByDepartment []DepartmentRisk  `json:"risk_by_department"`
	ClickTrend       []TimeSeriesPoint `json:"click_trend"`
}
