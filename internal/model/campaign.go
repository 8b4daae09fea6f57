// internal/model/campaign.go
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignRunning   = "running"
	CampaignCompleted = "completed"
	CampaignCancelled = "cancelled"
)

const (
	TargetAll        = "all"
	TargetDepartment = "department"
	TargetCustom     = "custom"
)

type Campaign struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	OrgID                uuid.UUID       `db:"org_id" json:"org_id"`
	TemplateID           uuid.UUID       `db:"template_id" json:"template_id"`
	Name                 string          `db:"name" json:"name"`
	Description          string          `db:"description" json:"description,omitempty"`
	Status               string          `db:"status" json:"status"`
	TargetType           string          `db:"target_type" json:"target_type"`
	TargetConfig         json.RawMessage `db:"target_config" json:"target_config"`
	ScheduledStart       *time.Time      `db:"scheduled_start" json:"scheduled_start,omitempty"`
	StartedAt            *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt          *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	TotalTargets         int             `db:"total_targets" json:"total_targets"`
	EmailsSent           int             `db:"emails_sent" json:"emails_sent"`
	EmailsOpened         int             `db:"emails_opened" json:"emails_opened"`
	LinksClicked         int             `db:"links_clicked" json:"links_clicked"`
	CredentialsSubmitted int             `db:"credentials_submitted" json:"credentials_submitted"`
	EmailsReported       int             `db:"emails_reported" json:"emails_reported"`
	CreatedBy            *uuid.UUID      `db:"created_by" json:"created_by,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// transitions lists, per target status, the statuses a campaign may move from.
var transitions = map[string][]string{
	CampaignRunning:   {CampaignDraft, CampaignScheduled},
	CampaignCompleted: {CampaignRunning},
	CampaignCancelled: {CampaignDraft, CampaignScheduled, CampaignRunning},
}

// AllowedFrom returns the statuses from which a campaign can move to status.
func AllowedFrom(status string) []string {
	return transitions[status]
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

func IsTerminal(status string) bool {
	return status == CampaignCompleted || status == CampaignCancelled
}
