// internal/model/campaign_target.go
package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	TargetPending   = "pending"
	TargetSending   = "sending" // claimed by a running dispatch
	TargetSent      = "sent"
	TargetFailed    = "failed"
	TargetOpened    = "opened"
	TargetClicked   = "clicked"
	TargetSubmitted = "submitted"
)

type CampaignTarget struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	CampaignID    uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	TrackingToken string     `db:"tracking_token" json:"-"`
	Status        string     `db:"status" json:"status"` // pending, sending, sent, failed, opened, clicked, submitted
	SentAt        *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt      *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt     *time.Time `db:"clicked_at" json:"clicked_at,omitempty"`
	SubmittedAt   *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ReportedAt    *time.Time `db:"reported_at" json:"reported_at,omitempty"`
	LastError     string     `db:"last_error" json:"last_error,omitempty"`
	ClaimedAt     *time.Time `db:"claimed_at" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// TargetRecipient is a claimed target joined with the user it will be sent to.
type TargetRecipient struct {
	TargetID      uuid.UUID
	CreatedAt     time.Time
	TrackingToken string
	UserID        uuid.UUID
	Email         string
	Name          string
}

// TargetUpdate is the outcome of one delivery attempt, persisted at the end of a dispatch batch.
// Status pending hands an unattempted claim back.
type TargetUpdate struct {
	TargetID  uuid.UUID
	Status    string
	SentAt    *time.Time
	LastError string
}
