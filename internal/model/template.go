// internal/model/template.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Template struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	OrgID         *uuid.UUID `db:"org_id" json:"org_id,omitempty"` // nil for system templates
	Name          string     `db:"name" json:"name"`
	Subject       string     `db:"subject" json:"subject"`
	BodyHTML      string     `db:"body_html" json:"body_html"`
	BodyText      *string    `db:"body_text" json:"body_text,omitempty"`
	BrandName     string     `db:"brand_name" json:"brand_name"`
	BrandCategory string     `db:"brand_category" json:"brand_category"`
	AttackType    string     `db:"attack_type" json:"attack_type"`
	Difficulty    string     `db:"difficulty" json:"difficulty"`
	CountryCode   string     `db:"country_code" json:"country_code"`
	Language      string     `db:"language" json:"language"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	TimesUsed     int        `db:"times_used" json:"times_used"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
