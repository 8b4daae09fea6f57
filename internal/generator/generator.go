// Package generator drafts phishing templates from a short scenario description.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Request describes the lure to draft.
type Request struct {
	Prompt        string `json:"prompt" validate:"required,max=1000"`
	CountryCode   string `json:"country_code" validate:"omitempty,len=2"`
	Language      string `json:"language" validate:"omitempty,max=10"`
	BrandCategory string `json:"brand_category" validate:"omitempty,max=50"`
}

// withDefaults fills the optional fields the way the dashboard form does.
func (r Request) withDefaults() Request {
	if r.CountryCode == "" {
		r.CountryCode = "MY"
	}
	if r.Language == "" {
		r.Language = "en"
	}
	if r.BrandCategory == "" {
		r.BrandCategory = "general"
	}
	r.CountryCode = strings.ToUpper(r.CountryCode)
	return r
}

// Draft is generated content an admin reviews before saving it as a template.
type Draft struct {
	Subject              string `json:"subject"`
	BodyHTML             string `json:"body_html"`
	BodyText             string `json:"body_text"`
	Difficulty           string `json:"difficulty"`
	EstimatedSuccessRate string `json:"estimated_success_rate"`
}

type Generator interface {
	Generate(ctx context.Context, req Request) (*Draft, error)
}

// Mock returns a fixed urgent-alert lure. It needs no credentials.
type Mock struct{}

func (Mock) Generate(ctx context.Context, req Request) (*Draft, error) {
	req = req.withDefaults()
	category := cases.Title(language.English).String(req.BrandCategory)
	return &Draft{
		Subject:              fmt.Sprintf("URGENT: %s Alert", category),
		BodyHTML:             fmt.Sprintf("<h1>%s Alert</h1><p>Please update your details for %s.</p><a href='{{link}}'>Verify Now</a>", category, req.Prompt),
		BodyText:             fmt.Sprintf("Please update your details for %s. Verify at: {{link}}", req.Prompt),
		Difficulty:           "intermediate",
		EstimatedSuccessRate: "high",
	}, nil
}

// Fallback uses Primary and answers with Mock whenever it errors or returns a draft
// that could not be saved as a template.
type Fallback struct {
	Primary Generator
	Timeout time.Duration // bounds each Primary call; 0 leaves it to ctx
	Log     zerolog.Logger
}

func (f *Fallback) Generate(ctx context.Context, req Request) (*Draft, error) {
	req = req.withDefaults()
	if f.Primary != nil {
		pctx := ctx
		if f.Timeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(ctx, f.Timeout)
			defer cancel()
		}
		draft, err := f.Primary.Generate(pctx, req)
		if err == nil {
			err = draft.usable()
		}
		if err == nil {
			return draft, nil
		}
		f.Log.Warn().Err(err).Msg("⚠️ template generation failed, using mock")
	}
	return Mock{}.Generate(ctx, req)
}

func (d *Draft) usable() error {
	if strings.TrimSpace(d.Subject) == "" || strings.TrimSpace(d.BodyHTML) == "" {
		return fmt.Errorf("generated draft is missing subject or body")
	}
	if !strings.Contains(d.BodyHTML, "{{link}}") {
		return fmt.Errorf("generated draft has no {{link}} placeholder")
	}
	return nil
}
