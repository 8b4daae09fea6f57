// internal/service/template_service.go
package service

import (
	"context"
	"html"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

const (
	PlaceholderLink = "{{link}}"
	PlaceholderName = "{{name}}"

	// DefaultTextBody is sent when a template has no plain-text alternative.
	DefaultTextBody = "Please enable HTML to view this message."

	previewToken = "preview"
)

// RenderTemplate substitutes every placeholder key in data in one pass, so values
// that themselves look like placeholders are never expanded. Unknown placeholders stay as they are.
func RenderTemplate(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// RenderedEmail is a template personalized for one recipient.
type RenderedEmail struct {
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
	FromName string `json:"from_name"`
	Link     string `json:"link"`
}

// TrackingLink builds the per-recipient link embedded in the email.
func TrackingLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/" + token
}

// RenderEmail personalizes t for one recipient. The display name is escaped in the HTML body only.
func RenderEmail(t *model.Template, baseURL, token, name string) RenderedEmail {
	link := TrackingLink(baseURL, token)

	text := DefaultTextBody
	if t.BodyText != nil && strings.TrimSpace(*t.BodyText) != "" {
		text = RenderTemplate(*t.BodyText, map[string]string{
			PlaceholderLink: link,
			PlaceholderName: name,
		})
	}

	return RenderedEmail{
		Subject: RenderTemplate(t.Subject, map[string]string{PlaceholderName: name}),
		HTML: RenderTemplate(t.BodyHTML, map[string]string{
			PlaceholderLink: link,
			PlaceholderName: html.EscapeString(name),
		}),
		Text:     text,
		FromName: t.BrandName,
		Link:     link,
	}
}

// ====================== Template catalogue ======================

type CreateTemplateInput struct {
	Name          string  `json:"name" validate:"required,max=255"`
	Subject       string  `json:"subject" validate:"required,max=500"`
	BodyHTML      string  `json:"body_html" validate:"required"`
	BodyText      *string `json:"body_text"`
	BrandName     string  `json:"brand_name" validate:"required,max=100"`
	BrandCategory string  `json:"brand_category" validate:"required,max=50"`
	AttackType    string  `json:"attack_type" validate:"required,max=50"`
	Difficulty    string  `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	CountryCode   string  `json:"country_code" validate:"required,len=2"`
	Language      string  `json:"language" validate:"omitempty,max=10"`
}

type TemplateService struct {
	Templates repository.TemplateRepositoryInterface
}

// List returns the system templates plus the organization's own.
func (s *TemplateService) List(ctx context.Context, orgID uuid.UUID, country, category string) ([]model.Template, error) {
	return s.Templates.List(ctx, orgID, strings.ToUpper(country), category)
}

// Get hides other organizations' templates behind a NotFoundError.
func (s *TemplateService) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Template, error) {
	t, err := s.Templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OrgID != nil && *t.OrgID != orgID {
		return nil, appErrors.NewNotFound("template", id.String())
	}
	return t, nil
}

func (s *TemplateService) Create(ctx context.Context, orgID uuid.UUID, in CreateTemplateInput) (*model.Template, error) {
	if !strings.Contains(in.BodyHTML, PlaceholderLink) {
		return nil, appErrors.NewValidation("body_html", "must contain the "+PlaceholderLink+" placeholder")
	}

	t := &model.Template{
		OrgID:         &orgID,
		Name:          in.Name,
		Subject:       in.Subject,
		BodyHTML:      in.BodyHTML,
		BodyText:      in.BodyText,
		BrandName:     in.BrandName,
		BrandCategory: in.BrandCategory,
		AttackType:    in.AttackType,
		Difficulty:    in.Difficulty,
		CountryCode:   strings.ToUpper(in.CountryCode),
		Language:      in.Language,
	}
	if err := s.Templates.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
