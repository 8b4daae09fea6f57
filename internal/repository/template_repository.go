package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error)
	List(ctx context.Context, orgID uuid.UUID, country, category string) ([]model.Template, error)
	Create(ctx context.Context, t *model.Template) error
}

type TemplateRepository struct {
	DB *sql.DB
}

const templateColumns = `id, org_id, name, subject, body_html, body_text, brand_name, brand_category,
        attack_type, difficulty, country_code, language, is_active, times_used, created_at`

func scanTemplate(row rowScanner) (*model.Template, error) {
	var t model.Template
	err := row.Scan(
		&t.ID, &t.OrgID, &t.Name, &t.Subject, &t.BodyHTML, &t.BodyText, &t.BrandName, &t.BrandCategory,
		&t.AttackType, &t.Difficulty, &t.CountryCode, &t.Language, &t.IsActive, &t.TimesUsed, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	t, err := scanTemplate(r.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("template", id.String())
		}
		return nil, err
	}
	return t, nil
}

// List returns active templates visible to the organization: its own plus system templates.
func (r *TemplateRepository) List(ctx context.Context, orgID uuid.UUID, country, category string) ([]model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE is_active AND (org_id IS NULL OR org_id = $1)`
	args := []any{orgID}

	if country != "" {
		args = append(args, country)
		query += fmt.Sprintf(" AND country_code = $%d", len(args))
	}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND brand_category = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Language == "" {
		t.Language = "en"
	}
	t.IsActive = true
	t.CreatedAt = time.Now().UTC()

	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO templates (id, org_id, name, subject, body_html, body_text, brand_name, brand_category,
            attack_type, difficulty, country_code, language, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.OrgID, t.Name, t.Subject, t.BodyHTML, t.BodyText, t.BrandName, t.BrandCategory,
		t.AttackType, t.Difficulty, t.CountryCode, t.Language, t.IsActive, t.CreatedAt,
	)
	return err
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
