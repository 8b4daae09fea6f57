package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/phishguard-backend/internal/db"
	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
)

type OrganizationRepositoryInterface interface {
	CreateWithAdmin(ctx context.Context, org *model.Organization, admin *model.User) error
}

type OrganizationRepository struct {
	DB *sql.DB
}

// CreateWithAdmin registers an organization and its first admin user.
func (r *OrganizationRepository) CreateWithAdmin(ctx context.Context, org *model.Organization, admin *model.User) error {
	now := time.Now().UTC()
	org.ID = uuid.New()
	org.IsActive = true
	org.CreatedAt = now

	admin.ID = uuid.New()
	admin.OrgID = org.ID
	admin.Role = "admin"
	admin.IsActive = true
	admin.CreatedAt = now

	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO organizations (id, name, domain, is_active, created_at) VALUES ($1, $2, $3, $4, $5)`,
			org.ID, org.Name, org.Domain, org.IsActive, org.CreatedAt,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO users (id, org_id, email, name, department, role, is_active, created_at, password_hash)
            VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''))`,
			admin.ID, admin.OrgID, admin.Email, admin.Name, admin.Department, admin.Role, admin.IsActive, admin.CreatedAt,
			admin.PasswordHash,
		)
		return err
	})
	if isUniqueViolation(err) {
		return appErrors.NewValidation("domain", "organization domain or admin email already registered")
	}
	return err
}

var _ OrganizationRepositoryInterface = (*OrganizationRepository)(nil)
