package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
)

// UserRepositoryInterface defines methods used by services
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]model.User, error)
	Create(ctx context.Context, u *model.User) error

	// Login
	ListByEmail(ctx context.Context, email string) ([]model.User, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// Recipient resolution
	ListActiveIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
	ListIDsByDepartments(ctx context.Context, orgID uuid.UUID, departments []string) ([]uuid.UUID, error)
	FilterIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
}

// UserRepository is the concrete implementation
type UserRepository struct {
	DB *sql.DB
}

const userColumns = `id, org_id, email, name, COALESCE(department, ''), role, is_active, created_at,
    COALESCE(password_hash, ''), last_login_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.OrgID, &u.Email, &u.Name, &u.Department, &u.Role, &u.IsActive, &u.CreatedAt,
		&u.PasswordHash, &u.LastLoginAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("user", id.String())
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE org_id = $1 ORDER BY name`, orgID)
}

// ListByEmail returns the accounts that can log in with email. Emails are unique per
// organization only, so one address may own accounts in several organizations.
func (r *UserRepository) ListByEmail(ctx context.Context, email string) ([]model.User, error) {
	return r.list(ctx, `
        SELECT `+userColumns+` FROM users
        WHERE email = $1 AND password_hash IS NOT NULL
        ORDER BY created_at, id`, email)
}

func (r *UserRepository) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
	return err
}

// SetPasswordHash turns an existing user into a login account.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewNotFound("user", id.String())
	}
	return nil
}

func (r *UserRepository) list(ctx context.Context, query string, args ...any) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO users (id, org_id, email, name, department, role, is_active, created_at, password_hash)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''))`,
		u.ID, u.OrgID, u.Email, u.Name, u.Department, u.Role, u.IsActive, u.CreatedAt, u.PasswordHash,
	)
	if isUniqueViolation(err) {
		return appErrors.NewValidation("email", "a user with this email already exists")
	}
	return err
}

// isUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *UserRepository) ListActiveIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	return r.queryIDs(ctx, `SELECT id FROM users WHERE org_id = $1 AND is_active ORDER BY created_at, id`, orgID)
}

func (r *UserRepository) ListIDsByDepartments(ctx context.Context, orgID uuid.UUID, departments []string) ([]uuid.UUID, error) {
	return r.queryIDs(ctx, `
        SELECT id FROM users
        WHERE org_id = $1 AND is_active AND department = ANY($2)
        ORDER BY created_at, id`, orgID, pq.Array(departments))
}

// FilterIDs keeps only the ids that belong to the organization.
func (r *UserRepository) FilterIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	return r.queryIDs(ctx, `
        SELECT id FROM users
        WHERE org_id = $1 AND id = ANY($2::uuid[])
        ORDER BY created_at, id`, orgID, pq.Array(raw))
}

func (r *UserRepository) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
