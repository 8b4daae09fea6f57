package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type RegisterOrganizationInput struct {
	Name          string `json:"name" validate:"required,max=255"`
	Domain        string `json:"domain" validate:"required,fqdn"`
	AdminName     string `json:"admin_name" validate:"required,max=255"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPassword string `json:"admin_password" validate:"required,min=8,max=72"`
}

type OrganizationService struct {
	Orgs repository.OrganizationRepositoryInterface
}

// Register creates the organization together with its first admin.
func (s *OrganizationService) Register(ctx context.Context, in RegisterOrganizationInput) (*model.Organization, *model.User, error) {
	org := &model.Organization{
		Name:   strings.TrimSpace(in.Name),
		Domain: strings.ToLower(strings.TrimSpace(in.Domain)),
	}
	hash, err := HashPassword(in.AdminPassword)
	if err != nil {
		return nil, nil, err
	}
	admin := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(in.AdminEmail)),
		Name:         strings.TrimSpace(in.AdminName),
		PasswordHash: hash,
	}
	if err := s.Orgs.CreateWithAdmin(ctx, org, admin); err != nil {
		return nil, nil, err
	}
	return org, admin, nil
}

type CreateUserInput struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"required,max=255"`
	Department string `json:"department" validate:"max=100"`
	Role       string `json:"role" validate:"omitempty,oneof=admin employee"`
	// Password lets the user log in; employees who only receive simulations leave it out.
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
}

type UserService struct {
	Users repository.UserRepositoryInterface
}

func (s *UserService) List(ctx context.Context, orgID uuid.UUID) ([]model.User, error) {
	return s.Users.ListByOrg(ctx, orgID)
}

func (s *UserService) Create(ctx context.Context, orgID uuid.UUID, in CreateUserInput) (*model.User, error) {
	role := in.Role
	if role == "" {
		role = RoleEmployee
	}
	u := &model.User{
		OrgID:      orgID,
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Name:       strings.TrimSpace(in.Name),
		Department: strings.TrimSpace(in.Department),
		Role:       role,
		IsActive:   true,
	}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
