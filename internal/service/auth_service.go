package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/unclebandit/phishguard-backend/internal/errors"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository"
)

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// errBadCredentials does not say which half was wrong.
var errBadCredentials = appErrors.NewUnauthorized("incorrect email or password")

// dummyHash is compared when no account matches so a miss costs as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("phishguard-no-such-user"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash stored for a login-capable user.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

type AuthService struct {
	Users repository.UserRepositoryInterface
	Log   zerolog.Logger
	Now   func() time.Time
}

// Login checks the password against every account registered under the email and
// returns the first that matches. Inactive accounts are refused after the check.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	candidates, err := s.Users.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		return nil, errBadCredentials
	}

	for i := range candidates {
		u := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
			continue
		}
		if !u.IsActive {
			return nil, appErrors.NewUnauthorized("inactive user account")
		}

		now := time.Now().UTC()
		if s.Now != nil {
			now = s.Now()
		}
		if err := s.Users.TouchLogin(ctx, u.ID, now); err != nil {
			// the login itself succeeded
			s.Log.Warn().Err(err).Str("user_id", u.ID.String()).Msg("failed to record last login")
		} else {
			u.LastLoginAt = &now
		}
		s.Log.Info().Str("user_id", u.ID.String()).Msg("🔑 user logged in")
		return u, nil
	}
	return nil, errBadCredentials
}

// Me returns the calling user, refusing tokens whose user has since left the organization.
func (s *AuthService) Me(ctx context.Context, orgID, userID uuid.UUID) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.OrgID != orgID {
		return nil, appErrors.NewNotFound("user", userID.String())
	}
	return u, nil
}
