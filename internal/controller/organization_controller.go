package controller

import (
	"net/http"

	"github.com/unclebandit/phishguard-backend/internal/auth"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

type OrganizationController struct {
	OrganizationService *service.OrganizationService
	UserService         *service.UserService
	Tokens              *auth.Issuer
}

// Register is public: it creates the organization and returns a token for its admin.
func (c *OrganizationController) Register(w http.ResponseWriter, r *http.Request) {
	var body service.RegisterOrganizationInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	org, admin, err := c.OrganizationService.Register(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := c.Tokens.Issue(admin)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"organization": org,
		"user":         admin,
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (c *OrganizationController) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := c.UserService.List(r.Context(), caller(r).OrgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": users})
}

func (c *OrganizationController) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body service.CreateUserInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	u, err := c.UserService.Create(r.Context(), caller(r).OrgID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}
