package controller

import (
	"net/http"

	"github.com/unclebandit/phishguard-backend/internal/auth"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

type AuthController struct {
	AuthService *service.AuthService
	Tokens      *auth.Issuer
}

// Login is public: it trades an email and password for an access token.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body service.LoginInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	user, err := c.AuthService.Login(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := c.Tokens.Issue(user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         user,
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	claims := caller(r)
	user, err := c.AuthService.Me(r.Context(), claims.OrgID, claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
