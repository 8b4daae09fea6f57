package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/phishguard-backend/internal/auth"
	"github.com/unclebandit/phishguard-backend/internal/controller"
	"github.com/unclebandit/phishguard-backend/internal/generator"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository/repotest"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

// authedRouter mounts the org, auth, template and analytics routes behind the real JWT middleware.
func authedRouter(issuer *auth.Issuer, users *repotest.UserRepo, templates *repotest.TemplateRepo, analytics *repotest.AnalyticsRepo) http.Handler {
	orgs := &controller.OrganizationController{
		OrganizationService: &service.OrganizationService{Orgs: &repotest.OrgRepo{Users: users}},
		UserService:         &service.UserService{Users: users},
		Tokens:              issuer,
	}
	authn := &controller.AuthController{AuthService: &service.AuthService{Users: users, Log: zerolog.Nop()}, Tokens: issuer}
	tmpl := &controller.TemplateController{
		TemplateService: &service.TemplateService{Templates: templates},
		Generator:       &generator.Fallback{Log: zerolog.Nop()},
	}
	dash := &controller.AnalyticsController{AnalyticsService: &service.AnalyticsService{Repo: analytics, Log: zerolog.Nop()}}

	r := chi.NewRouter()
	r.Post("/organizations", orgs.Register)
	r.Post("/auth/login", authn.Login)
	r.Group(func(r chi.Router) {
		r.Use(issuer.Authenticate)
		r.Get("/auth/me", authn.Me)
		r.Get("/users", orgs.ListUsers)
		r.With(auth.RequireRole(service.RoleAdmin)).Post("/users", orgs.CreateUser)
		r.Get("/templates", tmpl.ListTemplates)
		r.Get("/templates/{id}", tmpl.GetTemplate)
		r.Post("/templates", tmpl.CreateTemplate)
		r.Post("/templates/generate", tmpl.GenerateTemplate)
		r.Get("/analytics/dashboard", dash.Dashboard)
	})
	return r
}

func request(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// register creates an organization and returns its id and the admin's token.
func register(t *testing.T, h http.Handler) (uuid.UUID, string) {
	t.Helper()
	rr := request(t, h, http.MethodPost, "/organizations", "", map[string]any{
		"name": "Acme", "domain": "Acme.Test", "admin_name": "Ada", "admin_email": "Ada@Acme.test",
		"admin_password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Organization model.Organization `json:"organization"`
		User         model.User         `json:"user"`
		AccessToken  string             `json:"access_token"`
		TokenType    string             `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "acme.test", resp.Organization.Domain)
	assert.Equal(t, "ada@acme.test", resp.User.Email)
	assert.Equal(t, service.RoleAdmin, resp.User.Role)
	assert.Equal(t, "bearer", resp.TokenType)
	return resp.Organization.ID, resp.AccessToken
}

func TestRegisterOrganizationAndManageUsers(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour)
	users := &repotest.UserRepo{}
	h := authedRouter(issuer, users, &repotest.TemplateRepo{}, &repotest.AnalyticsRepo{})

	orgID, token := register(t, h)

	rr := request(t, h, http.MethodPost, "/users", token, map[string]any{
		"email": "Bob@Acme.test", "name": "Bob", "department": "IT",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created model.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, orgID, created.OrgID)
	assert.Equal(t, "bob@acme.test", created.Email)
	assert.Equal(t, service.RoleEmployee, created.Role)

	rr = request(t, h, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Data []model.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Data, 2, "admin plus the new employee")
}

func TestRegisterOrganizationValidation(t *testing.T) {
	h := authedRouter(auth.NewIssuer("s", time.Hour), &repotest.UserRepo{}, &repotest.TemplateRepo{}, &repotest.AnalyticsRepo{})

	rr := request(t, h, http.MethodPost, "/organizations", "", map[string]any{
		"name": "Acme", "domain": "not a domain", "admin_name": "Ada", "admin_email": "nope", "admin_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	msg := decodeError(t, rr)
	assert.Contains(t, msg, "admin_email must be a valid email")
	assert.Contains(t, msg, "admin_password must be at least 8 characters")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	issuer := auth.NewIssuer("s", time.Hour)
	h := authedRouter(issuer, &repotest.UserRepo{}, &repotest.TemplateRepo{}, &repotest.AnalyticsRepo{})

	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/users", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/users", "garbage", nil).Code)

	employee := &model.User{ID: uuid.New(), OrgID: uuid.New(), Role: service.RoleEmployee}
	token, err := issuer.Issue(employee)
	require.NoError(t, err)
	rr := request(t, h, http.MethodPost, "/users", token, map[string]any{"email": "x@acme.test", "name": "X"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestTemplateHandlers(t *testing.T) {
	issuer := auth.NewIssuer("s", time.Hour)
	otherOrg := uuid.New()
	system := &model.Template{ID: uuid.New(), Name: "System", IsActive: true}
	private := &model.Template{ID: uuid.New(), OrgID: &otherOrg, Name: "Theirs", IsActive: true}
	templates := &repotest.TemplateRepo{Templates: map[uuid.UUID]*model.Template{system.ID: system, private.ID: private}}
	h := authedRouter(issuer, &repotest.UserRepo{}, templates, &repotest.AnalyticsRepo{})
	_, token := register(t, h)

	rr := request(t, h, http.MethodGet, "/templates/"+system.ID.String(), token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = request(t, h, http.MethodGet, "/templates/"+private.ID.String(), token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	body := map[string]any{
		"name": "Bank alert", "subject": "Account locked", "body_html": "<p>Dear {{name}}</p>",
		"brand_name": "Maybank", "brand_category": "banking", "attack_type": "credential_harvest",
		"difficulty": "beginner", "country_code": "my",
	}
	rr = request(t, h, http.MethodPost, "/templates", token, body)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "link placeholder is required")

	body["body_html"] = `<p>Dear {{name}}</p><a href="{{link}}">Unlock</a>`
	rr = request(t, h, http.MethodPost, "/templates", token, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created model.Template
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "MY", created.CountryCode)
	require.NotNil(t, created.OrgID)

	rr = request(t, h, http.MethodGet, "/templates", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Data []model.Template `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Data, 2, "system template plus the org's own")
}

func TestDashboardHandlerWithNoCampaigns(t *testing.T) {
	issuer := auth.NewIssuer("s", time.Hour)
	h := authedRouter(issuer, &repotest.UserRepo{}, &repotest.TemplateRepo{}, &repotest.AnalyticsRepo{})
	_, token := register(t, h)

	rr := request(t, h, http.MethodGet, "/analytics/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var d model.Dashboard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Zero(t, d.Summary.TotalCampaigns)
	assert.Equal(t, 0.0, d.Summary.AvgClickRate)
	assert.Len(t, d.ClickTrend, 7)
}

func TestLoginAndMe(t *testing.T) {
	issuer := auth.NewIssuer("s", time.Hour)
	users := &repotest.UserRepo{}
	h := authedRouter(issuer, users, &repotest.TemplateRepo{}, &repotest.AnalyticsRepo{})
	orgID, _ := register(t, h)

	rr := request(t, h, http.MethodPost, "/auth/login", "", map[string]any{"email": "ada@acme.test", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "incorrect email or password", decodeError(t, rr))

	rr = request(t, h, http.MethodPost, "/auth/login", "", map[string]any{"email": "nobody@acme.test", "password": "correct horse"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = request(t, h, http.MethodPost, "/auth/login", "", map[string]any{"email": " ADA@acme.test", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		AccessToken string     `json:"access_token"`
		User        model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	assert.NotContains(t, rr.Body.String(), "password_hash")
	require.NotNil(t, login.User.LastLoginAt)

	rr = request(t, h, http.MethodGet, "/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var me model.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "ada@acme.test", me.Email)
	assert.Equal(t, orgID, me.OrgID)

	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/auth/me", "", nil).Code)
}

func TestGenerateTemplateDraftFallsBackToMock(t *testing.T) {
	issuer := auth.NewIssuer("s", time.Hour)
	h := authedRouter(issuer, &repotest.UserRepo{}, &repotest.TemplateRepo{}, &repotest.AnalyticsRepo{})
	_, token := register(t, h)

	rr := request(t, h, http.MethodPost, "/templates/generate", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = request(t, h, http.MethodPost, "/templates/generate", token, map[string]any{
		"prompt": "tax refund", "brand_category": "government",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var draft generator.Draft
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &draft))
	assert.Equal(t, "URGENT: Government Alert", draft.Subject)
	assert.Contains(t, draft.BodyHTML, "{{link}}")
}
