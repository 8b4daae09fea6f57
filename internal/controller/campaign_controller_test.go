package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/phishguard-backend/internal/auth"
	"github.com/unclebandit/phishguard-backend/internal/controller"
	"github.com/unclebandit/phishguard-backend/internal/mailer/mailertest"
	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/repository/repotest"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

type testAPI struct {
	router   http.Handler
	orgID    uuid.UUID
	users    *repotest.UserRepo
	store    *repotest.MemStore
	mailer   *mailertest.Recorder
	template *model.Template
}

// setupAPI wires the campaign routes over in-memory repositories with inline dispatch.
// Every request runs as an admin of orgID.
func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	a := &testAPI{orgID: uuid.New(), mailer: &mailertest.Recorder{FailFor: map[string]error{}}}

	a.users = &repotest.UserRepo{}
	for i, dep := range []string{"IT", "IT", "HR"} {
		a.users.Users = append(a.users.Users, model.User{
			ID: uuid.New(), OrgID: a.orgID, Department: dep, IsActive: true,
			Email: fmt.Sprintf("user%d@acme.test", i+1), Name: fmt.Sprintf("User %d", i+1),
		})
	}
	a.template = &model.Template{
		ID: uuid.New(), Name: "Parcel", Subject: "Parcel for {{name}}",
		BodyHTML: `<p>Hi {{name}}</p><a href="{{link}}">track</a>`, IsActive: true,
	}
	templates := &repotest.TemplateRepo{Templates: map[uuid.UUID]*model.Template{a.template.ID: a.template}}
	a.store = repotest.NewMemStore(a.users)

	dispatcher := &service.Dispatcher{
		Campaigns: a.store, Targets: a.store, Templates: templates, Mailer: a.mailer,
		SendTimeout: time.Second, FromAddress: "awareness@phishguard.test",
		BaseURL: "https://t.phishguard.test/track", Log: zerolog.Nop(),
	}
	campaigns := &controller.CampaignController{CampaignService: &service.CampaignService{
		Campaigns: a.store, Targets: a.store, Templates: templates, Users: a.users,
		Resolver: &service.TargetResolver{Users: a.users},
		Queue:    &service.InlineDispatch{Dispatcher: dispatcher},
		BaseURL:  "https://t.phishguard.test/track", Log: zerolog.Nop(),
	}}

	claims := &auth.Claims{UserID: a.users.Users[0].ID, OrgID: a.orgID, Role: service.RoleAdmin}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithClaims(req.Context(), claims)))
		})
	})
	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", campaigns.CreateCampaign)
		r.Get("/", campaigns.ListCampaigns)
		r.Get("/{id}", campaigns.GetCampaignDetails)
		r.Get("/{id}/targets", campaigns.ListTargets)
		r.Post("/{id}/launch", campaigns.LaunchCampaign)
		r.Post("/{id}/cancel", campaigns.CancelCampaign)
		r.Post("/{id}/complete", campaigns.CompleteCampaign)
		r.Post("/{id}/preview", campaigns.PersonalizedPreview)
	})
	a.router = r
	return a
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) createCampaign(t *testing.T, name string) *model.Campaign {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/campaigns", map[string]any{
		"name": name, "template_id": a.template.ID, "target_type": "all",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var c model.Campaign
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	return &c
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func TestCreateCampaignHandler(t *testing.T) {
	a := setupAPI(t)

	c := a.createCampaign(t, "Q1 parcel test")
	assert.Equal(t, model.CampaignDraft, c.Status)
	assert.Equal(t, 3, c.TotalTargets)
	assert.Equal(t, a.orgID, c.OrgID)
}

func TestCreateCampaignValidation(t *testing.T) {
	a := setupAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing name", map[string]any{"template_id": a.template.ID}},
		{"unknown rule", map[string]any{"name": "x", "template_id": a.template.ID, "target_type": "everyone"}},
		{"bad department config", map[string]any{
			"name": "x", "template_id": a.template.ID, "target_type": "department",
			"target_config": map[string]any{"departments": []string{}},
		}},
		{"malformed json", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(t, http.MethodPost, "/campaigns", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decodeError(t, rr))
		})
	}
}

func TestCreateCampaignUnknownTemplate(t *testing.T) {
	a := setupAPI(t)

	rr := a.do(t, http.MethodPost, "/campaigns", map[string]any{"name": "x", "template_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListCampaignsPagination(t *testing.T) {
	a := setupAPI(t)
	for i := 1; i <= 25; i++ {
		a.createCampaign(t, "Campaign "+strconv.Itoa(i))
	}

	rr := a.do(t, http.MethodGet, "/campaigns?page=2&page_size=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data       []model.Campaign `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.Len(t, resp.Data, 10)
	assert.Equal(t, 2, resp.Pagination["page"])
	assert.Equal(t, 10, resp.Pagination["page_size"])
	assert.Equal(t, 25, resp.Pagination["total_count"])
	assert.Equal(t, 3, resp.Pagination["total_pages"])
	// newest first
	assert.Equal(t, "Campaign 15", resp.Data[0].Name)
}

func TestLaunchCampaignHandler(t *testing.T) {
	a := setupAPI(t)
	c := a.createCampaign(t, "launch me")

	rr := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/launch", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var launched model.Campaign
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &launched))
	assert.Equal(t, model.CampaignRunning, launched.Status)
	assert.Equal(t, 3, launched.EmailsSent)
	assert.Len(t, a.mailer.Attempts, 3)

	rr = a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/launch", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, decodeError(t, rr), "running")
	assert.Len(t, a.mailer.Attempts, 3, "second launch sends nothing")
}

func TestLifecycleHandlers(t *testing.T) {
	a := setupAPI(t)
	c := a.createCampaign(t, "cancel me")

	rr := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/complete", nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "draft cannot complete")

	rr = a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cancelled model.Campaign
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cancelled))
	assert.Equal(t, model.CampaignCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)

	rr = a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/launch", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCampaignDetailsAndTargets(t *testing.T) {
	a := setupAPI(t)
	c := a.createCampaign(t, "details")
	a.mailer.FailFor["user2@acme.test"] = fmt.Errorf("mailbox full")
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/launch", nil).Code)

	rr := a.do(t, http.MethodGet, "/campaigns/"+c.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var details struct {
		EmailsSent int            `json:"emails_sent"`
		Stats      map[string]int `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &details))
	assert.Equal(t, 2, details.EmailsSent)
	assert.Equal(t, 2, details.Stats[model.TargetSent])
	assert.Equal(t, 1, details.Stats[model.TargetFailed])
	assert.Equal(t, 3, details.Stats["total"])

	rr = a.do(t, http.MethodGet, "/campaigns/"+c.ID.String()+"/targets?page_size=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var targets struct {
		Data       []map[string]any `json:"data"`
		Pagination map[string]int   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &targets))
	assert.Len(t, targets.Data, 2)
	assert.Equal(t, 3, targets.Pagination["total_count"])
	assert.NotContains(t, targets.Data[0], "tracking_token")
}

func TestCampaignOfAnotherOrgIsNotFound(t *testing.T) {
	a := setupAPI(t)
	other := &model.Campaign{OrgID: uuid.New(), Name: "theirs"}
	require.NoError(t, a.store.Create(context.Background(), other, nil))

	for _, path := range []string{"/campaigns/" + other.ID.String(), "/campaigns/" + uuid.NewString()} {
		rr := a.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}
	rr := a.do(t, http.MethodPost, "/campaigns/"+other.ID.String()+"/launch", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestInvalidCampaignID(t *testing.T) {
	a := setupAPI(t)

	rr := a.do(t, http.MethodGet, "/campaigns/42", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPersonalizedPreviewHandler(t *testing.T) {
	a := setupAPI(t)
	c := a.createCampaign(t, "preview")
	user := a.users.Users[1]

	rr := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/preview", map[string]any{"user_id": user.ID})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Preview service.RenderedEmail `json:"preview"`
		UserID  uuid.UUID             `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, user.ID, resp.UserID)
	assert.Equal(t, "Parcel for User 2", resp.Preview.Subject)
	assert.True(t, strings.Contains(resp.Preview.HTML, `href="https://t.phishguard.test/track/preview"`))
	assert.Empty(t, a.mailer.Attempts, "preview never sends")
}

func TestPersonalizedPreviewRequiresUser(t *testing.T) {
	a := setupAPI(t)
	c := a.createCampaign(t, "preview")

	rr := a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/preview", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = a.do(t, http.MethodPost, "/campaigns/"+c.ID.String()+"/preview", map[string]any{"user_id": uuid.New()})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
