// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/unclebandit/phishguard-backend/internal/model"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	who := caller(r)
	campaign, err := c.CampaignService.CreateCampaign(r.Context(), who.OrgID, who.UserID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), caller(r).OrgID, page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), caller(r).OrgID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *CampaignController) ListTargets(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	targets, pagination, err := c.CampaignService.ListTargets(r.Context(), caller(r).OrgID, id, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       targets,
		"pagination": pagination,
	})
}

func (c *CampaignController) LaunchCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.CampaignService.LaunchCampaign)
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.CampaignService.CancelCampaign)
}

func (c *CampaignController) CompleteCampaign(w http.ResponseWriter, r *http.Request) {
	c.lifecycle(w, r, c.CampaignService.CompleteCampaign)
}

type lifecycleOp func(ctx context.Context, orgID, id uuid.UUID) (*model.Campaign, error)

func (c *CampaignController) lifecycle(w http.ResponseWriter, r *http.Request, op lifecycleOp) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	campaign, err := op(r.Context(), caller(r).OrgID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	rendered, err := c.CampaignService.PersonalizedPreview(r.Context(), caller(r).OrgID, id, body.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"preview": rendered,
		"user_id": body.UserID,
	})
}
