package controller

import (
	"net/http"

	"github.com/unclebandit/phishguard-backend/internal/service"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
}

func (c *AnalyticsController) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := c.AnalyticsService.Dashboard(r.Context(), caller(r).OrgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
