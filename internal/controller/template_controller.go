package controller

import (
	"net/http"

	"github.com/unclebandit/phishguard-backend/internal/generator"
	"github.com/unclebandit/phishguard-backend/internal/service"
)

type TemplateController struct {
	TemplateService *service.TemplateService
	Generator       generator.Generator
}

func (c *TemplateController) ListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	templates, err := c.TemplateService.List(r.Context(), caller(r).OrgID, q.Get("country"), q.Get("category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": templates})
}

func (c *TemplateController) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := c.TemplateService.Get(r.Context(), caller(r).OrgID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var body service.CreateTemplateInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	t, err := c.TemplateService.Create(r.Context(), caller(r).OrgID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GenerateTemplate drafts template content from a scenario. Nothing is saved; the admin
// edits the draft and posts it to CreateTemplate.
func (c *TemplateController) GenerateTemplate(w http.ResponseWriter, r *http.Request) {
	var body generator.Request
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	draft, err := c.Generator.Generate(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}
