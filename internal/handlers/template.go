package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/pkg/response"
)

// TemplateHandler exposes the invite template gate.
type TemplateHandler struct {
	templates *services.TemplateService
}

// NewTemplateHandler constructs a TemplateHandler.
func NewTemplateHandler(templates *services.TemplateService) (*TemplateHandler, error) {
	if templates == nil {
		return nil, errors.New("template handler: template service is required")
	}
	return &TemplateHandler{templates: templates}, nil
}

// Validate runs structural validation without persisting anything, so the
// dashboard can show errors while the organiser types.
func (h *TemplateHandler) Validate(c *gin.Context) {
	var payload struct {
		Text string `json:"text"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	response.Success(c, http.StatusOK, h.templates.Validate(payload.Text))
}

// Submit stores a template together with its approval verdict.
func (h *TemplateHandler) Submit(c *gin.Context) {
	var payload struct {
		Text string `json:"text"`
	}
	if !bindJSON(c, &payload) {
		return
	}

	result, err := h.templates.Submit(c.Request.Context(), c.Param("id"), payload.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Status returns the party's current template state.
func (h *TemplateHandler) Status(c *gin.Context) {
	status, err := h.templates.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// Guidelines returns the static approval rules shown alongside rejections.
func (h *TemplateHandler) Guidelines(c *gin.Context) {
	response.Success(c, http.StatusOK, services.ApprovalGuidelines())
}
