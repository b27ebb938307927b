package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/confirmaparty/confirma/internal/services"
	apperrors "github.com/confirmaparty/confirma/pkg/errors"
	"github.com/confirmaparty/confirma/pkg/response"
)

// FollowUpHandler exposes follow-up rule management.
type FollowUpHandler struct {
	followUps *services.FollowUpService
}

// NewFollowUpHandler constructs a FollowUpHandler.
func NewFollowUpHandler(followUps *services.FollowUpService) (*FollowUpHandler, error) {
	if followUps == nil {
		return nil, errors.New("followup handler: followup service is required")
	}
	return &FollowUpHandler{followUps: followUps}, nil
}

// Upsert creates or replaces the rule at the given position.
func (h *FollowUpHandler) Upsert(c *gin.Context) {
	var input services.FollowUpInput
	if !bindJSON(c, &input) {
		return
	}

	rule, err := h.followUps.Upsert(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rule)
}

// List returns the party's rules ordered by position.
func (h *FollowUpHandler) List(c *gin.Context) {
	rules, err := h.followUps.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rules)
}

// Delete removes the rule at the given position.
func (h *FollowUpHandler) Delete(c *gin.Context) {
	order, err := strconv.Atoi(c.Param("order"))
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("order must be a number"))
		return
	}

	if err := h.followUps.Delete(c.Request.Context(), c.Param("id"), order); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": order})
}
