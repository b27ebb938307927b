package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/pkg/response"
)

// ScheduleHandler exposes the planning operations that turn guests into
// queue rows.
type ScheduleHandler struct {
	scheduler *services.SchedulerService
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(scheduler *services.SchedulerService) (*ScheduleHandler, error) {
	if scheduler == nil {
		return nil, errors.New("schedule handler: scheduler service is required")
	}
	return &ScheduleHandler{scheduler: scheduler}, nil
}

// Invites schedules one invite per eligible guest, staggered from start_at
// (now when omitted).
func (h *ScheduleHandler) Invites(c *gin.Context) {
	var payload struct {
		StartAt *time.Time `json:"start_at"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &payload) {
		return
	}

	startAt := time.Time{}
	if payload.StartAt != nil {
		startAt = *payload.StartAt
	}

	result, err := h.scheduler.ScheduleInvites(c.Request.Context(), c.Param("id"), startAt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// FollowUps materialises the party's pending follow-up rules.
func (h *ScheduleHandler) FollowUps(c *gin.Context) {
	result, err := h.scheduler.ScheduleFollowUps(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
