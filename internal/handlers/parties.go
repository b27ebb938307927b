package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/confirmaparty/confirma/internal/models"
	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/pkg/response"
)

// PartyHandler exposes event and guest-list management endpoints.
type PartyHandler struct {
	parties *services.PartyService
	queue   *services.QueueService
}

// NewPartyHandler constructs a PartyHandler.
func NewPartyHandler(parties *services.PartyService, queue *services.QueueService) (*PartyHandler, error) {
	if parties == nil {
		return nil, errors.New("party handler: party service is required")
	}
	if queue == nil {
		return nil, errors.New("party handler: queue service is required")
	}
	return &PartyHandler{parties: parties, queue: queue}, nil
}

// Create registers a new party.
func (h *PartyHandler) Create(c *gin.Context) {
	var input services.PartyInput
	if !bindJSON(c, &input) {
		return
	}

	party, err := h.parties.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, party)
}

// List returns all parties with guest counts.
func (h *PartyHandler) List(c *gin.Context) {
	parties, err := h.parties.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, parties)
}

// Get returns one party with its follow-up rules.
func (h *PartyHandler) Get(c *gin.Context) {
	party, err := h.parties.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, party)
}

// AddGuests registers one or more guests for a party.
func (h *PartyHandler) AddGuests(c *gin.Context) {
	var payload struct {
		Guests []services.GuestInput `json:"guests"`
	}
	if !bindJSON(c, &payload) {
		return
	}

	created, err := h.parties.AddGuests(c.Request.Context(), c.Param("id"), payload.Guests)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{
		"created": len(created),
		"guests":  created,
	})
}

// ListGuests returns a party's guest list.
func (h *PartyHandler) ListGuests(c *gin.Context) {
	guests, err := h.parties.ListGuests(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, guests)
}

// SetGuestStatus lets organisers correct a guest's RSVP manually.
func (h *PartyHandler) SetGuestStatus(c *gin.Context) {
	var payload struct {
		Status models.RSVPStatus `json:"status"`
	}
	if !bindJSON(c, &payload) {
		return
	}

	guest, err := h.parties.SetGuestStatus(c.Request.Context(), c.Param("guestID"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, guest)
}

// CancelPending cancels every still-pending queue item for the party. The
// emergency stop for a postponed or cancelled event.
func (h *PartyHandler) CancelPending(c *gin.Context) {
	if _, err := h.parties.Get(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	cancelled, err := h.queue.CancelForParty(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": cancelled})
}
