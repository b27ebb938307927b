package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/models"
	"github.com/confirmaparty/confirma/internal/whatsapp"
	apperrors "github.com/confirmaparty/confirma/pkg/errors"
	"github.com/confirmaparty/confirma/pkg/validator"
)

// PartyInput is the organiser-provided definition of an event.
type PartyInput struct {
	Name               string     `json:"name" validate:"required,min=1,max=255"`
	PartyType          string     `json:"party_type" validate:"max=64"`
	EventDate          time.Time  `json:"event_date" validate:"required"`
	ContactWindowStart *time.Time `json:"contact_window_start"`
}

// GuestInput is one recipient to register for a party.
type GuestInput struct {
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Phone string `json:"phone" validate:"required,min=8,max=32"`
	Notes string `json:"notes"`
}

// PartySummary is a party row decorated with headline counts.
type PartySummary struct {
	models.Party
	GuestCount     int64 `json:"guest_count"`
	ConfirmedCount int64 `json:"confirmed_count"`
}

// PartyService manages events and their guest lists.
type PartyService struct {
	db *gorm.DB
}

// NewPartyService constructs a PartyService.
func NewPartyService(db *gorm.DB) (*PartyService, error) {
	if db == nil {
		return nil, errors.New("party service: db is required")
	}
	return &PartyService{db: db}, nil
}

// Create registers a new party. The template starts out as a draft.
func (s *PartyService) Create(ctx context.Context, input PartyInput) (*models.Party, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	party := models.Party{
		Name:           input.Name,
		PartyType:      input.PartyType,
		EventDate:      input.EventDate,
		TemplateStatus: models.TemplateDraft,
	}
	if input.ContactWindowStart != nil {
		party.ContactWindowStart = *input.ContactWindowStart
	}

	if err := s.db.WithContext(ctx).Create(&party).Error; err != nil {
		return nil, fmt.Errorf("party service: create: %w", err)
	}
	return &party, nil
}

// List returns all parties, newest first, with guest counts attached.
func (s *PartyService) List(ctx context.Context) ([]PartySummary, error) {
	ctx = ensureContext(ctx)

	var parties []models.Party
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&parties).Error; err != nil {
		return nil, fmt.Errorf("party service: list: %w", err)
	}

	summaries := make([]PartySummary, 0, len(parties))
	for _, party := range parties {
		summary := PartySummary{Party: party}
		if err := s.db.WithContext(ctx).Model(&models.Guest{}).
			Where("party_id = ?", party.ID).
			Count(&summary.GuestCount).Error; err != nil {
			return nil, fmt.Errorf("party service: count guests: %w", err)
		}
		if err := s.db.WithContext(ctx).Model(&models.Guest{}).
			Where("party_id = ? AND rsvp_status = ?", party.ID, models.RSVPConfirmed).
			Count(&summary.ConfirmedCount).Error; err != nil {
			return nil, fmt.Errorf("party service: count confirmed: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Get loads one party with its follow-up rules.
func (s *PartyService) Get(ctx context.Context, id string) (*models.Party, error) {
	ctx = ensureContext(ctx)

	var party models.Party
	if err := s.db.WithContext(ctx).
		Preload("FollowUps", func(db *gorm.DB) *gorm.DB { return db.Order("order_no ASC") }).
		First(&party, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("party service: get: %w", err)
	}
	return &party, nil
}

// AddGuests registers recipients for a party. Phone numbers are normalised to
// bare national digits before storage; a number already on the guest list is
// skipped rather than duplicated.
func (s *PartyService) AddGuests(ctx context.Context, partyID string, inputs []GuestInput) ([]models.Guest, error) {
	ctx = ensureContext(ctx)

	if _, err := s.Get(ctx, partyID); err != nil {
		return nil, err
	}

	created := make([]models.Guest, 0, len(inputs))
	for _, input := range inputs {
		if err := validator.ValidateStruct(input); err != nil {
			return nil, apperrors.NewBadRequest(err.Error())
		}

		phone := whatsapp.NormalizePhone(input.Phone)
		if phone == "" {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("guest %q has no usable phone number", input.Name))
		}

		var existing int64
		if err := s.db.WithContext(ctx).Model(&models.Guest{}).
			Where("party_id = ? AND phone = ?", partyID, phone).
			Count(&existing).Error; err != nil {
			return nil, fmt.Errorf("party service: check guest: %w", err)
		}
		if existing > 0 {
			continue
		}

		guest := models.Guest{
			PartyID:    partyID,
			Name:       input.Name,
			Phone:      phone,
			Notes:      input.Notes,
			RSVPStatus: models.RSVPNoResponse,
		}
		if err := s.db.WithContext(ctx).Create(&guest).Error; err != nil {
			return nil, fmt.Errorf("party service: create guest: %w", err)
		}
		created = append(created, guest)
	}
	return created, nil
}

// ListGuests returns a party's guest list in insertion order.
func (s *PartyService) ListGuests(ctx context.Context, partyID string) ([]models.Guest, error) {
	ctx = ensureContext(ctx)

	var guests []models.Guest
	if err := s.db.WithContext(ctx).
		Where("party_id = ?", partyID).
		Order("created_at ASC").
		Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("party service: list guests: %w", err)
	}
	return guests, nil
}

// SetGuestStatus lets organisers correct a guest's RSVP by hand, typically
// after an ambiguous reply was parked as NEEDS_FOLLOWUP.
func (s *PartyService) SetGuestStatus(ctx context.Context, guestID string, status models.RSVPStatus) (*models.Guest, error) {
	ctx = ensureContext(ctx)

	switch status {
	case models.RSVPNoResponse, models.RSVPConfirmed, models.RSVPDeclined, models.RSVPNeedsFollowUp:
	default:
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown rsvp status %q", status))
	}

	var guest models.Guest
	if err := s.db.WithContext(ctx).First(&guest, "id = ?", guestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("party service: load guest: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&guest).
		Update("rsvp_status", status).Error; err != nil {
		return nil, fmt.Errorf("party service: update guest: %w", err)
	}
	guest.RSVPStatus = status
	return &guest, nil
}
