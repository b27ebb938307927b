package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/models"
	apperrors "github.com/confirmaparty/confirma/pkg/errors"
	"github.com/confirmaparty/confirma/pkg/logger"
	"github.com/confirmaparty/confirma/pkg/validator"
)

// FollowUpInput is the organiser-provided definition of one follow-up rule.
type FollowUpInput struct {
	Order        int                 `json:"order" validate:"required,min=1,max=2"`
	MessageText  string              `json:"message_text" validate:"required,min=1"`
	ScheduleKind models.ScheduleKind `json:"schedule_kind" validate:"required,oneof=FIXED_DATE DAYS_BEFORE_EVENT DAYS_AFTER_FIRST_CONTACT"`
	FixedDate    *time.Time          `json:"fixed_date"`
	DaysOffset   *int                `json:"days_offset"`
}

// FollowUpService manages a party's follow-up rules.
type FollowUpService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewFollowUpService constructs a FollowUpService.
func NewFollowUpService(db *gorm.DB) (*FollowUpService, error) {
	if db == nil {
		return nil, errors.New("follow-up service: db is required")
	}
	return &FollowUpService{db: db, log: logger.WithModule("followups")}, nil
}

// Upsert creates or replaces the rule at input.Order for the party. Editing a
// rule resets it to PENDING so the next planning pass picks the change up.
func (s *FollowUpService) Upsert(ctx context.Context, partyID string, input FollowUpInput) (*models.FollowUpRule, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.ErrFollowUpRuleInvalid.WithInternal(err)
	}
	if err := validateScheduleFields(input); err != nil {
		return nil, err
	}

	var party models.Party
	if err := s.db.WithContext(ctx).First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("follow-up service: load party: %w", err)
	}

	var rule models.FollowUpRule
	err := s.db.WithContext(ctx).
		Where("party_id = ? AND order_no = ?", partyID, input.Order).
		First(&rule).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rule = models.FollowUpRule{
			PartyID:      partyID,
			Order:        input.Order,
			MessageText:  input.MessageText,
			ScheduleKind: input.ScheduleKind,
			FixedDate:    input.FixedDate,
			DaysOffset:   input.DaysOffset,
			Status:       models.FollowUpPending,
		}
		if err := s.db.WithContext(ctx).Create(&rule).Error; err != nil {
			return nil, fmt.Errorf("follow-up service: create rule: %w", err)
		}

	case err != nil:
		return nil, fmt.Errorf("follow-up service: load rule: %w", err)

	default:
		if err := s.db.WithContext(ctx).Model(&rule).Updates(map[string]any{
			"message_text":  input.MessageText,
			"schedule_kind": input.ScheduleKind,
			"fixed_date":    input.FixedDate,
			"days_offset":   input.DaysOffset,
			"status":        models.FollowUpPending,
		}).Error; err != nil {
			return nil, fmt.Errorf("follow-up service: update rule: %w", err)
		}
		rule.MessageText = input.MessageText
		rule.ScheduleKind = input.ScheduleKind
		rule.FixedDate = input.FixedDate
		rule.DaysOffset = input.DaysOffset
		rule.Status = models.FollowUpPending
	}

	s.log.Info("follow-up rule saved",
		zap.String("party_id", partyID),
		zap.Int("order", rule.Order),
		zap.String("schedule_kind", string(rule.ScheduleKind)),
	)
	return &rule, nil
}

// List returns the party's rules ordered by position.
func (s *FollowUpService) List(ctx context.Context, partyID string) ([]models.FollowUpRule, error) {
	ctx = ensureContext(ctx)

	var rules []models.FollowUpRule
	if err := s.db.WithContext(ctx).
		Where("party_id = ?", partyID).
		Order("order_no ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("follow-up service: list rules: %w", err)
	}
	return rules, nil
}

// Delete removes the rule at the given position. Queue rows already created
// from it are untouched; cancellation is a queue concern.
func (s *FollowUpService) Delete(ctx context.Context, partyID string, order int) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("party_id = ? AND order_no = ?", partyID, order).
		Delete(&models.FollowUpRule{})
	if result.Error != nil {
		return fmt.Errorf("follow-up service: delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// validateScheduleFields enforces kind/field consistency: fixed-date rules
// carry a date, offset rules carry a non-negative day count.
func validateScheduleFields(input FollowUpInput) error {
	switch input.ScheduleKind {
	case models.ScheduleFixedDate:
		if input.FixedDate == nil {
			return apperrors.ErrFollowUpRuleInvalid.WithInternal(
				errors.New("fixed_date is required for FIXED_DATE rules"))
		}
	case models.ScheduleDaysBeforeEvent, models.ScheduleDaysAfterFirstContact:
		if input.DaysOffset == nil {
			return apperrors.ErrFollowUpRuleInvalid.WithInternal(
				errors.New("days_offset is required for offset rules"))
		}
		if *input.DaysOffset < 0 {
			return apperrors.ErrFollowUpRuleInvalid.WithInternal(
				errors.New("days_offset must not be negative"))
		}
	default:
		return apperrors.ErrFollowUpRuleInvalid
	}
	return nil
}
