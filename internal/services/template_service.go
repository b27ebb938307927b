package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/models"
	apperrors "github.com/confirmaparty/confirma/pkg/errors"
)

const (
	templateMinLength = 20
	templateMaxLength = 1024
)

// forbiddenRule pairs a structural pattern with the error shown to organisers.
type forbiddenRule struct {
	pattern *regexp.Regexp
	message string
}

// Validation rules derived from the WhatsApp Business messaging guidelines.
var (
	forbiddenRules = []forbiddenRule{
		{regexp.MustCompile(`(?i)https?://\S+`), "Do not include links or URLs in the message"},
		{regexp.MustCompile(`[A-Z]{5,}`), "Avoid excessive CAPITAL LETTERS"},
		{regexp.MustCompile(`!{3,}`), "Avoid repeated exclamation marks (!!!)"},
		{regexp.MustCompile(`\${3}`), "Avoid repeated money symbols"},
		{regexp.MustCompile(`(?i)\b(free|giveaway|promotion|discount)\b`), "Avoid promotional words (free, promotion, discount)"},
		{regexp.MustCompile(`(?i)(click here|access now|last chance)`), "Avoid aggressive calls to action (click here, access now)"},
		{regexp.MustCompile(`(?i)\b(urgent|unmissable|exclusive)\b`), "Avoid urgency language (urgent, unmissable)"},
	}

	endsWithQuestion = regexp.MustCompile(`\?$`)
)

// ValidationResult describes the outcome of structural template validation.
type ValidationResult struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	CharacterCount int      `json:"character_count"`
	MaxCharacters  int      `json:"max_characters"`
}

// SubmitResult is returned when a template is submitted for approval.
type SubmitResult struct {
	Status   models.TemplateStatus `json:"status"`
	Errors   []string              `json:"errors"`
	Warnings []string              `json:"warnings"`
}

// TemplateStatusDTO summarises the template state of a party.
type TemplateStatusDTO struct {
	Text              string                `json:"text"`
	Status            models.TemplateStatus `json:"status"`
	Errors            []string              `json:"errors"`
	CanSend           bool                  `json:"can_send"`
	FirstInviteSentAt *time.Time            `json:"first_invite_sent_at"`
}

// Guidelines lists the approval rules and writing tips shown to organisers.
type Guidelines struct {
	Title string   `json:"title"`
	Rules []string `json:"rules"`
	Tips  []string `json:"tips"`
}

// TemplateService validates and stores the approved message template for a
// party. Approval is re-evaluated in full on every submission.
type TemplateService struct {
	db *gorm.DB
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(db *gorm.DB) (*TemplateService, error) {
	if db == nil {
		return nil, errors.New("template service: db is required")
	}
	return &TemplateService{db: db}, nil
}

// Validate runs structural validation over a template. It is a pure function
// of the text and never touches the store.
func (s *TemplateService) Validate(text string) ValidationResult {
	result := ValidationResult{
		Errors:        []string{},
		Warnings:      []string{},
		MaxCharacters: templateMaxLength,
	}

	clean := strings.TrimSpace(text)
	result.CharacterCount = len([]rune(clean))

	if clean == "" {
		result.Errors = append(result.Errors, "A message is required")
		return result
	}

	if result.CharacterCount < templateMinLength {
		result.Errors = append(result.Errors, fmt.Sprintf("Message is too short (minimum %d characters)", templateMinLength))
	}
	if result.CharacterCount > templateMaxLength {
		result.Errors = append(result.Errors, fmt.Sprintf("Message is too long (maximum %d characters)", templateMaxLength))
	}

	for _, rule := range forbiddenRules {
		if rule.pattern.MatchString(clean) {
			result.Errors = append(result.Errors, rule.message)
		}
	}

	if !strings.Contains(clean, GuestNamePlaceholder) {
		result.Errors = append(result.Errors, fmt.Sprintf("The message must contain %s for personalisation", GuestNamePlaceholder))
	}

	if !endsWithQuestion.MatchString(clean) {
		result.Warnings = append(result.Warnings, "Ending with a question encourages guests to reply")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// Submit validates a template and persists it together with the resulting
// approval state. Rejected text is stored as well so organisers can see what
// they typed.
func (s *TemplateService) Submit(ctx context.Context, partyID, text string) (*SubmitResult, error) {
	ctx = ensureContext(ctx)

	var party models.Party
	if err := s.db.WithContext(ctx).First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("template service: load party: %w", err)
	}

	validation := s.Validate(text)

	updates := map[string]any{
		"template_text": text,
	}
	if validation.Valid {
		updates["template_status"] = models.TemplateApproved
		updates["validation_errors"] = nil
	} else {
		updates["template_status"] = models.TemplateRejected
		data, err := json.Marshal(validation.Errors)
		if err != nil {
			return nil, fmt.Errorf("template service: marshal errors: %w", err)
		}
		updates["validation_errors"] = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Model(&party).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("template service: store template: %w", err)
	}

	status := models.TemplateApproved
	if !validation.Valid {
		status = models.TemplateRejected
	}

	return &SubmitResult{
		Status:   status,
		Errors:   validation.Errors,
		Warnings: validation.Warnings,
	}, nil
}

// CanSend reports whether the party currently holds an approved, non-empty
// template. It is the single authorisation gate checked before queue rows are
// created.
func (s *TemplateService) CanSend(ctx context.Context, partyID string) (bool, error) {
	ctx = ensureContext(ctx)

	var party models.Party
	if err := s.db.WithContext(ctx).Select("template_status", "template_text").
		First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrNotFound
		}
		return false, fmt.Errorf("template service: load party: %w", err)
	}

	return party.TemplateStatus == models.TemplateApproved && strings.TrimSpace(party.TemplateText) != "", nil
}

// Status returns the template state for a party.
func (s *TemplateService) Status(ctx context.Context, partyID string) (*TemplateStatusDTO, error) {
	ctx = ensureContext(ctx)

	var party models.Party
	if err := s.db.WithContext(ctx).First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("template service: load party: %w", err)
	}

	dto := &TemplateStatusDTO{
		Text:              party.TemplateText,
		Status:            party.TemplateStatus,
		Errors:            []string{},
		FirstInviteSentAt: party.FirstInviteSentAt,
	}
	dto.CanSend = party.TemplateStatus == models.TemplateApproved && strings.TrimSpace(party.TemplateText) != ""

	if len(party.ValidationErrors) > 0 {
		if err := json.Unmarshal(party.ValidationErrors, &dto.Errors); err != nil {
			return nil, fmt.Errorf("template service: decode errors: %w", err)
		}
	}

	return dto, nil
}

// ApprovalGuidelines returns the static rule list shown alongside rejections.
func ApprovalGuidelines() Guidelines {
	return Guidelines{
		Title: "Message approval guidelines",
		Rules: []string{
			fmt.Sprintf("The message must be between %d and %d characters", templateMinLength, templateMaxLength),
			"Do not include links or URLs",
			"Avoid excessive CAPITAL LETTERS",
			"Do not repeat exclamation marks (!!!)",
			"Avoid promotional words such as \"free\", \"promotion\", \"discount\"",
			"Avoid urgency language such as \"urgent\", \"unmissable\"",
			fmt.Sprintf("The message must contain %s for personalisation", GuestNamePlaceholder),
			"We recommend ending with a question to encourage replies",
		},
		Tips: []string{
			"Be personal and warm, as if talking to a friend",
			"Mention the event name and date clearly",
			"Ask for confirmation gently",
			"Use WhatsApp formatting sparingly: *bold* for highlights",
		},
	}
}
