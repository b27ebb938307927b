package models

import (
	"time"

	"gorm.io/datatypes"
)

// TemplateStatus tracks the approval state of a party's invite template.
type TemplateStatus string

const (
	TemplateDraft    TemplateStatus = "DRAFT"
	TemplateApproved TemplateStatus = "APPROVED"
	TemplateRejected TemplateStatus = "REJECTED"
)

// Party represents one event with its contact window and message template.
type Party struct {
	BaseModel

	Name               string         `gorm:"type:varchar(255);not null" json:"name"`
	PartyType          string         `gorm:"type:varchar(64)" json:"party_type"`
	EventDate          time.Time      `gorm:"not null" json:"event_date"`
	ContactWindowStart time.Time      `json:"contact_window_start"`
	TemplateText       string         `gorm:"type:text" json:"template_text"`
	TemplateStatus     TemplateStatus `gorm:"type:varchar(16);default:'DRAFT';index" json:"template_status"`
	ValidationErrors   datatypes.JSON `json:"validation_errors"`

	// FirstInviteSentAt is set at most once, on the first invite enqueue for
	// the party. It anchors DAYS_AFTER_FIRST_CONTACT follow-up scheduling.
	FirstInviteSentAt *time.Time `json:"first_invite_sent_at"`

	Guests     []Guest        `gorm:"constraint:OnDelete:CASCADE" json:"guests,omitempty"`
	FollowUps  []FollowUpRule `gorm:"constraint:OnDelete:CASCADE" json:"follow_ups,omitempty"`
	QueueItems []QueueItem    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
