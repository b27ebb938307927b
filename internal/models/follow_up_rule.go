package models

import "time"

// ScheduleKind selects how a follow-up's send date is computed.
type ScheduleKind string

const (
	ScheduleFixedDate             ScheduleKind = "FIXED_DATE"
	ScheduleDaysBeforeEvent       ScheduleKind = "DAYS_BEFORE_EVENT"
	ScheduleDaysAfterFirstContact ScheduleKind = "DAYS_AFTER_FIRST_CONTACT"
)

// FollowUpStatus tracks whether a rule has been materialised into queue rows.
type FollowUpStatus string

const (
	FollowUpPending FollowUpStatus = "PENDING"
	FollowUpSent    FollowUpStatus = "SENT"
	FollowUpFailed  FollowUpStatus = "FAILED"
)

// FollowUpRule configures one of up to two follow-up messages for a party.
// Exactly one of FixedDate/DaysOffset is populated, consistent with ScheduleKind.
type FollowUpRule struct {
	BaseModel

	PartyID      string         `gorm:"type:uuid;not null;uniqueIndex:idx_follow_up_party_order" json:"party_id"`
	Order        int            `gorm:"column:order_no;not null;uniqueIndex:idx_follow_up_party_order" json:"order"`
	MessageText  string         `gorm:"type:text;not null" json:"message_text"`
	ScheduleKind ScheduleKind   `gorm:"type:varchar(32);not null" json:"schedule_kind"`
	FixedDate    *time.Time     `json:"fixed_date"`
	DaysOffset   *int           `json:"days_offset"`
	Status       FollowUpStatus `gorm:"type:varchar(16);default:'PENDING'" json:"status"`
}
