package models

import "time"

// RSVPStatus represents a guest's attendance response state.
type RSVPStatus string

const (
	RSVPNoResponse    RSVPStatus = "NO_RESPONSE"
	RSVPConfirmed     RSVPStatus = "CONFIRMED"
	RSVPDeclined      RSVPStatus = "DECLINED"
	RSVPNeedsFollowUp RSVPStatus = "NEEDS_FOLLOWUP"
)

// Guest is one message recipient belonging to a party.
type Guest struct {
	BaseModel

	PartyID    string     `gorm:"type:uuid;not null;index" json:"party_id"`
	Name       string     `gorm:"type:varchar(255);not null" json:"name"`
	Phone      string     `gorm:"type:varchar(32);not null;index" json:"phone"`
	RSVPStatus RSVPStatus `gorm:"type:varchar(16);default:'NO_RESPONSE';index" json:"rsvp_status"`
	Notes      string     `gorm:"type:text" json:"notes"`

	// FirstContactAt is set exactly once by the dispatcher, on the first
	// successful invite send. It gates follow-up eligibility.
	FirstContactAt  *time.Time `json:"first_contact_at"`
	LastContactAt   *time.Time `json:"last_contact_at"`
	FollowUp1SentAt *time.Time `gorm:"column:follow_up_1_sent_at" json:"follow_up_1_sent_at"`
	FollowUp2SentAt *time.Time `gorm:"column:follow_up_2_sent_at" json:"follow_up_2_sent_at"`

	LastSendError string `gorm:"type:text" json:"last_send_error"`
}
