package models

// MessageLog is one append-only entry in a guest's conversation history.
// FromSystem is true for outbound messages authored by the platform and false
// for inbound guest replies.
type MessageLog struct {
	BaseModel

	GuestID    string `gorm:"type:uuid;not null;index" json:"guest_id"`
	Content    string `gorm:"type:text;not null" json:"content"`
	FromSystem bool   `gorm:"not null" json:"from_system"`
}
