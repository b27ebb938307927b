package models

import "time"

// MessageKind identifies which message instance a queue item delivers.
type MessageKind string

const (
	KindInvite    MessageKind = "INVITE"
	KindFollowUp1 MessageKind = "FOLLOWUP_1"
	KindFollowUp2 MessageKind = "FOLLOWUP_2"
)

// QueueStatus is the lifecycle state of a queue item.
type QueueStatus string

const (
	QueueScheduled QueueStatus = "SCHEDULED"
	QueueSending   QueueStatus = "SENDING"
	QueueSent      QueueStatus = "SENT"
	QueueFailed    QueueStatus = "FAILED"
	QueueCancelled QueueStatus = "CANCELLED"
)

// KindForOrder maps a follow-up rule order to its queue message kind.
func KindForOrder(order int) MessageKind {
	if order == 2 {
		return KindFollowUp2
	}
	return KindFollowUp1
}

// QueueItem is one scheduled attempt to deliver one message to one guest.
// The (guest, kind) pair is unique: re-enqueueing the same message for the
// same guest is an idempotent no-op.
type QueueItem struct {
	BaseModel

	GuestID string      `gorm:"type:uuid;not null;uniqueIndex:idx_queue_guest_kind" json:"guest_id"`
	Kind    MessageKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_queue_guest_kind" json:"kind"`
	PartyID string      `gorm:"type:uuid;not null;index" json:"party_id"`

	Content      string      `gorm:"type:text;not null" json:"content"`
	ScheduledFor time.Time   `gorm:"not null;index" json:"scheduled_for"`
	Status       QueueStatus `gorm:"type:varchar(16);default:'SCHEDULED';index" json:"status"`
	Attempts     int         `gorm:"default:0" json:"attempts"`
	LastError    string      `gorm:"type:text" json:"last_error"`
	SentAt       *time.Time  `json:"sent_at"`

	Guest Guest `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Terminal reports whether the item can no longer transition.
func (q *QueueItem) Terminal() bool {
	switch q.Status {
	case QueueSent, QueueFailed, QueueCancelled:
		return true
	}
	return false
}
