package whatsapp

import (
	"context"
	"errors"
)

// ErrNotConnected signals that the underlying channel has no live session.
var ErrNotConnected = errors.New("whatsapp: not connected")

// SendResult describes a successfully accepted outbound message.
type SendResult struct {
	MessageID string
	Phone     string
}

// Transport is the single outbound capability the dispatcher depends on.
// Adapters exist for the WhatsApp Cloud API, a direct WhatsApp Web session,
// and an in-memory mock; the deployment picks one at startup.
type Transport interface {
	SendText(ctx context.Context, phone, text string) (SendResult, error)
}

// ConnectionStatus reports the health of a stateful transport session.
type ConnectionStatus struct {
	Connected   bool   `json:"connected"`
	PhoneNumber string `json:"phone_number,omitempty"`
	QRCode      string `json:"qr_code,omitempty"`
}

// StatusReporter is implemented by transports with a pairing lifecycle.
type StatusReporter interface {
	Status() ConnectionStatus
}
