package whatsapp

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage records one delivery accepted by the mock transport.
type SentMessage struct {
	Phone string
	Text  string
}

// MockTransport is an in-memory Transport for tests and for deployments that
// only exercise the pipeline (mode "mock"). SendFn, when set, scripts the
// outcome of each call; otherwise every send succeeds.
type MockTransport struct {
	mu     sync.Mutex
	sent   []SentMessage
	nextID int

	SendFn func(ctx context.Context, phone, text string) (SendResult, error)
}

// NewMockTransport constructs an always-succeeding mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// SendText records the message and returns the scripted or default outcome.
func (m *MockTransport) SendText(ctx context.Context, phone, text string) (SendResult, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	fn := m.SendFn
	m.mu.Unlock()

	if fn != nil {
		result, err := fn(ctx, phone, text)
		if err != nil {
			return result, err
		}
		m.record(phone, text)
		return result, nil
	}

	m.record(phone, text)
	return SendResult{MessageID: fmt.Sprintf("mock-%d", id), Phone: phone}, nil
}

// Sent returns a copy of every accepted message, in order.
func (m *MockTransport) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Status reports the mock as permanently connected.
func (m *MockTransport) Status() ConnectionStatus {
	return ConnectionStatus{Connected: true, PhoneNumber: "mock"}
}

func (m *MockTransport) record(phone, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{Phone: phone, Text: text})
}

var _ Transport = (*MockTransport)(nil)
var _ StatusReporter = (*MockTransport)(nil)
