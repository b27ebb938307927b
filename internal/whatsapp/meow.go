package whatsapp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/confirmaparty/confirma/pkg/logger"
)

// MeowConfig configures the direct WhatsApp Web transport.
type MeowConfig struct {
	DataDir string
}

// InboundMessage is one guest reply received over the live session.
type InboundMessage struct {
	Phone     string
	PushName  string
	Text      string
	Timestamp time.Time
}

// InboundHandler consumes inbound messages. It runs on whatsmeow's event
// goroutine and should hand work off quickly.
type InboundHandler func(InboundMessage)

// MeowTransport drives a paired WhatsApp Web session through whatsmeow. The
// session credentials live in a local sqlite store under DataDir; a fresh
// deployment pairs by scanning the QR code exposed via Status.
type MeowTransport struct {
	client *whatsmeow.Client
	log    *zap.Logger

	mu        sync.RWMutex
	qrCode    string
	connected bool
	handler   InboundHandler
}

// NewMeowTransport opens the device store and builds the client. Connect must
// be called before messages can be sent.
func NewMeowTransport(ctx context.Context, cfg MeowConfig) (*MeowTransport, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.ToSlash(filepath.Join(dataDir, "whatsmeow.db")))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("whatsapp meow: open device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp meow: load device: %w", err)
	}

	transport := &MeowTransport{
		client: whatsmeow.NewClient(device, nil),
		log:    logger.WithModule("whatsapp.meow"),
	}
	transport.client.AddEventHandler(transport.handleEvent)

	return transport, nil
}

// SetInboundHandler registers the callback invoked for each guest reply.
func (t *MeowTransport) SetInboundHandler(handler InboundHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

// Connect establishes the session. When the device has never been paired the
// pairing QR code is captured and exposed through Status until scanned.
func (t *MeowTransport) Connect(ctx context.Context) error {
	if t.client.Store.ID == nil {
		qrChan, err := t.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("whatsapp meow: qr channel: %w", err)
		}
		if err := t.client.Connect(); err != nil {
			return fmt.Errorf("whatsapp meow: connect: %w", err)
		}

		go func() {
			for evt := range qrChan {
				switch evt.Event {
				case "code":
					t.mu.Lock()
					t.qrCode = evt.Code
					t.mu.Unlock()
					t.log.Info("pairing code available; scan with WhatsApp")
				default:
					t.log.Info("pairing event", zap.String("event", evt.Event))
				}
			}
		}()
		return nil
	}

	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp meow: connect: %w", err)
	}
	return nil
}

// Disconnect tears the session down.
func (t *MeowTransport) Disconnect() {
	t.client.Disconnect()
}

// SendText delivers a plain text message to one recipient over the session.
func (t *MeowTransport) SendText(ctx context.Context, phone, text string) (SendResult, error) {
	if !t.client.IsConnected() {
		return SendResult{}, ErrNotConnected
	}

	wire := WireFormat(phone)

	resp, err := t.client.IsOnWhatsApp(ctx, []string{wire})
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp meow: verify recipient: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return SendResult{}, fmt.Errorf("whatsapp meow: %s is not registered on whatsapp", wire)
	}
	jid := resp[0].JID

	sent, err := t.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: &text})
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp meow: send: %w", err)
	}

	return SendResult{MessageID: string(sent.ID), Phone: wire}, nil
}

// Status reports the session state plus the pairing QR code when unpaired.
func (t *MeowTransport) Status() ConnectionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := ConnectionStatus{Connected: t.connected}
	if t.client.Store.ID != nil {
		status.PhoneNumber = t.client.Store.ID.User
	}
	if !t.connected {
		status.QRCode = t.qrCode
	}
	return status
}

// QRCodePNG renders the current pairing code as a PNG, or nil when no code is
// pending.
func (t *MeowTransport) QRCodePNG() ([]byte, error) {
	t.mu.RLock()
	code := t.qrCode
	t.mu.RUnlock()

	if code == "" {
		return nil, nil
	}
	return qrcode.Encode(code, qrcode.Medium, 256)
}

func (t *MeowTransport) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		t.handleMessage(e)
	case *events.Connected:
		t.mu.Lock()
		t.connected = true
		t.qrCode = ""
		t.mu.Unlock()
		t.log.Info("connected to whatsapp")
	case *events.Disconnected:
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		t.log.Warn("disconnected from whatsapp")
	case *events.LoggedOut:
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		t.log.Warn("logged out from whatsapp; re-pairing required")
	}
}

func (t *MeowTransport) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}

	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return
	}

	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler == nil {
		t.log.Debug("inbound message dropped; no handler registered",
			zap.String("sender", evt.Info.Sender.User))
		return
	}

	handler(InboundMessage{
		Phone:     evt.Info.Sender.User,
		PushName:  evt.Info.PushName,
		Text:      text,
		Timestamp: evt.Info.Timestamp,
	})
}

var _ Transport = (*MeowTransport)(nil)
var _ StatusReporter = (*MeowTransport)(nil)
