package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/confirmaparty/confirma/pkg/logger"
)

const defaultGraphBaseURL = "https://graph.facebook.com/v17.0"

// CloudConfig configures the WhatsApp Cloud API adapter.
type CloudConfig struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
}

// CloudTransport sends messages through the hosted WhatsApp Cloud API.
type CloudTransport struct {
	cfg    CloudConfig
	client *http.Client
	log    *zap.Logger
}

// NewCloudTransport constructs a CloudTransport.
func NewCloudTransport(cfg CloudConfig) (*CloudTransport, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp cloud: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp cloud: phone number id is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &CloudTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.WithModule("whatsapp.cloud"),
	}, nil
}

type cloudTextPayload struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	Text             cloudText `json:"text"`
}

type cloudText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText delivers a plain text message to one recipient.
func (t *CloudTransport) SendText(ctx context.Context, phone, text string) (SendResult, error) {
	to := WireFormat(phone)

	body, err := json.Marshal(cloudTextPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             cloudText{Body: text},
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp cloud: encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(t.cfg.BaseURL, "/"), t.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp cloud: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("whatsapp cloud: send: %w", err)
	}
	defer resp.Body.Close()

	var decoded cloudResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return SendResult{}, fmt.Errorf("whatsapp cloud: decode response: %w", err)
	}

	if resp.StatusCode >= 400 || decoded.Error != nil {
		msg := "unknown error"
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}
		t.log.Warn("cloud api rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg),
		)
		return SendResult{}, fmt.Errorf("whatsapp cloud: %s", msg)
	}

	result := SendResult{Phone: to}
	if len(decoded.Messages) > 0 {
		result.MessageID = decoded.Messages[0].ID
	}
	return result, nil
}
