package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/pkg/response"
)

// WebhookHandler receives inbound message notifications from the WhatsApp
// Cloud API.
type WebhookHandler struct {
	replies     *services.ReplyService
	verifyToken string
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(replies *services.ReplyService, verifyToken string) (*WebhookHandler, error) {
	if replies == nil {
		return nil, errors.New("webhook handler: reply service is required")
	}
	return &WebhookHandler{replies: replies, verifyToken: verifyToken}, nil
}

// Verify answers the Cloud API webhook verification handshake: echo the
// challenge when the token matches.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && (h.verifyToken == "" || token == h.verifyToken) {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// cloudWebhookPayload mirrors the subset of the Cloud API notification we
// consume: inbound text messages.
type cloudWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Receive processes inbound notifications. Always answers 200 so the Cloud
// API does not retry payloads we simply do not care about.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload cloudWebhookPayload
	if !bindJSON(c, &payload) {
		return
	}

	handled := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "" && msg.Type != "text" {
					continue
				}
				if msg.Text.Body == "" {
					continue
				}

				receivedAt := time.Time{}
				if unix, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					receivedAt = time.Unix(unix, 0)
				}

				if _, err := h.replies.OnInboundMessage(c.Request.Context(), services.InboundReply{
					Phone:      msg.From,
					Text:       msg.Text.Body,
					ReceivedAt: receivedAt,
				}); err != nil {
					response.Error(c, err)
					return
				}
				handled++
			}
		}
	}

	response.Success(c, http.StatusOK, gin.H{"handled": handled})
}
