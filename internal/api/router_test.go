package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/app"
	"github.com/confirmaparty/confirma/internal/app/worker"
	"github.com/confirmaparty/confirma/internal/database/testutil"
	"github.com/confirmaparty/confirma/internal/models"
	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/internal/whatsapp"
)

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	mock   *whatsapp.MockTransport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	queue, err := services.NewQueueService(db)
	require.NoError(t, err)
	parties, err := services.NewPartyService(db)
	require.NoError(t, err)
	templates, err := services.NewTemplateService(db)
	require.NoError(t, err)
	scheduler, err := services.NewSchedulerService(db, queue)
	require.NoError(t, err)
	followUps, err := services.NewFollowUpService(db)
	require.NoError(t, err)
	replies, err := services.NewReplyService(db, queue)
	require.NoError(t, err)

	mock := whatsapp.NewMockTransport()
	dispatcher, err := services.NewDispatchService(db, queue, mock,
		services.WithPacing(0))
	require.NoError(t, err)

	w, err := worker.New(db, scheduler, dispatcher)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.CronSecret = "hush"

	router, err := NewRouter(Dependencies{
		DB:        db,
		Config:    cfg,
		Parties:   parties,
		Templates: templates,
		Scheduler: scheduler,
		FollowUps: followUps,
		Queue:     queue,
		Replies:   replies,
		Transport: mock,
		Worker:    w,
	})
	require.NoError(t, err)

	return &testEnv{router: router, db: db, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", w.Body.String())
	return envelope.Data
}

func TestInviteLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	// Create a party.
	w := env.do(t, http.MethodPost, "/api/parties", map[string]any{
		"name":       "Aniversário da Ana",
		"party_type": "birthday",
		"event_date": time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	partyID := decodeData(t, w)["id"].(string)

	// Scheduling before template approval is refused.
	w = env.do(t, http.MethodPost, "/api/parties/"+partyID+"/schedule/invites", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// Submit an approvable template.
	w = env.do(t, http.MethodPost, "/api/parties/"+partyID+"/template", map[string]any{
		"text": "Olá {guest_name}, adoraríamos ver você na nossa festa. Você confirma presença?",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "APPROVED", decodeData(t, w)["status"])

	// Register guests.
	w = env.do(t, http.MethodPost, "/api/parties/"+partyID+"/guests", map[string]any{
		"guests": []map[string]string{
			{"name": "Bia", "phone": "+55 (11) 99999-0001"},
			{"name": "Caio", "phone": "11999990002"},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Schedule the invites for the past so they are immediately due.
	startAt := time.Now().Add(-time.Minute).Format(time.RFC3339)
	w = env.do(t, http.MethodPost, "/api/parties/"+partyID+"/schedule/invites", map[string]any{
		"start_at": startAt,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 2, decodeData(t, w)["scheduled"])

	// The trigger endpoint requires the shared secret.
	w = env.do(t, http.MethodPost, "/api/queue/process", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/queue/process", nil, map[string]string{
		"X-Cron-Secret": "hush",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.mock.Sent(), 2)

	// Queue stats reflect the sends.
	w = env.do(t, http.MethodGet, "/api/parties/"+partyID+"/queue/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeData(t, w)
	invites := stats["INVITE"].(map[string]any)
	require.EqualValues(t, 2, invites["SENT"])
}

func TestWebhookReplyCancelsFollowUps(t *testing.T) {
	env := newTestEnv(t)

	party := models.Party{
		Name:           "Festa",
		EventDate:      time.Now().AddDate(0, 1, 0),
		TemplateText:   "Olá {guest_name}, venha para a festa. Confirma?",
		TemplateStatus: models.TemplateApproved,
	}
	require.NoError(t, env.db.Create(&party).Error)

	guest := models.Guest{
		PartyID:    party.ID,
		Name:       "Ana",
		Phone:      "11999990001",
		RSVPStatus: models.RSVPNoResponse,
	}
	require.NoError(t, env.db.Create(&guest).Error)

	require.NoError(t, env.db.Create(&models.QueueItem{
		GuestID:      guest.ID,
		PartyID:      party.ID,
		Kind:         models.KindFollowUp1,
		Content:      "Oi Ana, você viu o convite?",
		ScheduledFor: time.Now().Add(24 * time.Hour),
		Status:       models.QueueScheduled,
	}).Error)

	payload := map[string]any{
		"entry": []map[string]any{{
			"changes": []map[string]any{{
				"value": map[string]any{
					"messages": []map[string]any{{
						"from":      "5511999990001",
						"type":      "text",
						"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
						"text":      map[string]string{"body": "Vou sim!"},
					}},
				},
			}},
		}},
	}

	w := env.do(t, http.MethodPost, "/webhook/whatsapp", payload, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decodeData(t, w)["handled"])

	var item models.QueueItem
	require.NoError(t, env.db.First(&item, "guest_id = ?", guest.ID).Error)
	require.Equal(t, models.QueueCancelled, item.Status)
}

func TestWebhookVerificationHandshake(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet,
		"/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=anything&hub.challenge=42", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "42", w.Body.String())
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}
