package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/models"
	"github.com/confirmaparty/confirma/internal/whatsapp"
	"github.com/confirmaparty/confirma/pkg/logger"
	"github.com/confirmaparty/confirma/pkg/metrics"
)

// Classifier optionally maps a reply's text to an RSVP status. The boolean is
// false when the text is too ambiguous to classify.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.RSVPStatus, bool)
}

// ReplyOption customises the ReplyService.
type ReplyOption func(*ReplyService)

// WithClassifier installs a reply classifier. Without one, every reply from a
// guest with no recorded response is marked NEEDS_FOLLOWUP for human review.
func WithClassifier(c Classifier) ReplyOption {
	return func(s *ReplyService) {
		s.classifier = c
	}
}

// WithReplyClock injects a custom clock, primarily for testing.
func WithReplyClock(now func() time.Time) ReplyOption {
	return func(s *ReplyService) {
		if now != nil {
			s.now = now
		}
	}
}

// InboundReply is one guest message arriving from any inbound channel.
type InboundReply struct {
	Phone      string
	Text       string
	ReceivedAt time.Time
}

// ReplyResult reports what handling one inbound message changed.
type ReplyResult struct {
	Matched    bool              `json:"matched"`
	GuestID    string            `json:"guest_id,omitempty"`
	RSVPStatus models.RSVPStatus `json:"rsvp_status,omitempty"`
	Cancelled  int64             `json:"cancelled"`
}

// ReplyService records inbound guest messages and stops pending follow-ups
// the moment a guest responds.
type ReplyService struct {
	db         *gorm.DB
	queue      *QueueService
	classifier Classifier
	now        func() time.Time
	log        *zap.Logger
}

// NewReplyService constructs a ReplyService.
func NewReplyService(db *gorm.DB, queue *QueueService, opts ...ReplyOption) (*ReplyService, error) {
	if db == nil {
		return nil, errors.New("reply service: db is required")
	}
	if queue == nil {
		return nil, errors.New("reply service: queue is required")
	}

	service := &ReplyService{
		db:    db,
		queue: queue,
		now:   time.Now,
		log:   logger.WithModule("replies"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// OnInboundMessage handles one guest reply: log it, cancel the guest's still
// pending follow-ups, and update the RSVP status. Follow-up cancellation does
// not depend on classification; any reply is a response. Messages from
// unknown numbers are ignored.
func (s *ReplyService) OnInboundMessage(ctx context.Context, reply InboundReply) (*ReplyResult, error) {
	ctx = ensureContext(ctx)

	guest, err := s.ResolveGuest(ctx, reply.Phone)
	if err != nil {
		return nil, err
	}
	if guest == nil {
		s.log.Debug("inbound message from unknown number",
			zap.String("suffix", whatsapp.SuffixKey(reply.Phone)))
		return &ReplyResult{Matched: false}, nil
	}

	receivedAt := reply.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	if err := s.db.WithContext(ctx).Create(&models.MessageLog{
		GuestID:    guest.ID,
		Content:    reply.Text,
		FromSystem: false,
	}).Error; err != nil {
		return nil, fmt.Errorf("reply service: log message: %w", err)
	}

	cancelled, err := s.queue.CancelForGuest(ctx, guest.ID,
		[]models.MessageKind{models.KindFollowUp1, models.KindFollowUp2})
	if err != nil {
		return nil, fmt.Errorf("reply service: %w", err)
	}

	status := s.classify(ctx, guest, reply.Text)
	updates := map[string]any{"last_contact_at": receivedAt}
	if status != guest.RSVPStatus {
		updates["rsvp_status"] = status
	}
	if err := s.db.WithContext(ctx).Model(&models.Guest{}).
		Where("id = ?", guest.ID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("reply service: update guest: %w", err)
	}

	metrics.InboundReplies.Inc()
	s.log.Info("inbound reply handled",
		zap.String("guest_id", guest.ID),
		zap.String("rsvp_status", string(status)),
		zap.Int64("cancelled", cancelled),
	)

	return &ReplyResult{
		Matched:    true,
		GuestID:    guest.ID,
		RSVPStatus: status,
		Cancelled:  cancelled,
	}, nil
}

// ResolveGuest finds the guest whose phone shares the inbound number's last
// nine digits, tolerating country-code and formatting differences between the
// stored number and what the transport reports. Nil means no match.
func (s *ReplyService) ResolveGuest(ctx context.Context, phone string) (*models.Guest, error) {
	ctx = ensureContext(ctx)

	key := whatsapp.SuffixKey(phone)
	if key == "" {
		return nil, nil
	}

	var guests []models.Guest
	if err := s.db.WithContext(ctx).
		Where("phone LIKE ?", "%"+key).
		Order("created_at ASC").
		Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("reply service: resolve guest: %w", err)
	}

	if len(guests) == 0 {
		// Stored numbers may carry formatting; compare digit suffixes.
		if err := s.db.WithContext(ctx).Find(&guests).Error; err != nil {
			return nil, fmt.Errorf("reply service: resolve guest: %w", err)
		}
		for i := range guests {
			if whatsapp.SuffixKey(guests[i].Phone) == key {
				return &guests[i], nil
			}
		}
		return nil, nil
	}

	return &guests[0], nil
}

func (s *ReplyService) classify(ctx context.Context, guest *models.Guest, text string) models.RSVPStatus {
	if s.classifier != nil {
		if status, ok := s.classifier.Classify(ctx, text); ok {
			return status
		}
	}
	if guest.RSVPStatus == models.RSVPNoResponse {
		return models.RSVPNeedsFollowUp
	}
	return guest.RSVPStatus
}
