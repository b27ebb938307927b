package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/models"
	apperrors "github.com/confirmaparty/confirma/pkg/errors"
	"github.com/confirmaparty/confirma/pkg/logger"
	"github.com/confirmaparty/confirma/pkg/metrics"
)

const (
	// defaultSendSpacing staggers queue rows so a batch never bursts the
	// transport. It carries no priority meaning.
	defaultSendSpacing = 3 * time.Second

	// followUpSendHour is the canonical local hour for offset-based
	// follow-up dates, avoiding mid-day "is it past yet" ambiguity.
	followUpSendHour = 10
)

// ScheduleResult reports how many queue rows a planning pass created.
type ScheduleResult struct {
	Scheduled int `json:"scheduled"`
}

// SchedulerOption customises the SchedulerService.
type SchedulerOption func(*SchedulerService)

// WithSendSpacing overrides the per-recipient stagger interval.
func WithSendSpacing(d time.Duration) SchedulerOption {
	return func(s *SchedulerService) {
		if d > 0 {
			s.spacing = d
		}
	}
}

// WithSchedulerClock injects a custom clock, primarily for testing.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *SchedulerService) {
		if now != nil {
			s.now = now
		}
	}
}

// SchedulerService turns eligible guests into concrete, timestamped queue
// rows. It never talks to the transport; dispatching is a separate concern.
type SchedulerService struct {
	db      *gorm.DB
	queue   *QueueService
	spacing time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(db *gorm.DB, queue *QueueService, opts ...SchedulerOption) (*SchedulerService, error) {
	if db == nil {
		return nil, errors.New("scheduler service: db is required")
	}
	if queue == nil {
		return nil, errors.New("scheduler service: queue is required")
	}

	service := &SchedulerService{
		db:      db,
		queue:   queue,
		spacing: defaultSendSpacing,
		now:     time.Now,
		log:     logger.WithModule("scheduler"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ScheduleInvites creates one INVITE queue row per eligible guest, staggered
// from startAt. The party's template must be approved. Guests already
// contacted, or with a reply on record, are not eligible. Zero eligible
// guests is a successful no-op.
func (s *SchedulerService) ScheduleInvites(ctx context.Context, partyID string, startAt time.Time) (*ScheduleResult, error) {
	ctx = ensureContext(ctx)

	var party models.Party
	if err := s.db.WithContext(ctx).First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scheduler service: load party: %w", err)
	}

	if party.TemplateStatus != models.TemplateApproved {
		return nil, apperrors.ErrTemplateNotApproved
	}
	if strings.TrimSpace(party.TemplateText) == "" {
		return nil, apperrors.ErrTemplateMissing
	}

	if startAt.IsZero() {
		startAt = s.now()
	}

	var guests []models.Guest
	if err := s.db.WithContext(ctx).
		Where("party_id = ? AND rsvp_status = ? AND first_contact_at IS NULL", partyID, models.RSVPNoResponse).
		Order("created_at ASC").
		Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("scheduler service: load guests: %w", err)
	}

	if len(guests) == 0 {
		return &ScheduleResult{Scheduled: 0}, nil
	}

	items := make([]models.QueueItem, 0, len(guests))
	for i, guest := range guests {
		items = append(items, models.QueueItem{
			GuestID:      guest.ID,
			PartyID:      party.ID,
			Kind:         models.KindInvite,
			Content:      RenderTemplate(party.TemplateText, guest.Name),
			ScheduledFor: startAt.Add(time.Duration(i) * s.spacing),
			Status:       models.QueueScheduled,
		})
	}

	created, err := s.queue.Enqueue(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("scheduler service: %w", err)
	}

	if party.FirstInviteSentAt == nil {
		if err := s.db.WithContext(ctx).Model(&party).
			Update("first_invite_sent_at", startAt).Error; err != nil {
			return nil, fmt.Errorf("scheduler service: record first invite: %w", err)
		}
	}

	metrics.MessagesScheduled.WithLabelValues(string(models.KindInvite)).Add(float64(created))
	s.log.Info("invites scheduled",
		zap.String("party_id", partyID),
		zap.Int("eligible", len(guests)),
		zap.Int("created", created),
	)

	return &ScheduleResult{Scheduled: created}, nil
}

// ScheduleFollowUps materialises every PENDING follow-up rule whose computed
// send date is still in the future. Rules anchored on the first invite are
// silently skipped until one has been scheduled; past dates never send
// retroactively.
func (s *SchedulerService) ScheduleFollowUps(ctx context.Context, partyID string) (*ScheduleResult, error) {
	ctx = ensureContext(ctx)

	var party models.Party
	if err := s.db.WithContext(ctx).
		Preload("FollowUps", func(db *gorm.DB) *gorm.DB { return db.Order("order_no ASC") }).
		First(&party, "id = ?", partyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scheduler service: load party: %w", err)
	}

	var guests []models.Guest
	if err := s.db.WithContext(ctx).
		Where("party_id = ? AND rsvp_status = ? AND first_contact_at IS NOT NULL", partyID, models.RSVPNoResponse).
		Order("created_at ASC").
		Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("scheduler service: load guests: %w", err)
	}

	now := s.now()
	total := 0

	for _, rule := range party.FollowUps {
		if rule.Status != models.FollowUpPending {
			continue
		}

		sendAt, err := followUpSendDate(rule, party)
		if err != nil {
			return nil, err
		}
		if sendAt == nil {
			// DAYS_AFTER_FIRST_CONTACT before any invite exists; retried
			// on the next planning pass.
			continue
		}
		if sendAt.Before(now) {
			s.log.Debug("follow-up date already passed",
				zap.String("party_id", partyID),
				zap.Int("order", rule.Order),
				zap.Time("send_at", *sendAt),
			)
			continue
		}

		kind := models.KindForOrder(rule.Order)
		items := make([]models.QueueItem, 0, len(guests))
		for _, guest := range guests {
			if alreadyFollowedUp(guest, rule.Order) {
				continue
			}
			items = append(items, models.QueueItem{
				GuestID:      guest.ID,
				PartyID:      party.ID,
				Kind:         kind,
				Content:      RenderTemplate(rule.MessageText, guest.Name),
				ScheduledFor: sendAt.Add(time.Duration(len(items)) * s.spacing),
				Status:       models.QueueScheduled,
			})
		}

		if len(items) == 0 {
			continue
		}

		created, err := s.queue.Enqueue(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("scheduler service: %w", err)
		}
		metrics.MessagesScheduled.WithLabelValues(string(kind)).Add(float64(created))
		total += created
	}

	return &ScheduleResult{Scheduled: total}, nil
}

// followUpSendDate computes the concrete timestamp a rule should fire at. A
// nil result (with nil error) means the rule cannot be scheduled yet.
func followUpSendDate(rule models.FollowUpRule, party models.Party) (*time.Time, error) {
	switch rule.ScheduleKind {
	case models.ScheduleFixedDate:
		if rule.FixedDate == nil {
			return nil, apperrors.ErrFollowUpRuleInvalid
		}
		t := *rule.FixedDate
		return &t, nil

	case models.ScheduleDaysBeforeEvent:
		if rule.DaysOffset == nil {
			return nil, apperrors.ErrFollowUpRuleInvalid
		}
		t := atCanonicalHour(party.EventDate.AddDate(0, 0, -*rule.DaysOffset))
		return &t, nil

	case models.ScheduleDaysAfterFirstContact:
		if rule.DaysOffset == nil {
			return nil, apperrors.ErrFollowUpRuleInvalid
		}
		if party.FirstInviteSentAt == nil {
			return nil, nil
		}
		t := atCanonicalHour(party.FirstInviteSentAt.AddDate(0, 0, *rule.DaysOffset))
		return &t, nil

	default:
		return nil, apperrors.ErrFollowUpRuleInvalid
	}
}

func atCanonicalHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), followUpSendHour, 0, 0, 0, t.Location())
}

func alreadyFollowedUp(guest models.Guest, order int) bool {
	if order == 2 {
		return guest.FollowUp2SentAt != nil
	}
	return guest.FollowUp1SentAt != nil
}
