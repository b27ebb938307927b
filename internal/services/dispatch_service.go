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

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 3
	defaultRetryDelay  = 5 * time.Minute
	defaultPacing      = 2 * time.Second
	defaultSendTimeout = 30 * time.Second
)

// BatchResult summarises one dispatcher pass over the due queue.
type BatchResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// DispatchOption customises the DispatchService.
type DispatchOption func(*DispatchService)

// WithBatchSize caps how many due items one pass handles.
func WithBatchSize(n int) DispatchOption {
	return func(s *DispatchService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxAttempts sets the total attempt ceiling per queue item.
func WithMaxAttempts(n int) DispatchOption {
	return func(s *DispatchService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the fixed delay before a failed item is retried.
func WithRetryDelay(d time.Duration) DispatchOption {
	return func(s *DispatchService) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// WithPacing sets the sleep between consecutive sends within a batch.
func WithPacing(d time.Duration) DispatchOption {
	return func(s *DispatchService) {
		if d >= 0 {
			s.pacing = d
		}
	}
}

// WithSendTimeout bounds each individual transport call.
func WithSendTimeout(d time.Duration) DispatchOption {
	return func(s *DispatchService) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithDispatchClock injects a custom clock, primarily for testing.
func WithDispatchClock(now func() time.Time) DispatchOption {
	return func(s *DispatchService) {
		if now != nil {
			s.now = now
		}
	}
}

// DispatchService drains due queue items through the WhatsApp transport. One
// item failing never aborts the batch; only storage errors do.
type DispatchService struct {
	db        *gorm.DB
	queue     *QueueService
	transport whatsapp.Transport

	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	pacing      time.Duration
	sendTimeout time.Duration

	now   func() time.Time
	sleep func(time.Duration)
	log   *zap.Logger
}

// NewDispatchService constructs a DispatchService.
func NewDispatchService(db *gorm.DB, queue *QueueService, transport whatsapp.Transport, opts ...DispatchOption) (*DispatchService, error) {
	if db == nil {
		return nil, errors.New("dispatch service: db is required")
	}
	if queue == nil {
		return nil, errors.New("dispatch service: queue is required")
	}
	if transport == nil {
		return nil, errors.New("dispatch service: transport is required")
	}

	service := &DispatchService{
		db:          db,
		queue:       queue,
		transport:   transport,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		pacing:      defaultPacing,
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
		sleep:       time.Sleep,
		log:         logger.WithModule("dispatcher"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// RunOnce processes one batch of due items: claim, send, record, pace. Items
// another runner claims first are skipped silently, so concurrent passes never
// double-send.
func (s *DispatchService) RunOnce(ctx context.Context) (*BatchResult, error) {
	ctx = ensureContext(ctx)
	started := s.now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(started).Seconds())
	}()

	items, err := s.queue.DueItems(ctx, s.batchSize, s.now())
	if err != nil {
		return nil, fmt.Errorf("dispatch service: %w", err)
	}

	result := &BatchResult{}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		claimed, err := s.queue.MarkSending(ctx, item.ID)
		if err != nil {
			return result, fmt.Errorf("dispatch service: %w", err)
		}
		if !claimed {
			continue
		}
		attempt := item.Attempts + 1

		result.Processed++

		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		sent, sendErr := s.transport.SendText(sendCtx, item.Guest.Phone, item.Content)
		cancel()

		if sendErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.ID, sendErr))
			if err := s.recordFailure(ctx, &item, attempt, sendErr); err != nil {
				return result, err
			}
		} else {
			result.Succeeded++
			if err := s.recordSuccess(ctx, &item); err != nil {
				return result, err
			}
			s.log.Info("message sent",
				zap.String("queue_id", item.ID),
				zap.String("kind", string(item.Kind)),
				zap.String("message_id", sent.MessageID),
				zap.Int("attempt", attempt),
			)
		}

		if s.pacing > 0 && i < len(items)-1 {
			s.sleep(s.pacing)
		}
	}

	if result.Processed > 0 {
		s.log.Info("dispatch batch complete",
			zap.Int("processed", result.Processed),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// recordSuccess finalises a delivered item: the queue row becomes SENT, the
// guest's contact markers advance, and the outbound message is logged. All in
// one transaction so a crash never records half a send.
func (s *DispatchService) recordSuccess(ctx context.Context, item *models.QueueItem) error {
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.QueueItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"status":     models.QueueSent,
				"sent_at":    now,
				"last_error": "",
			}).Error; err != nil {
			return err
		}

		guestUpdates := map[string]any{
			"last_contact_at": now,
			"last_send_error": "",
		}
		switch item.Kind {
		case models.KindFollowUp1:
			guestUpdates["follow_up_1_sent_at"] = now
		case models.KindFollowUp2:
			guestUpdates["follow_up_2_sent_at"] = now
		}
		if err := tx.Model(&models.Guest{}).
			Where("id = ?", item.GuestID).
			Updates(guestUpdates).Error; err != nil {
			return err
		}

		// First contact is set exactly once, never overwritten.
		if err := tx.Model(&models.Guest{}).
			Where("id = ? AND first_contact_at IS NULL", item.GuestID).
			Update("first_contact_at", now).Error; err != nil {
			return err
		}

		return tx.Create(&models.MessageLog{
			GuestID:    item.GuestID,
			Content:    item.Content,
			FromSystem: true,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("dispatch service: record success: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(string(item.Kind), "sent").Inc()
	return nil
}

// recordFailure either reschedules the item after the retry delay or, once the
// attempt ceiling is hit, parks it as FAILED with the error on both the row
// and the guest.
func (s *DispatchService) recordFailure(ctx context.Context, item *models.QueueItem, attempt int, sendErr error) error {
	if attempt >= s.maxAttempts {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.QueueItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]any{
					"status":     models.QueueFailed,
					"last_error": sendErr.Error(),
				}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Guest{}).
				Where("id = ?", item.GuestID).
				Update("last_send_error", sendErr.Error()).Error
		})
		if err != nil {
			return fmt.Errorf("dispatch service: record failure: %w", err)
		}

		metrics.MessagesSent.WithLabelValues(string(item.Kind), "failed").Inc()
		s.log.Warn("message failed permanently",
			zap.String("queue_id", item.ID),
			zap.String("kind", string(item.Kind)),
			zap.Int("attempts", attempt),
			zap.Error(sendErr),
		)
		return nil
	}

	retryAt := s.now().Add(s.retryDelay)
	if err := s.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"status":        models.QueueScheduled,
			"scheduled_for": retryAt,
			"last_error":    sendErr.Error(),
		}).Error; err != nil {
		return fmt.Errorf("dispatch service: reschedule: %w", err)
	}

	metrics.MessagesSent.WithLabelValues(string(item.Kind), "retried").Inc()
	s.log.Warn("message send failed; retry scheduled",
		zap.String("queue_id", item.ID),
		zap.String("kind", string(item.Kind)),
		zap.Int("attempt", attempt),
		zap.Time("retry_at", retryAt),
		zap.Error(sendErr),
	)
	return nil
}
