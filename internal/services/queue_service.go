package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/confirmaparty/confirma/internal/models"
	"github.com/confirmaparty/confirma/pkg/metrics"
)

// QueueStats groups queue row counts by message kind and lifecycle status.
type QueueStats map[models.MessageKind]map[models.QueueStatus]int64

// UpcomingItem is one scheduled delivery shown on the organiser dashboard.
type UpcomingItem struct {
	ID           string             `json:"id"`
	Kind         models.MessageKind `json:"kind"`
	ScheduledFor time.Time          `json:"scheduled_for"`
	GuestName    string             `json:"guest_name"`
	GuestPhone   string             `json:"guest_phone"`
}

// QueueService owns the durable set of pending send-intents. All lifecycle
// transitions other than the dispatcher's success/failure handling go through
// here.
type QueueService struct {
	db *gorm.DB
}

// NewQueueService constructs a QueueService.
func NewQueueService(db *gorm.DB) (*QueueService, error) {
	if db == nil {
		return nil, errors.New("queue service: db is required")
	}
	return &QueueService{db: db}, nil
}

// Enqueue inserts queue rows, skipping any (guest, kind) pair that already has
// a row. Returns the number of rows actually created.
func (s *QueueService) Enqueue(ctx context.Context, items []models.QueueItem) (int, error) {
	ctx = ensureContext(ctx)
	if len(items) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guest_id"}, {Name: "kind"}},
		DoNothing: true,
	}).Create(&items)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return 0, nil
		}
		return 0, fmt.Errorf("queue service: enqueue: %w", result.Error)
	}

	return int(result.RowsAffected), nil
}

// DueItems returns SCHEDULED rows due at or before now, FIFO by due time with
// insertion order breaking ties, capped at limit. Guests are preloaded for the
// dispatcher.
func (s *QueueService) DueItems(ctx context.Context, limit int, now time.Time) ([]models.QueueItem, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}

	var items []models.QueueItem
	if err := s.db.WithContext(ctx).
		Preload("Guest").
		Where("status = ? AND scheduled_for <= ?", models.QueueScheduled, now).
		Order("scheduled_for ASC, created_at ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("queue service: due items: %w", err)
	}

	return items, nil
}

// MarkSending atomically claims a SCHEDULED row for dispatch, incrementing its
// attempt counter. Returns false when another runner already claimed the row.
func (s *QueueService) MarkSending(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.QueueItem{}).
		Where("id = ? AND status = ?", id, models.QueueScheduled).
		Updates(map[string]any{
			"status":   models.QueueSending,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("queue service: mark sending: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// CancelForGuest transitions the guest's still-SCHEDULED rows of the given
// kinds to CANCELLED. Rows already SENDING finish their in-flight attempt.
func (s *QueueService) CancelForGuest(ctx context.Context, guestID string, kinds []models.MessageKind) (int64, error) {
	ctx = ensureContext(ctx)
	if len(kinds) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.QueueItem{}).
		Where("guest_id = ? AND status = ? AND kind IN ?", guestID, models.QueueScheduled, kinds).
		Update("status", models.QueueCancelled)
	if result.Error != nil {
		return 0, fmt.Errorf("queue service: cancel for guest: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.MessagesCancelled.WithLabelValues("reply").Add(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// CancelForParty transitions all of a party's pending rows (SCHEDULED or
// SENDING) to CANCELLED. Other parties' rows are untouched.
func (s *QueueService) CancelForParty(ctx context.Context, partyID string) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.QueueItem{}).
		Where("party_id = ? AND status IN ?", partyID, []models.QueueStatus{models.QueueScheduled, models.QueueSending}).
		Update("status", models.QueueCancelled)
	if result.Error != nil {
		return 0, fmt.Errorf("queue service: cancel for party: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.MessagesCancelled.WithLabelValues("party").Add(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// Stats returns queue row counts for a party grouped by (kind, status).
func (s *QueueService) Stats(ctx context.Context, partyID string) (QueueStats, error) {
	ctx = ensureContext(ctx)

	var rows []struct {
		Kind   models.MessageKind
		Status models.QueueStatus
		Count  int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.QueueItem{}).
		Select("kind, status, COUNT(*) AS count").
		Where("party_id = ?", partyID).
		Group("kind, status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("queue service: stats: %w", err)
	}

	stats := QueueStats{}
	for _, row := range rows {
		if stats[row.Kind] == nil {
			stats[row.Kind] = map[models.QueueStatus]int64{}
		}
		stats[row.Kind][row.Status] = row.Count
	}
	return stats, nil
}

// Upcoming lists the next scheduled deliveries for a party, soonest first.
func (s *QueueService) Upcoming(ctx context.Context, partyID string, limit int) ([]UpcomingItem, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var items []models.QueueItem
	if err := s.db.WithContext(ctx).
		Preload("Guest").
		Where("party_id = ? AND status = ?", partyID, models.QueueScheduled).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("queue service: upcoming: %w", err)
	}

	upcoming := make([]UpcomingItem, 0, len(items))
	for _, item := range items {
		upcoming = append(upcoming, UpcomingItem{
			ID:           item.ID,
			Kind:         item.Kind,
			ScheduledFor: item.ScheduledFor,
			GuestName:    item.Guest.Name,
			GuestPhone:   item.Guest.Phone,
		})
	}
	return upcoming, nil
}
