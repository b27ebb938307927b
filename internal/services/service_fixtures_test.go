package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/database/testutil"
	"github.com/confirmaparty/confirma/internal/models"
)

const approvedTemplate = "Olá {guest_name}, adoraríamos ver você na nossa festa. Você confirma presença?"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t)
}

func seedParty(t *testing.T, db *gorm.DB, mutate ...func(*models.Party)) models.Party {
	t.Helper()

	party := models.Party{
		Name:           "Aniversário da Ana",
		PartyType:      "birthday",
		EventDate:      time.Now().AddDate(0, 1, 0),
		TemplateText:   approvedTemplate,
		TemplateStatus: models.TemplateApproved,
	}
	for _, fn := range mutate {
		fn(&party)
	}
	require.NoError(t, db.Create(&party).Error)
	return party
}

func seedGuest(t *testing.T, db *gorm.DB, partyID, name, phone string, mutate ...func(*models.Guest)) models.Guest {
	t.Helper()

	guest := models.Guest{
		PartyID:    partyID,
		Name:       name,
		Phone:      phone,
		RSVPStatus: models.RSVPNoResponse,
	}
	for _, fn := range mutate {
		fn(&guest)
	}
	require.NoError(t, db.Create(&guest).Error)
	return guest
}

func seedQueueItem(t *testing.T, db *gorm.DB, guest models.Guest, kind models.MessageKind, mutate ...func(*models.QueueItem)) models.QueueItem {
	t.Helper()

	item := models.QueueItem{
		GuestID:      guest.ID,
		PartyID:      guest.PartyID,
		Kind:         kind,
		Content:      "Olá " + guest.Name + ", tudo bem?",
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       models.QueueScheduled,
	}
	for _, fn := range mutate {
		fn(&item)
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func mustQueueService(t *testing.T, db *gorm.DB) *QueueService {
	t.Helper()

	queue, err := NewQueueService(db)
	require.NoError(t, err)
	return queue
}

func reloadQueueItem(t *testing.T, db *gorm.DB, id string) models.QueueItem {
	t.Helper()

	var item models.QueueItem
	require.NoError(t, db.First(&item, "id = ?", id).Error)
	return item
}

func reloadGuest(t *testing.T, db *gorm.DB, id string) models.Guest {
	t.Helper()

	var guest models.Guest
	require.NoError(t, db.First(&guest, "id = ?", id).Error)
	return guest
}
