package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/confirmaparty/confirma/internal/models"
)

func TestQueueEnqueueIsIdempotentPerGuestAndKind(t *testing.T) {
	db := newTestDB(t)
	queue := mustQueueService(t, db)

	party := seedParty(t, db)
	guest := seedGuest(t, db, party.ID, "Ana", "11999990001")

	items := []models.QueueItem{{
		GuestID:      guest.ID,
		PartyID:      party.ID,
		Kind:         models.KindInvite,
		Content:      "Olá Ana",
		ScheduledFor: time.Now(),
		Status:       models.QueueScheduled,
	}}

	created, err := queue.Enqueue(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	// Same guest and kind again: silently skipped.
	again := []models.QueueItem{{
		GuestID:      guest.ID,
		PartyID:      party.ID,
		Kind:         models.KindInvite,
		Content:      "Olá Ana (de novo)",
		ScheduledFor: time.Now(),
		Status:       models.QueueScheduled,
	}}
	created, err = queue.Enqueue(context.Background(), again)
	require.NoError(t, err)
	require.Zero(t, created)

	// A different kind for the same guest is a new row.
	followUp := []models.QueueItem{{
		GuestID:      guest.ID,
		PartyID:      party.ID,
		Kind:         models.KindFollowUp1,
		Content:      "Ana, você viu o convite?",
		ScheduledFor: time.Now(),
		Status:       models.QueueScheduled,
	}}
	created, err = queue.Enqueue(context.Background(), followUp)
	require.NoError(t, err)
	require.Equal(t, 1, created)
}

func TestQueueDueItemsOrderingAndFiltering(t *testing.T) {
	db := newTestDB(t)
	queue := mustQueueService(t, db)

	party := seedParty(t, db)
	ana := seedGuest(t, db, party.ID, "Ana", "11999990001")
	bia := seedGuest(t, db, party.ID, "Bia", "11999990002")
	caio := seedGuest(t, db, party.ID, "Caio", "11999990003")

	now := time.Now()
	later := seedQueueItem(t, db, ana, models.KindInvite, func(q *models.QueueItem) {
		q.ScheduledFor = now.Add(-time.Minute)
	})
	earlier := seedQueueItem(t, db, bia, models.KindInvite, func(q *models.QueueItem) {
		q.ScheduledFor = now.Add(-time.Hour)
	})
	seedQueueItem(t, db, caio, models.KindInvite, func(q *models.QueueItem) {
		q.ScheduledFor = now.Add(time.Hour) // not yet due
	})

	due, err := queue.DueItems(context.Background(), 10, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, earlier.ID, due[0].ID)
	require.Equal(t, later.ID, due[1].ID)
	require.Equal(t, "Bia", due[0].Guest.Name, "guests should be preloaded")

	capped, err := queue.DueItems(context.Background(), 1, now)
	require.NoError(t, err)
	require.Len(t, capped, 1)
}

func TestQueueDueItemsSkipsNonScheduled(t *testing.T) {
	db := newTestDB(t)
	queue := mustQueueService(t, db)

	party := seedParty(t, db)
	ana := seedGuest(t, db, party.ID, "Ana", "11999990001")
	bia := seedGuest(t, db, party.ID, "Bia", "11999990002")

	seedQueueItem(t, db, ana, models.KindInvite, func(q *models.QueueItem) {
		q.Status = models.QueueSent
	})
	seedQueueItem(t, db, bia, models.KindInvite, func(q *models.QueueItem) {
		q.Status = models.QueueCancelled
	})

	due, err := queue.DueItems(context.Background(), 10, time.Now())
	require.NoError(t, err)
	require.Empty(t, due)
}

func TestQueueMarkSendingClaimsOnce(t *testing.T) {
	db := newTestDB(t)
	queue := mustQueueService(t, db)

	party := seedParty(t, db)
	guest := seedGuest(t, db, party.ID, "Ana", "11999990001")
	item := seedQueueItem(t, db, guest, models.KindInvite)

	claimed, err := queue.MarkSending(context.Background(), item.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	reloaded := reloadQueueItem(t, db, item.ID)
	require.Equal(t, models.QueueSending, reloaded.Status)
	require.Equal(t, 1, reloaded.Attempts)

	// Second claim loses the race.
	claimed, err = queue.MarkSending(context.Background(), item.ID)
	require.NoError(t, err)
	require.False(t, claimed)
	require.Equal(t, 1, reloadQueueItem(t, db, item.ID).Attempts)
}

func TestQueueCancelForGuestOnlyTouchesScheduledRowsOfGivenKinds(t *testing.T) {
	db := newTestDB(t)
	queue := mustQueueService(t, db)

	party := seedParty(t, db)
	guest := seedGuest(t, db, party.ID, "Ana", "11999990001")

	invite := seedQueueItem(t, db, guest, models.KindInvite, func(q *models.QueueItem) {
		q.Status = models.QueueSent
	})
	pending := seedQueueItem(t, db, guest, models.KindFollowUp1)
	inFlight := seedQueueItem(t, db, guest, models.KindFollowUp2, func(q *models.QueueItem) {
		q.Status = models.QueueSending
	})

	cancelled, err := queue.CancelForGuest(context.Background(), guest.ID,
		[]models.MessageKind{models.KindFollowUp1, models.KindFollowUp2})
	require.NoError(t, err)
	require.EqualValues(t, 1, cancelled)

	require.Equal(t, models.QueueSent, reloadQueueItem(t, db, invite.ID).Status)
	require.Equal(t, models.QueueCancelled, reloadQueueItem(t, db, pending.ID).Status)
	require.Equal(t, models.QueueSending, reloadQueueItem(t, db, inFlight.ID).Status)
}

func TestQueueCancelForPartyIsScoped(t *testing.T) {
	db := newTestDB(t)
	queue := mustQueueService(t, db)

	party := seedParty(t, db)
	other := seedParty(t, db, func(p *models.Party) { p.Name = "Casamento" })

	ana := seedGuest(t, db, party.ID, "Ana", "11999990001")
	duda := seedGuest(t, db, other.ID, "Duda", "11999990009")

	scheduled := seedQueueItem(t, db, ana, models.KindInvite)
	sending := seedQueueItem(t, db, ana, models.KindFollowUp1, func(q *models.QueueItem) {
		q.Status = models.QueueSending
	})
	sent := seedQueueItem(t, db, ana, models.KindFollowUp2, func(q *models.QueueItem) {
		q.Status = models.QueueSent
	})
	otherItem := seedQueueItem(t, db, duda, models.KindInvite)

	cancelled, err := queue.CancelForParty(context.Background(), party.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, cancelled)

	require.Equal(t, models.QueueCancelled, reloadQueueItem(t, db, scheduled.ID).Status)
	require.Equal(t, models.QueueCancelled, reloadQueueItem(t, db, sending.ID).Status)
	require.Equal(t, models.QueueSent, reloadQueueItem(t, db, sent.ID).Status)
	require.Equal(t, models.QueueScheduled, reloadQueueItem(t, db, otherItem.ID).Status)
}

func TestQueueStatsAndUpcoming(t *testing.T) {
	db := newTestDB(t)
	queue := mustQueueService(t, db)

	party := seedParty(t, db)
	ana := seedGuest(t, db, party.ID, "Ana", "11999990001")
	bia := seedGuest(t, db, party.ID, "Bia", "11999990002")

	seedQueueItem(t, db, ana, models.KindInvite, func(q *models.QueueItem) {
		q.Status = models.QueueSent
	})
	seedQueueItem(t, db, bia, models.KindInvite, func(q *models.QueueItem) {
		q.ScheduledFor = time.Now().Add(time.Hour)
	})
	seedQueueItem(t, db, bia, models.KindFollowUp1, func(q *models.QueueItem) {
		q.ScheduledFor = time.Now().Add(2 * time.Hour)
	})

	stats, err := queue.Stats(context.Background(), party.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats[models.KindInvite][models.QueueSent])
	require.EqualValues(t, 1, stats[models.KindInvite][models.QueueScheduled])
	require.EqualValues(t, 1, stats[models.KindFollowUp1][models.QueueScheduled])

	upcoming, err := queue.Upcoming(context.Background(), party.ID, 10)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	require.Equal(t, models.KindInvite, upcoming[0].Kind)
	require.Equal(t, "Bia", upcoming[0].GuestName)
	require.Equal(t, models.KindFollowUp1, upcoming[1].Kind)
}
