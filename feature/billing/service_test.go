package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/core/database"
	"lexsync/feature/billing"
	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
	"lexsync/feature/syncqueue"
)

func setupBillingService(t *testing.T) (*billing.Service, *gorm.DB) {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(models.All()...))

	registry := platform.NewRegistry(map[string]platform.Factory{}, zap.NewNop())
	queue := syncqueue.NewService(db, registry, nil, "", syncqueue.Config{BatchSize: 10, MaxRetries: 3}, zap.NewNop())
	return billing.NewService(db, queue, zap.NewNop()), db
}

func validInput() billing.EntryInput {
	return billing.EntryInput{
		Description: "Draft settlement agreement",
		TimeSpent:   2.5,
		HourlyRate:  300,
		Client:      "client-1",
		Matter:      "matter-1",
		WorkType:    "drafting",
		WorkDate:    time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateEntry(t *testing.T) {
	svc, db := setupBillingService(t)

	t.Run("Without Auto Sync", func(t *testing.T) {
		entry, err := svc.CreateEntry(context.Background(), validInput(), []string{"clio"}, false)
		assert.NoError(t, err)
		assert.Equal(t, models.SyncStatusPending, entry.SyncStatus)

		var count int64
		assert.NoError(t, db.Model(&models.SyncQueueItem{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("With Auto Sync", func(t *testing.T) {
		entry, err := svc.CreateEntry(context.Background(), validInput(), []string{"clio", "mycase"}, true)
		assert.NoError(t, err)

		var items []models.SyncQueueItem
		assert.NoError(t, db.Find(&items, "billing_entry_id = ?", entry.ID).Error)
		assert.Len(t, items, 2)
		for _, item := range items {
			assert.Equal(t, models.ActionCreate, item.Action)
			assert.Equal(t, models.QueueStatusQueued, item.Status)
		}
	})

	t.Run("Validation Failures", func(t *testing.T) {
		bad := validInput()
		bad.TimeSpent = 0
		_, err := svc.CreateEntry(context.Background(), bad, nil, false)
		assert.Error(t, err)

		bad = validInput()
		bad.TimeSpent = 30 // more hours than a day has
		_, err = svc.CreateEntry(context.Background(), bad, nil, false)
		assert.Error(t, err)

		bad = validInput()
		bad.Client = ""
		_, err = svc.CreateEntry(context.Background(), bad, nil, false)
		assert.Error(t, err)
	})
}

func TestUpdateEntry(t *testing.T) {
	svc, db := setupBillingService(t)

	entry, err := svc.CreateEntry(context.Background(), validInput(), nil, false)
	assert.NoError(t, err)

	// Simulate a prior successful sync.
	entry.SyncStatus = models.SyncStatusSynced
	entry.Platform = "clio"
	entry.ExternalID = "ext-1"
	assert.NoError(t, db.Save(entry).Error)

	hours := 3.25
	updated, err := svc.UpdateEntry(context.Background(), entry.ID, billing.EntryUpdate{TimeSpent: &hours}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 3.25, updated.TimeSpent)
	assert.Equal(t, "Draft settlement agreement", updated.Description)
	assert.Equal(t, models.SyncStatusPending, updated.SyncStatus)

	// With no explicit platforms the update targets the synced platform.
	var items []models.SyncQueueItem
	assert.NoError(t, db.Find(&items, "billing_entry_id = ?", entry.ID).Error)
	assert.Len(t, items, 1)
	assert.Equal(t, "clio", items[0].Platform)
	assert.Equal(t, models.ActionUpdate, items[0].Action)

	_, err = svc.UpdateEntry(context.Background(), "no-such-id", billing.EntryUpdate{}, nil)
	assert.Error(t, err)
}

func TestDeleteEntryKeepsLocalRecord(t *testing.T) {
	svc, db := setupBillingService(t)

	entry, err := svc.CreateEntry(context.Background(), validInput(), nil, false)
	assert.NoError(t, err)
	entry.Platform = "clio"
	entry.ExternalID = "ext-1"
	assert.NoError(t, db.Save(entry).Error)

	_, err = svc.DeleteEntry(context.Background(), entry.ID, nil)
	assert.NoError(t, err)

	var still models.BillingEntry
	assert.NoError(t, db.First(&still, "id = ?", entry.ID).Error)

	var items []models.SyncQueueItem
	assert.NoError(t, db.Find(&items, "billing_entry_id = ?", entry.ID).Error)
	assert.Len(t, items, 1)
	assert.Equal(t, models.ActionDelete, items[0].Action)
}

func TestGetSyncStatusRoundTrip(t *testing.T) {
	svc, _ := setupBillingService(t)

	entry, err := svc.CreateEntry(context.Background(), validInput(), []string{"clio"}, true)
	assert.NoError(t, err)

	status, err := svc.GetSyncStatus(context.Background(), entry.ID)
	assert.NoError(t, err)
	assert.Equal(t, entry.ID, status.Entry.ID)
	assert.Len(t, status.Queue, 1)
	assert.Empty(t, status.History)
}
