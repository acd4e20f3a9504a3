package syncqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/core/archive/mocks"
	"lexsync/core/database"
	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
	platformmocks "lexsync/feature/platform/mocks"
	"lexsync/feature/syncqueue"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func setupRegistry(t *testing.T, adapters ...*platformmocks.Adapter) *platform.Registry {
	t.Helper()
	factories := make(map[string]platform.Factory)
	for _, a := range adapters {
		a := a
		factories[a.Name()] = func(*zap.Logger) platform.Adapter { return a }
	}
	reg := platform.NewRegistry(factories, zap.NewNop())
	for _, a := range adapters {
		a.On("Configure", mock.Anything).Return(nil)
		assert.NoError(t, reg.Configure(a.Name(), platform.Credentials{APIKey: "k"}))
	}
	return reg
}

func seedEntry(t *testing.T, db *gorm.DB) *models.BillingEntry {
	t.Helper()
	entry := &models.BillingEntry{
		ID:          uuid.NewString(),
		Description: "Review discovery responses",
		TimeSpent:   1.5,
		HourlyRate:  250,
		Client:      "client-1",
		Matter:      "matter-1",
		WorkDate:    time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		SyncStatus:  models.SyncStatusPending,
	}
	assert.NoError(t, db.Create(entry).Error)
	return entry
}

func TestEnqueueCollapsesDuplicates(t *testing.T) {
	db := setupTestDB(t)
	svc := syncqueue.NewService(db, setupRegistry(t), nil, "", syncqueue.Config{BatchSize: 10, MaxRetries: 3}, zap.NewNop())
	entry := seedEntry(t, db)

	first, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	second, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionUpdate)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.ActionUpdate, second.Action)

	var count int64
	assert.NoError(t, db.Model(&models.SyncQueueItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// A different platform gets its own item.
	other, err := svc.Enqueue(context.Background(), entry.ID, "mycase", models.ActionCreate)
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestEnqueueCollapseResetsBackoff(t *testing.T) {
	db := setupTestDB(t)
	svc := syncqueue.NewService(db, setupRegistry(t), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)

	first, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	// Park the item the way a transient failure would.
	future := time.Now().Add(10 * time.Minute)
	assert.NoError(t, db.Model(&models.SyncQueueItem{}).
		Where("id = ?", first.ID).Update("scheduled_at", future).Error)

	second, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionUpdate)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	// The fresh edit is due now, not after the stale backoff window.
	assert.True(t, second.ScheduledAt.Before(time.Now().Add(time.Second)))
}

func TestProcessQueueSuccess(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("CreateTimeEntry", mock.Anything, mock.MatchedBy(func(e *platform.TimeEntry) bool {
		return e.Hours == 1.5 && e.Description == "Review discovery responses"
	})).Return(&platform.TimeEntry{
		ExternalID: "ext-100",
		Metadata:   map[string]string{"native_id": "ext-100"},
	}, nil)

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)
	item, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Picked)
	assert.Equal(t, 1, report.Completed)

	var got models.SyncQueueItem
	assert.NoError(t, db.First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, models.QueueStatusCompleted, got.Status)
	assert.Empty(t, got.LastError)

	var updated models.BillingEntry
	assert.NoError(t, db.First(&updated, "id = ?", entry.ID).Error)
	assert.Equal(t, models.SyncStatusSynced, updated.SyncStatus)
	assert.Equal(t, "ext-100", updated.ExternalID)
	assert.Equal(t, "clio", updated.Platform)

	var history []models.SyncHistory
	assert.NoError(t, db.Find(&history, "billing_entry_id = ?", entry.ID).Error)
	assert.Len(t, history, 1)
	assert.Equal(t, models.HistorySuccess, history[0].Status)
	adapter.AssertExpectations(t)
}

func TestProcessQueueRetriesTransientFailure(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(nil, platform.NewError(platform.CodeAPI, "clio", "upstream down"))

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)
	item, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Rescheduled)

	var got models.SyncQueueItem
	assert.NoError(t, db.First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, models.QueueStatusQueued, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError, "upstream down")
	// First retry waits the base delay; it must not be due yet.
	assert.Greater(t, got.ScheduledAt, time.Now().Add(30*time.Second))

	// A second drain finds nothing due.
	report, err = svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Picked)

	// No history until the item reaches a terminal state.
	var historyCount int64
	assert.NoError(t, db.Model(&models.SyncHistory{}).Count(&historyCount).Error)
	assert.Equal(t, int64(0), historyCount)
}

func TestProcessQueueExhaustsRetries(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(nil, platform.NewError(platform.CodeAPI, "clio", "upstream down"))

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)
	item, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	// Two attempts already burned; the next failure is terminal.
	assert.NoError(t, db.Model(&models.SyncQueueItem{}).
		Where("id = ?", item.ID).Update("attempts", 2).Error)

	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	var got models.SyncQueueItem
	assert.NoError(t, db.First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, models.QueueStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)

	var updated models.BillingEntry
	assert.NoError(t, db.First(&updated, "id = ?", entry.ID).Error)
	assert.Equal(t, models.SyncStatusError, updated.SyncStatus)

	var history []models.SyncHistory
	assert.NoError(t, db.Find(&history, "billing_entry_id = ?", entry.ID).Error)
	assert.Len(t, history, 1)
	assert.Equal(t, models.HistoryFailure, history[0].Status)
}

func TestProcessQueueValidationErrorIsTerminal(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(nil, platform.NewError(platform.CodeValidation, "clio", "hours must be positive"))

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)
	item, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	var got models.SyncQueueItem
	assert.NoError(t, db.First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, models.QueueStatusFailed, got.Status)
	assert.Equal(t, 1, got.Attempts) // no retries on validation errors
	assert.Contains(t, got.LastError, "hours must be positive")
}

func TestProcessQueueIsolatesItemFailures(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("CreateTimeEntry", mock.Anything, mock.MatchedBy(func(e *platform.TimeEntry) bool {
		return e.Description == "bad entry"
	})).Return(nil, platform.NewError(platform.CodeValidation, "clio", "rejected"))
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(&platform.TimeEntry{ExternalID: "ext-1"}, nil)

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())

	good := seedEntry(t, db)
	bad := &models.BillingEntry{ID: uuid.NewString(), Description: "bad entry", TimeSpent: 1}
	assert.NoError(t, db.Create(bad).Error)

	_, err := svc.Enqueue(context.Background(), bad.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), good.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, report.Picked)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 1, report.Failed)

	var updated models.BillingEntry
	assert.NoError(t, db.First(&updated, "id = ?", good.ID).Error)
	assert.Equal(t, models.SyncStatusSynced, updated.SyncStatus)
}

func TestProcessQueueDelete(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("DeleteTimeEntry", mock.Anything, "ext-55").Return(nil)

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())

	entry := seedEntry(t, db)
	entry.ExternalID = "ext-55"
	entry.Platform = "clio"
	entry.SyncStatus = models.SyncStatusSynced
	assert.NoError(t, db.Save(entry).Error)

	_, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionDelete)
	assert.NoError(t, err)

	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	// The local entry survives with its remote linkage cleared.
	var updated models.BillingEntry
	assert.NoError(t, db.First(&updated, "id = ?", entry.ID).Error)
	assert.Empty(t, updated.ExternalID)
	assert.Equal(t, models.SyncStatusPending, updated.SyncStatus)
	adapter.AssertExpectations(t)
}

func TestProcessQueueUpdateBeforeFirstCreate(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(&platform.TimeEntry{ExternalID: "ext-77"}, nil)

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())

	// The entry was edited before its first create ever ran; no remote id yet.
	entry := seedEntry(t, db)
	_, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionUpdate)
	assert.NoError(t, err)

	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	var updated models.BillingEntry
	assert.NoError(t, db.First(&updated, "id = ?", entry.ID).Error)
	assert.Equal(t, "ext-77", updated.ExternalID)
	assert.Equal(t, models.SyncStatusSynced, updated.SyncStatus)
	adapter.AssertNotCalled(t, "UpdateTimeEntry", mock.Anything, mock.Anything)
	adapter.AssertExpectations(t)
}

func TestProcessQueueSingleFlight(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	started := make(chan struct{})
	release := make(chan struct{})
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&platform.TimeEntry{ExternalID: "ext-9"}, nil)

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)
	_, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	done := make(chan *syncqueue.DrainReport, 1)
	go func() {
		report, err := svc.ProcessQueue(context.Background())
		assert.NoError(t, err)
		done <- report
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("drain never reached the adapter")
	}

	// A second drain while one is in flight is refused, not stacked.
	_, err = svc.ProcessQueue(context.Background())
	assert.ErrorIs(t, err, syncqueue.ErrDrainInProgress)

	close(release)
	select {
	case report := <-done:
		assert.Equal(t, 1, report.Completed)
	case <-time.After(2 * time.Second):
		t.Fatal("first drain never finished")
	}

	// The guard is released once the drain returns.
	report, err := svc.ProcessQueue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Picked)
}

func TestStopWaitsForInFlightDrain(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	started := make(chan struct{})
	release := make(chan struct{})
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&platform.TimeEntry{ExternalID: "ext-9"}, nil)

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{Enabled: true, SyncIntervalSeconds: 1, BatchSize: 10,
			MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)
	item, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)

	svc.Start()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled drain never reached the adapter")
	}

	stopped := make(chan struct{})
	go func() {
		svc.Stop()
		close(stopped)
	}()

	// Stop waits for the drain instead of cutting it off mid-item.
	select {
	case <-stopped:
		t.Fatal("Stop returned while a drain was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the drain finished")
	}

	var got models.SyncQueueItem
	assert.NoError(t, db.First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, models.QueueStatusCompleted, got.Status)
}

func TestGetSyncStatus(t *testing.T) {
	db := setupTestDB(t)
	adapter := &platformmocks.Adapter{PlatformName: "clio"}
	adapter.On("CreateTimeEntry", mock.Anything, mock.Anything).
		Return(&platform.TimeEntry{ExternalID: "ext-1"}, nil)

	svc := syncqueue.NewService(db, setupRegistry(t, adapter), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, RetryDelaySeconds: 60}, zap.NewNop())
	entry := seedEntry(t, db)
	_, err := svc.Enqueue(context.Background(), entry.ID, "clio", models.ActionCreate)
	assert.NoError(t, err)
	_, err = svc.ProcessQueue(context.Background())
	assert.NoError(t, err)

	status, err := svc.GetSyncStatus(context.Background(), entry.ID)
	assert.NoError(t, err)
	assert.Equal(t, entry.ID, status.Entry.ID)
	assert.Len(t, status.Queue, 1)
	assert.Len(t, status.History, 1)

	_, err = svc.GetSyncStatus(context.Background(), "no-such-entry")
	assert.Error(t, err)
}

func TestCleanupArchivesBeforePurge(t *testing.T) {
	db := setupTestDB(t)
	archiveClient := &mocks.Client{}
	archiveClient.On("BucketExists", mock.Anything, "lexsync-archive").Return(true, nil)
	archiveClient.On("PutObject", mock.Anything, "lexsync-archive",
		mock.MatchedBy(func(name string) bool { return len(name) > 0 }),
		mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	svc := syncqueue.NewService(db, setupRegistry(t), archiveClient, "lexsync-archive",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, CleanupRetentionDays: 90}, zap.NewNop())

	old := time.Now().AddDate(0, 0, -120)
	assert.NoError(t, db.Create(&models.SyncHistory{
		ID: uuid.NewString(), BillingEntryID: "e1", Platform: "clio",
		Action: models.ActionCreate, Status: models.HistorySuccess,
		StartedAt: old, CompletedAt: old,
	}).Error)
	assert.NoError(t, db.Create(&models.SyncQueueItem{
		ID: uuid.NewString(), BillingEntryID: "e1", Platform: "clio",
		Action: models.ActionCreate, Status: models.QueueStatusCompleted,
		ScheduledAt: old, CreatedAt: old, UpdatedAt: old,
	}).Error)
	// Live work must survive any retention window.
	assert.NoError(t, db.Create(&models.SyncQueueItem{
		ID: uuid.NewString(), BillingEntryID: "e2", Platform: "clio",
		Action: models.ActionCreate, Status: models.QueueStatusQueued,
		ScheduledAt: old, CreatedAt: old, UpdatedAt: old,
	}).Error)

	report, err := svc.Cleanup(context.Background(), 90)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), report.HistoryPurged)
	assert.Equal(t, int64(1), report.QueuePurged)
	assert.NotEmpty(t, report.ArchiveObject)

	var queueCount int64
	assert.NoError(t, db.Model(&models.SyncQueueItem{}).Count(&queueCount).Error)
	assert.Equal(t, int64(1), queueCount)
	archiveClient.AssertExpectations(t)
}

func TestCleanupWithoutArchiveStillPurges(t *testing.T) {
	db := setupTestDB(t)
	svc := syncqueue.NewService(db, setupRegistry(t), nil, "",
		syncqueue.Config{BatchSize: 10, MaxRetries: 3, CleanupRetentionDays: 90}, zap.NewNop())

	old := time.Now().AddDate(0, 0, -120)
	assert.NoError(t, db.Create(&models.SyncHistory{
		ID: uuid.NewString(), BillingEntryID: "e1", Platform: "clio",
		Action: models.ActionCreate, Status: models.HistorySuccess,
		StartedAt: old, CompletedAt: old,
	}).Error)

	report, err := svc.Cleanup(context.Background(), 0) // falls back to config default
	assert.NoError(t, err)
	assert.Equal(t, int64(1), report.HistoryPurged)
	assert.Empty(t, report.ArchiveObject)
}
