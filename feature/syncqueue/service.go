package syncqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lexsync/core/archive"
	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
)

// ErrDrainInProgress is returned when ProcessQueue is invoked while another
// drain is still running. The queue is drained single-flight; callers retry
// later instead of stacking drains.
var ErrDrainInProgress = errors.New("queue drain already in progress")

// DrainReport summarizes one ProcessQueue pass.
type DrainReport struct {
	Picked      int `json:"picked"`
	Completed   int `json:"completed"`
	Rescheduled int `json:"rescheduled"`
	Failed      int `json:"failed"`
}

// CleanupReport summarizes one Cleanup pass.
type CleanupReport struct {
	HistoryPurged int64  `json:"history_purged"`
	QueuePurged   int64  `json:"queue_purged"`
	ArchiveObject string `json:"archive_object,omitempty"`
}

// EntryStatus is the full sync view of one billing entry.
type EntryStatus struct {
	Entry   models.BillingEntry    `json:"entry"`
	Queue   []models.SyncQueueItem `json:"queue"`
	History []models.SyncHistory   `json:"history"`
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRescheduled
	outcomeFailed
)

// Service owns the durable sync queue: enqueueing work, draining it against
// platform adapters, and purging aged history.
type Service struct {
	db            *gorm.DB
	registry      *platform.Registry
	archive       archive.Client
	archiveBucket string
	cfg           Config
	logger        *zap.Logger

	draining atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a new sync queue service. archiveClient may be nil, in
// which case Cleanup purges without archiving.
func NewService(db *gorm.DB, registry *platform.Registry, archiveClient archive.Client, archiveBucket string, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		db:            db,
		registry:      registry,
		archive:       archiveClient,
		archiveBucket: archiveBucket,
		cfg:           cfg,
		logger:        logger,
	}
}

// Enqueue records pending work for one entry on one platform. If a
// non-terminal item already exists for the pair, the request collapses into
// it: the action is updated in place and no second item is created.
func (s *Service) Enqueue(ctx context.Context, entryID, platformName string, action models.QueueAction) (*models.SyncQueueItem, error) {
	var existing models.SyncQueueItem
	err := s.db.WithContext(ctx).
		Where("billing_entry_id = ? AND platform = ? AND status IN ?",
			entryID, platformName,
			[]models.QueueStatus{models.QueueStatusQueued, models.QueueStatusProcessing}).
		First(&existing).Error

	switch {
	case err == nil:
		existing.Action = action
		// A fresh request supersedes any backoff carried by earlier attempts.
		existing.ScheduledAt = time.Now()
		existing.UpdatedAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("updating queued item: %w", err)
		}
		s.logger.Debug("Enqueue collapsed into existing item",
			zap.String("entry", entryID),
			zap.String("platform", platformName),
			zap.String("action", string(action)))
		return &existing, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		item := models.SyncQueueItem{
			ID:             uuid.NewString(),
			BillingEntryID: entryID,
			Platform:       platformName,
			Action:         action,
			Status:         models.QueueStatusQueued,
			ScheduledAt:    time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, fmt.Errorf("creating queue item: %w", err)
		}
		return &item, nil

	default:
		return nil, fmt.Errorf("looking up queue item: %w", err)
	}
}

// ProcessQueue drains one bounded batch of due items. Items are grouped by
// platform and groups run concurrently; within a group items run in order
// with a pause between them. Per-item failures never abort the drain.
func (s *Service) ProcessQueue(ctx context.Context) (*DrainReport, error) {
	if !s.draining.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer s.draining.Store(false)

	var items []models.SyncQueueItem
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.QueueStatusQueued, time.Now()).
		Order("scheduled_at").
		Limit(s.cfg.BatchSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("fetching due queue items: %w", err)
	}

	report := &DrainReport{Picked: len(items)}
	if len(items) == 0 {
		return report, nil
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
		items[i].MarkProcessing()
	}
	if err := s.db.WithContext(ctx).Model(&models.SyncQueueItem{}).
		Where("id IN ?", ids).
		Update("status", models.QueueStatusProcessing).Error; err != nil {
		return nil, fmt.Errorf("claiming queue items: %w", err)
	}

	byPlatform := make(map[string][]models.SyncQueueItem)
	for _, item := range items {
		byPlatform[item.Platform] = append(byPlatform[item.Platform], item)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range byPlatform {
		group := group
		g.Go(func() error {
			for i := range group {
				result := s.processItem(gctx, &group[i])
				mu.Lock()
				switch result {
				case outcomeCompleted:
					report.Completed++
				case outcomeRescheduled:
					report.Rescheduled++
				case outcomeFailed:
					report.Failed++
				}
				mu.Unlock()
				if i < len(group)-1 && s.cfg.BatchPauseMillis > 0 {
					time.Sleep(s.cfg.batchPause())
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Queue drained",
		zap.Int("picked", report.Picked),
		zap.Int("completed", report.Completed),
		zap.Int("rescheduled", report.Rescheduled),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Service) processItem(ctx context.Context, item *models.SyncQueueItem) outcome {
	started := time.Now()

	var entry models.BillingEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", item.BillingEntryID).Error; err != nil {
		return s.failTerminal(ctx, item, nil, started,
			platform.NewError(platform.CodeValidation, item.Platform, "billing entry not found"))
	}

	adapter, err := s.registry.GetAdapter(item.Platform)
	if err != nil {
		return s.handleFailure(ctx, item, &entry, started, err)
	}

	remote := toPlatformEntry(&entry)
	var synced *platform.TimeEntry

	switch item.Action {
	case models.ActionCreate:
		synced, err = adapter.CreateTimeEntry(ctx, remote)
	case models.ActionUpdate:
		if entry.ExternalID == "" {
			// Never created remotely; an update degrades to a create.
			synced, err = adapter.CreateTimeEntry(ctx, remote)
		} else {
			synced, err = adapter.UpdateTimeEntry(ctx, remote)
		}
	case models.ActionDelete:
		err = adapter.DeleteTimeEntry(ctx, entry.ExternalID)
	default:
		err = platform.NewError(platform.CodeValidation, item.Platform,
			fmt.Sprintf("unknown queue action %q", item.Action))
	}

	if err != nil {
		return s.handleFailure(ctx, item, &entry, started, err)
	}
	return s.complete(ctx, item, &entry, started, synced)
}

// complete finalizes a successful operation: the item transition, the
// success history row and the entry update land in one transaction.
func (s *Service) complete(ctx context.Context, item *models.SyncQueueItem, entry *models.BillingEntry, started time.Time, synced *platform.TimeEntry) outcome {
	item.Attempts++
	item.MarkCompleted()

	if item.Action == models.ActionDelete {
		// The remote copy is gone; the entry stays local-only.
		entry.ExternalID = ""
		entry.Platform = ""
		entry.SyncStatus = models.SyncStatusPending
	} else {
		entry.SyncStatus = models.SyncStatusSynced
		entry.Platform = item.Platform
		if synced != nil {
			if synced.ExternalID != "" {
				entry.ExternalID = synced.ExternalID
			}
			if len(synced.Metadata) > 0 {
				if raw, err := json.Marshal(synced.Metadata); err == nil {
					entry.Metadata = datatypes.JSON(raw)
				}
			}
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		if err := tx.Create(s.historyRow(item, started, models.HistorySuccess, "")).Error; err != nil {
			return err
		}
		return tx.Save(entry).Error
	})
	if err != nil {
		s.logger.Error("Recording sync success failed",
			zap.String("item", item.ID), zap.Error(err))
		return outcomeFailed
	}

	s.logger.Info("Queue item completed",
		zap.String("entry", entry.ID),
		zap.String("platform", item.Platform),
		zap.String("action", string(item.Action)))
	return outcomeCompleted
}

// handleFailure routes an error by its retryability: transient failures go
// back to queued with exponential backoff, terminal ones fail the item.
func (s *Service) handleFailure(ctx context.Context, item *models.SyncQueueItem, entry *models.BillingEntry, started time.Time, cause error) outcome {
	item.Attempts++

	if platform.Retryable(cause) && item.Attempts < s.cfg.MaxRetries {
		delay := s.cfg.retryDelay() * time.Duration(1<<(item.Attempts-1))
		item.Reschedule(time.Now().Add(delay), cause.Error())
		if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
			s.logger.Error("Rescheduling queue item failed",
				zap.String("item", item.ID), zap.Error(err))
			return outcomeFailed
		}
		s.logger.Warn("Queue item rescheduled",
			zap.String("item", item.ID),
			zap.String("platform", item.Platform),
			zap.Int("attempts", item.Attempts),
			zap.Duration("delay", delay),
			zap.Error(cause))
		return outcomeRescheduled
	}

	return s.failTerminal(ctx, item, entry, started, cause)
}

func (s *Service) failTerminal(ctx context.Context, item *models.SyncQueueItem, entry *models.BillingEntry, started time.Time, cause error) outcome {
	item.MarkFailed(cause.Error())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		if err := tx.Create(s.historyRow(item, started, models.HistoryFailure, cause.Error())).Error; err != nil {
			return err
		}
		if entry != nil {
			entry.SyncStatus = models.SyncStatusError
			return tx.Save(entry).Error
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Recording sync failure failed",
			zap.String("item", item.ID), zap.Error(err))
	}

	s.logger.Error("Queue item failed terminally",
		zap.String("item", item.ID),
		zap.String("platform", item.Platform),
		zap.Int("attempts", item.Attempts),
		zap.Error(cause))
	return outcomeFailed
}

func (s *Service) historyRow(item *models.SyncQueueItem, started time.Time, status models.HistoryStatus, errMsg string) *models.SyncHistory {
	return &models.SyncHistory{
		ID:             uuid.NewString(),
		BillingEntryID: item.BillingEntryID,
		Platform:       item.Platform,
		Action:         item.Action,
		Status:         status,
		StartedAt:      started,
		CompletedAt:    time.Now(),
		Error:          errMsg,
	}
}

// Start launches the periodic dispatcher. A drain already in flight when the
// ticker fires is skipped, not stacked.
func (s *Service) Start() {
	if !s.cfg.Enabled || s.cfg.SyncIntervalSeconds <= 0 {
		s.logger.Info("Background dispatcher disabled")
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.syncInterval())
		defer ticker.Stop()
		s.logger.Info("Background dispatcher started",
			zap.Duration("interval", s.cfg.syncInterval()))
		for {
			select {
			case <-ticker.C:
				if _, err := s.ProcessQueue(context.Background()); err != nil && !errors.Is(err, ErrDrainInProgress) {
					s.logger.Error("Scheduled drain failed", zap.Error(err))
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight drain to finish. It never
// interrupts work mid-item.
func (s *Service) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
	s.logger.Info("Background dispatcher stopped")
}

// GetSyncStatus returns the entry together with its queue snapshot and full
// attempt history.
func (s *Service) GetSyncStatus(ctx context.Context, entryID string) (*EntryStatus, error) {
	var status EntryStatus
	if err := s.db.WithContext(ctx).First(&status.Entry, "id = ?", entryID).Error; err != nil {
		return nil, fmt.Errorf("loading billing entry: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Where("billing_entry_id = ?", entryID).
		Order("created_at").
		Find(&status.Queue).Error; err != nil {
		return nil, fmt.Errorf("loading queue items: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Where("billing_entry_id = ?", entryID).
		Order("started_at desc").
		Find(&status.History).Error; err != nil {
		return nil, fmt.Errorf("loading sync history: %w", err)
	}
	return &status, nil
}

// Stats returns queue item counts grouped by status.
func (s *Service) Stats(ctx context.Context) (map[models.QueueStatus]int64, error) {
	var rows []struct {
		Status models.QueueStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.SyncQueueItem{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting queue items: %w", err)
	}
	stats := make(map[models.QueueStatus]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}

// Cleanup purges terminal queue items and history rows older than the given
// age. When an archive client is configured the purged history is snapshot
// to object storage first; a failed archive write aborts the purge.
func (s *Service) Cleanup(ctx context.Context, olderThanDays int) (*CleanupReport, error) {
	if olderThanDays <= 0 {
		olderThanDays = s.cfg.CleanupRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	report := &CleanupReport{}

	var history []models.SyncHistory
	if err := s.db.WithContext(ctx).Where("completed_at < ?", cutoff).Find(&history).Error; err != nil {
		return nil, fmt.Errorf("loading purgeable history: %w", err)
	}

	if len(history) > 0 {
		if s.archive != nil {
			object, err := s.archiveHistory(ctx, history)
			if err != nil {
				return nil, fmt.Errorf("archiving history before purge: %w", err)
			}
			report.ArchiveObject = object
		}
		res := s.db.WithContext(ctx).Where("completed_at < ?", cutoff).Delete(&models.SyncHistory{})
		if res.Error != nil {
			return nil, fmt.Errorf("purging history: %w", res.Error)
		}
		report.HistoryPurged = res.RowsAffected
	}

	// Only terminal items age out; queued and processing items are live work.
	res := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]models.QueueStatus{models.QueueStatusCompleted, models.QueueStatusFailed}, cutoff).
		Delete(&models.SyncQueueItem{})
	if res.Error != nil {
		return nil, fmt.Errorf("purging queue items: %w", res.Error)
	}
	report.QueuePurged = res.RowsAffected

	s.logger.Info("Cleanup finished",
		zap.Int64("history_purged", report.HistoryPurged),
		zap.Int64("queue_purged", report.QueuePurged),
		zap.String("archive_object", report.ArchiveObject))
	return report, nil
}

func (s *Service) archiveHistory(ctx context.Context, history []models.SyncHistory) (string, error) {
	exists, err := s.archive.BucketExists(ctx, s.archiveBucket)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := s.archive.MakeBucket(ctx, s.archiveBucket, minio.MakeBucketOptions{}); err != nil {
			return "", err
		}
	}

	payload, err := json.Marshal(history)
	if err != nil {
		return "", err
	}

	object := fmt.Sprintf("history/%s.json", time.Now().UTC().Format("20060102T150405Z"))
	_, err = s.archive.PutObject(ctx, s.archiveBucket, object,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", err
	}
	return object, nil
}

// toPlatformEntry maps the local record onto the canonical adapter schema.
func toPlatformEntry(entry *models.BillingEntry) *platform.TimeEntry {
	remote := &platform.TimeEntry{
		ID:          entry.ID,
		ExternalID:  entry.ExternalID,
		Description: entry.Description,
		Hours:       entry.TimeSpent,
		Rate:        entry.HourlyRate,
		Date:        entry.WorkDate,
		ClientID:    entry.Client,
		MatterID:    entry.Matter,
		UserID:      entry.UserID,
		Billable:    true,
	}
	if len(entry.Metadata) > 0 {
		var meta map[string]string
		if err := json.Unmarshal(entry.Metadata, &meta); err == nil {
			remote.Metadata = meta
		}
	}
	return remote
}
