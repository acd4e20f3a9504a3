package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/feature/billing/models"
	"lexsync/feature/syncqueue"
)

// EntryInput is the payload for creating a billing entry.
type EntryInput struct {
	Description string    `json:"description" validate:"required,max=2048"`
	TimeSpent   float64   `json:"time_spent" validate:"required,gt=0,lte=24"`
	HourlyRate  float64   `json:"hourly_rate" validate:"gte=0"`
	Client      string    `json:"client" validate:"required,max=128"`
	Matter      string    `json:"matter" validate:"required,max=128"`
	WorkType    string    `json:"work_type" validate:"max=64"`
	WorkDate    time.Time `json:"work_date" validate:"required"`
	UserID      string    `json:"user_id" validate:"max=64"`
}

// EntryUpdate carries partial updates; nil fields are left untouched.
type EntryUpdate struct {
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2048"`
	TimeSpent   *float64   `json:"time_spent,omitempty" validate:"omitempty,gt=0,lte=24"`
	HourlyRate  *float64   `json:"hourly_rate,omitempty" validate:"omitempty,gte=0"`
	Client      *string    `json:"client,omitempty" validate:"omitempty,max=128"`
	Matter      *string    `json:"matter,omitempty" validate:"omitempty,max=128"`
	WorkType    *string    `json:"work_type,omitempty" validate:"omitempty,max=64"`
	WorkDate    *time.Time `json:"work_date,omitempty"`
}

// Service manages the local billing entry store. Remote propagation is
// delegated to the sync queue; a platform failing later never unwinds the
// local write.
type Service struct {
	db       *gorm.DB
	queue    *syncqueue.Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new billing service.
func NewService(db *gorm.DB, queue *syncqueue.Service, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		queue:    queue,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateEntry validates and persists a new entry. With autoSync set, one
// create is enqueued per target platform; enqueue failures are logged and do
// not fail the call.
func (s *Service) CreateEntry(ctx context.Context, input EntryInput, platforms []string, autoSync bool) (*models.BillingEntry, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid billing entry: %w", err)
	}

	entry := &models.BillingEntry{
		ID:          uuid.NewString(),
		Description: input.Description,
		TimeSpent:   input.TimeSpent,
		HourlyRate:  input.HourlyRate,
		Client:      input.Client,
		Matter:      input.Matter,
		WorkType:    input.WorkType,
		WorkDate:    input.WorkDate,
		UserID:      input.UserID,
		SyncStatus:  models.SyncStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("persisting billing entry: %w", err)
	}

	if autoSync {
		s.enqueueAll(ctx, entry.ID, platforms, models.ActionCreate)
	}
	return entry, nil
}

// UpdateEntry applies a partial update, resets the entry to pending and
// enqueues one update per target platform. With no platforms given, the
// platform the entry was last synced to is used.
func (s *Service) UpdateEntry(ctx context.Context, id string, updates EntryUpdate, platforms []string) (*models.BillingEntry, error) {
	if err := s.validate.Struct(updates); err != nil {
		return nil, fmt.Errorf("invalid billing entry update: %w", err)
	}

	var entry models.BillingEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("loading billing entry: %w", err)
	}

	if updates.Description != nil {
		entry.Description = *updates.Description
	}
	if updates.TimeSpent != nil {
		entry.TimeSpent = *updates.TimeSpent
	}
	if updates.HourlyRate != nil {
		entry.HourlyRate = *updates.HourlyRate
	}
	if updates.Client != nil {
		entry.Client = *updates.Client
	}
	if updates.Matter != nil {
		entry.Matter = *updates.Matter
	}
	if updates.WorkType != nil {
		entry.WorkType = *updates.WorkType
	}
	if updates.WorkDate != nil {
		entry.WorkDate = *updates.WorkDate
	}
	entry.SyncStatus = models.SyncStatusPending

	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return nil, fmt.Errorf("persisting billing entry update: %w", err)
	}

	if len(platforms) == 0 && entry.Platform != "" {
		platforms = []string{entry.Platform}
	}
	s.enqueueAll(ctx, entry.ID, platforms, models.ActionUpdate)
	return &entry, nil
}

// DeleteEntry enqueues a remote delete for each platform the entry lives on.
// The local record is kept; only the remote copies go away.
func (s *Service) DeleteEntry(ctx context.Context, id string, platforms []string) (*models.BillingEntry, error) {
	var entry models.BillingEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("loading billing entry: %w", err)
	}
	if len(platforms) == 0 && entry.Platform != "" {
		platforms = []string{entry.Platform}
	}
	s.enqueueAll(ctx, entry.ID, platforms, models.ActionDelete)
	return &entry, nil
}

// GetEntry loads one entry.
func (s *Service) GetEntry(ctx context.Context, id string) (*models.BillingEntry, error) {
	var entry models.BillingEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("loading billing entry: %w", err)
	}
	return &entry, nil
}

// GetSyncStatus returns the entry with its queue snapshot and history.
func (s *Service) GetSyncStatus(ctx context.Context, id string) (*syncqueue.EntryStatus, error) {
	return s.queue.GetSyncStatus(ctx, id)
}

func (s *Service) enqueueAll(ctx context.Context, entryID string, platforms []string, action models.QueueAction) {
	for _, platformName := range platforms {
		if _, err := s.queue.Enqueue(ctx, entryID, platformName, action); err != nil {
			s.logger.Error("Enqueue failed",
				zap.String("entry", entryID),
				zap.String("platform", platformName),
				zap.String("action", string(action)),
				zap.Error(err))
		}
	}
}
