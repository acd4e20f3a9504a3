package conflict

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
)

// Filter narrows a pending conflict listing.
type Filter struct {
	EntryID  string
	Platform string
	Type     models.ConflictType
}

// Stats aggregates conflicts over a timeframe.
type Stats struct {
	Total      int64                           `json:"total"`
	ByStatus   map[models.ConflictStatus]int64 `json:"by_status"`
	ByType     map[models.ConflictType]int64   `json:"by_type"`
	ByStrategy map[string]int64                `json:"by_strategy"`
}

// Service is the conflict surface: reactive detection against the remote
// copy, pending listings, resolution and aggregates.
type Service struct {
	db       *gorm.DB
	registry *platform.Registry
	detector *Detector
	resolver *Resolver
	logger   *zap.Logger
}

// NewService creates a new conflict service with the default rule table.
func NewService(db *gorm.DB, registry *platform.Registry, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		registry: registry,
		detector: NewDetector(db, logger),
		resolver: NewResolver(db, nil, logger),
		logger:   logger,
	}
}

// Detector exposes the underlying detector.
func (s *Service) Detector() *Detector {
	return s.detector
}

// Resolver exposes the underlying resolver.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// CheckEntry fetches the entry's remote copy and runs both detection passes
// against it. Entries never synced to the platform only get the duplicate
// scan.
func (s *Service) CheckEntry(ctx context.Context, entryID, platformName string) ([]models.Conflict, error) {
	var entry models.BillingEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", entryID).Error; err != nil {
		return nil, fmt.Errorf("loading billing entry: %w", err)
	}

	conflicts := s.detector.DetectDuplicates(ctx, &entry)

	if entry.ExternalID != "" {
		adapter, err := s.registry.GetAdapter(platformName)
		if err != nil {
			return nil, err
		}
		remote, err := adapter.GetTimeEntry(ctx, entry.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("fetching remote entry: %w", err)
		}
		conflicts = append(conflicts, s.detector.DetectConflicts(ctx, &entry, remote, platformName)...)
	}
	return conflicts, nil
}

// ListPending returns pending conflicts, newest first, optionally filtered.
func (s *Service) ListPending(ctx context.Context, filter Filter) ([]models.Conflict, error) {
	query := s.db.WithContext(ctx).Where("status = ?", models.ConflictPending)
	if filter.EntryID != "" {
		query = query.Where("billing_entry_id = ?", filter.EntryID)
	}
	if filter.Platform != "" {
		query = query.Where("platform = ?", filter.Platform)
	}
	if filter.Type != "" {
		query = query.Where("conflict_type = ?", filter.Type)
	}

	var conflicts []models.Conflict
	if err := query.Order("detected_at desc").Find(&conflicts).Error; err != nil {
		return nil, fmt.Errorf("listing pending conflicts: %w", err)
	}
	return conflicts, nil
}

// GetStats aggregates conflicts detected within the given timeframe by
// status, type and applied resolution strategy.
func (s *Service) GetStats(ctx context.Context, since time.Duration) (*Stats, error) {
	cutoff := time.Now().Add(-since)
	stats := &Stats{
		ByStatus:   make(map[models.ConflictStatus]int64),
		ByType:     make(map[models.ConflictType]int64),
		ByStrategy: make(map[string]int64),
	}

	var rows []struct {
		Status             models.ConflictStatus
		ConflictType       models.ConflictType
		ResolutionStrategy string
		Count              int64
	}
	err := s.db.WithContext(ctx).Model(&models.Conflict{}).
		Select("status, conflict_type, resolution_strategy, count(*) as count").
		Where("detected_at >= ?", cutoff).
		Group("status, conflict_type, resolution_strategy").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating conflicts: %w", err)
	}

	for _, row := range rows {
		stats.Total += row.Count
		stats.ByStatus[row.Status] += row.Count
		stats.ByType[row.ConflictType] += row.Count
		if row.ResolutionStrategy != "" {
			stats.ByStrategy[row.ResolutionStrategy] += row.Count
		}
	}
	return stats, nil
}
