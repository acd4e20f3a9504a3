package conflict

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
)

// floatTolerance is the band within which two numeric values are considered
// equal; sub-cent drift from currency rounding is not a conflict.
const floatTolerance = 0.01

// duplicateSimilarity is the description similarity at or above which two
// entries on the same client and work date are flagged as duplicates.
const duplicateSimilarity = 0.8

// Detector compares local billing entries against their remote counterparts
// and persists every divergence it finds. Detection never fails the caller:
// errors are logged and an empty list returned.
type Detector struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDetector creates a new conflict detector.
func NewDetector(db *gorm.DB, logger *zap.Logger) *Detector {
	return &Detector{db: db, logger: logger}
}

// DetectConflicts compares the tracked field set of a local entry against
// the remote record and persists one data_mismatch conflict per divergence.
func (d *Detector) DetectConflicts(ctx context.Context, local *models.BillingEntry, remote *platform.TimeEntry, platformName string) []models.Conflict {
	comparisons := []struct {
		field  string
		source any
		target any
	}{
		{"timeSpent", local.TimeSpent, remote.Hours},
		{"description", local.Description, remote.Description},
		{"client", local.Client, remote.ClientID},
		{"matter", local.Matter, remote.MatterID},
	}

	var conflicts []models.Conflict
	for _, cmp := range comparisons {
		if valuesEqual(cmp.source, cmp.target) {
			continue
		}
		conflict := models.Conflict{
			ID:              uuid.NewString(),
			BillingEntryID:  local.ID,
			Platform:        platformName,
			Field:           cmp.field,
			SourceValue:     toJSON(cmp.source),
			TargetValue:     toJSON(cmp.target),
			ConflictType:    models.ConflictDataMismatch,
			DetectedAt:      time.Now(),
			Status:          models.ConflictPending,
			SourceUpdatedAt: timePtr(local.UpdatedAt),
		}
		if !remote.UpdatedAt.IsZero() {
			conflict.TargetUpdatedAt = timePtr(remote.UpdatedAt)
		}
		conflicts = append(conflicts, conflict)
	}

	if len(conflicts) == 0 {
		return nil
	}
	if err := d.db.WithContext(ctx).Create(&conflicts).Error; err != nil {
		d.logger.Error("Persisting detected conflicts failed",
			zap.String("entry", local.ID),
			zap.String("platform", platformName),
			zap.Error(err))
		return nil
	}
	d.logger.Info("Conflicts detected",
		zap.String("entry", local.ID),
		zap.String("platform", platformName),
		zap.Int("count", len(conflicts)))
	return conflicts
}

// DetectDuplicates scans synced entries sharing the platform, client and
// work date for near-identical descriptions and persists one
// duplicate_entry conflict per suspect.
func (d *Detector) DetectDuplicates(ctx context.Context, entry *models.BillingEntry) []models.Conflict {
	query := d.db.WithContext(ctx).
		Where("id != ? AND sync_status = ? AND client = ? AND work_date = ?",
			entry.ID, models.SyncStatusSynced, entry.Client, entry.WorkDate)
	if entry.Platform != "" {
		query = query.Where("platform = ?", entry.Platform)
	}

	var candidates []models.BillingEntry
	if err := query.Find(&candidates).Error; err != nil {
		d.logger.Error("Duplicate scan failed",
			zap.String("entry", entry.ID), zap.Error(err))
		return nil
	}

	var conflicts []models.Conflict
	for _, other := range candidates {
		if jaccard(entry.Description, other.Description) < duplicateSimilarity {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			ID:             uuid.NewString(),
			BillingEntryID: entry.ID,
			Platform:       entry.Platform,
			Field:          "description",
			SourceValue:    toJSON(entry.Description),
			TargetValue:    toJSON(map[string]any{"entry_id": other.ID, "description": other.Description}),
			ConflictType:   models.ConflictDuplicateEntry,
			DetectedAt:     time.Now(),
			Status:         models.ConflictPending,
		})
	}

	if len(conflicts) == 0 {
		return nil
	}
	if err := d.db.WithContext(ctx).Create(&conflicts).Error; err != nil {
		d.logger.Error("Persisting duplicate conflicts failed",
			zap.String("entry", entry.ID), zap.Error(err))
		return nil
	}
	return conflicts
}

// valuesEqual implements type-aware field equality. Both sides nil is
// agreement; one side nil is a conflict.
func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return math.Abs(av-bv) <= floatTolerance
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.EqualFold(strings.TrimSpace(av), strings.TrimSpace(bv))
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Equal(bv)
		}
	}
	return a == b
}

// jaccard computes token set similarity between two descriptions,
// case-insensitive over whitespace-separated tokens.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(s)) {
		set[token] = struct{}{}
	}
	return set
}

func toJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
