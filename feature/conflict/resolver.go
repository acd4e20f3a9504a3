package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lexsync/feature/billing/models"
)

// Resolution is the outcome of applying a rule to one conflict.
type Resolution struct {
	Field                string   `json:"field"`
	Strategy             Strategy `json:"strategy,omitempty"`
	Value                any      `json:"value"`
	Resolved             bool     `json:"resolved"`
	RequiresManualReview bool     `json:"requires_manual_review"`
}

// EntryResolution aggregates rule application over every pending conflict of
// one billing entry.
type EntryResolution struct {
	MergedData           map[string]any    `json:"merged_data"`
	Resolutions          []Resolution      `json:"resolutions"`
	Pending              []models.Conflict `json:"pending"`
	RequiresManualReview bool              `json:"requires_manual_review"`
}

// Resolver applies ranked resolution rules to persisted conflicts.
type Resolver struct {
	db     *gorm.DB
	rules  []Rule
	logger *zap.Logger
}

// NewResolver creates a resolver over the given rule table; nil means the
// built-in defaults.
func NewResolver(db *gorm.DB, rules []Rule, logger *zap.Logger) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Resolver{db: db, rules: rules, logger: logger}
}

// Resolve applies the governing rule to one conflict without persisting
// anything. A field with no matching rule stays unresolved and is routed to
// manual review.
func (r *Resolver) Resolve(conflict *models.Conflict) Resolution {
	rule, ok := selectRule(r.rules, conflict.Field)
	if !ok {
		return Resolution{
			Field:                conflict.Field,
			Value:                fromJSON(conflict.SourceValue),
			RequiresManualReview: true,
		}
	}

	resolution := Resolution{Field: conflict.Field, Strategy: rule.Strategy}
	source := fromJSON(conflict.SourceValue)
	target := fromJSON(conflict.TargetValue)

	switch rule.Strategy {
	case StrategySourceWins:
		resolution.Value = source
		resolution.Resolved = true

	case StrategyTargetWins:
		resolution.Value = target
		resolution.Resolved = true

	case StrategyLatestWins:
		// Recency needs both timestamps; without the remote one the local
		// value wins.
		resolution.Value = source
		if conflict.SourceUpdatedAt != nil && conflict.TargetUpdatedAt != nil &&
			conflict.TargetUpdatedAt.After(*conflict.SourceUpdatedAt) {
			resolution.Value = target
		}
		resolution.Resolved = true

	case StrategyMerge:
		resolution.Value = mergeValues(source, target)
		resolution.Resolved = true

	case StrategyManualReview:
		resolution.Value = source
		resolution.RequiresManualReview = true

	default:
		resolution.Value = source
		resolution.RequiresManualReview = true
	}
	return resolution
}

// ResolveEntryConflicts applies the rule table to every pending conflict of
// an entry. Resolved conflicts are closed in storage; manual-review ones
// stay pending and flip the overall flag.
func (r *Resolver) ResolveEntryConflicts(ctx context.Context, entryID string) (*EntryResolution, error) {
	var conflicts []models.Conflict
	err := r.db.WithContext(ctx).
		Where("billing_entry_id = ? AND status = ?", entryID, models.ConflictPending).
		Order("detected_at").
		Find(&conflicts).Error
	if err != nil {
		return nil, fmt.Errorf("loading pending conflicts: %w", err)
	}

	result := &EntryResolution{MergedData: make(map[string]any)}
	for i := range conflicts {
		conflict := &conflicts[i]
		resolution := r.Resolve(conflict)
		result.Resolutions = append(result.Resolutions, resolution)

		if !resolution.Resolved {
			result.RequiresManualReview = true
			result.Pending = append(result.Pending, *conflict)
			continue
		}

		if conflict.MarkResolved(string(resolution.Strategy), "auto") {
			if err := r.db.WithContext(ctx).Save(conflict).Error; err != nil {
				return nil, fmt.Errorf("closing conflict %s: %w", conflict.ID, err)
			}
		}
		result.MergedData[conflict.Field] = resolution.Value
	}

	r.logger.Info("Entry conflicts resolved",
		zap.String("entry", entryID),
		zap.Int("total", len(conflicts)),
		zap.Int("pending", len(result.Pending)),
		zap.Bool("manual_review", result.RequiresManualReview))
	return result, nil
}

// ManuallyResolve closes one conflict with a human-chosen value, recording
// who resolved it. Terminal conflicts are refused.
func (r *Resolver) ManuallyResolve(ctx context.Context, conflictID string, value any, resolvedBy string) (*models.Conflict, error) {
	var conflict models.Conflict
	if err := r.db.WithContext(ctx).First(&conflict, "id = ?", conflictID).Error; err != nil {
		return nil, fmt.Errorf("loading conflict: %w", err)
	}

	if !conflict.MarkResolved(string(StrategyManualReview), resolvedBy) {
		return nil, fmt.Errorf("conflict %s is already %s", conflictID, conflict.Status)
	}
	if value != nil {
		conflict.SourceValue = toJSON(value)
	}
	if err := r.db.WithContext(ctx).Save(&conflict).Error; err != nil {
		return nil, fmt.Errorf("saving conflict resolution: %w", err)
	}
	return &conflict, nil
}

// Ignore closes one conflict without resolving it.
func (r *Resolver) Ignore(ctx context.Context, conflictID, resolvedBy string) (*models.Conflict, error) {
	var conflict models.Conflict
	if err := r.db.WithContext(ctx).First(&conflict, "id = ?", conflictID).Error; err != nil {
		return nil, fmt.Errorf("loading conflict: %w", err)
	}
	if !conflict.MarkIgnored(resolvedBy) {
		return nil, fmt.Errorf("conflict %s is already %s", conflictID, conflict.Status)
	}
	if err := r.db.WithContext(ctx).Save(&conflict).Error; err != nil {
		return nil, fmt.Errorf("saving conflict: %w", err)
	}
	return &conflict, nil
}

// mergeValues combines two values by type: text becomes the union of
// distinct lower-cased tokens, numbers keep the larger recorded value, and
// anything else falls back to the source.
func mergeValues(source, target any) any {
	switch sv := source.(type) {
	case string:
		if tv, ok := target.(string); ok {
			return mergeText(sv, tv)
		}
	case float64:
		if tv, ok := target.(float64); ok {
			if tv > sv {
				return tv
			}
			return sv
		}
	}
	return source
}

func mergeText(a, b string) string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, token := range strings.Fields(strings.ToLower(a + " " + b)) {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}

func fromJSON(raw datatypes.JSON) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
