package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"lexsync/feature/billing/models"
)

func TestSelectRule(t *testing.T) {
	rules := []Rule{
		{Field: "*", Strategy: StrategySourceWins, Priority: 99},
		{Field: "timeSpent", Strategy: StrategyLatestWins, Priority: 1},
		{Field: "timeSpent", Strategy: StrategyManualReview, Priority: 5},
	}

	t.Run("Exact Beats Wildcard", func(t *testing.T) {
		rule, ok := selectRule(rules, "timeSpent")
		assert.True(t, ok)
		assert.Equal(t, StrategyLatestWins, rule.Strategy)
	})

	t.Run("Wildcard Fallback", func(t *testing.T) {
		rule, ok := selectRule(rules, "somethingElse")
		assert.True(t, ok)
		assert.Equal(t, StrategySourceWins, rule.Strategy)
	})

	t.Run("No Match", func(t *testing.T) {
		_, ok := selectRule([]Rule{{Field: "id", Strategy: StrategySourceWins}}, "unknown")
		assert.False(t, ok)
	})
}

func pendingConflict(field string, source, target any) *models.Conflict {
	return &models.Conflict{
		ID:           uuid.NewString(),
		Field:        field,
		SourceValue:  toJSON(source),
		TargetValue:  toJSON(target),
		ConflictType: models.ConflictDataMismatch,
		DetectedAt:   time.Now(),
		Status:       models.ConflictPending,
	}
}

func TestResolveStrategies(t *testing.T) {
	resolver := NewResolver(nil, nil, zap.NewNop())

	t.Run("Latest Wins Falls Back To Source Without Remote Timestamp", func(t *testing.T) {
		resolution := resolver.Resolve(pendingConflict("timeSpent", 2.5, 3.0))
		assert.True(t, resolution.Resolved)
		assert.False(t, resolution.RequiresManualReview)
		assert.Equal(t, 2.5, resolution.Value)
	})

	t.Run("Latest Wins Picks Newer Remote Value", func(t *testing.T) {
		conflict := pendingConflict("timeSpent", 2.5, 3.0)
		older := time.Now().Add(-time.Hour)
		newer := time.Now()
		conflict.SourceUpdatedAt = &older
		conflict.TargetUpdatedAt = &newer

		resolution := resolver.Resolve(conflict)
		assert.True(t, resolution.Resolved)
		assert.Equal(t, 3.0, resolution.Value)
	})

	t.Run("Latest Wins Keeps Newer Local Value", func(t *testing.T) {
		conflict := pendingConflict("timeSpent", 2.5, 3.0)
		newer := time.Now()
		older := time.Now().Add(-time.Hour)
		conflict.SourceUpdatedAt = &newer
		conflict.TargetUpdatedAt = &older

		resolution := resolver.Resolve(conflict)
		assert.Equal(t, 2.5, resolution.Value)
	})

	t.Run("Source And Target Wins", func(t *testing.T) {
		resolution := resolver.Resolve(pendingConflict("hourlyRate", 250.0, 300.0))
		assert.Equal(t, 250.0, resolution.Value)

		resolution = resolver.Resolve(pendingConflict("externalId", "local-1", "remote-9"))
		assert.Equal(t, "remote-9", resolution.Value)
	})

	t.Run("Manual Review Stays Unresolved", func(t *testing.T) {
		resolution := resolver.Resolve(pendingConflict("client", "Acme Corp", "Acme Holdings"))
		assert.False(t, resolution.Resolved)
		assert.True(t, resolution.RequiresManualReview)
		assert.Equal(t, "Acme Corp", resolution.Value) // provisional source value
	})

	t.Run("No Matching Rule", func(t *testing.T) {
		resolver := NewResolver(nil, []Rule{{Field: "id", Strategy: StrategySourceWins}}, zap.NewNop())
		resolution := resolver.Resolve(pendingConflict("workType", "call", "meeting"))
		assert.False(t, resolution.Resolved)
		assert.True(t, resolution.RequiresManualReview)
	})
}

func TestMergeStrategy(t *testing.T) {
	rules := []Rule{{Field: "*", Strategy: StrategyMerge, Priority: 0}}
	resolver := NewResolver(nil, rules, zap.NewNop())

	t.Run("Text Union", func(t *testing.T) {
		resolution := resolver.Resolve(pendingConflict("description", "Reviewed contract draft", "contract draft comments"))
		assert.True(t, resolution.Resolved)
		assert.Equal(t, "reviewed contract draft comments", resolution.Value)
	})

	t.Run("Numeric Max", func(t *testing.T) {
		resolution := resolver.Resolve(pendingConflict("timeSpent", 1.5, 2.25))
		assert.Equal(t, 2.25, resolution.Value)
	})

	t.Run("Mixed Types Fall Back To Source", func(t *testing.T) {
		resolution := resolver.Resolve(pendingConflict("metadata", "text", 4.0))
		assert.Equal(t, "text", resolution.Value)
	})
}

func TestResolveEntryConflicts(t *testing.T) {
	db := setupConflictDB(t)
	resolver := NewResolver(db, nil, zap.NewNop())
	entryID := uuid.NewString()

	timeConflict := pendingConflict("timeSpent", 2.5, 3.0)
	timeConflict.BillingEntryID = entryID
	clientConflict := pendingConflict("client", "Acme Corp", "Acme Holdings")
	clientConflict.BillingEntryID = entryID
	assert.NoError(t, db.Create(timeConflict).Error)
	assert.NoError(t, db.Create(clientConflict).Error)

	result, err := resolver.ResolveEntryConflicts(context.Background(), entryID)
	assert.NoError(t, err)
	assert.True(t, result.RequiresManualReview)
	assert.Equal(t, 2.5, result.MergedData["timeSpent"])
	assert.NotContains(t, result.MergedData, "client")
	assert.Len(t, result.Pending, 1)
	assert.Equal(t, "client", result.Pending[0].Field)

	// The resolvable conflict is closed in storage, the manual one stays open.
	var stored models.Conflict
	assert.NoError(t, db.First(&stored, "id = ?", timeConflict.ID).Error)
	assert.Equal(t, models.ConflictResolved, stored.Status)
	assert.Equal(t, string(StrategyLatestWins), stored.ResolutionStrategy)
	assert.NotNil(t, stored.ResolvedAt)

	assert.NoError(t, db.First(&stored, "id = ?", clientConflict.ID).Error)
	assert.Equal(t, models.ConflictPending, stored.Status)
}

func TestManuallyResolve(t *testing.T) {
	db := setupConflictDB(t)
	resolver := NewResolver(db, nil, zap.NewNop())

	conflict := pendingConflict("client", "Acme Corp", "Acme Holdings")
	assert.NoError(t, db.Create(conflict).Error)

	resolved, err := resolver.ManuallyResolve(context.Background(), conflict.ID, "Acme Holdings", "jordan")
	assert.NoError(t, err)
	assert.Equal(t, models.ConflictResolved, resolved.Status)
	assert.Equal(t, "jordan", resolved.ResolvedBy)

	// Terminal conflicts never reopen.
	_, err = resolver.ManuallyResolve(context.Background(), conflict.ID, "Acme Corp", "sam")
	assert.Error(t, err)

	_, err = resolver.Ignore(context.Background(), conflict.ID, "sam")
	assert.Error(t, err)
}

func TestIgnore(t *testing.T) {
	db := setupConflictDB(t)
	resolver := NewResolver(db, nil, zap.NewNop())

	conflict := pendingConflict("matter", "matter-1", "matter-2")
	assert.NoError(t, db.Create(conflict).Error)

	ignored, err := resolver.Ignore(context.Background(), conflict.ID, "jordan")
	assert.NoError(t, err)
	assert.Equal(t, models.ConflictIgnored, ignored.Status)
}
