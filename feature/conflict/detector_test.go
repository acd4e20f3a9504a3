package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/core/database"
	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
)

func setupConflictDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestValuesEqual(t *testing.T) {
	t.Run("Nil Handling", func(t *testing.T) {
		assert.True(t, valuesEqual(nil, nil))
		assert.False(t, valuesEqual(nil, "x"))
		assert.False(t, valuesEqual(1.0, nil))
	})

	t.Run("Numeric Tolerance", func(t *testing.T) {
		assert.True(t, valuesEqual(2.50, 2.505))
		assert.True(t, valuesEqual(2.50, 2.51))
		assert.False(t, valuesEqual(2.50, 2.52))
		assert.False(t, valuesEqual(2.5, 3.0))
	})

	t.Run("String Comparison", func(t *testing.T) {
		assert.True(t, valuesEqual("Client Call", "client call"))
		assert.True(t, valuesEqual("  client call ", "client call"))
		assert.False(t, valuesEqual("client call", "client meeting"))
	})

	t.Run("Time Comparison", func(t *testing.T) {
		instant := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
		assert.True(t, valuesEqual(instant, instant.In(time.FixedZone("CET", 3600))))
		assert.False(t, valuesEqual(instant, instant.Add(time.Second)))
	})
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 0.5, jaccard("client consultation call", "client consultation phone"))
	assert.Equal(t, 0.8, jaccard("client consultation call today", "client consultation call today please"))
	assert.Equal(t, 1.0, jaccard("Review Contract", "review contract"))
	assert.Equal(t, 0.0, jaccard("drafting", "research"))
	assert.Equal(t, 1.0, jaccard("", ""))
	assert.Equal(t, 0.0, jaccard("drafting", ""))
}

func TestDetectConflicts(t *testing.T) {
	db := setupConflictDB(t)
	detector := NewDetector(db, zap.NewNop())

	local := &models.BillingEntry{
		ID:          uuid.NewString(),
		Description: "client consultation call",
		TimeSpent:   2.5,
		Client:      "client-1",
		Matter:      "matter-1",
		UpdatedAt:   time.Now(),
	}
	assert.NoError(t, db.Create(local).Error)

	t.Run("Mismatch Persists One Conflict Per Field", func(t *testing.T) {
		remote := &platform.TimeEntry{
			Description: "client consultation call",
			Hours:       3.0,
			ClientID:    "client-1",
			MatterID:    "matter-1",
		}
		conflicts := detector.DetectConflicts(context.Background(), local, remote, "clio")
		assert.Len(t, conflicts, 1)
		assert.Equal(t, "timeSpent", conflicts[0].Field)
		assert.Equal(t, models.ConflictDataMismatch, conflicts[0].ConflictType)
		assert.Equal(t, models.ConflictPending, conflicts[0].Status)
		assert.Nil(t, conflicts[0].TargetUpdatedAt)

		var stored models.Conflict
		assert.NoError(t, db.First(&stored, "id = ?", conflicts[0].ID).Error)
		assert.Equal(t, local.ID, stored.BillingEntryID)
	})

	t.Run("Remote Timestamp Carried When Reported", func(t *testing.T) {
		remote := &platform.TimeEntry{
			Description: "different notes entirely",
			Hours:       2.5,
			ClientID:    "client-1",
			MatterID:    "matter-1",
			UpdatedAt:   time.Now().Add(time.Hour),
		}
		conflicts := detector.DetectConflicts(context.Background(), local, remote, "clio")
		assert.Len(t, conflicts, 1)
		assert.Equal(t, "description", conflicts[0].Field)
		assert.NotNil(t, conflicts[0].TargetUpdatedAt)
	})

	t.Run("Agreement Within Tolerance Detects Nothing", func(t *testing.T) {
		remote := &platform.TimeEntry{
			Description: "Client Consultation Call ", // case and whitespace only
			Hours:       2.505,
			ClientID:    "client-1",
			MatterID:    "matter-1",
		}
		conflicts := detector.DetectConflicts(context.Background(), local, remote, "clio")
		assert.Empty(t, conflicts)
	})
}

func TestDetectDuplicates(t *testing.T) {
	db := setupConflictDB(t)
	detector := NewDetector(db, zap.NewNop())
	workDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	seed := func(description string, status models.SyncStatus) *models.BillingEntry {
		entry := &models.BillingEntry{
			ID:          uuid.NewString(),
			Description: description,
			Client:      "client-1",
			WorkDate:    workDate,
			Platform:    "clio",
			SyncStatus:  status,
		}
		assert.NoError(t, db.Create(entry).Error)
		return entry
	}

	seed("client consultation call today", models.SyncStatusSynced)
	seed("client consultation phone", models.SyncStatusSynced)
	// High similarity but never synced; duplicates only count against the
	// synced population.
	seed("client consultation call today!", models.SyncStatusPending)

	subject := seed("client consultation call today please", models.SyncStatusSynced)

	conflicts := detector.DetectDuplicates(context.Background(), subject)
	assert.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictDuplicateEntry, conflicts[0].ConflictType)
	assert.Equal(t, subject.ID, conflicts[0].BillingEntryID)
}
