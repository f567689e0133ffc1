package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
	"github.com/tripline/backend/internal/infrastructure/persistence/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// a named shared-cache memory database keeps all pooled connections on
	// the same store while isolating tests from each other
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TripModel{}, &models.StatusTransitionModel{}))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestTrip(t *testing.T, ownerID uuid.UUID) *trip.Trip {
	t.Helper()
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	tr, err := trip.NewTrip(ownerID, "Lisbon long weekend", "Lisbon, Portugal", start, start.AddDate(0, 0, 4))
	require.NoError(t, err)
	return tr
}

func saveTestTrip(t *testing.T, repo *GormTripRepository, tr *trip.Trip) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), tr, trip.NewCreationTransition(tr.ID, &tr.OwnerID)))
}

func TestGormTripRepository_SaveAndFindByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTripRepository(db)
	transitions := NewGormTransitionRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	tr := newTestTrip(t, owner)
	require.NoError(t, tr.SetBudget(decimal.NewFromInt(1800)))
	saveTestTrip(t, repo, tr)

	found, err := repo.FindByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, found.ID)
	assert.Equal(t, owner, found.OwnerID)
	assert.Equal(t, "Lisbon long weekend", found.Title)
	assert.Equal(t, trip.StatusDraft, found.Status)
	assert.True(t, found.Budget.Equal(decimal.NewFromInt(1800)))

	// creation audit entry is written in the same transaction
	history, total, err := transitions.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].OldStatus)
	assert.Equal(t, trip.StatusDraft, history[0].NewStatus)
	assert.Equal(t, trip.ReasonTripCreated, history[0].Reason)
}

func TestGormTripRepository_FindByID_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTripRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormTripRepository_FindAllForOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTripRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	other := uuid.New()
	for i := 0; i < 3; i++ {
		saveTestTrip(t, repo, newTestTrip(t, owner))
	}
	saveTestTrip(t, repo, newTestTrip(t, other))

	t.Run("returns only the owner's trips", func(t *testing.T) {
		trips, total, err := repo.FindAllForOwner(ctx, owner, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, trips, 3)
		for _, tr := range trips {
			assert.Equal(t, owner, tr.OwnerID)
		}
	})

	t.Run("paginates results", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.PageSize = 2
		filter.Page = 2

		trips, total, err := repo.FindAllForOwner(ctx, owner, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, trips, 1)
	})

	t.Run("filters by status", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters["status"] = trip.StatusDraft.String()

		trips, total, err := repo.FindAllForOwner(ctx, owner, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, trips, 3)

		filter.Filters["status"] = trip.StatusActive.String()
		trips, total, err = repo.FindAllForOwner(ctx, owner, filter)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, trips)
	})

	t.Run("searches by title and destination", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Search = "Lisbon"

		_, total, err := repo.FindAllForOwner(ctx, owner, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		filter.Search = "Reykjavik"
		_, total, err = repo.FindAllForOwner(ctx, owner, filter)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestGormTripRepository_Update(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTripRepository(db)
	ctx := context.Background()

	tr := newTestTrip(t, uuid.New())
	saveTestTrip(t, repo, tr)

	require.NoError(t, tr.UpdateDetails("Porto instead", "Porto, Portugal", "food trip", tr.StartDate, tr.EndDate))
	require.NoError(t, repo.Update(ctx, tr))

	found, err := repo.FindByID(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Porto instead", found.Title)
	assert.Equal(t, "Porto, Portugal", found.Destination)
	assert.Equal(t, "food trip", found.Description)

	t.Run("missing trip returns not found", func(t *testing.T) {
		ghost := newTestTrip(t, uuid.New())
		assert.ErrorIs(t, repo.Update(ctx, ghost), shared.ErrNotFound)
	})
}

func TestGormTripRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTripRepository(db)
	transitions := NewGormTransitionRepository(db)
	ctx := context.Background()

	tr := newTestTrip(t, uuid.New())
	saveTestTrip(t, repo, tr)

	require.NoError(t, repo.Delete(ctx, tr.ID))

	_, err := repo.FindByID(ctx, tr.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// transition history is removed together with the trip
	_, total, err := transitions.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), shared.ErrNotFound)
}

func TestGormTripRepository_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("applies change and writes audit entry atomically", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormTripRepository(db)
		transitions := NewGormTransitionRepository(db)

		tr := newTestTrip(t, uuid.New())
		saveTestTrip(t, repo, tr)
		actor := uuid.New()

		updated, entry, err := repo.Transition(ctx, tr.ID, func(t *trip.Trip) (*trip.StatusTransition, error) {
			old := t.Status
			if err := t.ApplyTransition(trip.StatusPlanned, false); err != nil {
				return nil, err
			}
			return trip.NewStatusTransition(t.ID, &old, trip.StatusPlanned, trip.ReasonManual, &actor), nil
		})
		require.NoError(t, err)
		assert.Equal(t, trip.StatusPlanned, updated.Status)
		require.NotNil(t, entry)
		require.NotNil(t, entry.OldStatus)
		assert.Equal(t, trip.StatusDraft, *entry.OldStatus)

		found, err := repo.FindByID(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, trip.StatusPlanned, found.Status)
		assert.Equal(t, tr.Version+1, found.Version)

		history, total, err := transitions.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.NotEmpty(t, history)
	})

	t.Run("apply error rolls back without audit entry", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormTripRepository(db)
		transitions := NewGormTransitionRepository(db)

		tr := newTestTrip(t, uuid.New())
		saveTestTrip(t, repo, tr)

		_, _, err := repo.Transition(ctx, tr.ID, func(t *trip.Trip) (*trip.StatusTransition, error) {
			old := t.Status
			if err := t.ApplyTransition(trip.StatusCompleted, false); err != nil {
				return nil, err
			}
			return trip.NewStatusTransition(t.ID, &old, trip.StatusCompleted, trip.ReasonManual, nil), nil
		})
		var invalid *trip.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)

		found, err := repo.FindByID(ctx, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, trip.StatusDraft, found.Status)

		_, total, err := transitions.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("nil entry is a no-op", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormTripRepository(db)

		tr := newTestTrip(t, uuid.New())
		saveTestTrip(t, repo, tr)

		updated, entry, err := repo.Transition(ctx, tr.ID, func(t *trip.Trip) (*trip.StatusTransition, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.Equal(t, tr.Version, updated.Version)
	})

	t.Run("missing trip returns not found", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormTripRepository(db)

		_, _, err := repo.Transition(ctx, uuid.New(), func(t *trip.Trip) (*trip.StatusTransition, error) {
			return nil, nil
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("metadata survives the round trip", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormTripRepository(db)
		transitions := NewGormTransitionRepository(db)

		tr := newTestTrip(t, uuid.New())
		saveTestTrip(t, repo, tr)

		_, _, err := repo.Transition(ctx, tr.ID, func(t *trip.Trip) (*trip.StatusTransition, error) {
			old := t.Status
			if err := t.ApplyTransition(trip.StatusCancelled, false); err != nil {
				return nil, err
			}
			entry := trip.NewStatusTransition(t.ID, &old, trip.StatusCancelled, trip.ReasonManual, nil)
			return entry.WithMetadata(map[string]interface{}{"note": "weather warning"}), nil
		})
		require.NoError(t, err)

		history, _, err := transitions.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
		require.NoError(t, err)
		require.NotEmpty(t, history)
		assert.Equal(t, "weather warning", history[0].Metadata["note"])
	})
}

func TestGormTripRepository_ListSweepCandidates(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTripRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	active := newTestTrip(t, owner)
	cancelled := newTestTrip(t, owner)
	saveTestTrip(t, repo, active)
	saveTestTrip(t, repo, cancelled)

	_, _, err := repo.Transition(ctx, cancelled.ID, func(t *trip.Trip) (*trip.StatusTransition, error) {
		old := t.Status
		if err := t.ApplyTransition(trip.StatusCancelled, false); err != nil {
			return nil, err
		}
		return trip.NewStatusTransition(t.ID, &old, trip.StatusCancelled, trip.ReasonManual, nil), nil
	})
	require.NoError(t, err)

	candidates, err := repo.ListSweepCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, active.ID, candidates[0].ID)
}

func TestGormTransitionRepository_FindByTrip_Order(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormTripRepository(db)
	transitions := NewGormTransitionRepository(db)
	ctx := context.Background()

	tr := newTestTrip(t, uuid.New())
	saveTestTrip(t, repo, tr)

	targets := []trip.Status{trip.StatusPlanned, trip.StatusActive, trip.StatusCompleted}
	for _, target := range targets {
		// keep created_at strictly increasing for a deterministic order
		time.Sleep(5 * time.Millisecond)
		_, _, err := repo.Transition(ctx, tr.ID, func(t *trip.Trip) (*trip.StatusTransition, error) {
			old := t.Status
			if err := t.ApplyTransition(target, false); err != nil {
				return nil, err
			}
			return trip.NewStatusTransition(t.ID, &old, target, trip.ReasonManual, nil), nil
		})
		require.NoError(t, err)
	}

	history, total, err := transitions.FindByTrip(ctx, tr.ID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, history, 4)
	assert.Equal(t, trip.StatusCompleted, history[0].NewStatus)
	assert.Equal(t, trip.StatusActive, history[1].NewStatus)
	assert.Equal(t, trip.StatusPlanned, history[2].NewStatus)
	assert.Equal(t, trip.StatusDraft, history[3].NewStatus)
}
