package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
	"github.com/tripline/backend/internal/infrastructure/persistence/models"
)

// GormTripRepository implements trip.Repository using GORM
type GormTripRepository struct {
	db *gorm.DB
}

// NewGormTripRepository creates a new GormTripRepository
func NewGormTripRepository(db *gorm.DB) *GormTripRepository {
	return &GormTripRepository{db: db}
}

// Save persists a new trip together with its creation audit entry in a
// single transaction
func (r *GormTripRepository) Save(ctx context.Context, t *trip.Trip, creation *trip.StatusTransition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.TripModel
		model.FromDomain(t)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if creation == nil {
			return nil
		}
		var entry models.StatusTransitionModel
		if err := entry.FromDomain(creation); err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
}

// FindByID finds a trip by its ID
func (r *GormTripRepository) FindByID(ctx context.Context, id uuid.UUID) (*trip.Trip, error) {
	var model models.TripModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForOwner finds trips for an owner with filtering and pagination
func (r *GormTripRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]trip.Trip, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TripModel{}).Where("owner_id = ?", ownerID)

	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR destination LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, TripSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var rows []models.TripModel
	if err := query.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	trips := make([]trip.Trip, len(rows))
	for i := range rows {
		trips[i] = *rows[i].ToDomain()
	}
	return trips, total, nil
}

// Update persists changes to trip fields other than status
func (r *GormTripRepository) Update(ctx context.Context, t *trip.Trip) error {
	var model models.TripModel
	model.FromDomain(t)
	result := r.db.WithContext(ctx).Model(&models.TripModel{}).
		Where("id = ?", model.ID).
		Select("title", "destination", "description", "start_date", "end_date",
			"budget", "travelers", "updated_at", "version").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a trip and its transition history
func (r *GormTripRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.StatusTransitionModel{}, "trip_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.TripModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Transition executes a status change atomically. The row is re-read with
// a lock inside the transaction so the audit entry written by apply always
// reflects the actual prior status, even under concurrent transitions.
func (r *GormTripRepository) Transition(ctx context.Context, tripID uuid.UUID, apply func(t *trip.Trip) (*trip.StatusTransition, error)) (*trip.Trip, *trip.StatusTransition, error) {
	var (
		updated *trip.Trip
		entry   *trip.StatusTransition
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.TripModel
		if err := r.lockForUpdate(tx).First(&model, "id = ?", tripID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		t := model.ToDomain()
		e, err := apply(t)
		if err != nil {
			return err
		}
		if e == nil {
			// apply decided the change is no longer needed
			updated = t
			return nil
		}

		t.IncrementVersion()
		model.FromDomain(t)
		if err := tx.Model(&models.TripModel{}).
			Where("id = ?", model.ID).
			Select("status", "updated_at", "version").
			Updates(&model).Error; err != nil {
			return err
		}

		var entryModel models.StatusTransitionModel
		if err := entryModel.FromDomain(e); err != nil {
			return err
		}
		if err := tx.Create(&entryModel).Error; err != nil {
			return err
		}

		updated = t
		entry = e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, entry, nil
}

// ListSweepCandidates returns all trips not in CANCELLED status
func (r *GormTripRepository) ListSweepCandidates(ctx context.Context) ([]trip.Trip, error) {
	var rows []models.TripModel
	if err := r.db.WithContext(ctx).
		Where("status <> ?", trip.StatusCancelled.String()).
		Order("start_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	trips := make([]trip.Trip, len(rows))
	for i := range rows {
		trips[i] = *rows[i].ToDomain()
	}
	return trips, nil
}

// lockForUpdate applies a row lock where the dialect supports it. SQLite
// serializes writers on its own, so the clause is skipped there.
func (r *GormTripRepository) lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GormTransitionRepository implements trip.TransitionRepository using GORM
type GormTransitionRepository struct {
	db *gorm.DB
}

// NewGormTransitionRepository creates a new GormTransitionRepository
func NewGormTransitionRepository(db *gorm.DB) *GormTransitionRepository {
	return &GormTransitionRepository{db: db}
}

// FindByTrip returns the transition history for a trip, newest first
func (r *GormTransitionRepository) FindByTrip(ctx context.Context, tripID uuid.UUID, filter shared.Filter) ([]trip.StatusTransition, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StatusTransitionModel{}).
		Where("trip_id = ?", tripID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.StatusTransitionModel
	if err := query.
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]trip.StatusTransition, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, total, nil
}
