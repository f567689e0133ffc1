package trip

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
)

// TripService handles trip CRUD operations
type TripService struct {
	repo trip.Repository
}

// NewTripService creates a new TripService
func NewTripService(repo trip.Repository) *TripService {
	return &TripService{repo: repo}
}

// Create creates a new trip in DRAFT status and records the creation
// event in the transition log
func (s *TripService) Create(ctx context.Context, ownerID uuid.UUID, req CreateTripRequest) (*TripResponse, error) {
	t, err := trip.NewTrip(ownerID, req.Title, req.Destination, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	t.Description = req.Description

	if req.Budget != nil {
		if err := t.SetBudget(decimal.NewFromFloat(*req.Budget)); err != nil {
			return nil, err
		}
	}
	if req.Travelers != nil {
		if err := t.SetTravelers(*req.Travelers); err != nil {
			return nil, err
		}
	}

	creation := trip.NewCreationTransition(t.ID, &ownerID)
	if err := s.repo.Save(ctx, t, creation); err != nil {
		return nil, err
	}

	response := ToTripResponse(t)
	return &response, nil
}

// GetByID retrieves a trip owned by the given user
func (s *TripService) GetByID(ctx context.Context, ownerID, tripID uuid.UUID) (*TripResponse, error) {
	t, err := s.findOwned(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	response := ToTripResponse(t)
	return &response, nil
}

// List retrieves trips for an owner with filtering and pagination
func (s *TripService) List(ctx context.Context, ownerID uuid.UUID, filter TripListFilter) ([]TripResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}
	if filter.Status != nil {
		domainFilter.Filters["status"] = string(*filter.Status)
	}

	trips, total, err := s.repo.FindAllForOwner(ctx, ownerID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]TripResponse, len(trips))
	for i := range trips {
		responses[i] = ToTripResponse(&trips[i])
	}
	return responses, total, nil
}

// Update updates the editable fields of a trip
func (s *TripService) Update(ctx context.Context, ownerID, tripID uuid.UUID, req UpdateTripRequest) (*TripResponse, error) {
	t, err := s.findOwned(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}

	if err := t.UpdateDetails(req.Title, req.Destination, req.Description, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if req.Budget != nil {
		if err := t.SetBudget(decimal.NewFromFloat(*req.Budget)); err != nil {
			return nil, err
		}
	}
	if req.Travelers != nil {
		if err := t.SetTravelers(*req.Travelers); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	response := ToTripResponse(t)
	return &response, nil
}

// Delete removes a draft trip and its history
func (s *TripService) Delete(ctx context.Context, ownerID, tripID uuid.UUID) error {
	t, err := s.findOwned(ctx, ownerID, tripID)
	if err != nil {
		return err
	}
	if !t.IsDraft() {
		return shared.NewDomainError("INVALID_STATE", "Only draft trips can be deleted")
	}
	return s.repo.Delete(ctx, tripID)
}

func (s *TripService) findOwned(ctx context.Context, ownerID, tripID uuid.UUID) (*trip.Trip, error) {
	t, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, shared.ErrForbidden
	}
	return t, nil
}
