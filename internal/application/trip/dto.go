package trip

import (
	"time"

	"github.com/tripline/backend/internal/domain/trip"
)

// CreateTripRequest represents a request to create a new trip
type CreateTripRequest struct {
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Budget      *float64  `json:"budget"`
	Travelers   *int      `json:"travelers"`
}

// UpdateTripRequest represents a request to update trip details
type UpdateTripRequest struct {
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Budget      *float64  `json:"budget"`
	Travelers   *int      `json:"travelers"`
}

// TripListFilter represents filtering options for listing trips
type TripListFilter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Status   *trip.Status
}

// TripResponse represents a trip in API responses
type TripResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Budget      float64   `json:"budget"`
	Travelers   int       `json:"travelers"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

// TransitionRecordResponse represents a status transition audit entry in
// API responses
type TransitionRecordResponse struct {
	ID         string                 `json:"id"`
	TripID     string                 `json:"trip_id"`
	OldStatus  *string                `json:"old_status"`
	NewStatus  string                 `json:"new_status"`
	Reason     string                 `json:"reason"`
	ActingUser *string                `json:"acting_user,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// TransitionResponse represents the outcome of a status transition request
type TransitionResponse struct {
	Status     string                   `json:"status"`
	Transition TransitionRecordResponse `json:"transition"`
}

// TransitionOptionsResponse lists the legal next statuses for a trip
type TransitionOptionsResponse struct {
	Current string   `json:"current"`
	Options []string `json:"options"`
}

// ToTripResponse converts a domain trip to a response DTO
func ToTripResponse(t *trip.Trip) TripResponse {
	budget, _ := t.Budget.Float64()
	return TripResponse{
		ID:          t.ID.String(),
		OwnerID:     t.OwnerID.String(),
		Title:       t.Title,
		Destination: t.Destination,
		Description: t.Description,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		Budget:      budget,
		Travelers:   t.Travelers,
		Status:      t.Status.String(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Version:     t.Version,
	}
}

// ToTransitionRecordResponse converts a domain audit entry to a response DTO
func ToTransitionRecordResponse(st *trip.StatusTransition) TransitionRecordResponse {
	resp := TransitionRecordResponse{
		ID:        st.ID.String(),
		TripID:    st.TripID.String(),
		NewStatus: st.NewStatus.String(),
		Reason:    st.Reason.String(),
		Metadata:  st.Metadata,
		Timestamp: st.CreatedAt,
	}
	if st.OldStatus != nil {
		old := st.OldStatus.String()
		resp.OldStatus = &old
	}
	if st.ActingUser != nil {
		actor := st.ActingUser.String()
		resp.ActingUser = &actor
	}
	return resp
}

// ToTransitionOptionsResponse builds the options DTO for a status
func ToTransitionOptionsResponse(current trip.Status) TransitionOptionsResponse {
	options := current.TransitionOptions()
	names := make([]string, len(options))
	for i, s := range options {
		names[i] = s.String()
	}
	return TransitionOptionsResponse{
		Current: current.String(),
		Options: names,
	}
}
