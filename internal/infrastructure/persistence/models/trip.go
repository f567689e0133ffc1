package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripline/backend/internal/domain/trip"
)

// TripModel is the persistence model for the trip aggregate
type TripModel struct {
	OwnedAggregateModel
	Title       string          `gorm:"size:255;not null"`
	Destination string          `gorm:"size:255;not null"`
	Description string          `gorm:"type:text"`
	StartDate   time.Time       `gorm:"not null;index"`
	EndDate     time.Time       `gorm:"not null;index"`
	Budget      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Status      string          `gorm:"size:16;not null;index"`
	Travelers   int             `gorm:"not null;default:1"`
}

// TableName returns the table name for TripModel
func (TripModel) TableName() string {
	return "trips"
}

// ToDomain converts TripModel to a domain Trip
func (m *TripModel) ToDomain() *trip.Trip {
	t := &trip.Trip{
		Title:       m.Title,
		Destination: m.Destination,
		Description: m.Description,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		Budget:      m.Budget,
		Status:      trip.Status(m.Status),
		Travelers:   m.Travelers,
	}
	m.PopulateOwnedAggregateRoot(&t.OwnedAggregateRoot)
	return t
}

// FromDomain populates TripModel from a domain Trip
func (m *TripModel) FromDomain(t *trip.Trip) {
	m.FromDomainOwnedAggregateRoot(t.OwnedAggregateRoot)
	m.Title = t.Title
	m.Destination = t.Destination
	m.Description = t.Description
	m.StartDate = t.StartDate
	m.EndDate = t.EndDate
	m.Budget = t.Budget
	m.Status = t.Status.String()
	m.Travelers = t.Travelers
}

// StatusTransitionModel is the persistence model for the append-only
// status transition log
type StatusTransitionModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	TripID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	OldStatus  *string    `gorm:"size:16"`
	NewStatus  string     `gorm:"size:16;not null"`
	Reason     string     `gorm:"size:32;not null"`
	ActingUser *uuid.UUID `gorm:"type:uuid"`
	Metadata   string     `gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for StatusTransitionModel
func (StatusTransitionModel) TableName() string {
	return "trip_status_transitions"
}

// ToDomain converts StatusTransitionModel to a domain StatusTransition
func (m *StatusTransitionModel) ToDomain() *trip.StatusTransition {
	st := &trip.StatusTransition{
		ID:         m.ID,
		TripID:     m.TripID,
		NewStatus:  trip.Status(m.NewStatus),
		Reason:     trip.TransitionReason(m.Reason),
		ActingUser: m.ActingUser,
		CreatedAt:  m.CreatedAt,
	}
	if m.OldStatus != nil {
		old := trip.Status(*m.OldStatus)
		st.OldStatus = &old
	}
	if m.Metadata != "" && m.Metadata != "{}" {
		var metadata map[string]interface{}
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err == nil {
			st.Metadata = metadata
		}
	}
	return st
}

// FromDomain populates StatusTransitionModel from a domain StatusTransition
func (m *StatusTransitionModel) FromDomain(st *trip.StatusTransition) error {
	m.ID = st.ID
	m.TripID = st.TripID
	m.NewStatus = st.NewStatus.String()
	m.Reason = st.Reason.String()
	m.ActingUser = st.ActingUser
	m.CreatedAt = st.CreatedAt
	if st.OldStatus != nil {
		old := st.OldStatus.String()
		m.OldStatus = &old
	} else {
		m.OldStatus = nil
	}
	m.Metadata = "{}"
	if len(st.Metadata) > 0 {
		raw, err := json.Marshal(st.Metadata)
		if err != nil {
			return err
		}
		m.Metadata = string(raw)
	}
	return nil
}
