package trip

// Status represents the lifecycle status of a trip
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPlanned   Status = "PLANNED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPlanned, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// COMPLETED and CANCELLED are not absolute terminal states: completed trips
// can be reactivated and cancelled trips restored.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft:
		return target == StatusPlanned || target == StatusCancelled
	case StatusPlanned:
		return target == StatusActive || target == StatusDraft || target == StatusCancelled
	case StatusActive:
		return target == StatusCompleted || target == StatusCancelled
	case StatusCompleted:
		return target == StatusActive
	case StatusCancelled:
		return target == StatusDraft || target == StatusPlanned
	}
	return false
}

// TransitionOptions returns the legal next statuses from the current status.
// Pure lookup used for UI enablement; no side effects.
func (s Status) TransitionOptions() []Status {
	switch s {
	case StatusDraft:
		return []Status{StatusPlanned, StatusCancelled}
	case StatusPlanned:
		return []Status{StatusActive, StatusDraft, StatusCancelled}
	case StatusActive:
		return []Status{StatusCompleted, StatusCancelled}
	case StatusCompleted:
		return []Status{StatusActive}
	case StatusCancelled:
		return []Status{StatusDraft, StatusPlanned}
	}
	return nil
}

// TransitionReason categorizes what caused a status transition
type TransitionReason string

const (
	ReasonTripCreated        TransitionReason = "trip_created"
	ReasonItineraryGenerated TransitionReason = "itinerary_generated"
	ReasonDateBased          TransitionReason = "date_based"
	ReasonManual             TransitionReason = "manual"
	ReasonSystem             TransitionReason = "system"

	// ReasonAdminOverride bypasses the legality check. The transition is
	// still audited with the real old and new statuses.
	ReasonAdminOverride TransitionReason = "admin_override"
)

// IsValid checks if the reason is a known TransitionReason
func (r TransitionReason) IsValid() bool {
	switch r {
	case ReasonTripCreated, ReasonItineraryGenerated, ReasonDateBased,
		ReasonManual, ReasonSystem, ReasonAdminOverride:
		return true
	}
	return false
}

// String returns the string representation of TransitionReason
func (r TransitionReason) String() string {
	return string(r)
}
