package trip

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripline/backend/internal/domain/shared"
	"github.com/tripline/backend/internal/domain/trip"
)

// StatusService is the status engine: it enforces legal lifecycle
// transitions and provides both the manual and the automatic (date-based)
// transition paths, each leaving an audit trail.
type StatusService struct {
	repo        trip.Repository
	transitions trip.TransitionRepository
	logger      *zap.Logger
}

// NewStatusService creates a new StatusService
func NewStatusService(repo trip.Repository, transitions trip.TransitionRepository, logger *zap.Logger) *StatusService {
	return &StatusService{
		repo:        repo,
		transitions: transitions,
		logger:      logger,
	}
}

// RequestTransition validates and applies a status transition. The trip's
// current status is re-read inside the transaction, so the audit entry
// always reflects the actual prior value; a concurrent transition makes
// the loser fail the legality check rather than corrupt state. An
// admin_override reason bypasses validation but is still audited with the
// real old and new statuses.
func (s *StatusService) RequestTransition(ctx context.Context, tripID uuid.UUID, newStatus trip.Status, actor *uuid.UUID, reason trip.TransitionReason, metadata map[string]interface{}) (*TransitionResponse, error) {
	if !newStatus.IsValid() {
		return nil, shared.NewDomainError("INVALID_STATUS", "Unknown trip status: "+newStatus.String())
	}
	if reason == "" {
		reason = trip.ReasonManual
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_REASON", "Unknown transition reason: "+reason.String())
	}
	force := reason == trip.ReasonAdminOverride

	_, entry, err := s.repo.Transition(ctx, tripID, func(t *trip.Trip) (*trip.StatusTransition, error) {
		old := t.Status
		if err := t.ApplyTransition(newStatus, force); err != nil {
			return nil, err
		}
		return trip.NewStatusTransition(t.ID, &old, newStatus, reason, actor).WithMetadata(metadata), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Trip status transitioned",
		zap.String("trip_id", tripID.String()),
		zap.Stringer("old_status", entry.OldStatus),
		zap.String("new_status", newStatus.String()),
		zap.String("reason", reason.String()),
	)

	return &TransitionResponse{
		Status:     newStatus.String(),
		Transition: ToTransitionRecordResponse(entry),
	}, nil
}

// GetTransitionOptions returns the legal next statuses for a trip
func (s *StatusService) GetTransitionOptions(ctx context.Context, tripID uuid.UUID) (*TransitionOptionsResponse, error) {
	t, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	response := ToTransitionOptionsResponse(t.Status)
	return &response, nil
}

// GetHistory returns the paginated transition history for a trip,
// newest first
func (s *StatusService) GetHistory(ctx context.Context, tripID uuid.UUID, filter shared.Filter) ([]TransitionRecordResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	entries, total, err := s.transitions.FindByTrip(ctx, tripID, filter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]TransitionRecordResponse, len(entries))
	for i := range entries {
		responses[i] = ToTransitionRecordResponse(&entries[i])
	}
	return responses, total, nil
}

// RunDateBasedSweep re-evaluates every trip not in CANCELLED status and
// applies date-based transitions. Each trip's rule target is re-checked
// inside its own transaction, so a concurrent manual transition simply
// turns that trip into a no-op. Per-trip failures are collected and never
// abort the sweep.
func (s *StatusService) RunDateBasedSweep(ctx context.Context, now time.Time) (*trip.SweepResult, error) {
	result := &trip.SweepResult{StartedAt: now}

	candidates, err := s.repo.ListSweepCandidates(ctx)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		if ctx.Err() != nil {
			result.FinishedAt = time.Now()
			return result, ctx.Err()
		}

		candidate := &candidates[i]
		result.ProcessedCount++

		if _, eligible := trip.DateBasedTarget(candidate, now); !eligible {
			continue
		}

		_, entry, err := s.repo.Transition(ctx, candidate.ID, func(t *trip.Trip) (*trip.StatusTransition, error) {
			target, eligible := trip.DateBasedTarget(t, now)
			if !eligible {
				return nil, nil
			}
			old := t.Status
			if err := t.ApplyTransition(target, false); err != nil {
				return nil, err
			}
			return trip.NewStatusTransition(t.ID, &old, target, trip.ReasonDateBased, nil), nil
		})
		if err != nil {
			s.logger.Warn("Date-based transition failed",
				zap.String("trip_id", candidate.ID.String()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, trip.SweepError{
				TripID:  candidate.ID,
				Message: err.Error(),
			})
			continue
		}
		if entry != nil {
			result.Transitions = append(result.Transitions, *entry)
		}
	}

	result.FinishedAt = time.Now()
	return result, nil
}
