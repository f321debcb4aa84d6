package domain

import (
	"fmt"
	"time"
)

// Default geofence radius applied to stops that do not override it.
const DefaultGeofenceRadiusMeters = 50.0

// StopStatus is the lifecycle state of a single pickup/drop-off.
type StopStatus string

const (
	StopStatusPending     StopStatus = "pending"
	StopStatusApproaching StopStatus = "approaching"
	StopStatusArrived     StopStatus = "arrived"
	StopStatusPickedUp    StopStatus = "picked_up"
	StopStatusDroppedOff  StopStatus = "dropped_off"
	StopStatusSkipped     StopStatus = "skipped"
	StopStatusAbsent      StopStatus = "absent"
)

// stopTransitions defines the allowed status changes. The geofence monitor
// only drives pending->approaching and (pending|approaching)->arrived;
// pickup/dropoff/skip come from driver actions and absent from the
// recalculator. Terminal states have no exits.
var stopTransitions = map[StopStatus][]StopStatus{
	StopStatusPending:     {StopStatusApproaching, StopStatusArrived, StopStatusSkipped, StopStatusAbsent},
	StopStatusApproaching: {StopStatusArrived, StopStatusSkipped},
	StopStatusArrived:     {StopStatusPickedUp, StopStatusDroppedOff},
	StopStatusPickedUp:    {},
	StopStatusDroppedOff:  {},
	StopStatusSkipped:     {},
	StopStatusAbsent:      {},
}

// Stop is one student's pickup/drop-off within a route instance.
// Order values are contiguous and zero-based within an instance.
type Stop struct {
	ID                     string
	StudentID              string
	Point                  Point
	Order                  int
	EstimatedOffsetSeconds int
	GeofenceRadiusMeters   float64
	Status                 StopStatus
	Note                   string
	ArrivedAt              *time.Time
	PickedUpAt             *time.Time
	DroppedOffAt           *time.Time
}

// NewStop creates a pending stop with the default geofence radius.
func NewStop(id, studentID string, point Point, order int) *Stop {
	return &Stop{
		ID:                   id,
		StudentID:            studentID,
		Point:                point,
		Order:                order,
		GeofenceRadiusMeters: DefaultGeofenceRadiusMeters,
		Status:               StopStatusPending,
	}
}

// CanTransitionTo checks whether moving to next is a valid status change.
func (s *Stop) CanTransitionTo(next StopStatus) bool {
	for _, allowed := range stopTransitions[s.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the stop to next, stamping phase timestamps.
func (s *Stop) TransitionTo(next StopStatus, now time.Time) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("stop %s: invalid transition %s -> %s", s.ID, s.Status, next)
	}

	s.Status = next
	switch next {
	case StopStatusArrived:
		t := now
		s.ArrivedAt = &t
	case StopStatusPickedUp:
		t := now
		s.PickedUpAt = &t
	case StopStatusDroppedOff:
		t := now
		s.DroppedOffAt = &t
	}
	return nil
}

// MarkAbsent flags the stop absent with a note. Re-marking an already
// absent stop is a no-op so absence processing stays idempotent.
func (s *Stop) MarkAbsent(note string) bool {
	if s.Status == StopStatusAbsent {
		return false
	}
	s.Status = StopStatusAbsent
	s.Note = note
	return true
}

// IsActive reports whether the stop still takes part in routing
// (not skipped, not absent, not completed).
func (s *Stop) IsActive() bool {
	switch s.Status {
	case StopStatusPending, StopStatusApproaching, StopStatusArrived:
		return true
	}
	return false
}

// IsUnresolved reports whether the geofence monitor may still act on the
// stop. Arrived and later states are terminal for evaluation purposes.
func (s *Stop) IsUnresolved() bool {
	return s.Status == StopStatusPending || s.Status == StopStatusApproaching
}
