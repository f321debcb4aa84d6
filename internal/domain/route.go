package domain

import (
	"sort"
	"time"
)

// RouteLeg identifies which daily run a route serves.
type RouteLeg string

const (
	LegMorning   RouteLeg = "morning"
	LegAfternoon RouteLeg = "afternoon"
)

// RouteStatus is the lifecycle state of one calendar-day route execution.
type RouteStatus string

const (
	RouteStatusScheduled  RouteStatus = "scheduled"
	RouteStatusInProgress RouteStatus = "in_progress"
	RouteStatusCompleted  RouteStatus = "completed"
	RouteStatusCancelled  RouteStatus = "cancelled"
)

// TemplateStop is the prototype for an instance stop: which student is
// served at which address. Instances clone these, they are never shared.
type TemplateStop struct {
	StudentID            string
	Point                Point
	GeofenceRadiusMeters float64
}

// RouteTemplate is the static, reusable definition of a recurring run.
type RouteTemplate struct {
	ID                       string
	Name                     string
	Leg                      RouteLeg
	StartPoint               Point
	EndPoint                 Point
	Stops                    []TemplateStop
	EstimatedDistanceMeters  int
	EstimatedDurationSeconds int
}

// RouteInstance is one calendar-day execution of a template. It
// exclusively owns its stops; the template is referenced, not owned.
type RouteInstance struct {
	ID                   string
	TemplateID           string
	Leg                  RouteLeg
	Date                 time.Time
	Status               RouteStatus
	CurrentPosition      *Point
	PositionRecordedAt   *time.Time
	Stops                []*Stop
	TotalDistanceMeters  int
	TotalDurationSeconds int
	StartedAt            *time.Time
	CompletedAt          *time.Time
}

// CanEvaluate reports whether geofence evaluation is meaningful: the
// route must be underway with a real GPS fix ((0,0) counts as no fix).
func (r *RouteInstance) CanEvaluate() bool {
	return r.Status == RouteStatusInProgress &&
		r.CurrentPosition != nil &&
		!r.CurrentPosition.IsZero()
}

// StopByID returns the stop with the given id, or nil.
func (r *RouteInstance) StopByID(id string) *Stop {
	for _, s := range r.Stops {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// StopForStudent returns the student's active stop on this instance, or
// nil. At most one non-skipped/non-absent stop exists per student.
func (r *RouteInstance) StopForStudent(studentID string) *Stop {
	for _, s := range r.Stops {
		if s.StudentID == studentID && s.Status != StopStatusSkipped && s.Status != StopStatusAbsent {
			return s
		}
	}
	return nil
}

// ActiveStops returns the stops still taking part in routing, ordered by
// their position index.
func (r *RouteInstance) ActiveStops() []*Stop {
	active := make([]*Stop, 0, len(r.Stops))
	for _, s := range r.Stops {
		if s.IsActive() {
			active = append(active, s)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Order < active[j].Order })
	return active
}

// NextUnresolvedStop returns the lowest-order stop the vehicle has not yet
// reached, or nil when every stop is resolved.
func (r *RouteInstance) NextUnresolvedStop() *Stop {
	var next *Stop
	for _, s := range r.Stops {
		if !s.IsUnresolved() {
			continue
		}
		if next == nil || s.Order < next.Order {
			next = s
		}
	}
	return next
}

// SetPosition applies a location ping. Pings older than the last applied
// one are discarded so a late ping cannot roll the position back.
func (r *RouteInstance) SetPosition(p Point, recordedAt time.Time) bool {
	if r.PositionRecordedAt != nil && recordedAt.Before(*r.PositionRecordedAt) {
		return false
	}
	pos := p
	at := recordedAt
	r.CurrentPosition = &pos
	r.PositionRecordedAt = &at
	return true
}

// Start moves a scheduled instance into in_progress.
func (r *RouteInstance) Start(now time.Time) bool {
	if r.Status != RouteStatusScheduled {
		return false
	}
	r.Status = RouteStatusInProgress
	t := now
	r.StartedAt = &t
	return true
}

// Complete finishes an in-progress instance.
func (r *RouteInstance) Complete(now time.Time) bool {
	if r.Status != RouteStatusInProgress {
		return false
	}
	r.Status = RouteStatusCompleted
	t := now
	r.CompletedAt = &t
	return true
}

// NewInstanceFromTemplate clones the template's stops into a scheduled
// instance for one date. Stop ids are minted by the caller via newStopID
// so the domain stays free of id-generation concerns.
func NewInstanceFromTemplate(id string, tpl *RouteTemplate, date time.Time, newStopID func() string) *RouteInstance {
	inst := &RouteInstance{
		ID:                   id,
		TemplateID:           tpl.ID,
		Leg:                  tpl.Leg,
		Date:                 date,
		Status:               RouteStatusScheduled,
		Stops:                make([]*Stop, 0, len(tpl.Stops)),
		TotalDistanceMeters:  tpl.EstimatedDistanceMeters,
		TotalDurationSeconds: tpl.EstimatedDurationSeconds,
	}
	for i, ts := range tpl.Stops {
		stop := NewStop(newStopID(), ts.StudentID, ts.Point, i)
		if ts.GeofenceRadiusMeters > 0 {
			stop.GeofenceRadiusMeters = ts.GeofenceRadiusMeters
		}
		inst.Stops = append(inst.Stops, stop)
	}
	return inst
}
