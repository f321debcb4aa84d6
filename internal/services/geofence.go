package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

// EvaluationResult lists the stop ids that transitioned during one
// geofence pass.
type EvaluationResult struct {
	Approaching []string
	Arrived     []string
}

// Empty reports whether the pass produced no transitions.
func (r EvaluationResult) Empty() bool {
	return len(r.Approaching) == 0 && len(r.Arrived) == 0
}

// NextStopDistance is the straight-line distance to the next unresolved
// stop on a route.
type NextStopDistance struct {
	StopID         string
	DistanceMeters float64
}

// GeofenceMonitor evaluates a moving vehicle's position against every
// unresolved stop's geofence and drives the per-stop status machine.
//
// Containment deliberately uses straight-line (haversine) distance, not
// road distance: a vehicle 50 m from a stop as the crow flies is at the
// stop for arrival purposes. Evaluation makes no provider calls and is
// idempotent, so it is safe to run on every location ping.
type GeofenceMonitor struct {
	repo  ports.RouteRepository
	sink  ports.EventSink
	locks *InstanceLocks
	now   func() time.Time
}

func NewGeofenceMonitor(repo ports.RouteRepository, sink ports.EventSink, locks *InstanceLocks) *GeofenceMonitor {
	return &GeofenceMonitor{
		repo:  repo,
		sink:  sink,
		locks: locks,
		now:   time.Now,
	}
}

// UpdatePosition applies a driver location ping and evaluates geofences
// in one serialized step. Pings older than the last applied position are
// discarded. The position and any stop transitions are flushed together
// in a single repository save.
func (m *GeofenceMonitor) UpdatePosition(
	ctx context.Context,
	instanceID string,
	position domain.Point,
	recordedAt time.Time,
) (EvaluationResult, error) {
	lock := m.locks.get(instanceID)
	lock.Lock()
	defer lock.Unlock()

	route, err := m.repo.GetInstance(ctx, instanceID)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("update position: route %s: %w", instanceID, err)
	}

	if !route.SetPosition(position, recordedAt) {
		// Stale ping: the most recent position wins.
		return EvaluationResult{}, nil
	}

	result, events := evaluateStops(route, m.now())

	if err := m.repo.SaveInstance(ctx, route); err != nil {
		return EvaluationResult{}, fmt.Errorf("update position: flush route %s: %w", instanceID, err)
	}

	m.publish(events)
	return result, nil
}

// Evaluate runs one geofence pass over the route. Transitions are
// flushed as a single batch, and only when at least one occurred;
// a failed flush surfaces as a hard error with no events published.
func (m *GeofenceMonitor) Evaluate(ctx context.Context, route *domain.RouteInstance) (EvaluationResult, error) {
	lock := m.locks.get(route.ID)
	lock.Lock()
	defer lock.Unlock()

	result, events := evaluateStops(route, m.now())
	if result.Empty() {
		return result, nil
	}

	if err := m.repo.SaveInstance(ctx, route); err != nil {
		return EvaluationResult{}, fmt.Errorf("evaluate route %s: flush transitions: %w", route.ID, err)
	}

	m.publish(events)
	return result, nil
}

// ProcessActiveRoutes evaluates each route independently and returns the
// results for routes that produced at least one transition. Routes do
// not interact; a failure on one is logged and does not stop the rest.
func (m *GeofenceMonitor) ProcessActiveRoutes(
	ctx context.Context,
	routes []*domain.RouteInstance,
) map[string]EvaluationResult {
	results := make(map[string]EvaluationResult)
	for _, route := range routes {
		res, err := m.Evaluate(ctx, route)
		if err != nil {
			log.Printf("op=geofence.sweep route=%s err=%v", route.ID, err)
			continue
		}
		if !res.Empty() {
			results[route.ID] = res
		}
	}
	return results
}

// SweepActiveRoutes loads every in-progress route and evaluates it.
// Intended for a periodic ticker as a safety net behind per-ping
// evaluation.
func (m *GeofenceMonitor) SweepActiveRoutes(ctx context.Context) (map[string]EvaluationResult, error) {
	routes, err := m.repo.ListActiveInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep active routes: %w", err)
	}
	return m.ProcessActiveRoutes(ctx, routes), nil
}

// DistanceToNextStop returns the distance to the lowest-order unresolved
// stop, or nil when the route has no position fix or nothing left to
// visit.
func (m *GeofenceMonitor) DistanceToNextStop(route *domain.RouteInstance) *NextStopDistance {
	if route.CurrentPosition == nil || route.CurrentPosition.IsZero() {
		return nil
	}
	next := route.NextUnresolvedStop()
	if next == nil {
		return nil
	}
	return &NextStopDistance{
		StopID:         next.ID,
		DistanceMeters: domain.DistanceMeters(*route.CurrentPosition, next.Point),
	}
}

func (m *GeofenceMonitor) publish(events []ports.StopEvent) {
	if m.sink == nil {
		return
	}
	for _, ev := range events {
		m.sink.Publish(ev)
	}
}

// evaluateStops computes and applies stop transitions for the route's
// current position. Stops are independent: each transition depends only
// on that stop's own distance, so evaluation order cannot change the
// outcome.
func evaluateStops(route *domain.RouteInstance, now time.Time) (EvaluationResult, []ports.StopEvent) {
	var result EvaluationResult
	var events []ports.StopEvent

	if !route.CanEvaluate() {
		return result, nil
	}
	position := *route.CurrentPosition

	for _, stop := range route.Stops {
		if !stop.IsUnresolved() {
			continue
		}

		d := domain.DistanceMeters(position, stop.Point)
		switch {
		case d <= stop.GeofenceRadiusMeters:
			if err := stop.TransitionTo(domain.StopStatusArrived, now); err != nil {
				continue
			}
			result.Arrived = append(result.Arrived, stop.ID)
			events = append(events, ports.StopEvent{
				Type:            ports.StopArrived,
				RouteInstanceID: route.ID,
				StopID:          stop.ID,
				StudentID:       stop.StudentID,
				DistanceMeters:  d,
				At:              now,
			})

		case d <= 2*stop.GeofenceRadiusMeters && stop.Status == domain.StopStatusPending:
			if err := stop.TransitionTo(domain.StopStatusApproaching, now); err != nil {
				continue
			}
			result.Approaching = append(result.Approaching, stop.ID)
			events = append(events, ports.StopEvent{
				Type:            ports.StopApproaching,
				RouteInstanceID: route.ID,
				StopID:          stop.ID,
				StudentID:       stop.StudentID,
				DistanceMeters:  d,
				At:              now,
			})
		}
	}

	return result, events
}
