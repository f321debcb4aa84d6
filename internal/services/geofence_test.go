package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"school-route-service/internal/adapters/repositories"
	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

type captureSink struct {
	events []ports.StopEvent
}

func (c *captureSink) Publish(ev ports.StopEvent) {
	c.events = append(c.events, ev)
}

// inProgressRoute builds a running instance with the given stops and a
// position fix at pos.
func inProgressRoute(id string, pos domain.Point, stops ...*domain.Stop) *domain.RouteInstance {
	now := time.Now()
	recorded := now.Add(-time.Second)
	return &domain.RouteInstance{
		ID:                 id,
		TemplateID:         "tpl-1",
		Leg:                domain.LegMorning,
		Date:               now,
		Status:             domain.RouteStatusInProgress,
		CurrentPosition:    &pos,
		PositionRecordedAt: &recorded,
		Stops:              stops,
		StartedAt:          &now,
	}
}

// metersNorth offsets a point north by roughly the given distance.
func metersNorth(p domain.Point, meters float64) domain.Point {
	return domain.Point{Lat: p.Lat + meters/111195.0, Lng: p.Lng}
}

func newTestMonitor() (*GeofenceMonitor, *repositories.MemoryStore, *captureSink) {
	store := repositories.NewMemoryStore()
	sink := &captureSink{}
	return NewGeofenceMonitor(store, sink, NewInstanceLocks()), store, sink
}

func TestEvaluateRadiusBands(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}

	t.Run("within radius arrives", func(t *testing.T) {
		monitor, _, _ := newTestMonitor()
		stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 30), 0)
		route := inProgressRoute("inst-1", vehicle, stop)

		res, err := monitor.Evaluate(context.Background(), route)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(res.Arrived) != 1 || res.Arrived[0] != "stop-1" {
			t.Fatalf("Arrived = %v, want [stop-1]", res.Arrived)
		}
		if stop.Status != domain.StopStatusArrived || stop.ArrivedAt == nil {
			t.Errorf("stop status=%s arrivedAt=%v", stop.Status, stop.ArrivedAt)
		}
	})

	t.Run("exactly on the boundary arrives", func(t *testing.T) {
		monitor, _, _ := newTestMonitor()
		stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 40), 0)
		// Set the radius to the exact computed distance so d <= r holds
		// as an equality.
		stop.GeofenceRadiusMeters = domain.DistanceMeters(vehicle, stop.Point)
		route := inProgressRoute("inst-1", vehicle, stop)

		res, err := monitor.Evaluate(context.Background(), route)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(res.Arrived) != 1 {
			t.Fatalf("boundary distance should arrive, got %+v", res)
		}
	})

	t.Run("inside double radius approaches", func(t *testing.T) {
		monitor, _, _ := newTestMonitor()
		stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 75), 0)
		route := inProgressRoute("inst-1", vehicle, stop)

		res, err := monitor.Evaluate(context.Background(), route)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(res.Approaching) != 1 || res.Approaching[0] != "stop-1" {
			t.Fatalf("Approaching = %v, want [stop-1]", res.Approaching)
		}
		if stop.Status != domain.StopStatusApproaching {
			t.Errorf("stop status = %s, want approaching", stop.Status)
		}
	})

	t.Run("exactly at double radius approaches", func(t *testing.T) {
		monitor, _, _ := newTestMonitor()
		stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 80), 0)
		stop.GeofenceRadiusMeters = domain.DistanceMeters(vehicle, stop.Point) / 2
		route := inProgressRoute("inst-1", vehicle, stop)

		res, err := monitor.Evaluate(context.Background(), route)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if len(res.Approaching) != 1 {
			t.Fatalf("double-radius boundary should approach, got %+v", res)
		}
	})

	t.Run("beyond double radius no transition", func(t *testing.T) {
		monitor, _, _ := newTestMonitor()
		stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 101), 0)
		route := inProgressRoute("inst-1", vehicle, stop)

		res, err := monitor.Evaluate(context.Background(), route)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !res.Empty() {
			t.Fatalf("no transition expected at 101 m with radius 50, got %+v", res)
		}
		if stop.Status != domain.StopStatusPending {
			t.Errorf("stop status = %s, want pending", stop.Status)
		}
	})
}

func TestEvaluateIdempotent(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, store, sink := newTestMonitor()

	stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 20), 0)
	route := inProgressRoute("inst-1", vehicle, stop)

	first, err := monitor.Evaluate(context.Background(), route)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(first.Arrived) != 1 {
		t.Fatalf("first pass should arrive, got %+v", first)
	}

	savesAfterFirst := store.SaveCalls
	eventsAfterFirst := len(sink.events)

	second, err := monitor.Evaluate(context.Background(), route)
	if err != nil {
		t.Fatalf("Evaluate (repeat): %v", err)
	}
	if !second.Empty() {
		t.Fatalf("repeat pass should be a no-op, got %+v", second)
	}
	if store.SaveCalls != savesAfterFirst {
		t.Error("no-op pass should not flush the route")
	}
	if len(sink.events) != eventsAfterFirst {
		t.Error("no-op pass should not publish events")
	}
}

func TestEvaluateArrivedIsTerminal(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, _, _ := newTestMonitor()

	stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 20), 0)
	route := inProgressRoute("inst-1", vehicle, stop)

	if _, err := monitor.Evaluate(context.Background(), route); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if stop.Status != domain.StopStatusArrived {
		t.Fatalf("stop status = %s, want arrived", stop.Status)
	}

	// Vehicle drives away; the stop must stay arrived.
	far := metersNorth(vehicle, 5000)
	route.SetPosition(far, time.Now())
	res, err := monitor.Evaluate(context.Background(), route)
	if err != nil {
		t.Fatalf("Evaluate (moved away): %v", err)
	}
	if !res.Empty() {
		t.Fatalf("arrived stop produced transitions: %+v", res)
	}
	if stop.Status != domain.StopStatusArrived {
		t.Errorf("stop regressed to %s", stop.Status)
	}
}

func TestEvaluateRouteScenario(t *testing.T) {
	// Route from (0,0) to (0,2) with stops at (0,0.5) and (0,1.5), both
	// radius 100 m. Vehicle sits exactly on the first stop.
	start := domain.Point{Lat: 0, Lng: 0.5}
	stop1 := domain.NewStop("stop-1", "student-1", domain.Point{Lat: 0, Lng: 0.5}, 0)
	stop1.GeofenceRadiusMeters = 100
	stop2 := domain.NewStop("stop-2", "student-2", domain.Point{Lat: 0, Lng: 1.5}, 1)
	stop2.GeofenceRadiusMeters = 100

	monitor, _, sink := newTestMonitor()
	route := inProgressRoute("inst-1", start, stop1, stop2)

	res, err := monitor.Evaluate(context.Background(), route)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Arrived) != 1 || res.Arrived[0] != "stop-1" {
		t.Errorf("Arrived = %v, want [stop-1]", res.Arrived)
	}
	if len(res.Approaching) != 0 {
		t.Errorf("Approaching = %v, want none (stop-2 is ~111 km away)", res.Approaching)
	}
	if stop2.Status != domain.StopStatusPending {
		t.Errorf("stop-2 status = %s, want pending", stop2.Status)
	}
	if len(sink.events) != 1 || sink.events[0].Type != ports.StopArrived {
		t.Errorf("events = %+v, want one stop_arrived", sink.events)
	}
}

func TestEvaluateSkipsWithoutFix(t *testing.T) {
	monitor, store, sink := newTestMonitor()

	stop := domain.NewStop("stop-1", "student-1", domain.Point{Lat: 0, Lng: 0}, 0)
	route := inProgressRoute("inst-1", domain.Point{Lat: 0, Lng: 0}, stop)

	// (0,0) means no GPS fix even though the stop sits right there.
	res, err := monitor.Evaluate(context.Background(), route)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Empty() {
		t.Fatalf("no-fix route must not transition, got %+v", res)
	}
	if store.SaveCalls != 0 || len(sink.events) != 0 {
		t.Error("no-fix evaluation must not save or publish")
	}
}

func TestEvaluateSkipsNonRunningRoute(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, _, _ := newTestMonitor()

	stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 10), 0)
	route := inProgressRoute("inst-1", vehicle, stop)
	route.Status = domain.RouteStatusScheduled

	res, err := monitor.Evaluate(context.Background(), route)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Empty() {
		t.Fatalf("scheduled route must not transition, got %+v", res)
	}
}

func TestEvaluateFlushFailureIsHardError(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, store, sink := newTestMonitor()
	store.SaveInstanceErr = errors.New("connection reset")

	stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 10), 0)
	route := inProgressRoute("inst-1", vehicle, stop)

	_, err := monitor.Evaluate(context.Background(), route)
	if err == nil {
		t.Fatal("expected error when the flush fails")
	}
	if len(sink.events) != 0 {
		t.Errorf("no events may be published on a failed flush, got %d", len(sink.events))
	}
}

func TestProcessActiveRoutesReportsOnlyTransitions(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, _, _ := newTestMonitor()

	near := domain.NewStop("stop-near", "student-1", metersNorth(vehicle, 10), 0)
	busy := inProgressRoute("inst-busy", vehicle, near)

	far := domain.NewStop("stop-far", "student-2", metersNorth(vehicle, 9000), 0)
	quiet := inProgressRoute("inst-quiet", vehicle, far)

	results := monitor.ProcessActiveRoutes(context.Background(), []*domain.RouteInstance{busy, quiet})
	if len(results) != 1 {
		t.Fatalf("results = %v, want only the route with transitions", results)
	}
	if res, ok := results["inst-busy"]; !ok || len(res.Arrived) != 1 {
		t.Errorf("results[inst-busy] = %+v, want one arrival", res)
	}
}

func TestUpdatePositionEvaluatesAndFlushes(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, store, sink := newTestMonitor()

	stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 10), 0)
	route := inProgressRoute("inst-1", metersNorth(vehicle, 5000), stop)
	if err := store.SaveInstance(context.Background(), route); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := monitor.UpdatePosition(context.Background(), "inst-1", vehicle, time.Now())
	if err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}
	if len(res.Arrived) != 1 {
		t.Fatalf("Arrived = %v, want [stop-1]", res.Arrived)
	}
	if route.CurrentPosition == nil || *route.CurrentPosition != vehicle {
		t.Errorf("position not applied: %v", route.CurrentPosition)
	}
	if len(sink.events) != 1 {
		t.Errorf("events = %d, want 1", len(sink.events))
	}
}

func TestUpdatePositionDiscardsStalePing(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, store, _ := newTestMonitor()

	stop := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 10), 0)
	route := inProgressRoute("inst-1", metersNorth(vehicle, 5000), stop)
	latest := time.Now()
	route.PositionRecordedAt = &latest
	if err := store.SaveInstance(context.Background(), route); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := *route.CurrentPosition

	res, err := monitor.UpdatePosition(context.Background(), "inst-1", vehicle, latest.Add(-time.Minute))
	if err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}
	if !res.Empty() {
		t.Fatalf("stale ping must not evaluate, got %+v", res)
	}
	if *route.CurrentPosition != before {
		t.Errorf("stale ping moved the position to %v", route.CurrentPosition)
	}
}

func TestUpdatePositionUnknownRoute(t *testing.T) {
	monitor, _, _ := newTestMonitor()
	_, err := monitor.UpdatePosition(context.Background(), "missing", domain.Point{Lat: 1, Lng: 1}, time.Now())
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDistanceToNextStop(t *testing.T) {
	vehicle := domain.Point{Lat: 48.0, Lng: 11.0}
	monitor, _, _ := newTestMonitor()

	first := domain.NewStop("stop-1", "student-1", metersNorth(vehicle, 200), 0)
	second := domain.NewStop("stop-2", "student-2", metersNorth(vehicle, 400), 1)
	route := inProgressRoute("inst-1", vehicle, first, second)

	next := monitor.DistanceToNextStop(route)
	if next == nil || next.StopID != "stop-1" {
		t.Fatalf("next = %+v, want stop-1", next)
	}
	if next.DistanceMeters < 150 || next.DistanceMeters > 250 {
		t.Errorf("distance = %v, want roughly 200", next.DistanceMeters)
	}

	first.Status = domain.StopStatusArrived
	next = monitor.DistanceToNextStop(route)
	if next == nil || next.StopID != "stop-2" {
		t.Fatalf("after arrival next = %+v, want stop-2", next)
	}

	second.Status = domain.StopStatusArrived
	if monitor.DistanceToNextStop(route) != nil {
		t.Error("all stops resolved, next should be nil")
	}
}
