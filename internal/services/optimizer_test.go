package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"school-route-service/internal/adapters/mapping"
	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

func TestOptimizeSmallSetDelegatesToProvider(t *testing.T) {
	start := domain.Point{Lat: 0, Lng: 0}
	end := domain.Point{Lat: 0, Lng: 0.04}
	stops := []StopCandidate{
		{ID: "stop-a", Point: domain.Point{Lat: 0, Lng: 0.01}},
		{ID: "stop-b", Point: domain.Point{Lat: 0, Lng: 0.02}},
		{ID: "stop-c", Point: domain.Point{Lat: 0, Lng: 0.03}},
	}

	provider := mapping.NewStubProvider()
	provider.Optimized = &ports.OptimizedRoute{
		WaypointOrder: []int{2, 0, 1},
		Legs: []ports.TravelEstimate{
			{DistanceMeters: 3300, DurationSeconds: 330},
			{DistanceMeters: 2200, DurationSeconds: 220},
			{DistanceMeters: 1100, DurationSeconds: 110},
			{DistanceMeters: 2200, DurationSeconds: 220},
		},
		TotalDistanceMeters:  8800,
		TotalDurationSeconds: 880,
	}

	opt := NewRouteOptimizer(provider)
	res, err := opt.Optimize(context.Background(), start, end, stops)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	wantOrder := []string{"stop-c", "stop-a", "stop-b"}
	if len(res.Order) != len(wantOrder) {
		t.Fatalf("order length %d, want %d", len(res.Order), len(wantOrder))
	}
	for i, id := range wantOrder {
		if res.Order[i] != id {
			t.Errorf("Order[%d] = %s, want %s", i, res.Order[i], id)
		}
	}

	if provider.DirectionsCalls != 1 {
		t.Errorf("DirectionsCalls = %d, want 1", provider.DirectionsCalls)
	}
	if res.TotalDistanceMeters != 8800 || res.TotalDurationSeconds != 880 {
		t.Errorf("totals = (%d, %d), want (8800, 880)",
			res.TotalDistanceMeters, res.TotalDurationSeconds)
	}

	offsets := res.OffsetSeconds()
	if offsets["stop-c"] != 330 || offsets["stop-a"] != 550 || offsets["stop-b"] != 660 {
		t.Errorf("cumulative offsets = %v, want c=330 a=550 b=660", offsets)
	}
}

func TestOptimizeSmallSetProviderFailureIsFatal(t *testing.T) {
	provider := mapping.NewStubProvider()
	provider.Err = errors.New("upstream timeout")

	opt := NewRouteOptimizer(provider)
	stops := []StopCandidate{{ID: "stop-a", Point: domain.Point{Lat: 0, Lng: 0.01}}}
	_, err := opt.Optimize(context.Background(), domain.Point{}, domain.Point{Lat: 0, Lng: 0.02}, stops)
	if err == nil {
		t.Fatal("expected error when provider fails on a small set")
	}
}

func TestOptimizeEmptyCandidates(t *testing.T) {
	start := domain.Point{Lat: 0, Lng: 0}
	end := domain.Point{Lat: 0, Lng: 0.05}

	provider := mapping.NewStubProvider()
	provider.SetEstimate(start, end, 5600, 620)

	opt := NewRouteOptimizer(provider)
	res, err := opt.Optimize(context.Background(), start, end, nil)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(res.Order) != 0 || len(res.Segments) != 0 {
		t.Errorf("direct leg should have no stops: order=%v", res.Order)
	}
	if res.TotalDistanceMeters != 5600 || res.TotalDurationSeconds != 620 {
		t.Errorf("totals = (%d, %d), want (5600, 620)",
			res.TotalDistanceMeters, res.TotalDurationSeconds)
	}
}

func TestOptimizeEmptyCandidatesProviderFailureIsFatal(t *testing.T) {
	provider := mapping.NewStubProvider()
	provider.Err = errors.New("upstream timeout")

	opt := NewRouteOptimizer(provider)
	_, err := opt.Optimize(context.Background(), domain.Point{Lat: 1, Lng: 1}, domain.Point{Lat: 1, Lng: 1.1}, nil)
	if err == nil {
		t.Fatal("expected error when the direct leg cannot be resolved")
	}
}

func TestOptimizeLargeSetSurvivesProviderOutage(t *testing.T) {
	start := domain.Point{Lat: 0, Lng: 0}
	end := domain.Point{Lat: 0.2, Lng: 0}

	// 15 stops along a meridian, presented out of geographic order.
	// Nearest-neighbor from the start must visit them south to north.
	const n = 15
	stops := make([]StopCandidate, 0, n)
	perm := []int{7, 2, 11, 0, 14, 5, 9, 1, 13, 4, 8, 3, 12, 6, 10}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = string(rune('a'+i)) + "-stop"
	}
	for _, i := range perm {
		stops = append(stops, StopCandidate{
			ID:    ids[i],
			Point: domain.Point{Lat: 0.01 * float64(i+1), Lng: 0},
		})
	}

	provider := mapping.NewStubProvider()
	provider.Err = errors.New("provider down")

	opt := NewRouteOptimizer(provider)
	res, err := opt.Optimize(context.Background(), start, end, stops)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	if provider.DirectionsCalls != 0 {
		t.Errorf("large set should not call provider optimization, got %d calls", provider.DirectionsCalls)
	}

	if len(res.Order) != n {
		t.Fatalf("order length %d, want %d", len(res.Order), n)
	}
	seen := make(map[string]bool, n)
	for _, id := range res.Order {
		if seen[id] {
			t.Fatalf("stop %s visited twice", id)
		}
		seen[id] = true
	}
	for i, id := range ids {
		if res.Order[i] != id {
			t.Errorf("Order[%d] = %s, want %s (south to north)", i, res.Order[i], id)
		}
	}

	if res.TotalDistanceMeters <= 0 || res.TotalDurationSeconds <= 0 {
		t.Errorf("fallback totals must be positive, got (%d, %d)",
			res.TotalDistanceMeters, res.TotalDurationSeconds)
	}
	for _, seg := range res.Segments {
		if seg.DistanceMeters <= 0 || seg.DurationSeconds <= 0 {
			t.Errorf("segment to %s has empty estimate: (%d, %d)",
				seg.StopID, seg.DistanceMeters, seg.DurationSeconds)
		}
	}

	// Fallback durations assume 36 km/h, so total duration tracks
	// total distance at roughly a tenth, give or take rounding per hop.
	wantSeconds := float64(res.TotalDistanceMeters) / fallbackSpeedMetersPerSec
	if math.Abs(float64(res.TotalDurationSeconds)-wantSeconds) > float64(n+1) {
		t.Errorf("fallback duration %d does not track distance %d at 10 m/s",
			res.TotalDurationSeconds, res.TotalDistanceMeters)
	}
}

func TestNearestNeighborTieBreaksByInputOrder(t *testing.T) {
	start := domain.Point{Lat: 0, Lng: 0}
	end := domain.Point{Lat: 0, Lng: 0}

	// East and west at identical distance from the start.
	stops := []StopCandidate{
		{ID: "first", Point: domain.Point{Lat: 0, Lng: 0.001}},
		{ID: "second", Point: domain.Point{Lat: 0, Lng: -0.001}},
	}
	// Pad past the provider-delegation threshold with far stops so the
	// local heuristic runs; they sort after the tied pair.
	for i := 0; i < 10; i++ {
		stops = append(stops, StopCandidate{
			ID:    string(rune('a'+i)) + "-far",
			Point: domain.Point{Lat: 0.1 + 0.01*float64(i), Lng: 0},
		})
	}

	provider := mapping.NewStubProvider()
	provider.Err = errors.New("provider down")

	opt := NewRouteOptimizer(provider)
	res, err := opt.Optimize(context.Background(), start, end, stops)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.Order[0] != "first" {
		t.Errorf("Order[0] = %s, tie should go to the earlier input", res.Order[0])
	}

	// Determinism: the same input produces the same order every time.
	again, err := opt.Optimize(context.Background(), start, end, stops)
	if err != nil {
		t.Fatalf("Optimize (repeat): %v", err)
	}
	for i := range res.Order {
		if res.Order[i] != again.Order[i] {
			t.Fatalf("order differs across runs at %d: %s vs %s", i, res.Order[i], again.Order[i])
		}
	}
}

func TestOptimizeRejectsBadProviderOrder(t *testing.T) {
	provider := mapping.NewStubProvider()
	provider.Optimized = &ports.OptimizedRoute{
		WaypointOrder:        []int{0, 5},
		TotalDistanceMeters:  100,
		TotalDurationSeconds: 10,
	}

	opt := NewRouteOptimizer(provider)
	stops := []StopCandidate{
		{ID: "stop-a", Point: domain.Point{Lat: 0, Lng: 0.01}},
		{ID: "stop-b", Point: domain.Point{Lat: 0, Lng: 0.02}},
	}
	_, err := opt.Optimize(context.Background(), domain.Point{}, domain.Point{Lat: 0, Lng: 0.03}, stops)
	if err == nil {
		t.Fatal("expected error for out-of-range waypoint index")
	}
}
