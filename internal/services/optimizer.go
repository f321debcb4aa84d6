package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

const (
	// Stop counts up to this delegate to the provider's own optimizer;
	// larger sets run the local nearest-neighbor heuristic.
	providerOptimizeMaxStops = 10

	// Assumed average speed for fallback duration estimates: 36 km/h.
	fallbackSpeedMetersPerSec = 10.0
)

// StopCandidate is one stop to be placed somewhere in the route order.
type StopCandidate struct {
	ID    string
	Point domain.Point
}

// RouteSegment is one hop of the computed path, keyed by the stop the
// hop arrives at. The closing hop to the route end point carries no stop
// and is folded into the totals only.
type RouteSegment struct {
	StopID          string
	From            domain.Point
	To              domain.Point
	DistanceMeters  int
	DurationSeconds int
}

// OptimizeResult is the ordered path through all candidates.
// Order[i] is the stop visited at step i (zero-based).
type OptimizeResult struct {
	Order                []string
	Segments             []RouteSegment
	TotalDistanceMeters  int
	TotalDurationSeconds int
}

// OffsetSeconds returns cumulative seconds-from-start per stop id,
// derived from the segment durations in traversal order.
func (r *OptimizeResult) OffsetSeconds() map[string]int {
	offsets := make(map[string]int, len(r.Segments))
	elapsed := 0
	for _, seg := range r.Segments {
		elapsed += seg.DurationSeconds
		offsets[seg.StopID] = elapsed
	}
	return offsets
}

// RouteOptimizer orders stops between fixed start and end points,
// minimizing total travel.
//
// Small candidate sets are delegated to the mapping provider's
// waypoint-optimizing directions call; provider failure there is fatal
// because exact optimization must not silently degrade. Larger sets run
// a greedy nearest-neighbor heuristic that tolerates per-hop provider
// failures by estimating from the haversine distance instead.
type RouteOptimizer struct {
	provider ports.MapProvider
}

func NewRouteOptimizer(provider ports.MapProvider) *RouteOptimizer {
	return &RouteOptimizer{provider: provider}
}

// Optimize computes a visiting order and per-hop metrics for the given
// candidates. An empty candidate set is valid and yields the direct
// start->end leg.
func (o *RouteOptimizer) Optimize(
	ctx context.Context,
	start domain.Point,
	end domain.Point,
	stops []StopCandidate,
) (*OptimizeResult, error) {
	if len(stops) == 0 {
		return o.directLeg(ctx, start, end)
	}

	if len(stops) <= providerOptimizeMaxStops {
		return o.optimizeViaProvider(ctx, start, end, stops)
	}

	return o.nearestNeighbor(ctx, start, end, stops), nil
}

// directLeg resolves the start->end hop with no intermediate stops.
func (o *RouteOptimizer) directLeg(ctx context.Context, start, end domain.Point) (*OptimizeResult, error) {
	est, ok, err := o.provider.DistanceMatrix(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("optimize: direct leg: %w", err)
	}
	if !ok {
		return nil, errors.New("optimize: direct leg: no route between start and end")
	}

	return &OptimizeResult{
		Order:                []string{},
		Segments:             []RouteSegment{},
		TotalDistanceMeters:  est.DistanceMeters,
		TotalDurationSeconds: est.DurationSeconds,
	}, nil
}

// optimizeViaProvider delegates ordering to the mapping provider.
// No local fallback: the caller must not mutate state on error.
func (o *RouteOptimizer) optimizeViaProvider(
	ctx context.Context,
	start domain.Point,
	end domain.Point,
	stops []StopCandidate,
) (*OptimizeResult, error) {
	waypoints := make([]domain.Point, len(stops))
	for i, s := range stops {
		waypoints[i] = s.Point
	}

	route, ok, err := o.provider.OptimizedDirections(ctx, start, end, waypoints)
	if err != nil {
		return nil, fmt.Errorf("optimize: provider directions: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("optimize: provider found no route through %d stops", len(stops))
	}
	if len(route.WaypointOrder) != len(stops) {
		return nil, fmt.Errorf(
			"optimize: provider returned %d waypoints, want %d",
			len(route.WaypointOrder), len(stops),
		)
	}

	result := &OptimizeResult{
		Order:                make([]string, 0, len(stops)),
		Segments:             make([]RouteSegment, 0, len(stops)),
		TotalDistanceMeters:  route.TotalDistanceMeters,
		TotalDurationSeconds: route.TotalDurationSeconds,
	}

	current := start
	for i, wpIdx := range route.WaypointOrder {
		if wpIdx < 0 || wpIdx >= len(stops) {
			return nil, fmt.Errorf("optimize: provider waypoint index %d out of range", wpIdx)
		}
		stop := stops[wpIdx]

		seg := RouteSegment{StopID: stop.ID, From: current, To: stop.Point}
		if i < len(route.Legs) {
			seg.DistanceMeters = route.Legs[i].DistanceMeters
			seg.DurationSeconds = route.Legs[i].DurationSeconds
		} else {
			// Provider reported no per-leg detail. Estimate the hop so
			// cumulative ETAs stay usable.
			seg.DistanceMeters, seg.DurationSeconds = haversineEstimate(current, stop.Point)
		}

		result.Order = append(result.Order, stop.ID)
		result.Segments = append(result.Segments, seg)
		current = stop.Point
	}

	return result, nil
}

// nearestNeighbor greedily visits the closest unvisited stop by
// haversine distance. Each hop's exact metrics come from the provider
// when available; a failed hop degrades to a haversine estimate rather
// than failing the whole optimization.
//
// Comparisons use < with the first-encountered minimum winning, so ties
// break by input order and the output is deterministic.
func (o *RouteOptimizer) nearestNeighbor(
	ctx context.Context,
	start domain.Point,
	end domain.Point,
	stops []StopCandidate,
) *OptimizeResult {
	remaining := make([]int, len(stops))
	for i := range stops {
		remaining[i] = i
	}

	result := &OptimizeResult{
		Order:    make([]string, 0, len(stops)),
		Segments: make([]RouteSegment, 0, len(stops)),
	}

	current := start
	for len(remaining) > 0 {
		bestPos := 0
		bestDist := math.MaxFloat64
		for pos, idx := range remaining {
			d := domain.DistanceMeters(current, stops[idx].Point)
			if d < bestDist {
				bestDist = d
				bestPos = pos
			}
		}

		next := stops[remaining[bestPos]]
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)

		meters, seconds := o.hopEstimate(ctx, current, next.Point)
		result.Order = append(result.Order, next.ID)
		result.Segments = append(result.Segments, RouteSegment{
			StopID:          next.ID,
			From:            current,
			To:              next.Point,
			DistanceMeters:  meters,
			DurationSeconds: seconds,
		})
		result.TotalDistanceMeters += meters
		result.TotalDurationSeconds += seconds
		current = next.Point
	}

	// Closing hop back to the route end point.
	meters, seconds := o.hopEstimate(ctx, current, end)
	result.TotalDistanceMeters += meters
	result.TotalDurationSeconds += seconds

	return result
}

// hopEstimate fetches exact hop metrics from the provider, falling back
// to a straight-line estimate at the assumed average speed.
func (o *RouteOptimizer) hopEstimate(ctx context.Context, from, to domain.Point) (meters, seconds int) {
	est, ok, err := o.provider.DistanceMatrix(ctx, from, to)
	if err == nil && ok {
		return est.DistanceMeters, est.DurationSeconds
	}
	if err != nil {
		log.Printf("op=optimize.hop fallback=haversine err=%v", err)
	}
	return haversineEstimate(from, to)
}

func haversineEstimate(from, to domain.Point) (meters, seconds int) {
	d := domain.DistanceMeters(from, to)
	return int(math.Round(d)), int(math.Round(d / fallbackSpeedMetersPerSec))
}
