package ports

import (
	"context"

	"school-route-service/internal/domain"
)

// TravelEstimate is road distance and travel duration between two points.
type TravelEstimate struct {
	DistanceMeters  int
	DurationSeconds int
}

// OptimizedRoute is the provider's answer to a waypoint-optimizing
// directions request. WaypointOrder[i] is the index (into the request's
// waypoint slice) of the waypoint visited at step i. Legs holds per-hop
// estimates in traversal order, start -> first waypoint ... -> end, so
// len(Legs) == len(WaypointOrder)+1.
type OptimizedRoute struct {
	WaypointOrder        []int
	Legs                 []TravelEstimate
	TotalDistanceMeters  int
	TotalDurationSeconds int
}

// MapProvider is the external mapping service boundary. All three calls
// report "no result" through the ok return rather than an error, so
// callers can tell an unroutable pair from a transport failure.
type MapProvider interface {
	// Geocode resolves a street address to coordinates.
	Geocode(ctx context.Context, address string) (domain.Point, bool, error)

	// DistanceMatrix returns road distance/duration for one origin and
	// one destination.
	DistanceMatrix(ctx context.Context, origin, destination domain.Point) (TravelEstimate, bool, error)

	// OptimizedDirections orders waypoints between origin and destination
	// using the provider's own optimizer.
	OptimizedDirections(ctx context.Context, origin, destination domain.Point, waypoints []domain.Point) (OptimizedRoute, bool, error)
}
