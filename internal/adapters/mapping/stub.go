package mapping

import (
	"context"
	"errors"

	"school-route-service/internal/domain"
	"school-route-service/internal/ports"
)

// StubProvider is a deterministic in-memory MapProvider for tests.
// Estimates are keyed "origin|destination" using the same coordinate
// rendering as the real provider. Err, when set, fails every call to
// simulate total provider unavailability.
type StubProvider struct {
	Points    map[string]domain.Point
	Estimates map[string]ports.TravelEstimate
	Optimized *ports.OptimizedRoute

	Err error

	GeocodeCalls    int
	MatrixCalls     int
	DirectionsCalls int
	LastWaypoints   []domain.Point
}

func NewStubProvider() *StubProvider {
	return &StubProvider{
		Points:    make(map[string]domain.Point),
		Estimates: make(map[string]ports.TravelEstimate),
	}
}

// PairKey renders an estimate key the way the stub looks it up.
func PairKey(origin, destination domain.Point) string {
	return pointKey(origin) + "|" + pointKey(destination)
}

// SetEstimate registers a distance-matrix answer for one ordered pair.
func (s *StubProvider) SetEstimate(origin, destination domain.Point, meters, seconds int) {
	s.Estimates[PairKey(origin, destination)] = ports.TravelEstimate{
		DistanceMeters:  meters,
		DurationSeconds: seconds,
	}
}

func (s *StubProvider) Geocode(ctx context.Context, address string) (domain.Point, bool, error) {
	s.GeocodeCalls++
	if s.Err != nil {
		return domain.Point{}, false, s.Err
	}
	p, ok := s.Points[address]
	return p, ok, nil
}

func (s *StubProvider) DistanceMatrix(ctx context.Context, origin, destination domain.Point) (ports.TravelEstimate, bool, error) {
	s.MatrixCalls++
	if s.Err != nil {
		return ports.TravelEstimate{}, false, s.Err
	}
	est, ok := s.Estimates[PairKey(origin, destination)]
	return est, ok, nil
}

func (s *StubProvider) OptimizedDirections(
	ctx context.Context,
	origin domain.Point,
	destination domain.Point,
	waypoints []domain.Point,
) (ports.OptimizedRoute, bool, error) {
	s.DirectionsCalls++
	s.LastWaypoints = append([]domain.Point(nil), waypoints...)
	if s.Err != nil {
		return ports.OptimizedRoute{}, false, s.Err
	}
	if s.Optimized == nil {
		return ports.OptimizedRoute{}, false, nil
	}
	if len(s.Optimized.WaypointOrder) != len(waypoints) {
		return ports.OptimizedRoute{}, false, errors.New("stub: canned order does not match waypoint count")
	}
	return *s.Optimized, true, nil
}
