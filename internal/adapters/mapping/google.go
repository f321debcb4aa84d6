package mapping

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	maps "googlemaps.github.io/maps"

	"school-route-service/internal/domain"
	"school-route-service/internal/platform/obs"
	"school-route-service/internal/ports"
)

// DistanceCache stores provider distance-matrix answers keyed by an
// origin|destination coordinate pair.
type DistanceCache interface {
	Get(ctx context.Context, origin, destination string) (ports.TravelEstimate, bool, error)
	Put(ctx context.Context, origin, destination string, est ports.TravelEstimate) error
}

// GeocodeCache stores resolved addresses.
type GeocodeCache interface {
	Get(ctx context.Context, address string) (domain.Point, bool, error)
	Put(ctx context.Context, address string, p domain.Point) error
}

// GoogleProvider implements ports.MapProvider against the Google Maps
// Platform (geocoding, distance matrix, directions with waypoint
// optimization).
//
// It coordinates persistent geocode and distance caches in front of the
// external calls. The provider is safe for concurrent use; all calls
// share one HTTP client with a bounded timeout.
type GoogleProvider struct {
	client        *maps.Client
	distanceCache DistanceCache
	geocodeCache  GeocodeCache
}

// NewGoogleProvider builds a provider with a 10s client-side timeout.
// Either cache may be nil to disable caching for that concern.
func NewGoogleProvider(apiKey string, distanceCache DistanceCache, geocodeCache GeocodeCache) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("google maps api key is empty")
	}

	client, err := maps.NewClient(
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}

	return &GoogleProvider{
		client:        client,
		distanceCache: distanceCache,
		geocodeCache:  geocodeCache,
	}, nil
}

// pointKey renders a coordinate as a stable cache/request key.
func pointKey(p domain.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Geocode resolves a street address. A zero-result answer reports
// (zero, false, nil) so callers can tell "unknown address" from a
// transport failure.
func (g *GoogleProvider) Geocode(ctx context.Context, address string) (_ domain.Point, _ bool, err error) {
	defer obs.Time(ctx, "gmaps.Geocode")(&err)

	if address == "" {
		return domain.Point{}, false, errors.New("geocode: address must be non-empty")
	}

	if g.geocodeCache != nil {
		p, ok, cerr := g.geocodeCache.Get(ctx, address)
		if cerr != nil {
			return domain.Point{}, false, fmt.Errorf("geocode cache: %w", cerr)
		}
		if ok {
			return p, true, nil
		}
	}

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return domain.Point{}, false, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return domain.Point{}, false, nil
	}

	p := domain.Point{
		Lat: results[0].Geometry.Location.Lat,
		Lng: results[0].Geometry.Location.Lng,
	}

	if g.geocodeCache != nil {
		if cerr := g.geocodeCache.Put(ctx, address, p); cerr != nil {
			log.Printf("op=gmaps.Geocode cache_write err=%v", cerr)
		}
	}
	return p, true, nil
}

// DistanceMatrix returns road distance and duration for one
// origin/destination pair. An unroutable pair reports ok=false.
func (g *GoogleProvider) DistanceMatrix(ctx context.Context, origin, destination domain.Point) (_ ports.TravelEstimate, _ bool, err error) {
	defer obs.Time(ctx, "gmaps.DistanceMatrix")(&err)

	originKey := pointKey(origin)
	destKey := pointKey(destination)

	if g.distanceCache != nil {
		est, ok, cerr := g.distanceCache.Get(ctx, originKey, destKey)
		if cerr != nil {
			return ports.TravelEstimate{}, false, fmt.Errorf("distance cache: %w", cerr)
		}
		if ok {
			return est, true, nil
		}
	}

	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{originKey},
		Destinations: []string{destKey},
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return ports.TravelEstimate{}, false, fmt.Errorf("distance matrix %s -> %s: %w", originKey, destKey, err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return ports.TravelEstimate{}, false, nil
	}

	elem := resp.Rows[0].Elements[0]
	if elem.Status != "OK" {
		return ports.TravelEstimate{}, false, nil
	}

	est := ports.TravelEstimate{
		DistanceMeters:  elem.Distance.Meters,
		DurationSeconds: int(elem.Duration.Seconds()),
	}

	if g.distanceCache != nil {
		if cerr := g.distanceCache.Put(ctx, originKey, destKey, est); cerr != nil {
			log.Printf("op=gmaps.DistanceMatrix cache_write err=%v", cerr)
		}
	}
	return est, true, nil
}

// OptimizedDirections asks the Directions API to order the waypoints
// between origin and destination. Results are not cached: optimized
// orders depend on the whole waypoint set and templates change rarely.
func (g *GoogleProvider) OptimizedDirections(
	ctx context.Context,
	origin domain.Point,
	destination domain.Point,
	waypoints []domain.Point,
) (_ ports.OptimizedRoute, _ bool, err error) {
	defer obs.Time(ctx, "gmaps.OptimizedDirections")(&err)

	wps := make([]string, len(waypoints))
	for i, wp := range waypoints {
		wps[i] = pointKey(wp)
	}

	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      pointKey(origin),
		Destination: pointKey(destination),
		Waypoints:   wps,
		Optimize:    true,
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return ports.OptimizedRoute{}, false, fmt.Errorf("directions: %w", err)
	}
	if len(routes) == 0 {
		return ports.OptimizedRoute{}, false, nil
	}

	route := routes[0]
	out := ports.OptimizedRoute{
		WaypointOrder: route.WaypointOrder,
		Legs:          make([]ports.TravelEstimate, 0, len(route.Legs)),
	}
	for _, leg := range route.Legs {
		est := ports.TravelEstimate{
			DistanceMeters:  leg.Distance.Meters,
			DurationSeconds: int(leg.Duration.Seconds()),
		}
		out.Legs = append(out.Legs, est)
		out.TotalDistanceMeters += est.DistanceMeters
		out.TotalDurationSeconds += est.DurationSeconds
	}
	return out, true, nil
}
