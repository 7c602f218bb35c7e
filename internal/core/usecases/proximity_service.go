package usecases

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/pkg/geospatial"
	"github.com/samirrijal/nearbus/internal/pkg/metrics"
)

// DistanceMode selects how the distance from a point to a polyline is
// computed.
type DistanceMode string

const (
	// DistancePointwise measures to each polyline vertex independently.
	// This is the production behavior: simple and deterministic, at the
	// cost of underestimating proximity between widely spaced vertices.
	DistancePointwise DistanceMode = "point"
	// DistanceSegment measures cross-track distance to each segment.
	DistanceSegment DistanceMode = "segment"
)

// ProximityService decides which routes pass within a search circle and
// reports stop counts within radius. Pure synchronous computation over a
// bounded set of routes; the only suspension is the cache fetch.
type ProximityService struct {
	routes ports.RouteRepository
	cache  *PolylineCache
	mode   DistanceMode
}

// NewProximityService creates a ProximityService.
func NewProximityService(routes ports.RouteRepository, cache *PolylineCache, mode DistanceMode) *ProximityService {
	if mode == "" {
		mode = DistancePointwise
	}
	return &ProximityService{routes: routes, cache: cache, mode: mode}
}

// FindNearbyRoutes returns every route with at least one direction whose
// path intersects the circle around origin. The two directions of a route
// are evaluated concurrently; ordering between them is not significant.
func (s *ProximityService) FindNearbyRoutes(ctx context.Context, origin domain.GeoPoint, radiusMeters float64) ([]domain.RouteMatch, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range (%f, %f)", domain.ErrInvalidInput, origin.Lat, origin.Lon)
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", domain.ErrInvalidInput)
	}

	routes, err := s.routes.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.RouteMatch, 0)
	for i := range routes {
		route := &routes[i]

		dirs := domain.Directions()
		results := make([]domain.DirectionMatch, len(dirs))
		var wg sync.WaitGroup
		for j, dir := range dirs {
			wg.Add(1)
			go func(j int, dir domain.Direction) {
				defer wg.Done()
				results[j] = s.matchDirection(ctx, route, dir, origin, radiusMeters)
			}(j, dir)
		}
		wg.Wait()

		match := domain.RouteMatch{RouteID: route.ID, RouteName: route.Name}
		for _, dm := range results {
			if dm.Intersects {
				match.Directions = append(match.Directions, dm)
				match.StopsInRadius += dm.StopsInRadius
			}
		}
		if len(match.Directions) > 0 {
			matches = append(matches, match)
		}
	}

	metrics.ProximityChecks.Inc()
	return matches, nil
}

// matchDirection evaluates one direction of one route against the circle.
func (s *ProximityService) matchDirection(ctx context.Context, route *domain.Route, dir domain.Direction, origin domain.GeoPoint, radiusMeters float64) domain.DirectionMatch {
	dm := domain.DirectionMatch{Direction: dir, NearestMeters: math.Inf(1)}

	stops := route.StopsFor(dir)
	if len(stops) == 0 {
		return dm
	}

	entry, err := s.cache.GetOrBuild(ctx, route, dir)
	if err != nil || len(entry.Points) == 0 {
		return dm
	}

	dm.Path = entry.Points
	dm.NearestMeters = s.minDistanceMeters(origin, entry.Points)
	dm.Intersects = dm.NearestMeters <= radiusMeters
	if !dm.Intersects {
		return dm
	}

	// Count the route's declared stops inside the circle, independent of
	// the polyline geometry.
	for _, stop := range stops {
		d := geospatial.Haversine(origin.Lat, origin.Lon, stop.Location.Lat, stop.Location.Lon)
		if d <= radiusMeters {
			dm.StopsInRadius++
		}
	}
	return dm
}

// minDistanceMeters returns the minimum distance from a point to the path,
// vertex-wise or segment-wise depending on the configured mode.
func (s *ProximityService) minDistanceMeters(from domain.GeoPoint, path []domain.GeoPoint) float64 {
	if len(path) == 1 || s.mode != DistanceSegment {
		min := math.Inf(1)
		for _, p := range path {
			if d := geospatial.Haversine(from.Lat, from.Lon, p.Lat, p.Lon); d < min {
				min = d
			}
		}
		return min
	}

	min := math.Inf(1)
	for i := 0; i < len(path)-1; i++ {
		d := geospatial.PointToSegmentMeters(from.Lat, from.Lon,
			path[i].Lat, path[i].Lon, path[i+1].Lat, path[i+1].Lon)
		if d < min {
			min = d
		}
	}
	return min
}
