package usecases

import (
	"context"
	"log/slog"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/pkg/metrics"
)

// PathBuilder turns an ordered list of stops for one route direction into a
// dense road-following polyline. It is a pure function of its inputs aside
// from the provider call: no caching, no stored state.
type PathBuilder struct {
	router   ports.RoutingProvider
	governor *UsageGovernor
}

// NewPathBuilder creates a PathBuilder.
func NewPathBuilder(router ports.RoutingProvider, governor *UsageGovernor) *PathBuilder {
	return &PathBuilder{router: router, governor: governor}
}

// Build produces the traversal path for the given stops, preserving stop
// order (this mirrors the physical route, not a shortest path). With the
// routing provider unavailable, denied by budget, or failing, it degrades to
// the straight line through the stops — bus stops only, no road geometry.
// The only error it returns is context cancellation.
func (b *PathBuilder) Build(ctx context.Context, stops []domain.Stop) ([]domain.GeoPoint, error) {
	switch len(stops) {
	case 0:
		return nil, nil
	case 1:
		return []domain.GeoPoint{stops[0].Location}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if b.router != nil && b.governor.AllowProviderCall() {
		origin := stops[0].Location
		dest := stops[len(stops)-1].Location
		waypoints := make([]domain.GeoPoint, 0, len(stops)-2)
		for _, s := range stops[1 : len(stops)-1] {
			waypoints = append(waypoints, s.Location)
		}

		points, err := b.router.DrivingPath(ctx, origin, dest, waypoints)
		if err == nil && len(points) > 0 {
			metrics.ProviderCalls.WithLabelValues(b.router.Name(), "ok").Inc()
			return points, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("routing provider failed, using straight-line path",
				"provider", b.router.Name(), "error", err)
			metrics.ProviderCalls.WithLabelValues(b.router.Name(), "error").Inc()
		}
	}

	return straightLine(stops), nil
}

// straightLine is the degraded path: the stops themselves, in order, with no
// interpolation.
func straightLine(stops []domain.Stop) []domain.GeoPoint {
	points := make([]domain.GeoPoint, len(stops))
	for i, s := range stops {
		points[i] = s.Location
	}
	return points
}
