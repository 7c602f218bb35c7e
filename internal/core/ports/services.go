package ports

import (
	"context"

	"github.com/samirrijal/nearbus/internal/core/domain"
)

// GeocodeCandidate is one candidate result from a geocode provider. AdminArea
// and Locality come from the provider's structured address components and are
// used for regional bias matching; the fallback provider leaves them empty.
type GeocodeCandidate struct {
	Location         domain.GeoPoint
	FormattedAddress string
	AdminArea        string
	Locality         string
}

// GeocodeProvider resolves free text or coordinates against one external
// geocoding service. Implementations must honor ctx deadlines; a timeout is
// reported as an ordinary error and treated like any provider failure.
type GeocodeProvider interface {
	Name() string
	Forward(ctx context.Context, query string) ([]GeocodeCandidate, error)
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// RoutingProvider returns a road-following driving path from origin to
// destination honoring waypoint order.
type RoutingProvider interface {
	Name() string
	DrivingPath(ctx context.Context, origin, dest domain.GeoPoint, waypoints []domain.GeoPoint) ([]domain.GeoPoint, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishProximityCheck(ctx context.Context, audit *domain.ProximityAudit) error
	PublishRebuildCompleted(ctx context.Context, summary *domain.RebuildSummary) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeProximityChecks(ctx context.Context, handler func(ctx context.Context, audit *domain.ProximityAudit) error) error
	SubscribeRebuilds(ctx context.Context, handler func(ctx context.Context, summary *domain.RebuildSummary) error) error
}
