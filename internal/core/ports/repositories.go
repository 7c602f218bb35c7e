package ports

import (
	"context"

	"github.com/samirrijal/nearbus/internal/core/domain"
)

// RouteRepository reads routes with their ordered stops per direction.
// Routes are owned by the admin side; this core only consumes them.
type RouteRepository interface {
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	GetByID(ctx context.Context, id string) (*domain.Route, error)
}

// AuditRepository persists proximity-check audit records.
type AuditRepository interface {
	Insert(ctx context.Context, audit *domain.ProximityAudit) error
	ListRecent(ctx context.Context, limit int) ([]domain.ProximityAudit, error)
}

// PolylineSnapshot is the persisted cache format: one serialized map from
// "routeID:direction" to the built polyline. It is a cache, never a system
// of record; it may be discarded and rebuilt at any time.
type PolylineSnapshot map[string]domain.RoutePolyline

// SnapshotStore persists the full polyline cache as a single atomic write.
type SnapshotStore interface {
	Save(ctx context.Context, snap PolylineSnapshot) error
	Load(ctx context.Context) (PolylineSnapshot, error)
}
