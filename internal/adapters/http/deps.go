package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/nearbus/internal/adapters/postgres"
	"github.com/samirrijal/nearbus/internal/adapters/valkey"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/core/usecases"
	"github.com/samirrijal/nearbus/internal/pkg/config"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Geocode   *usecases.GeocodeService
	Proximity *usecases.ProximityService
	Polylines *usecases.PolylineCache
	Scheduler *usecases.RebuildScheduler
	Governor  *usecases.UsageGovernor
	Routes    ports.RouteRepository
	Audits    ports.AuditRepository
	Events    ports.EventPublisher
	NATS      *nats.Conn
	DB        *postgres.DB
	Snapshots *valkey.SnapshotStore
	Cfg       config.ProximityConfig
}
