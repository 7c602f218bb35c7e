package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/pkg/metrics"
)

// PolylineCache stores built route polylines keyed by (route id, direction)
// with a fixed TTL, decoupling proximity checks from per-request provider
// calls. Entries are persisted to durable storage only as a full snapshot
// after a rebuild sweep; the cache is never a system of record.
type PolylineCache struct {
	clock   clock.Clock
	ttl     time.Duration
	routes  ports.RouteRepository
	builder *PathBuilder
	store   ports.SnapshotStore
	events  ports.EventPublisher

	mu      sync.RWMutex
	entries map[string]domain.RoutePolyline
}

// NewPolylineCache creates a PolylineCache. store and events may be nil
// (no persistence / no events), which the rebuild sweep tolerates.
func NewPolylineCache(clk clock.Clock, ttl time.Duration, routes ports.RouteRepository, builder *PathBuilder, store ports.SnapshotStore, events ports.EventPublisher) *PolylineCache {
	return &PolylineCache{
		clock:   clk,
		ttl:     ttl,
		routes:  routes,
		builder: builder,
		store:   store,
		events:  events,
		entries: make(map[string]domain.RoutePolyline),
	}
}

func cacheKey(routeID string, dir domain.Direction) string {
	return routeID + ":" + string(dir)
}

// Get returns the stored polyline if it exists and has not outlived the TTL.
// Expired entries read as absent; the background sweep deletes them later.
func (c *PolylineCache) Get(routeID string, dir domain.Direction) (domain.RoutePolyline, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(routeID, dir)]
	c.mu.RUnlock()
	if !ok || c.clock.Now().Sub(entry.BuiltAt) >= c.ttl {
		return domain.RoutePolyline{}, false
	}
	return entry, true
}

// Put overwrites any existing entry for the key, stamping BuiltAt = now.
// Safe for concurrent callers; last write wins.
func (c *PolylineCache) Put(routeID string, dir domain.Direction, points []domain.GeoPoint) domain.RoutePolyline {
	entry := domain.RoutePolyline{
		RouteID:   routeID,
		Direction: dir,
		Points:    points,
		BuiltAt:   c.clock.Now(),
	}
	c.mu.Lock()
	c.entries[cacheKey(routeID, dir)] = entry
	c.mu.Unlock()
	return entry
}

// GetOrBuild returns the cached polyline, building and storing it on a miss.
// Concurrent misses for the same key may both build; that duplicate provider
// call is accepted over request-level locking.
func (c *PolylineCache) GetOrBuild(ctx context.Context, route *domain.Route, dir domain.Direction) (domain.RoutePolyline, error) {
	if entry, ok := c.Get(route.ID, dir); ok {
		metrics.PolylineCacheHits.Inc()
		return entry, nil
	}
	metrics.PolylineCacheMisses.Inc()

	points, err := c.builder.Build(ctx, route.StopsFor(dir))
	if err != nil {
		return domain.RoutePolyline{}, err
	}
	return c.Put(route.ID, dir, points), nil
}

// RebuildAll rebuilds every known route and direction, then persists the
// whole cache as one snapshot. A failed route is logged and skipped so one
// bad route never starves the others of fresh data.
func (c *PolylineCache) RebuildAll(ctx context.Context) (*domain.RebuildSummary, error) {
	start := c.clock.Now()

	routes, err := c.routes.ListRoutes(ctx)
	if err != nil {
		return nil, err
	}

	summary := &domain.RebuildSummary{At: start, Routes: len(routes)}
	for i := range routes {
		route := &routes[i]
		for _, dir := range domain.Directions() {
			stops := route.StopsFor(dir)
			if len(stops) == 0 {
				continue
			}
			points, err := c.builder.Build(ctx, stops)
			if err != nil {
				buildErr := &domain.CacheBuildError{RouteID: route.ID, Direction: dir, Err: err}
				slog.Error("polyline rebuild failed", "route_id", route.ID, "direction", dir, "error", buildErr)
				metrics.RebuildFailures.Inc()
				summary.Failed++
				if errors.Is(err, context.Canceled) {
					return summary, err
				}
				continue
			}
			c.Put(route.ID, dir, points)
			summary.Built++
		}
	}

	if err := c.persist(ctx); err != nil {
		slog.Error("polyline snapshot persist failed", "error", err)
	}

	elapsed := c.clock.Now().Sub(start)
	summary.Duration = elapsed.String()
	metrics.RebuildDuration.Observe(elapsed.Seconds())

	if c.events != nil {
		if err := c.events.PublishRebuildCompleted(ctx, summary); err != nil {
			slog.Warn("rebuild event publish failed", "error", err)
		}
	}

	slog.Info("polyline rebuild completed",
		"routes", summary.Routes, "built", summary.Built,
		"failed", summary.Failed, "duration", summary.Duration)
	return summary, nil
}

// Sweep deletes expired entries and re-persists the snapshot. Together with
// the TTL check in Get it bounds staleness to TTL + sweep interval.
func (c *PolylineCache) Sweep(ctx context.Context) {
	now := c.clock.Now()
	removed := 0

	c.mu.Lock()
	for key, entry := range c.entries {
		if now.Sub(entry.BuiltAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		slog.Info("polyline sweep removed expired entries", "removed", removed)
		if err := c.persist(ctx); err != nil {
			slog.Error("polyline snapshot persist failed", "error", err)
		}
	}
}

// StartSweeper runs Sweep on a cadence equal to the TTL until ctx is done.
func (c *PolylineCache) StartSweeper(ctx context.Context) {
	ticker := c.clock.Ticker(c.ttl)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// LoadSnapshot restores persisted entries. Expired entries are restored too;
// Get filters them and the next sweep removes them.
func (c *PolylineCache) LoadSnapshot(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snap, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	for key, entry := range snap {
		c.entries[key] = entry
	}
	c.mu.Unlock()
	slog.Info("polyline snapshot loaded", "entries", len(snap))
	return nil
}

// persist writes the full cache as a single snapshot.
func (c *PolylineCache) persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.mu.RLock()
	snap := make(ports.PolylineSnapshot, len(c.entries))
	for key, entry := range c.entries {
		snap[key] = entry
	}
	c.mu.RUnlock()
	return c.store.Save(ctx, snap)
}
