package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/core/usecases"
)

func testRoutes() []domain.Route {
	return []domain.Route{
		{
			ID:            "r1",
			Name:          "Benz Circle - Railway Station",
			OutboundStops: stopsFrom(domain.DirectionOutbound, [2]float64{16.50, 80.64}, [2]float64{16.52, 80.66}),
			InboundStops:  stopsFrom(domain.DirectionInbound, [2]float64{16.52, 80.66}, [2]float64{16.50, 80.64}),
		},
		{
			ID:            "r2",
			Name:          "Ring Road Loop",
			OutboundStops: stopsFrom(domain.DirectionOutbound, [2]float64{16.49, 80.62}, [2]float64{16.47, 80.60}),
		},
	}
}

func newCache(mock *clock.Mock, repo ports.RouteRepository, store ports.SnapshotStore) *usecases.PolylineCache {
	builder := usecases.NewPathBuilder(nil, newGovernor(mock))
	return usecases.NewPolylineCache(mock, 2*time.Hour, repo, builder, store, nil)
}

func TestCache_TTLBoundary(t *testing.T) {
	mock := clock.NewMock()
	c := newCache(mock, &mockRouteRepo{}, nil)

	c.Put("r1", domain.DirectionOutbound, []domain.GeoPoint{{Lat: 16.5, Lon: 80.65}})

	mock.Add(time.Hour + 59*time.Minute)
	if _, ok := c.Get("r1", domain.DirectionOutbound); !ok {
		t.Error("entry at t0+1h59m should still be live")
	}

	mock.Add(2 * time.Minute) // now t0 + 2h01m
	if _, ok := c.Get("r1", domain.DirectionOutbound); ok {
		t.Error("entry at t0+2h01m should read as absent")
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	mock := clock.NewMock()
	c := newCache(mock, &mockRouteRepo{}, nil)

	c.Put("r1", domain.DirectionOutbound, []domain.GeoPoint{{Lat: 1, Lon: 1}})
	mock.Add(time.Hour)
	c.Put("r1", domain.DirectionOutbound, []domain.GeoPoint{{Lat: 2, Lon: 2}})

	entry, ok := c.Get("r1", domain.DirectionOutbound)
	if !ok {
		t.Fatal("entry should be live")
	}
	if entry.Points[0].Lat != 2 {
		t.Errorf("expected overwritten points, got %v", entry.Points)
	}
	if !entry.BuiltAt.Equal(mock.Now()) {
		t.Errorf("expected BuiltAt restamped, got %v", entry.BuiltAt)
	}
}

func TestCache_DirectionsAreSeparateKeys(t *testing.T) {
	mock := clock.NewMock()
	c := newCache(mock, &mockRouteRepo{}, nil)

	c.Put("r1", domain.DirectionOutbound, []domain.GeoPoint{{Lat: 1, Lon: 1}})
	if _, ok := c.Get("r1", domain.DirectionInbound); ok {
		t.Error("inbound should not be populated by an outbound put")
	}
}

func TestGetOrBuild_BuildsOnMiss(t *testing.T) {
	mock := clock.NewMock()
	c := newCache(mock, &mockRouteRepo{}, nil)

	routes := testRoutes()
	entry, err := c.GetOrBuild(context.Background(), &routes[0], domain.DirectionOutbound)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entry.Points) != 2 {
		t.Fatalf("expected built straight-line path, got %v", entry.Points)
	}

	if _, ok := c.Get("r1", domain.DirectionOutbound); !ok {
		t.Error("built path should be stored")
	}
}

func TestRebuildAll_BuildsEveryDirectionAndPersistsOnce(t *testing.T) {
	mock := clock.NewMock()
	store := &mockSnapshotStore{}
	repo := &mockRouteRepo{listFn: func(ctx context.Context) ([]domain.Route, error) {
		return testRoutes(), nil
	}}
	c := newCache(mock, repo, store)

	summary, err := c.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// r1 has both directions, r2 only outbound.
	if summary.Built != 3 {
		t.Errorf("expected 3 built polylines, got %d", summary.Built)
	}
	if summary.Failed != 0 {
		t.Errorf("expected no failures, got %d", summary.Failed)
	}
	if store.saves != 1 {
		t.Errorf("expected a single atomic snapshot write, got %d", store.saves)
	}

	if _, ok := c.Get("r2", domain.DirectionOutbound); !ok {
		t.Error("r2 outbound should be cached after rebuild")
	}
	if _, ok := c.Get("r2", domain.DirectionInbound); ok {
		t.Error("r2 has no inbound stops and should have no inbound polyline")
	}
}

func TestSweep_RemovesExpiredAndRepersists(t *testing.T) {
	mock := clock.NewMock()
	store := &mockSnapshotStore{
		saveFn: func(ctx context.Context, snap ports.PolylineSnapshot) error {
			if len(snap) != 1 {
				t.Errorf("expected 1 surviving entry in snapshot, got %d", len(snap))
			}
			return nil
		},
	}
	c := newCache(mock, &mockRouteRepo{}, store)

	c.Put("old", domain.DirectionOutbound, []domain.GeoPoint{{Lat: 1, Lon: 1}})
	mock.Add(90 * time.Minute)
	c.Put("fresh", domain.DirectionOutbound, []domain.GeoPoint{{Lat: 2, Lon: 2}})
	mock.Add(40 * time.Minute) // "old" is now 2h10m, "fresh" 40m

	c.Sweep(context.Background())
	if store.saves != 1 {
		t.Errorf("expected one snapshot write after sweep, got %d", store.saves)
	}
	if _, ok := c.Get("fresh", domain.DirectionOutbound); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}

func TestLoadSnapshot_RestoresEntries(t *testing.T) {
	mock := clock.NewMock()
	store := &mockSnapshotStore{
		loadFn: func(ctx context.Context) (ports.PolylineSnapshot, error) {
			return ports.PolylineSnapshot{
				"r1:outbound": {
					RouteID:   "r1",
					Direction: domain.DirectionOutbound,
					Points:    []domain.GeoPoint{{Lat: 16.5, Lon: 80.65}},
					BuiltAt:   mock.Now(),
				},
			}, nil
		},
	}
	c := newCache(mock, &mockRouteRepo{}, store)

	if err := c.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.Get("r1", domain.DirectionOutbound); !ok {
		t.Error("restored entry should be readable")
	}
}
