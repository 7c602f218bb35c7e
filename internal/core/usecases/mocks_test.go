package usecases_test

import (
	"context"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/core/usecases"
	"github.com/samirrijal/nearbus/internal/pkg/config"
)

// ---- Mock route repository ----

type mockRouteRepo struct {
	listFn    func(ctx context.Context) ([]domain.Route, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Route, error)
}

func (m *mockRouteRepo) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRouteRepo) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

// ---- Mock geocode provider ----

type mockGeocoder struct {
	name      string
	forwardFn func(ctx context.Context, query string) ([]ports.GeocodeCandidate, error)
	reverseFn func(ctx context.Context, lat, lon float64) (string, error)
	forwards  int
	reverses  int
}

func (m *mockGeocoder) Name() string { return m.name }

func (m *mockGeocoder) Forward(ctx context.Context, query string) ([]ports.GeocodeCandidate, error) {
	m.forwards++
	if m.forwardFn != nil {
		return m.forwardFn(ctx, query)
	}
	return nil, nil
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	m.reverses++
	if m.reverseFn != nil {
		return m.reverseFn(ctx, lat, lon)
	}
	return "", nil
}

// ---- Mock routing provider ----

type mockRouter struct {
	pathFn func(ctx context.Context, origin, dest domain.GeoPoint, waypoints []domain.GeoPoint) ([]domain.GeoPoint, error)
	calls  int
}

func (m *mockRouter) Name() string { return "mock-router" }

func (m *mockRouter) DrivingPath(ctx context.Context, origin, dest domain.GeoPoint, waypoints []domain.GeoPoint) ([]domain.GeoPoint, error) {
	m.calls++
	if m.pathFn != nil {
		return m.pathFn(ctx, origin, dest, waypoints)
	}
	return nil, nil
}

// ---- Mock snapshot store ----

type mockSnapshotStore struct {
	saveFn func(ctx context.Context, snap ports.PolylineSnapshot) error
	loadFn func(ctx context.Context) (ports.PolylineSnapshot, error)
	saves  int
}

func (m *mockSnapshotStore) Save(ctx context.Context, snap ports.PolylineSnapshot) error {
	m.saves++
	if m.saveFn != nil {
		return m.saveFn(ctx, snap)
	}
	return nil
}

func (m *mockSnapshotStore) Load(ctx context.Context) (ports.PolylineSnapshot, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return nil, nil
}

// ---- Helpers ----

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		ProviderDailyCap:   1000,
		ProximityHourlyCap: 20,
		ContactHourlyCap:   10,
		LoginHourlyCap:     5,
	}
}

func newGovernor(clk clock.Clock) *usecases.UsageGovernor {
	return usecases.NewUsageGovernor(clk, testLimits())
}

func stopsFrom(dir domain.Direction, coords ...[2]float64) []domain.Stop {
	stops := make([]domain.Stop, len(coords))
	for i, c := range coords {
		stops[i] = domain.Stop{
			Location:  domain.GeoPoint{Lat: c[0], Lon: c[1]},
			Direction: dir,
			Seq:       i,
		}
	}
	return stops
}
