package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/nearbus/internal/adapters/http"
	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/core/usecases"
	"github.com/samirrijal/nearbus/internal/pkg/config"
)

// ---- Mocks ----

type mockRouteRepo struct {
	routes []domain.Route
}

func (m *mockRouteRepo) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	return m.routes, nil
}

func (m *mockRouteRepo) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	for i := range m.routes {
		if m.routes[i].ID == id {
			return &m.routes[i], nil
		}
	}
	return nil, nil
}

type mockGeocoder struct {
	forwardFn func(ctx context.Context, query string) ([]ports.GeocodeCandidate, error)
	reverseFn func(ctx context.Context, lat, lon float64) (string, error)
}

func (m *mockGeocoder) Name() string { return "mock" }

func (m *mockGeocoder) Forward(ctx context.Context, query string) ([]ports.GeocodeCandidate, error) {
	if m.forwardFn != nil {
		return m.forwardFn(ctx, query)
	}
	return nil, nil
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if m.reverseFn != nil {
		return m.reverseFn(ctx, lat, lon)
	}
	return "", fmt.Errorf("no reverse")
}

type mockAuditRepo struct {
	audits   []domain.ProximityAudit
	gotLimit int
}

func (m *mockAuditRepo) Insert(ctx context.Context, a *domain.ProximityAudit) error {
	m.audits = append(m.audits, *a)
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.ProximityAudit, error) {
	m.gotLimit = limit
	if limit < len(m.audits) {
		return m.audits[:limit], nil
	}
	return m.audits, nil
}

// ---- Harness ----

func benzCircle() ports.GeocodeCandidate {
	return ports.GeocodeCandidate{
		Location:         domain.GeoPoint{Lat: 16.505, Lon: 80.648},
		FormattedAddress: "Benz Circle, Vijayawada, Andhra Pradesh",
		AdminArea:        "Andhra Pradesh",
		Locality:         "Vijayawada",
	}
}

func testRoutes() []domain.Route {
	return []domain.Route{
		{
			ID:   "r1",
			Name: "Benz Circle - Gannavaram",
			OutboundStops: []domain.Stop{
				{Name: "Benz Circle", Location: domain.GeoPoint{Lat: 16.50, Lon: 80.64}, Direction: domain.DirectionOutbound, Seq: 1},
				{Name: "Ramavarappadu", Location: domain.GeoPoint{Lat: 16.52, Lon: 80.66}, Direction: domain.DirectionOutbound, Seq: 2},
				{Name: "Gannavaram", Location: domain.GeoPoint{Lat: 16.55, Lon: 80.70}, Direction: domain.DirectionOutbound, Seq: 3},
			},
		},
		{
			ID:   "r2",
			Name: "Ibrahimpatnam Express",
			OutboundStops: []domain.Stop{
				{Name: "Ibrahimpatnam", Location: domain.GeoPoint{Lat: 16.60, Lon: 80.50}, Direction: domain.DirectionOutbound, Seq: 1},
				{Name: "Kondapalli", Location: domain.GeoPoint{Lat: 16.62, Lon: 80.53}, Direction: domain.DirectionOutbound, Seq: 2},
			},
		},
	}
}

type appOptions struct {
	geocoder      *mockGeocoder
	limits        config.LimitsConfig
	rebuildCalled *int
	audits        ports.AuditRepository
}

func newTestApp(t *testing.T, opts appOptions) *fiber.App {
	t.Helper()

	if opts.geocoder == nil {
		opts.geocoder = &mockGeocoder{
			forwardFn: func(ctx context.Context, query string) ([]ports.GeocodeCandidate, error) {
				return []ports.GeocodeCandidate{benzCircle()}, nil
			},
			reverseFn: func(ctx context.Context, lat, lon float64) (string, error) {
				return "Benz Circle, Vijayawada", nil
			},
		}
	}
	if opts.limits.ProviderDailyCap == 0 {
		opts.limits = config.LimitsConfig{
			ProviderDailyCap:   1000,
			ProximityHourlyCap: 100,
			ContactHourlyCap:   100,
			LoginHourlyCap:     100,
		}
	}

	clk := clock.New()
	governor := usecases.NewUsageGovernor(clk, opts.limits)
	geocode := usecases.NewGeocodeService(opts.geocoder, opts.geocoder, governor, config.GeocodeConfig{
		BiasCity:   "Vijayawada",
		BiasRegion: "Andhra Pradesh",
	})

	repo := &mockRouteRepo{routes: testRoutes()}
	// nil routing provider: paths degrade to the straight stop-to-stop line,
	// which is exactly what these handler tests need
	builder := usecases.NewPathBuilder(nil, governor)
	cache := usecases.NewPolylineCache(clk, 2*time.Hour, repo, builder, nil, nil)
	proximity := usecases.NewProximityService(repo, cache, usecases.DistancePointwise)
	scheduler := usecases.NewRebuildScheduler(clk, 10*time.Minute, func(ctx context.Context) {
		if opts.rebuildCalled != nil {
			*opts.rebuildCalled++
		}
	})

	deps := &handler.Dependencies{
		Geocode:   geocode,
		Proximity: proximity,
		Polylines: cache,
		Scheduler: scheduler,
		Governor:  governor,
		Routes:    repo,
		Audits:    opts.audits,
		Cfg: config.ProximityConfig{
			DefaultRadiusMeters: 1000,
			MaxRadiusMeters:     10000,
			DistanceMode:        "point",
		},
	}

	app := fiber.New()
	handler.SetupRoutes(app, deps)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, target, body, err)
		}
	}
	return resp.StatusCode
}

type gqlError struct {
	Message string `json:"message"`
}

func doGraphQL(t *testing.T, app *fiber.App, query string, dataOut any) []gqlError {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("graphql: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dataOut != nil && len(body.Data) > 0 {
		if err := json.Unmarshal(body.Data, dataOut); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return body.Errors
}

// ---- Tests ----

func TestNearbyRoutesByCoordinates(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var body struct {
		Count   int                 `json:"count"`
		Matches []domain.RouteMatch `json:"matches"`
	}
	status := doJSON(t, app, "GET", "/v1/routes/nearby?lat=16.505&lon=80.645&radius=1500", &body)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	if body.Matches[0].RouteID != "r1" {
		t.Errorf("matched %s, want r1", body.Matches[0].RouteID)
	}
}

func TestNearbyRoutesByPlaceName(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var body struct {
		Address string `json:"address"`
		Count   int    `json:"count"`
	}
	status := doJSON(t, app, "GET", "/v1/routes/nearby?q=Benz+Circle&radius=1500", &body)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
	if !strings.Contains(body.Address, "Benz Circle") {
		t.Errorf("address = %q", body.Address)
	}
}

func TestNearbyRoutesNoMatchFarAway(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var body struct {
		Count int `json:"count"`
	}
	status := doJSON(t, app, "GET", "/v1/routes/nearby?lat=17.0&lon=81.0&radius=1000", &body)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
}

func TestNearbyRoutesValidation(t *testing.T) {
	app := newTestApp(t, appOptions{})

	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"no input", "/v1/routes/nearby", 400},
		{"radius too large", "/v1/routes/nearby?lat=16.5&lon=80.65&radius=99999", 400},
		{"negative radius", "/v1/routes/nearby?lat=16.5&lon=80.65&radius=-5", 400},
		{"lat out of range", "/v1/routes/nearby?lat=95&lon=80.65", 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := doJSON(t, app, "GET", tc.target, nil); got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNearbyRoutesUnresolvablePlace(t *testing.T) {
	app := newTestApp(t, appOptions{
		geocoder: &mockGeocoder{
			forwardFn: func(ctx context.Context, query string) ([]ports.GeocodeCandidate, error) {
				return nil, fmt.Errorf("provider down")
			},
		},
	})

	status := doJSON(t, app, "GET", "/v1/routes/nearby?q=nowhere+at+all", nil)
	if status != 422 {
		t.Errorf("status = %d, want 422", status)
	}
}

func TestNearbyRoutesQuotaExhaustion(t *testing.T) {
	app := newTestApp(t, appOptions{
		limits: config.LimitsConfig{
			ProviderDailyCap:   1000,
			ProximityHourlyCap: 2,
			ContactHourlyCap:   100,
			LoginHourlyCap:     100,
		},
	})

	target := "/v1/routes/nearby?lat=16.505&lon=80.645&radius=1000"
	for i := 0; i < 2; i++ {
		if got := doJSON(t, app, "GET", target, nil); got != 200 {
			t.Fatalf("request %d: status = %d", i+1, got)
		}
	}
	if got := doJSON(t, app, "GET", target, nil); got != 429 {
		t.Errorf("third request: status = %d, want 429", got)
	}
}

func TestMalformedRequestDoesNotConsumeQuota(t *testing.T) {
	app := newTestApp(t, appOptions{
		limits: config.LimitsConfig{
			ProviderDailyCap:   1000,
			ProximityHourlyCap: 1,
			ContactHourlyCap:   100,
			LoginHourlyCap:     100,
		},
	})

	// Malformed requests first; they must not consume the single slot.
	for i := 0; i < 5; i++ {
		if got := doJSON(t, app, "GET", "/v1/routes/nearby?radius=-1&lat=16.5&lon=80.65", nil); got != 400 {
			t.Fatalf("status = %d, want 400", got)
		}
	}
	if got := doJSON(t, app, "GET", "/v1/routes/nearby?lat=16.505&lon=80.645", nil); got != 200 {
		t.Errorf("valid request after malformed burst: status = %d, want 200", got)
	}
}

func TestListRoutes(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var body struct {
		Data       []domain.Route     `json:"data"`
		Pagination handler.Pagination `json:"pagination"`
	}
	status := doJSON(t, app, "GET", "/v1/routes", &body)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	if len(body.Data) != 2 {
		t.Errorf("got %d routes, want 2", len(body.Data))
	}
	if body.Pagination.Total != 2 {
		t.Errorf("total = %d, want 2", body.Pagination.Total)
	}
}

func TestGetRoute(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var route domain.Route
	if status := doJSON(t, app, "GET", "/v1/routes/r1", &route); status != 200 {
		t.Fatalf("status = %d", status)
	}
	if route.Name != "Benz Circle - Gannavaram" {
		t.Errorf("name = %q", route.Name)
	}
	if len(route.OutboundStops) != 3 {
		t.Errorf("got %d outbound stops", len(route.OutboundStops))
	}

	if status := doJSON(t, app, "GET", "/v1/routes/missing", nil); status != 404 {
		t.Errorf("missing route: status = %d, want 404", status)
	}
}

func TestRoutePolyline(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var poly domain.RoutePolyline
	status := doJSON(t, app, "GET", "/v1/routes/r1/polyline?direction=outbound", &poly)
	if status != 200 {
		t.Fatalf("status = %d", status)
	}
	if poly.RouteID != "r1" || poly.Direction != domain.DirectionOutbound {
		t.Errorf("polyline key = %s/%s", poly.RouteID, poly.Direction)
	}
	if len(poly.Points) != 3 {
		t.Errorf("got %d points, want 3 (straight line over stops)", len(poly.Points))
	}

	if status := doJSON(t, app, "GET", "/v1/routes/r1/polyline?direction=sideways", nil); status != 400 {
		t.Errorf("bad direction: status = %d, want 400", status)
	}
}

func TestGeocodeEndpoints(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var res domain.GeocodeResult
	if status := doJSON(t, app, "GET", "/v1/geocode?q=Benz+Circle", &res); status != 200 {
		t.Fatalf("status = %d", status)
	}
	if res.Location.Lat != 16.505 {
		t.Errorf("lat = %f", res.Location.Lat)
	}

	if status := doJSON(t, app, "GET", "/v1/geocode", nil); status != 400 {
		t.Errorf("missing q: status = %d, want 400", status)
	}

	var rev struct {
		Address string `json:"address"`
	}
	if status := doJSON(t, app, "GET", "/v1/geocode/reverse?lat=16.5&lon=80.65", &rev); status != 200 {
		t.Fatalf("reverse status = %d", status)
	}
	if rev.Address == "" {
		t.Error("empty reverse address")
	}
}

func TestRebuildSignalReturnsAccepted(t *testing.T) {
	var rebuilds int
	app := newTestApp(t, appOptions{rebuildCalled: &rebuilds})

	var body struct {
		Status    string `json:"status"`
		Scheduled bool   `json:"scheduled"`
	}
	status := doJSON(t, app, "POST", "/v1/polylines/rebuild", &body)
	if status != 202 {
		t.Fatalf("status = %d, want 202", status)
	}
	if !body.Scheduled {
		t.Error("rebuild not scheduled")
	}
	// The rebuild runs after the cooldown, never inline with the request.
	if rebuilds != 0 {
		t.Errorf("rebuild ran inline %d times", rebuilds)
	}
}

func TestGraphQLRoutesQuery(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var data struct {
		Routes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"routes"`
	}
	errs := doGraphQL(t, app, `{"query": "{ routes { id name } }"}`, &data)
	if len(errs) > 0 {
		t.Fatalf("graphql errors: %v", errs)
	}
	if len(data.Routes) != 2 {
		t.Errorf("got %d routes, want 2", len(data.Routes))
	}
}

func TestGraphQLNearbyQuery(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var data struct {
		NearbyRoutes []struct {
			RouteID string `json:"route_id"`
		} `json:"nearbyRoutes"`
	}
	errs := doGraphQL(t, app, `{"query": "{ nearbyRoutes(lat: 16.505, lon: 80.645, radius: 1500) { route_id stops_in_radius } }"}`, &data)
	if len(errs) > 0 {
		t.Fatalf("graphql errors: %v", errs)
	}
	if len(data.NearbyRoutes) != 1 || data.NearbyRoutes[0].RouteID != "r1" {
		t.Errorf("nearbyRoutes = %+v", data.NearbyRoutes)
	}
}

func TestGraphQLNearbySharesProximityQuota(t *testing.T) {
	app := newTestApp(t, appOptions{
		limits: config.LimitsConfig{
			ProviderDailyCap:   1000,
			ProximityHourlyCap: 1,
			ContactHourlyCap:   100,
			LoginHourlyCap:     100,
		},
	})

	// The REST call consumes the single hourly slot...
	if got := doJSON(t, app, "GET", "/v1/routes/nearby?lat=16.505&lon=80.645", nil); got != 200 {
		t.Fatalf("rest status = %d", got)
	}

	// ...so the same client is over quota on the GraphQL surface too.
	nearby := `{"query": "{ nearbyRoutes(lat: 16.505, lon: 80.645) { route_id } }"}`
	for i := 0; i < 3; i++ {
		errs := doGraphQL(t, app, nearby, nil)
		if len(errs) == 0 {
			t.Fatalf("call %d over quota returned data", i+1)
		}
		if !strings.Contains(errs[0].Message, "quota") {
			t.Errorf("error = %q", errs[0].Message)
		}
	}
}

func TestGraphQLNearbyMalformedDoesNotConsumeQuota(t *testing.T) {
	app := newTestApp(t, appOptions{
		limits: config.LimitsConfig{
			ProviderDailyCap:   1000,
			ProximityHourlyCap: 1,
			ContactHourlyCap:   100,
			LoginHourlyCap:     100,
		},
	})

	if errs := doGraphQL(t, app, `{"query": "{ nearbyRoutes(lat: 16.505, lon: 80.645, radius: -5) { route_id } }"}`, nil); len(errs) == 0 {
		t.Fatal("negative radius accepted")
	}

	// The rejected query must not have used the single slot.
	if errs := doGraphQL(t, app, `{"query": "{ nearbyRoutes(lat: 16.505, lon: 80.645) { route_id } }"}`, nil); len(errs) > 0 {
		t.Errorf("valid query after malformed one failed: %v", errs)
	}
}

func TestListAudits(t *testing.T) {
	audits := &mockAuditRepo{audits: []domain.ProximityAudit{
		{ClientIP: "10.0.0.1", Query: "Benz Circle", RadiusMeters: 1000, Matches: 1},
		{ClientIP: "10.0.0.2", RadiusMeters: 500, Matches: 0},
	}}
	app := newTestApp(t, appOptions{audits: audits})

	var body struct {
		Count int                     `json:"count"`
		Data  []domain.ProximityAudit `json:"data"`
	}
	if status := doJSON(t, app, "GET", "/v1/audits", &body); status != 200 {
		t.Fatalf("status = %d", status)
	}
	if body.Count != 2 || len(body.Data) != 2 {
		t.Fatalf("count = %d, data = %d, want 2", body.Count, len(body.Data))
	}
	if audits.gotLimit != 50 {
		t.Errorf("default limit = %d, want 50", audits.gotLimit)
	}

	if status := doJSON(t, app, "GET", "/v1/audits?limit=1", &body); status != 200 {
		t.Fatalf("status = %d", status)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t, appOptions{})

	var body struct {
		Status string `json:"status"`
	}
	if status := doJSON(t, app, "GET", "/v1/health", &body); status != 200 {
		t.Fatalf("status = %d", status)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q", body.Status)
	}
}
