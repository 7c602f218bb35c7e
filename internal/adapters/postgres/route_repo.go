package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/nearbus/internal/core/domain"
)

// RouteRepo implements ports.RouteRepository. Stops are stored one row
// per (route, direction, seq) and reassembled into ordered slices here.
type RouteRepo struct {
	db *DB
}

func NewRouteRepo(db *DB) *RouteRepo { return &RouteRepo{db: db} }

func (r *RouteRepo) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, created_at
		FROM routes ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[string]*domain.Route{}
	var order []string
	for rows.Next() {
		var rt domain.Route
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.CreatedAt); err != nil {
			return nil, err
		}
		byID[rt.ID] = &rt
		order = append(order, rt.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachStops(ctx, byID); err != nil {
		return nil, err
	}

	routes := make([]domain.Route, 0, len(order))
	for _, id := range order {
		routes = append(routes, *byID[id])
	}
	return routes, nil
}

func (r *RouteRepo) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	var rt domain.Route
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM routes WHERE id = $1
	`, id).Scan(&rt.ID, &rt.Name, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byID := map[string]*domain.Route{rt.ID: &rt}
	if err := r.attachStops(ctx, byID); err != nil {
		return nil, err
	}
	return &rt, nil
}

// attachStops loads the stop rows for every route in byID, ordered by
// seq so the slices come back in travel order.
func (r *RouteRepo) attachStops(ctx context.Context, byID map[string]*domain.Route) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT route_id, direction, seq, name, lat, lon
		FROM stops WHERE route_id = ANY($1)
		ORDER BY route_id, direction, seq
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			routeID string
			dirRaw  string
			stop    domain.Stop
		)
		if err := rows.Scan(&routeID, &dirRaw, &stop.Seq, &stop.Name,
			&stop.Location.Lat, &stop.Location.Lon); err != nil {
			return err
		}
		dir, err := domain.ParseDirection(dirRaw)
		if err != nil {
			return fmt.Errorf("route %s: %w", routeID, err)
		}
		stop.Direction = dir

		rt, ok := byID[routeID]
		if !ok {
			continue
		}
		switch dir {
		case domain.DirectionOutbound:
			rt.OutboundStops = append(rt.OutboundStops, stop)
		case domain.DirectionInbound:
			rt.InboundStops = append(rt.InboundStops, stop)
		}
	}
	return rows.Err()
}
