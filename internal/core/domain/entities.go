package domain

import (
	"fmt"
	"time"
)

// Direction identifies which way a route is being traversed.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Directions lists both traversal directions in a fixed order.
func Directions() []Direction {
	return []Direction{DirectionOutbound, DirectionInbound}
}

// ParseDirection converts a string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionOutbound, DirectionInbound:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, s)
}

// Stop is a scheduled stop on one direction of a route. Ordering within a
// direction is total and significant: Seq defines path traversal order.
type Stop struct {
	Name      string    `json:"name"`
	Location  GeoPoint  `json:"location"`
	Direction Direction `json:"direction"`
	Seq       int       `json:"seq"`
}

// Route is a scheduled transit route with its ordered stops per direction.
// Routes are owned by the admin side and consumed read-only here.
type Route struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OutboundStops []Stop    `json:"outbound_stops"`
	InboundStops  []Stop    `json:"inbound_stops"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// StopsFor returns the ordered stops for one direction.
func (r *Route) StopsFor(dir Direction) []Stop {
	if dir == DirectionInbound {
		return r.InboundStops
	}
	return r.OutboundStops
}

// RoutePolyline is the dense traversal path derived for one route direction.
// At most one live (non-expired) instance exists per (RouteID, Direction).
type RoutePolyline struct {
	RouteID   string     `json:"route_id"`
	Direction Direction  `json:"direction"`
	Points    []GeoPoint `json:"points"`
	BuiltAt   time.Time  `json:"built_at"`
}

// GeocodeResult is a resolved location. Immutable once created.
type GeocodeResult struct {
	Location         GeoPoint `json:"location"`
	FormattedAddress string   `json:"formatted_address"`
}

// DirectionMatch describes how one direction of a route relates to a search
// circle.
type DirectionMatch struct {
	Direction     Direction  `json:"direction"`
	Path          []GeoPoint `json:"path"`
	NearestMeters float64    `json:"nearest_meters"`
	StopsInRadius int        `json:"stops_in_radius"`
	Intersects    bool       `json:"intersects"`
}

// RouteMatch is one route that passes within the search circle. Stop counts
// and per-direction paths are aggregated from every intersecting direction.
type RouteMatch struct {
	RouteID       string           `json:"route_id"`
	RouteName     string           `json:"route_name"`
	Directions    []DirectionMatch `json:"directions"`
	StopsInRadius int              `json:"stops_in_radius"`
}

// ProximityAudit records one proximity check for the audit sink.
type ProximityAudit struct {
	At           time.Time `json:"at"`
	ClientIP     string    `json:"client_ip"`
	Contact      string    `json:"contact,omitempty"`
	Query        string    `json:"query,omitempty"`
	Origin       GeoPoint  `json:"origin"`
	RadiusMeters float64   `json:"radius_meters"`
	Matches      int       `json:"matches"`
}

// RebuildSummary describes one completed polyline rebuild sweep.
type RebuildSummary struct {
	At       time.Time `json:"at"`
	Routes   int       `json:"routes"`
	Built    int       `json:"built"`
	Failed   int       `json:"failed"`
	Duration string    `json:"duration"`
}
