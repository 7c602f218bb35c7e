package google

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/pkg/polyline"
)

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// DrivingPath asks the Directions API for a driving route through the
// given waypoints and decodes the overview polyline.
func (c *Client) DrivingPath(ctx context.Context, origin, dest domain.GeoPoint, waypoints []domain.GeoPoint) ([]domain.GeoPoint, error) {
	params := url.Values{}
	params.Set("origin", formatPoint(origin))
	params.Set("destination", formatPoint(dest))
	params.Set("mode", "driving")
	params.Set("key", c.apiKey)
	if len(waypoints) > 0 {
		parts := make([]string, len(waypoints))
		for i, wp := range waypoints {
			parts[i] = formatPoint(wp)
		}
		params.Set("waypoints", strings.Join(parts, "|"))
	}

	var resp directionsResponse
	if err := c.getJSON(ctx, "/maps/api/directions/json", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("no routes, status %s", resp.Status)}
	}

	points, err := polyline.Decode(resp.Routes[0].OverviewPolyline.Points)
	if err != nil {
		return nil, &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("polyline: %w", err)}
	}
	return points, nil
}

func formatPoint(p domain.GeoPoint) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lon)
}
