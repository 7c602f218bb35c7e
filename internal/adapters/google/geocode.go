package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
)

// geocodeResponse mirrors the Geocoding API JSON shape we consume.
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// Forward geocodes free text, biased toward the configured region and
// country. Returns every candidate so the caller can apply its own
// preference order.
func (c *Client) Forward(ctx context.Context, query string) ([]ports.GeocodeCandidate, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", c.apiKey)
	if c.countryCode != "" {
		params.Set("region", c.countryCode)
		params.Set("components", "country:"+c.countryCode)
	}

	var resp geocodeResponse
	if err := c.getJSON(ctx, "/maps/api/geocode/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "OVER_QUERY_LIMIT" || resp.Status == "REQUEST_DENIED" {
		return nil, &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("status %s", resp.Status)}
	}

	candidates := make([]ports.GeocodeCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		cand := ports.GeocodeCandidate{
			Location: domain.GeoPoint{
				Lat: r.Geometry.Location.Lat,
				Lon: r.Geometry.Location.Lng,
			},
			FormattedAddress: r.FormattedAddress,
		}
		for _, comp := range r.AddressComponents {
			for _, t := range comp.Types {
				switch t {
				case "administrative_area_level_1":
					cand.AdminArea = comp.LongName
				case "locality":
					cand.Locality = comp.LongName
				}
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// Reverse geocodes coordinates to a formatted address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("latlng", fmt.Sprintf("%f,%f", lat, lon))
	params.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.getJSON(ctx, "/maps/api/geocode/json", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("no results, status %s", resp.Status)}
	}
	return resp.Results[0].FormattedAddress, nil
}

// getJSON performs a GET against the Maps API and decodes the body.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ProviderError{Provider: c.Name(), Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("http %d", res.StatusCode)}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
