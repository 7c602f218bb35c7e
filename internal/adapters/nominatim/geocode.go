// Package nominatim implements the fallback geocode provider on the
// OpenStreetMap Nominatim API. It carries no API key and is rate-limited
// upstream, so it only serves requests the primary provider could not.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/pkg/config"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	userAgent      = "nearbus/1.0 (transit proximity service)"
)

// Client talks to a Nominatim instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Nominatim client from the geocode configuration.
func NewClient(cfg config.GeocodeConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "nominatim" }

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Forward geocodes free text. The fallback is deliberately unbiased: one
// best result, no country restriction. Nominatim returns coordinates as
// strings and has no structured locality fields in the basic response, so
// candidates carry only location and display name.
func (c *Client) Forward(ctx context.Context, query string) ([]ports.GeocodeCandidate, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", "1")

	var results []searchResult
	if err := c.getJSON(ctx, "/search", params, &results); err != nil {
		return nil, err
	}

	candidates := make([]ports.GeocodeCandidate, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		candidates = append(candidates, ports.GeocodeCandidate{
			Location:         domain.GeoPoint{Lat: lat, Lon: lon},
			FormattedAddress: r.DisplayName,
		})
	}
	return candidates, nil
}

// Reverse geocodes coordinates to a display name.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))

	var result searchResult
	if err := c.getJSON(ctx, "/reverse", params, &result); err != nil {
		return "", err
	}
	if result.DisplayName == "" {
		return "", &domain.ProviderError{Provider: c.Name(), Err: fmt.Errorf("no address for %f,%f", lat, lon)}
	}
	return result.DisplayName, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", userAgent)

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
