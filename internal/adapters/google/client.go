// Package google implements the primary geocode and routing providers on
// top of the Google Maps web service APIs.
package google

import (
	"net/http"
	"time"

	"github.com/samirrijal/nearbus/internal/pkg/config"
)

const defaultBaseURL = "https://maps.googleapis.com"

// Client holds the shared HTTP client and credentials for the Maps APIs.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	countryCode string
}

// NewClient creates a Maps client from the geocode configuration.
func NewClient(cfg config.GeocodeConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		apiKey:      cfg.GoogleAPIKey,
		baseURL:     defaultBaseURL,
		countryCode: cfg.CountryCode,
	}
}

// NewDirectionsClient creates a Maps client for the Directions API. Routing
// gets its own timeout: a driving path over a long stop sequence takes the
// upstream service longer than a geocode lookup.
func NewDirectionsClient(cfg config.GeocodeConfig, routing config.RoutingConfig) *Client {
	c := NewClient(cfg)
	c.httpClient.Timeout = time.Duration(routing.TimeoutSeconds) * time.Second
	return c
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "google" }
