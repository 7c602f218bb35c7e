package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/pkg/config"
	"github.com/samirrijal/nearbus/internal/pkg/metrics"
)

// GeocodeService resolves free-text or coordinate input through a primary
// paid provider with regional biasing and a free fallback provider.
// Successful resolutions are cached in-process indefinitely.
type GeocodeService struct {
	primary  ports.GeocodeProvider
	fallback ports.GeocodeProvider
	governor *UsageGovernor

	biasCity   string
	biasRegion string

	mu      sync.RWMutex
	forward map[string]domain.GeocodeResult
	reverse map[string]string
}

// NewGeocodeService creates a GeocodeService.
func NewGeocodeService(primary, fallback ports.GeocodeProvider, governor *UsageGovernor, cfg config.GeocodeConfig) *GeocodeService {
	return &GeocodeService{
		primary:    primary,
		fallback:   fallback,
		governor:   governor,
		biasCity:   cfg.BiasCity,
		biasRegion: cfg.BiasRegion,
		forward:    make(map[string]domain.GeocodeResult),
		reverse:    make(map[string]string),
	}
}

// Forward resolves free-text input to coordinates and a formatted address.
// Results are cached by normalized input; only successes are cached.
func (s *GeocodeService) Forward(ctx context.Context, text string) (domain.GeocodeResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.GeocodeResult{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	key := strings.ToLower(text)
	s.mu.RLock()
	cached, ok := s.forward[key]
	s.mu.RUnlock()
	if ok {
		metrics.GeocodeCacheHits.WithLabelValues("forward").Inc()
		return cached, nil
	}

	if s.primary != nil && s.governor.AllowProviderCall() {
		candidates, err := s.primary.Forward(ctx, s.biasQuery(text))
		switch {
		case err != nil:
			slog.Warn("primary geocode failed", "provider", s.primary.Name(), "error", err)
			metrics.ProviderCalls.WithLabelValues(s.primary.Name(), "error").Inc()
		case len(candidates) > 0:
			res := s.pickCandidate(candidates)
			s.cacheForward(key, res)
			metrics.ProviderCalls.WithLabelValues(s.primary.Name(), "ok").Inc()
			return res, nil
		default:
			metrics.ProviderCalls.WithLabelValues(s.primary.Name(), "miss").Inc()
		}
	}

	// Free fallback: raw query, no bias hints, single result.
	candidates, err := s.fallback.Forward(ctx, text)
	if err != nil || len(candidates) == 0 {
		if err != nil {
			slog.Warn("fallback geocode failed", "provider", s.fallback.Name(), "error", err)
			metrics.ProviderCalls.WithLabelValues(s.fallback.Name(), "error").Inc()
		}
		return domain.GeocodeResult{}, fmt.Errorf("%w: %q", domain.ErrResolution, text)
	}
	metrics.ProviderCalls.WithLabelValues(s.fallback.Name(), "ok").Inc()

	res := domain.GeocodeResult{
		Location:         candidates[0].Location,
		FormattedAddress: candidates[0].FormattedAddress,
	}
	s.cacheForward(key, res)
	return res, nil
}

// Reverse resolves coordinates to a display address. Keys are rounded to six
// decimal places so near-duplicate queries share cache entries. On total
// provider failure it returns a synthesized coordinate string instead of an
// error: reverse lookups feed display only, never matching.
func (s *GeocodeService) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
		return "", fmt.Errorf("%w: coordinates out of range (%f, %f)", domain.ErrInvalidInput, lat, lon)
	}

	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	s.mu.RLock()
	cached, ok := s.reverse[key]
	s.mu.RUnlock()
	if ok {
		metrics.GeocodeCacheHits.WithLabelValues("reverse").Inc()
		return cached, nil
	}

	if s.primary != nil && s.governor.AllowProviderCall() {
		addr, err := s.primary.Reverse(ctx, lat, lon)
		if err == nil && addr != "" {
			metrics.ProviderCalls.WithLabelValues(s.primary.Name(), "ok").Inc()
			s.cacheReverse(key, addr)
			return addr, nil
		}
		if err != nil {
			slog.Warn("primary reverse geocode failed", "provider", s.primary.Name(), "error", err)
			metrics.ProviderCalls.WithLabelValues(s.primary.Name(), "error").Inc()
		}
	}

	addr, err := s.fallback.Reverse(ctx, lat, lon)
	if err == nil && addr != "" {
		metrics.ProviderCalls.WithLabelValues(s.fallback.Name(), "ok").Inc()
		s.cacheReverse(key, addr)
		return addr, nil
	}
	if err != nil {
		slog.Warn("fallback reverse geocode failed", "provider", s.fallback.Name(), "error", err)
		metrics.ProviderCalls.WithLabelValues(s.fallback.Name(), "error").Inc()
	}

	// Synthesized label; deliberately not cached.
	return fmt.Sprintf("%.6f, %.6f", lat, lon), nil
}

// biasQuery appends the configured city/region to queries that look like a
// bare point-of-interest reference and don't already mention the city.
func (s *GeocodeService) biasQuery(text string) string {
	if s.biasCity == "" {
		return text
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(s.biasCity)) {
		return text
	}
	if strings.ContainsAny(text, ",0123456789") {
		// Already an address-shaped query; leave it alone.
		return text
	}
	if s.biasRegion != "" {
		return text + ", " + s.biasCity + ", " + s.biasRegion
	}
	return text + ", " + s.biasCity
}

// pickCandidate selects the best of several provider results: a candidate
// matching both the configured region and city wins, then region-only, then
// city-only, then the provider's first result.
func (s *GeocodeService) pickCandidate(candidates []ports.GeocodeCandidate) domain.GeocodeResult {
	best := candidates[0]
	bestScore := 0
	for _, c := range candidates {
		score := 0
		if s.biasRegion != "" && strings.EqualFold(c.AdminArea, s.biasRegion) {
			score += 2
		}
		if s.biasCity != "" && strings.EqualFold(c.Locality, s.biasCity) {
			score++
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return domain.GeocodeResult{Location: best.Location, FormattedAddress: best.FormattedAddress}
}

func (s *GeocodeService) cacheForward(key string, res domain.GeocodeResult) {
	s.mu.Lock()
	s.forward[key] = res
	s.mu.Unlock()
}

func (s *GeocodeService) cacheReverse(key, addr string) {
	s.mu.Lock()
	s.reverse[key] = addr
	s.mu.Unlock()
}
