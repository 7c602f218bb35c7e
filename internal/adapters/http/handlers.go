package http

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/nearbus/internal/core/domain"
)

// NearbyRoutesHandler answers the core question: which routes pass within
// a radius of a place. The place is either free text (q) resolved through
// the geocoder, or explicit coordinates (lat/lon).
func NearbyRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", deps.Cfg.DefaultRadiusMeters)
		contact := strings.TrimSpace(c.Query("contact"))

		hasCoords := c.Query("lat") != "" && c.Query("lon") != ""
		if query == "" && !hasCoords {
			return errBadRequest(c, "q or lat/lon is required")
		}
		if radius <= 0 || radius > deps.Cfg.MaxRadiusMeters {
			return errBadRequest(c, "radius out of range")
		}

		// Validation happens before the governor so malformed requests
		// never consume quota.
		if !deps.Governor.AllowProximityCheck(c.IP(), contact) {
			return errTooManyRequests(c, "proximity check quota exceeded, try again later")
		}

		var (
			origin  domain.GeoPoint
			address string
		)
		if query != "" {
			res, err := deps.Geocode.Forward(c.Context(), query)
			if err != nil {
				if errors.Is(err, domain.ErrResolution) {
					return errUnprocessable(c, "could not resolve location: "+query)
				}
				return errInternal(c, err.Error())
			}
			origin = res.Location
			address = res.FormattedAddress
		} else {
			origin = domain.GeoPoint{Lat: lat, Lon: lon}
			if !origin.Valid() {
				return errBadRequest(c, "lat/lon out of range")
			}
		}

		matches, err := deps.Proximity.FindNearbyRoutes(c.Context(), origin, radius)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				return errBadRequest(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		publishAudit(deps, &domain.ProximityAudit{
			At:           time.Now().UTC(),
			ClientIP:     c.IP(),
			Contact:      contact,
			Query:        query,
			Origin:       origin,
			RadiusMeters: radius,
			Matches:      len(matches),
		})

		return c.JSON(fiber.Map{
			"origin":        origin,
			"address":       address,
			"radius_meters": radius,
			"matches":       matches,
			"count":         len(matches),
		})
	}
}

// publishAudit emits the audit event without blocking the response. A lost
// audit record costs nothing user-visible.
func publishAudit(deps *Dependencies, audit *domain.ProximityAudit) {
	if deps.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.Events.PublishProximityCheck(ctx, audit); err != nil {
			slog.Warn("audit publish failed", "error", err)
		}
	}()
}

// ListRoutesHandler lists all routes with their stop sequences.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routes, err := deps.Routes.ListRoutes(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}

		// Apply offset/limit pagination on the full list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(routes)
		if offset >= total {
			routes = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			routes = routes[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: routes, Pagination: pg})
	}
}

// GetRouteHandler returns a route by ID.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		route, err := deps.Routes.GetByID(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if route == nil {
			return errNotFound(c, "route not found")
		}
		return c.JSON(route)
	}
}

// RoutePolylineHandler returns the cached traversal path for one direction
// of a route, building it on demand when absent or expired.
func RoutePolylineHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		dir, err := domain.ParseDirection(c.Query("direction", string(domain.DirectionOutbound)))
		if err != nil {
			return errBadRequest(c, "direction must be outbound or inbound")
		}

		route, err := deps.Routes.GetByID(c.Context(), id)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if route == nil {
			return errNotFound(c, "route not found")
		}

		poly, err := deps.Polylines.GetOrBuild(c.Context(), route, dir)
		if err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=600")
		return c.JSON(poly)
	}
}

// GeocodeHandler resolves free text to coordinates.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		res, err := deps.Geocode.Forward(c.Context(), query)
		if err != nil {
			if errors.Is(err, domain.ErrResolution) {
				return errUnprocessable(c, "could not resolve location: "+query)
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(res)
	}
}

// ReverseGeocodeHandler resolves coordinates to an address. Always answers:
// when no provider responds, the result is the synthesized coordinate label.
func ReverseGeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		if !(domain.GeoPoint{Lat: lat, Lon: lon}).Valid() {
			return errBadRequest(c, "lat/lon out of range")
		}

		addr, err := deps.Geocode.Reverse(c.Context(), lat, lon)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"address": addr})
	}
}

// RebuildPolylinesHandler signals the debounced rebuild scheduler. The
// rebuild itself runs later, so this returns 202 immediately. Repeated
// signals inside the cooldown coalesce into a single rebuild.
func RebuildPolylinesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Scheduler.Signal()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":    "scheduled",
			"scheduled": deps.Scheduler.Scheduled(),
		})
	}
}

// ListAuditsHandler returns the most recent proximity-check audit records,
// newest first.
func ListAuditsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Audits == nil {
			return errInternal(c, "audit store unavailable")
		}
		limit := c.QueryInt("limit", 50)
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		audits, err := deps.Audits.ListRecent(c.Context(), limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"data": audits, "count": len(audits)})
	}
}

// BudgetHandler reports remaining provider budget for the UTC day.
func BudgetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"provider_calls_remaining": deps.Governor.ProviderBudgetRemaining(),
		})
	}
}
