package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/nearbus/internal/core/domain"
)

// clientIPKey carries the caller's IP from the transport into resolvers, so
// the proximity quota applies identically on both request surfaces.
type clientIPKey struct{}

var errProximityQuota = errors.New("proximity check quota exceeded, try again later")

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stop",
		Fields: graphql.Fields{
			"name":      &graphql.Field{Type: graphql.String},
			"location":  &graphql.Field{Type: geoPointType},
			"direction": &graphql.Field{Type: graphql.String},
			"seq":       &graphql.Field{Type: graphql.Int},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"outbound_stops": &graphql.Field{Type: graphql.NewList(stopType)},
			"inbound_stops":  &graphql.Field{Type: graphql.NewList(stopType)},
		},
	})

	directionMatchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DirectionMatch",
		Fields: graphql.Fields{
			"direction":       &graphql.Field{Type: graphql.String},
			"path":            &graphql.Field{Type: graphql.NewList(geoPointType)},
			"nearest_meters":  &graphql.Field{Type: graphql.Float},
			"stops_in_radius": &graphql.Field{Type: graphql.Int},
			"intersects":      &graphql.Field{Type: graphql.Boolean},
		},
	})

	routeMatchType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteMatch",
		Fields: graphql.Fields{
			"route_id":        &graphql.Field{Type: graphql.String},
			"route_name":      &graphql.Field{Type: graphql.String},
			"directions":      &graphql.Field{Type: graphql.NewList(directionMatchType)},
			"stops_in_radius": &graphql.Field{Type: graphql.Int},
		},
	})

	geocodeResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeocodeResult",
		Fields: graphql.Fields{
			"location":          &graphql.Field{Type: geoPointType},
			"formatted_address": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "List all routes with their stop sequences",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.ListRoutes(p.Context)
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Get a route by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Routes.GetByID(p.Context, id)
				},
			},
			"nearbyRoutes": &graphql.Field{
				Type:        graphql.NewList(routeMatchType),
				Description: "Routes whose path passes within a radius of a point",
				Args: graphql.FieldConfigArgument{
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius":  &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 1000.0},
					"contact": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					origin := domain.GeoPoint{
						Lat: p.Args["lat"].(float64),
						Lon: p.Args["lon"].(float64),
					}
					radius := p.Args["radius"].(float64)
					contact := p.Args["contact"].(string)
					if !origin.Valid() {
						return nil, errors.New("lat/lon out of range")
					}
					if radius <= 0 || radius > deps.Cfg.MaxRadiusMeters {
						return nil, errors.New("radius out of range")
					}

					// Same quota as the REST surface; validation first so
					// malformed queries never consume it.
					ip, _ := p.Context.Value(clientIPKey{}).(string)
					if !deps.Governor.AllowProximityCheck(ip, contact) {
						return nil, errProximityQuota
					}

					matches, err := deps.Proximity.FindNearbyRoutes(p.Context, origin, radius)
					if err != nil {
						return nil, err
					}

					publishAudit(deps, &domain.ProximityAudit{
						At:           time.Now().UTC(),
						ClientIP:     ip,
						Contact:      contact,
						Origin:       origin,
						RadiusMeters: radius,
						Matches:      len(matches),
					})
					return matches, nil
				},
			},
			"geocode": &graphql.Field{
				Type:        geocodeResultType,
				Description: "Resolve free text to coordinates",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					return deps.Geocode.Forward(p.Context, q)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        context.WithValue(c.Context(), clientIPKey{}, c.IP()),
		})

		return c.JSON(result)
	}
}
