package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/nearbus/internal/adapters/google"
	"github.com/samirrijal/nearbus/internal/adapters/http"
	natsadapter "github.com/samirrijal/nearbus/internal/adapters/nats"
	"github.com/samirrijal/nearbus/internal/adapters/nominatim"
	"github.com/samirrijal/nearbus/internal/adapters/postgres"
	"github.com/samirrijal/nearbus/internal/adapters/valkey"
	"github.com/samirrijal/nearbus/internal/core/ports"
	"github.com/samirrijal/nearbus/internal/core/usecases"
	"github.com/samirrijal/nearbus/internal/pkg/config"
	"github.com/samirrijal/nearbus/internal/pkg/logging"
	"github.com/samirrijal/nearbus/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("nearbus-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Snapshot store
	snapshots, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, polyline cache runs without persistence", "error", err)
		snapshots = nil
	} else {
		defer snapshots.Close()
	}

	// NATS
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	routeRepo := postgres.NewRouteRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	// Use cases
	clk := clock.New()
	governor := usecases.NewUsageGovernor(clk, cfg.Limits)
	geocodeSvc := usecases.NewGeocodeService(
		google.NewClient(cfg.Geocode),
		nominatim.NewClient(cfg.Geocode),
		governor,
		cfg.Geocode,
	)
	builder := usecases.NewPathBuilder(google.NewDirectionsClient(cfg.Geocode, cfg.Routing), governor)

	polylines := usecases.NewPolylineCache(clk, cfg.Cache.PolylineTTL(), routeRepo, builder, snapshotOrNil(snapshots), eventsOrNil(publisher))
	if err := polylines.LoadSnapshot(ctx); err != nil {
		slog.Warn("polyline snapshot load failed", "error", err)
	}
	polylines.StartSweeper(ctx)

	scheduler := usecases.NewRebuildScheduler(clk, cfg.Cache.RebuildCooldown(), func(ctx context.Context) {
		if _, err := polylines.RebuildAll(ctx); err != nil {
			slog.Error("polyline rebuild aborted", "error", err)
		}
	})

	proximitySvc := usecases.NewProximityService(routeRepo, polylines, usecases.DistanceMode(cfg.Proximity.DistanceMode))

	deps := &http.Dependencies{
		Geocode:   geocodeSvc,
		Proximity: proximitySvc,
		Polylines: polylines,
		Scheduler: scheduler,
		Governor:  governor,
		Routes:    routeRepo,
		Audits:    auditRepo,
		Events:    eventsOrNil(publisher),
		NATS:      natsConn,
		DB:        db,
		Snapshots: snapshots,
		Cfg:       cfg.Proximity,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "NearBus API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// snapshotOrNil avoids handing the cache a non-nil interface wrapping a
// nil pointer when Valkey is down.
func snapshotOrNil(s *valkey.SnapshotStore) ports.SnapshotStore {
	if s == nil {
		return nil
	}
	return s
}

func eventsOrNil(p *natsadapter.Publisher) ports.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
