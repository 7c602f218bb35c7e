// The auditor drains proximity-check events from JetStream into the
// audit table. It runs separately from the API so a slow database never
// adds latency to the request path.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/nearbus/internal/adapters/nats"
	"github.com/samirrijal/nearbus/internal/adapters/postgres"
	"github.com/samirrijal/nearbus/internal/core/domain"
	"github.com/samirrijal/nearbus/internal/pkg/config"
	"github.com/samirrijal/nearbus/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("nearbus-auditor")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	audits := postgres.NewAuditRepo(db)

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeProximityChecks(ctx, func(ctx context.Context, audit *domain.ProximityAudit) error {
		if err := audits.Insert(ctx, audit); err != nil {
			slog.Error("audit insert failed", "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe proximity checks: %v", err)
	}

	err = sub.SubscribeRebuilds(ctx, func(ctx context.Context, summary *domain.RebuildSummary) error {
		slog.Info("polyline rebuild observed",
			"routes", summary.Routes, "built", summary.Built,
			"failed", summary.Failed, "duration", summary.Duration)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe rebuilds: %v", err)
	}

	slog.Info("auditor running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("auditor stopped")
}
