package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/config"
	"github.com/AdamBeresnev/padel-tournament/internal/db"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/live"
	"github.com/AdamBeresnev/padel-tournament/internal/logger"
	"github.com/AdamBeresnev/padel-tournament/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{}).Fatal("failed to load configuration", "error", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, ServiceName: "padel-tournament"})
	defer log.Sync()

	database, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal("failed to open database", "driver", cfg.Database.Driver, "error", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := live.NewHub(log)
	go hub.Run(ctx)

	sinks := []events.Notifier{hub}
	if cfg.NATS.URL != "" {
		conn, err := events.Connect(cfg.NATS.URL, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", "url", cfg.NATS.URL, "error", err)
		}
		defer conn.Drain()
		sinks = append(sinks, events.NewNATSPublisher(conn, cfg.NATS.SubjectPrefix))
		log.Info("publishing events to NATS", "url", cfg.NATS.URL, "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	deps := service.Deps{
		DB:       database,
		Stores:   service.NewStores(database),
		Log:      log,
		Notifier: events.NewFanout(log, sinks...),
	}
	app := newApplication(deps, hub, cfg.Americano.ExhaustiveLimit)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.routes(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func newApplication(deps service.Deps, hub *live.Hub, exhaustiveLimit int) *application {
	standings := service.NewStandingsService(deps)
	groups := service.NewGroupService(deps, standings)
	return &application{
		log:         deps.Log,
		hub:         hub,
		tournaments: service.NewTournamentService(deps),
		standings:   standings,
		groups:      groups,
		brackets:    service.NewBracketService(deps, groups),
		matches:     service.NewMatchService(deps, standings),
		americano:   service.NewAmericanoService(deps, exhaustiveLimit),
	}
}
