// Command homehubd runs the HomeHub core: a WebSocket hub through which
// household members authenticate, join their house and control its
// devices, with every state change persisted to SQLite and broadcast to
// the rest of the house.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hallfield/homehub-core/internal/auth"
	"github.com/hallfield/homehub-core/internal/house"
	"github.com/hallfield/homehub-core/internal/hub"
	"github.com/hallfield/homehub-core/internal/infrastructure/config"
	"github.com/hallfield/homehub-core/internal/infrastructure/database"
	"github.com/hallfield/homehub-core/internal/infrastructure/influxdb"
	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
	"github.com/hallfield/homehub-core/internal/infrastructure/mqtt"
	"github.com/hallfield/homehub-core/internal/seed"
	"github.com/hallfield/homehub-core/internal/server"
	"github.com/hallfield/homehub-core/internal/session"

	_ "github.com/hallfield/homehub-core/migrations" // embed schema migrations
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	seedDemo := flag.Bool("seed", false, "seed a demo household and exit")
	flag.Parse()

	if err := run(*configPath, *seedDemo); err != nil {
		fmt.Fprintf(os.Stderr, "homehubd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, seedDemo bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting homehub core", "version", version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // shutdown path

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	authRepo := auth.NewSQLiteRepository(db.DB)
	houseRepo := house.NewSQLiteRepository(db.DB)

	if seedDemo {
		if err := seed.Demo(ctx, authRepo, houseRepo, logger); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
		return nil
	}

	lockTimeout := cfg.Cache.GetLockTimeout()
	cache := house.NewCache(houseRepo, house.CacheConfig{
		MaxHouses:   cfg.Cache.MaxHouses,
		LockTimeout: lockTimeout,
	}, logger.With("component", "cache"))
	sessions := session.NewRegistry(lockTimeout)
	broadcast := hub.New(sessions, logger.With("component", "hub"))
	tokens := auth.NewTokenIssuer(
		cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.TokenTTL)*time.Minute,
	)

	var publisher server.StatePublisher
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, logger.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("connecting to mqtt: %w", err)
		}
		defer mqttClient.Close()
		publisher = mqttClient
	}

	var telemetry server.TelemetryWriter
	if cfg.InfluxDB.Enabled {
		influxClient := influxdb.New(cfg.InfluxDB, logger.With("component", "influxdb"))
		defer influxClient.Close()
		telemetry = influxClient
	}

	dispatcher := server.NewDispatcher(
		sessions, cache, houseRepo, authRepo, tokens, broadcast,
		logger.With("component", "dispatcher"),
		publisher, telemetry,
	)
	srv := server.New(cfg, dispatcher, broadcast, sessions, db, logger.With("component", "server"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("homehub core stopped")
	return nil
}
