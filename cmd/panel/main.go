package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"venue-panel/config"
	"venue-panel/internal/application"
	"venue-panel/internal/infra/api"
	"venue-panel/internal/infra/justaddpower"
	"venue-panel/internal/infra/mqtt"
	"venue-panel/internal/infra/pushover"
	"venue-panel/internal/infra/snapshot"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load has already validated every duration below.
	timeout, _ := cfg.DeviceTimeout()
	syncInterval, _ := cfg.SyncInterval()
	timing, _ := cfg.Timing.Apply(application.DefaultTiming())

	zones := cfg.ZoneList()
	client := justaddpower.NewClient(timeout)

	sequencer := application.NewSequencer(
		client,
		application.NewProber(client, cfg.Devices.VolumeModels, cfg.Devices.DSPModels, logger),
		application.NewGateController(client, logger),
		application.NewVolumeRamp(client, nil, timing, logger),
		nil,
		timing,
		logger,
	)

	store, closeStore, err := createSnapshotStore(ctx, cfg.Snapshot, logger)
	if err != nil {
		logger.Error("opening snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var notifier application.Notifier = &application.NoopNotifier{}
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
	}

	var publisher application.ReportPublisher = &application.NoopPublisher{}
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			logger.Error("connecting to mqtt", "error", err)
			os.Exit(1)
		}
		mqttPublisher := mqtt.NewPublisher(mqttClient, cfg.MQTT.Topic, logger)
		defer mqttPublisher.Close()
		publisher = mqttPublisher
	}

	orchestrator := application.NewOrchestrator(sequencer, notifier, publisher, nil, timing, logger)
	snapshots := application.NewVolumeSnapshots(client, store, nil, timing, logger)

	var venue *application.VenueAudio
	if plan, ok := cfg.VenuePlan(); ok {
		venue = application.NewVenueAudio(plan, orchestrator, snapshots, client, nil, timing, logger)
	}

	// Device commands from the API and the status poll share one bus.
	bus := &sync.Mutex{}

	registry := justaddpower.NewRegistry(client, zones, bus, logger)
	if syncInterval > 0 {
		go func() {
			if err := registry.Sync(ctx); err != nil {
				logger.Warn("initial device status sync failed", "error", err)
			}
		}()
		registry.StartPeriodicSync(ctx, syncInterval)
	}

	server := api.NewServer(cfg.HTTP.Addr, api.Deps{
		Zones:        zones,
		Orchestrator: orchestrator,
		Venue:        venue,
		Snapshots:    snapshots,
		Status:       registry,
		Channels:     client,
		Bus:          bus,
	}, cfg.HTTP.RateLimit, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("starting HTTP server", "error", err)
		os.Exit(1)
	}

	logger.Info("venue panel started",
		"zones", len(zones),
		"venue_audio", venue != nil,
		"snapshot_backend", cfg.Snapshot.Backend,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	cancel()

	if err := server.Stop(); err != nil {
		logger.Error("stopping HTTP server", "error", err)
	}
}

func createSnapshotStore(ctx context.Context, cfg config.SnapshotConfig, logger *slog.Logger) (application.SnapshotStore, func(), error) {
	if cfg.Backend == config.SnapshotBackendRedis {
		store := snapshot.NewRedisStore(snapshot.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.RedisKey)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Info("using redis snapshot store", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
		return store, func() { store.Close() }, nil
	}

	logger.Info("using file snapshot store", "path", cfg.Path)
	return snapshot.NewFileStore(cfg.Path), func() {}, nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
