// Gray Logic Irrigation - Irrigation Program Controller
//
// This is the main entry point for the irrigation controller. It runs
// watering programs against zone valves reachable over the Gray Logic MQTT
// bus: each program waters its zones in order, honours rain sensors, and
// starts on a schedule or on demand.
//
// Configuration is read from IRRIGATION_CONFIG (default configs/config.yaml);
// programs and their zones are defined in the file named by
// irrigation.programs_file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-irrigation/internal/api"
	"github.com/nerrad567/gray-logic-irrigation/internal/entity"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irrigation/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-irrigation/internal/irrigation"
	"github.com/nerrad567/gray-logic-irrigation/internal/metrics"
	"github.com/nerrad567/gray-logic-irrigation/internal/scheduler"
	"github.com/nerrad567/gray-logic-irrigation/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// startupSettle is how long retained entity states get to arrive before
	// the startup stop sweep and reference check.
	startupSettle = 5 * time.Second

	// shutdownTimeout bounds the wait for running programs to switch off.
	shutdownTimeout = 30 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Irrigation",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"timezone", cfg.Site.Timezone,
	)
	loc := cfg.Location()

	programsFile, err := irrigation.LoadPrograms(cfg.Irrigation.ProgramsFile)
	if err != nil {
		return fmt.Errorf("loading programs: %w", err)
	}
	log.Info("programs loaded",
		"path", cfg.Irrigation.ProgramsFile,
		"programs", len(programsFile.Programs),
		"static_values", len(programsFile.Values),
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	influxClient, err = influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		influxClient = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Entity values and zone actuators
	store := entity.NewStore()
	store.SetLogger(log.Component("entity"))
	store.Seed(programsFile.Values)

	actuators := entity.NewSwitchActuator(mqttClient, store, entity.ActuatorConfig{
		Protocol:   cfg.Irrigation.ActuatorProtocol,
		Topic:      mqtt.Topics{}.BridgeCommand,
		Optimistic: cfg.Irrigation.OptimisticState,
	})
	actuators.SetLogger(log.Component("actuator"))

	if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllEntityStates(), byte(cfg.MQTT.QoS), entityStateHandler(store, log)); subErr != nil {
		return fmt.Errorf("subscribing to entity states: %w", subErr)
	}

	// Telemetry and notifications
	collector := metrics.NewCollector()
	observers := irrigation.MultiObserver{collector}
	if influxClient != nil {
		observers = append(observers, historyObserver{history: influxClient})
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	notifier := irrigation.MultiNotifier{
		irrigation.NewMQTTNotifier(mqttClient, mqtt.Topics{}.ProgramState, log.Component("notifier")),
		irrigation.HubNotifier{Hub: hub},
	}

	// Program registry
	repo := irrigation.NewSQLiteRepository(db.DB, loc)
	registry := irrigation.NewRegistry(irrigation.Dependencies{
		Values:    store,
		Actuators: actuators,
		Store:     repo,
		Runs:      repo,
		Notifier:  notifier,
		Observer:  observers,
		Clock:     irrigation.SystemClock{Location: loc},
		Tick:      cfg.TickDuration(),
		Logger:    log.Component("irrigation"),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("stopping running programs")
		if shutdownErr := registry.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("error stopping programs", "error", shutdownErr)
		}
	}()

	for _, programCfg := range programsFile.Programs {
		if _, regErr := registry.Register(ctx, programCfg); regErr != nil {
			return fmt.Errorf("registering program %s: %w", programCfg.ID, regErr)
		}
	}
	log.Info("program registry initialised", "programs", registry.Count())

	commands := commandHandler(ctx, registry, log)
	if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllProgramCommands(), byte(cfg.MQTT.QoS), commands); subErr != nil {
		return fmt.Errorf("subscribing to program commands: %w", subErr)
	}
	if subErr := mqttClient.Subscribe(mqtt.Topics{}.StopPrograms(), byte(cfg.MQTT.QoS), commands); subErr != nil {
		return fmt.Errorf("subscribing to stop_programs: %w", subErr)
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(startupSettle):
		}
		startupSweep(ctx, cfg.Irrigation, registry, log)
	}()

	// Host clock
	ticker, err := scheduler.New(registry, scheduler.Config{
		Spec:     cfg.Irrigation.TickSchedule,
		Location: loc,
	}, log.Component("scheduler"))
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if startErr := ticker.Start(ctx); startErr != nil {
		return fmt.Errorf("starting scheduler: %w", startErr)
	}
	defer ticker.Stop()

	// HTTP API
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Programs:    registry,
		Runs:        repo,
		Metrics:     collector.Handler(),
		MQTT:        mqttClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"next_tick", ticker.Next(time.Now()).Format(time.RFC3339),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Scheduler
	// 3. Running programs (valves switched off while MQTT is still up)
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("Gray Logic Irrigation stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// startupSweep stops every program once so no valve is left open by a
// previous process, then reports configured references that do not resolve.
func startupSweep(ctx context.Context, cfg config.IrrigationConfig, registry *irrigation.Registry, log *logging.Logger) {
	if cfg.StopOnStartup {
		log.Info("stopping all programs after startup")
		registry.StopAll(ctx)
	}
	if missing := registry.CheckReferences(ctx); len(missing) > 0 {
		log.Warn("programs reference unknown entities", "count", len(missing))
	}
}
