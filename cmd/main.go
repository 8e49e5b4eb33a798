package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chamberheat/internal/actuator"
	"chamberheat/internal/handlers"
	"chamberheat/internal/logger"
	"chamberheat/internal/printer"
	"chamberheat/internal/repository"
	"chamberheat/internal/repository/db"
	"chamberheat/internal/sensor"
	"chamberheat/internal/server"
	"chamberheat/internal/service"
	"chamberheat/internal/sim"

	"github.com/spf13/viper"
)

const (
	defaultControlTick  = 1 * time.Second
	defaultSafetyTick   = 2 * time.Second
	shutdownGracePeriod = 10 * time.Second
)

func main() {
	// load config.yml first so the log level is configurable
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	probes, driver := buildHardware(log)
	services, err := service.NewService(ctx, repos, probes, driver, loadControlConfig(), log)
	if err != nil {
		log.Fatalw("failed to build services", "err", err)
	}
	apiHandler := handlers.NewHandler(services, log)

	// resume a checkpointed run before the loop starts ticking
	if err := services.Controller.Recover(ctx); err != nil {
		log.Fatalw("failed to recover checkpoint", "err", err)
	}

	// start control loop and safety monitor
	go services.Controller.Run(ctx, tickInterval("control.tick", defaultControlTick))
	go services.Safety.Run(ctx, tickInterval("safety.tick", defaultSafetyTick))

	// follow the printer if configured
	link := connectPrinter(ctx, services.Controller, log)
	defer func() { _ = link.Close() }()

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "chamberheat.db")
		dbPath = "chamberheat.db"
	}
	return db.InitDB(dbPath)
}

// buildHardware returns the temperature probes and the relay driver. With no
// hardware configured, one simulated chamber serves as both.
func buildHardware(log *logger.Logger) ([]sensor.Probe, actuator.Driver) {
	if viper.GetBool("sim.enabled") || !viper.IsSet("sim.enabled") {
		log.Infow("using simulated chamber; no hardware configured")
		ch := sim.New(viper.GetFloat64("sim.ambient_c"))
		return []sensor.Probe{ch}, ch
	}
	// Real probe and relay drivers plug in here; nothing ships yet, so a
	// disabled sim is still a sim.
	log.Warnw("hardware drivers not available; falling back to simulation")
	ch := sim.New(viper.GetFloat64("sim.ambient_c"))
	return []sensor.Probe{ch}, ch
}

func loadControlConfig() service.Config {
	cfg := service.DefaultConfig()
	if v := viper.GetFloat64("safety.max_temp_c"); v > 0 {
		cfg.MaxSafeC = v
	}
	if v := viper.GetDuration("control.checkpoint_interval"); v > 0 {
		cfg.CheckpointInterval = v
	}
	return cfg
}

func tickInterval(key string, fallback time.Duration) time.Duration {
	if v := viper.GetDuration(key); v > 0 {
		return v
	}
	return fallback
}

// connectPrinter starts the printer follower when credentials are present.
// A broken printer link never blocks the heater; we log and carry on.
func connectPrinter(ctx context.Context, ctrl *service.Controller, log *logger.Logger) *printer.Link {
	cfg := printer.Config{
		Host:       viper.GetString("printer.host"),
		AccessCode: viper.GetString("printer.access_code"),
		Serial:     viper.GetString("printer.serial"),
	}
	monitor := printer.NewMonitor(ctrl, log)
	link, err := printer.NewLink(ctx, cfg, monitor, log)
	if err != nil {
		log.Errorw("printer link failed; continuing without it", "err", err)
		return nil
	}
	return link
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
