package service

import (
	"context"
	"time"

	"chamberheat/internal/actuator"
	"chamberheat/internal/logger"
	"chamberheat/internal/models"
	"chamberheat/internal/repository"
	"chamberheat/internal/sensor"
)

// Chamber exposes the command surface. Every command either succeeds or is
// rejected with an InvalidTransition/Validation error; rejected commands
// leave the run state untouched.
type Chamber interface {
	Start(ctx context.Context, p models.StartParams) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	ConfirmPreheat(ctx context.Context) error
	Stop(ctx context.Context) error
	EmergencyStop(ctx context.Context) error
	SetSetpoint(ctx context.Context, setpointC float64) error
	AdjustDuration(ctx context.Context, delta time.Duration) error
	SetManualOverride(ctx context.Context, actuatorName string, on bool) error
	ClearManualOverride(ctx context.Context, actuatorName string) error
}

// Monitoring exposes the latest sequenced status snapshot.
type Monitoring interface {
	Snapshot() models.StatusSnapshot
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ChamberEvent, error)
}

// SettingsStore reads and updates the persisted settings and presets.
type SettingsStore interface {
	Get(ctx context.Context) (models.Settings, error)
	Update(ctx context.Context, s models.Settings) error
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "START", "STOP", "PHASE_CHANGE", "ERROR", ...
}

// Config carries the operational limits wired in from configuration.
type Config struct {
	MaxSafeC           float64
	SafetyRearmMarginC float64
	ActuatorTimeout    time.Duration
	CheckpointInterval time.Duration
	CooldownStep       time.Duration
	ResumeGrace        time.Duration
	MaxCooldownBudget  time.Duration
}

// DefaultConfig mirrors the daemon's historical tuning.
func DefaultConfig() Config {
	return Config{
		MaxSafeC:           80,
		SafetyRearmMarginC: 5,
		ActuatorTimeout:    2 * time.Second,
		CheckpointInterval: 10 * time.Second,
		CooldownStep:       5 * time.Minute,
		ResumeGrace:        5 * time.Minute,
		MaxCooldownBudget:  12 * time.Hour,
	}
}

// Service aggregates all sub-services.
type Service struct {
	Chamber    Chamber
	Monitoring Monitoring
	EventLog   EventLog
	Settings   SettingsStore

	Controller *Controller
	Safety     *SafetyMonitor
}

// NewService wires the repository layer, probes, and driver into concrete
// services. Persisted settings win over defaults; defaults are persisted on
// first boot so later edits start from a full document.
func NewService(ctx context.Context, repos *repository.Repository, probes []sensor.Probe, driver actuator.Driver, cfg Config, log *logger.Logger) (*Service, error) {
	settings, found, err := repos.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		settings = models.DefaultSettings()
		if err := repos.Settings.Save(ctx, settings); err != nil {
			return nil, err
		}
	}

	ctrl := NewController(probes, driver, repos.Checkpoints, repos.Events, settings, cfg, log)
	return &Service{
		Chamber:    ctrl,
		Monitoring: ctrl,
		EventLog:   NewEventLogService(repos.Events),
		Settings:   NewSettingsService(repos.Settings, repos.Events, ctrl, cfg),
		Controller: ctrl,
		Safety:     NewSafetyMonitor(probes, ctrl, cfg, log),
	}, nil
}
