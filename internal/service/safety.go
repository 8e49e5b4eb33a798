package service

import (
	"context"
	"time"

	"chamberheat/internal/logger"
	"chamberheat/internal/sensor"
)

// SafetyMonitor is an independent task watching the hottest probe against a
// hard limit. It does not touch RunState itself: a trip only raises the
// emergency intent, which the controller applies at its next lock
// acquisition. A user emergency stop racing a trip converges on the same
// idle state.
type SafetyMonitor struct {
	probes  []sensor.Probe
	ctrl    *Controller
	limitC  float64
	rearmC  float64
	log     *logger.Logger
	tripped bool
}

func NewSafetyMonitor(probes []sensor.Probe, ctrl *Controller, cfg Config, log *logger.Logger) *SafetyMonitor {
	rearm := cfg.MaxSafeC - cfg.SafetyRearmMarginC
	return &SafetyMonitor{
		probes: probes,
		ctrl:   ctrl,
		limitC: cfg.MaxSafeC,
		rearmC: rearm,
		log:    log,
	}
}

// Run checks at the given interval until ctx is canceled.
func (m *SafetyMonitor) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check()
		}
	}
}

// Check performs one inspection. Exported for deterministic tests.
func (m *SafetyMonitor) Check() {
	if m.limitC <= 0 {
		return
	}
	max, healthy := sensor.Max(m.probes)
	if healthy == 0 {
		// The control loop handles total sensor loss itself.
		return
	}

	if max >= m.limitC {
		if !m.tripped {
			m.tripped = true
			m.log.Errorw("overtemperature_trip", "temp_c", max, "limit_c", m.limitC)
		}
		// Keep requesting until the temperature falls; trips are idempotent.
		m.ctrl.TripEmergency("overtemperature")
		return
	}
	if m.tripped && max < m.rearmC {
		m.tripped = false
		m.log.Infow("overtemperature_cleared", "temp_c", max)
	}
}
