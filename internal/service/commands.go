package service

import (
	"context"
	"time"

	"chamberheat/internal/actuator"
	"chamberheat/internal/control"
	"chamberheat/internal/models"
)

// Auto-started runs have no duration of their own; the printer's finish
// event ends them, the target is only a cap.
const autoStartDurationCap = 24 * time.Hour

// Start begins a run from Idle. Manual overrides, pause state, and the
// emergency latch are cleared; the accountant resets to zero. With the
// skip-preheat option set and the chamber already at or above temperature,
// WarmingUp is bypassed and the timer starts immediately.
func (c *Controller) Start(ctx context.Context, p models.StartParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := control.CheckCommand(control.CmdStart, c.st.Phase); err != nil {
		return err
	}

	setpoint := p.SetpointC
	fansEnabled := c.cfg.FansEnabled
	duration := time.Duration(p.DurationSec) * time.Second

	if p.Material != "" {
		preset, ok := c.cfg.PresetFor(p.Material)
		if !ok {
			return control.Validationf("unknown material %q", p.Material)
		}
		if preset.TempC <= 0 {
			return control.Validationf("material %q needs no chamber heating", p.Material)
		}
		setpoint = preset.TempC
		fansEnabled = preset.Fans
	}

	if setpoint <= 0 {
		return control.Validationf("setpoint must be positive, got %.1f", setpoint)
	}
	if c.opts.MaxSafeC > 0 && setpoint > c.opts.MaxSafeC {
		return control.Validationf("setpoint %.1f exceeds safe limit %.1f", setpoint, c.opts.MaxSafeC)
	}
	if duration <= 0 {
		return control.Validationf("duration must be positive, got %ds", p.DurationSec)
	}

	now := c.now()
	c.st = models.RunState{
		Phase:               models.PhaseWarmingUp,
		Setpoint:            setpoint,
		DurationTarget:      duration,
		FansEnabled:         fansEnabled,
		RequireConfirmation: c.cfg.RequirePreheatConfirmation,
		RunStartedAt:        now,
		HeaterOn:            false,
		FansOn:              false,
	}
	c.confirmPending = false
	c.estopTime = time.Time{}

	c.log.Infow("run_started", "setpoint_c", setpoint, "duration", duration, "material", p.Material)
	c.appendEventLocked(ctx, models.EventStart, "run started", map[string]any{
		"setpoint_c":   setpoint,
		"duration_sec": int(duration / time.Second),
		"material":     p.Material,
	})

	if c.cfg.SkipPreheat && !c.sensorFault && c.lastTempC >= setpoint {
		c.log.Infow("preheat_skipped", "temp_c", c.lastTempC)
		c.beginTimerLocked(ctx, now)
	} else {
		c.saveCheckpointLocked(ctx, now)
	}
	c.publishLocked(now)
	return nil
}

// Pause freezes the accountant. Temperature regulation keeps running.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := control.CheckCommand(control.CmdPause, c.st.Phase); err != nil {
		return err
	}
	if !c.st.Paused {
		c.st.Paused = true
		c.log.Infow("run_paused", "elapsed", c.st.ActiveElapsed)
		c.saveCheckpointLocked(ctx, c.now())
	}
	c.publishLocked(c.now())
	return nil
}

// Resume continues accumulation with no adjustment for paused wall time.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := control.CheckCommand(control.CmdResume, c.st.Phase); err != nil {
		return err
	}
	if c.st.Paused {
		c.st.Paused = false
		c.log.Infow("run_resumed", "remaining", c.st.Remaining())
		c.saveCheckpointLocked(ctx, c.now())
	}
	c.publishLocked(c.now())
	return nil
}

// ConfirmPreheat releases the confirmation hold. Arriving before the
// chamber reaches tolerance, it is remembered and honored then.
func (c *Controller) ConfirmPreheat(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := control.CheckCommand(control.CmdConfirmPreheat, c.st.Phase); err != nil {
		return err
	}
	c.confirmPending = true
	if c.st.AwaitingConfirmation {
		c.beginTimerLocked(ctx, c.now())
	}
	c.publishLocked(c.now())
	return nil
}

// Stop ends the run immediately, skipping Cooling. Overrides survive; an
// overridden fan keeps running, everything else goes off.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := control.CheckCommand(control.CmdStop, c.st.Phase); err != nil {
		return err
	}
	c.stopLocked(ctx, "stopped by user")
	c.publishLocked(c.now())
	return nil
}

func (c *Controller) stopLocked(ctx context.Context, reason string) {
	c.appendEventLocked(ctx, models.EventStop, reason, map[string]any{"phase": c.st.Phase})
	c.completeLocked(ctx, c.now(), reason)
}

// EmergencyStop short-circuits any phase to Idle with highest priority.
// Safety monitor trips and user commands converge on the same terminal
// state; calling it while already Idle is harmless.
func (c *Controller) EmergencyStop(ctx context.Context) error {
	c.TripEmergency("user command")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.estop.Swap(false) {
		c.emergencyLocked(ctx, c.now(), c.estopReason.Load().(string))
	}
	c.publishLocked(c.now())
	return nil
}

// SetSetpoint changes the target temperature mid-run.
func (c *Controller) SetSetpoint(ctx context.Context, setpointC float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := control.CheckCommand(control.CmdSetSetpoint, c.st.Phase); err != nil {
		return err
	}
	if setpointC <= 0 {
		return control.Validationf("setpoint must be positive, got %.1f", setpointC)
	}
	if c.opts.MaxSafeC > 0 && setpointC > c.opts.MaxSafeC {
		return control.Validationf("setpoint %.1f exceeds safe limit %.1f", setpointC, c.opts.MaxSafeC)
	}

	c.st.Setpoint = setpointC
	c.log.Infow("setpoint_changed", "setpoint_c", setpointC)
	c.saveCheckpointLocked(ctx, c.now())
	c.publishLocked(c.now())
	return nil
}

// AdjustDuration adds or removes run time. The resulting target must stay
// positive; shrinking it below the elapsed time ends the run at the next
// tick via the normal duration transition.
func (c *Controller) AdjustDuration(ctx context.Context, delta time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := control.CheckCommand(control.CmdAdjustDuration, c.st.Phase); err != nil {
		return err
	}
	next := c.st.DurationTarget + delta
	if next <= 0 {
		return control.Validationf("duration adjustment %v would make the target non-positive", delta)
	}

	c.st.DurationTarget = next
	c.log.Infow("duration_adjusted", "delta", delta, "target", next)
	c.saveCheckpointLocked(ctx, c.now())
	c.publishLocked(c.now())
	return nil
}

// SetManualOverride pins an actuator on or off, bypassing regulation, until
// cleared or until the next Start. Valid in every phase.
func (c *Controller) SetManualOverride(ctx context.Context, actuatorName string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := on
	switch actuatorName {
	case actuator.Heater:
		c.st.HeaterOverride = &v
	case actuator.Fans:
		c.st.FansOverride = &v
	default:
		return control.Validationf("unknown actuator %q", actuatorName)
	}

	c.log.Infow("manual_override_set", "actuator", actuatorName, "on", on)
	c.issueIntentsLocked(ctx,
		control.ApplyOverride(c.st.HeaterOn, c.st.HeaterOverride),
		control.ApplyOverride(c.st.FansOn, c.st.FansOverride),
		false)
	c.publishLocked(c.now())
	return nil
}

// ClearManualOverride returns an actuator to automatic regulation.
func (c *Controller) ClearManualOverride(ctx context.Context, actuatorName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch actuatorName {
	case actuator.Heater:
		c.st.HeaterOverride = nil
	case actuator.Fans:
		c.st.FansOverride = nil
	default:
		return control.Validationf("unknown actuator %q", actuatorName)
	}
	c.log.Infow("manual_override_cleared", "actuator", actuatorName)
	c.publishLocked(c.now())
	return nil
}

// HandleJobStarted auto-starts a run when the printer begins printing. The
// material picks the preset; materials that need no chamber heat are
// ignored, as is anything while a run is already active.
func (c *Controller) HandleJobStarted(ctx context.Context, material string) {
	c.mu.Lock()
	autoStart := c.cfg.AutoStartEnabled
	idle := c.st.Phase == models.PhaseIdle
	preset, known := c.cfg.PresetFor(material)
	c.mu.Unlock()

	if !autoStart || !idle {
		return
	}
	if material != "" && known && preset.TempC <= 0 {
		c.log.Infow("auto_start_skipped", "material", material, "reason", "no chamber heat needed")
		return
	}

	p := models.StartParams{
		DurationSec: int(autoStartDurationCap / time.Second),
	}
	if material != "" && known {
		p.Material = material
	} else {
		// Unknown material: fall back to the first heated preset.
		c.mu.Lock()
		for _, pr := range c.cfg.Presets {
			if pr.TempC > 0 {
				p.Material = pr.Material
				break
			}
		}
		c.mu.Unlock()
		if p.Material == "" {
			c.log.Warnw("auto_start_skipped", "reason", "no heated preset configured")
			return
		}
	}

	if err := c.Start(ctx, p); err != nil {
		c.log.Warnw("auto_start_failed", "material", material, "err", err)
	} else {
		c.log.Infow("auto_started", "material", p.Material)
	}
}

// HandleJobFinished follows the printer into cooldown.
func (c *Controller) HandleJobFinished(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.st.Phase.Running() {
		return
	}
	c.enterCoolingLocked(ctx, c.now(), "print finished")
	c.publishLocked(c.now())
}

// HandleJobFailed stops the run when the printer reports failure or cancel.
func (c *Controller) HandleJobFailed(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.st.Phase {
	case models.PhaseWarmingUp, models.PhaseHeating, models.PhaseMaintaining:
		c.stopLocked(ctx, "print failed or cancelled")
		c.publishLocked(c.now())
	}
}
