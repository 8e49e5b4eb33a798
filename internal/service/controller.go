package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chamberheat/internal/actuator"
	"chamberheat/internal/control"
	"chamberheat/internal/logger"
	"chamberheat/internal/models"
	"chamberheat/internal/repository"
	"chamberheat/internal/sensor"
)

// Controller is the concurrency core. It exclusively owns the RunState: the
// control loop, the safety monitor, and every command handler all go through
// the one mutex below, so phase transitions are totally ordered and no
// partial state is ever visible. Commands mutate state only inside apply
// methods called under the lock, never from handler context directly.
type Controller struct {
	mu   sync.Mutex
	st   models.RunState
	cfg  models.Settings
	opts Config

	seq  *control.Sequencer
	last models.StatusSnapshot

	// Emergency intent. Set without the lock, drained with highest priority
	// at the next lock acquisition. Converging calls are idempotent.
	estop       atomic.Bool
	estopReason atomic.Value // string
	estopTime   time.Time    // latched until next Start, for the status flag

	sensorFault   bool
	actuatorFault bool
	lastTempC     float64

	// ConfirmPreheat arriving before the chamber reaches tolerance is
	// remembered and honored once it does.
	confirmPending bool

	cooldownLastStep time.Time

	probes      []sensor.Probe
	driver      actuator.Driver
	checkpoints repository.CheckpointRepo
	events      repository.EventRepo
	log         *logger.Logger

	tickInterval time.Duration
	now          func() time.Time
}

func NewController(probes []sensor.Probe, driver actuator.Driver, checkpoints repository.CheckpointRepo, events repository.EventRepo, settings models.Settings, opts Config, log *logger.Logger) *Controller {
	c := &Controller{
		st:          models.RunState{Phase: models.PhaseIdle},
		cfg:         settings,
		opts:        opts,
		seq:         &control.Sequencer{},
		probes:      probes,
		driver:      driver,
		checkpoints: checkpoints,
		events:      events,
		log:         log,
		now:         time.Now,
	}
	c.estopReason.Store("")
	return c
}

// Run ticks at the given interval until ctx is canceled. The loop never
// terminates on collaborator failures; sensor and actuator trouble are
// surfaced as status flags and retried.
func (c *Controller) Run(ctx context.Context, tick time.Duration) {
	c.mu.Lock()
	c.tickInterval = tick
	c.mu.Unlock()

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one control cycle. Exported for deterministic tests.
func (c *Controller) Tick(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Emergency intent wins over everything queued behind the lock.
	if c.estop.Swap(false) {
		c.emergencyLocked(ctx, now, c.estopReason.Load().(string))
	}

	avg, failed, healthy := sensor.Average(c.probes)
	if healthy == 0 {
		// No probe left: force actuators off and hold phase. The accountant
		// is frozen too; advancing it could trip the duration transition.
		if !c.sensorFault {
			c.sensorFault = true
			c.log.Errorw("all_probes_failed", "probes", failed)
			c.appendEventLocked(ctx, models.EventError, "all temperature probes failed", nil)
		}
		c.issueIntentsLocked(ctx, false, false, false)
		c.publishLocked(now)
		return
	}
	if c.sensorFault {
		c.sensorFault = false
		c.log.Infow("probe_recovered", "healthy", healthy)
	}
	if len(failed) > 0 {
		c.log.Warnw("probe_read_failed", "probes", failed)
	}
	c.lastTempC = avg

	switch c.st.Phase {
	case models.PhaseIdle:
		// Nothing regulates; manual overrides still reach the hardware.
		c.issueIntentsLocked(ctx,
			control.ApplyOverride(false, c.st.HeaterOverride),
			control.ApplyOverride(false, c.st.FansOverride),
			false)

	case models.PhaseWarmingUp:
		c.regulateLocked(ctx, avg, c.st.Setpoint)
		if control.AtSetpoint(avg, c.st.Setpoint, c.tolerance()) {
			if c.st.RequireConfirmation && !c.confirmPending {
				// Hold temperature until the user confirms. If temperature
				// later drifts below tolerance the prompt stays up.
				if !c.st.AwaitingConfirmation {
					c.st.AwaitingConfirmation = true
					c.log.Infow("awaiting_preheat_confirmation", "temp_c", avg)
				}
			} else {
				c.beginTimerLocked(ctx, now)
			}
		}

	case models.PhaseHeating, models.PhaseMaintaining:
		control.AdvanceElapsed(&c.st, c.tick())
		// Heating vs Maintaining is pure proximity; flapping between the two
		// is not an event and not checkpoint-worthy.
		if control.AtSetpoint(avg, c.st.Setpoint, c.tolerance()) {
			c.st.Phase = models.PhaseMaintaining
		} else {
			c.st.Phase = models.PhaseHeating
		}
		c.regulateLocked(ctx, avg, c.st.Setpoint)
		if control.DurationDone(&c.st) {
			c.enterCoolingLocked(ctx, now, "duration elapsed")
		} else if now.Sub(c.st.LastCheckpointAt) >= c.opts.CheckpointInterval {
			c.saveCheckpointLocked(ctx, now)
		}

	case models.PhaseCooling:
		c.advanceCooldownLocked(ctx, now, avg)
		if c.st.Phase == models.PhaseCooling { // may have just completed
			c.regulateLocked(ctx, avg, c.st.CooldownSetpoint)
		}
	}

	c.publishLocked(now)
}

// tick returns the accounting interval; tests drive Tick directly without
// Run, so fall back to one second.
func (c *Controller) tick() time.Duration {
	if c.tickInterval > 0 {
		return c.tickInterval
	}
	return time.Second
}

func (c *Controller) tolerance() float64 {
	if c.cfg.ToleranceC > 0 {
		return c.cfg.ToleranceC
	}
	return 1.0
}

// regulateLocked computes the hysteresis intent against the given working
// setpoint, applies overrides, and issues the result.
func (c *Controller) regulateLocked(ctx context.Context, tempC, setpointC float64) {
	heat := control.HeaterIntent(tempC, setpointC, c.cfg.HysteresisC, c.st.HeaterOn)
	heat = control.ApplyOverride(heat, c.st.HeaterOverride)

	fans := c.st.FansEnabled
	fans = control.ApplyOverride(fans, c.st.FansOverride)

	c.issueIntentsLocked(ctx, heat, fans, false)
}

// issueIntentsLocked sends intents to the driver with a bounded timeout.
// A failed call is logged, flagged, and retried next tick; repeating an
// on/off command is idempotent so the retry is safe. With force set, both
// relays are re-commanded even if the recorded intent already matches
// (crash resync after resume).
func (c *Controller) issueIntentsLocked(ctx context.Context, heat, fans, force bool) {
	fault := false

	if force || heat != c.st.HeaterOn || c.actuatorFault {
		if err := c.driveWithTimeout(ctx, actuator.Heater, heat); err != nil {
			fault = true
			c.log.Warnw("actuator_command_failed", "actuator", actuator.Heater, "on", heat, "err", err)
		} else {
			c.st.HeaterOn = heat
		}
	}
	if force || fans != c.st.FansOn || c.actuatorFault {
		if err := c.driveWithTimeout(ctx, actuator.Fans, fans); err != nil {
			fault = true
			c.log.Warnw("actuator_command_failed", "actuator", actuator.Fans, "on", fans, "err", err)
		} else {
			c.st.FansOn = fans
		}
	}

	c.actuatorFault = fault
}

func (c *Controller) driveWithTimeout(ctx context.Context, name string, on bool) error {
	cctx, cancel := context.WithTimeout(ctx, c.actuatorTimeout())
	defer cancel()
	var err error
	switch name {
	case actuator.Heater:
		err = c.driver.SetHeater(cctx, on)
	case actuator.Fans:
		err = c.driver.SetFans(cctx, on)
	}
	if err != nil {
		return &control.ActuatorError{Actuator: name, Err: err}
	}
	return nil
}

func (c *Controller) actuatorTimeout() time.Duration {
	if c.opts.ActuatorTimeout > 0 {
		return c.opts.ActuatorTimeout
	}
	return 2 * time.Second
}

// beginTimerLocked moves WarmingUp into Heating and starts the countdown.
func (c *Controller) beginTimerLocked(ctx context.Context, now time.Time) {
	c.st.AwaitingConfirmation = false
	c.confirmPending = false
	c.st.ActiveElapsed = 0
	c.st.RunStartedAt = now
	c.setPhaseLocked(ctx, now, models.PhaseHeating, "chamber at temperature")
}

// enterCoolingLocked starts the stepped cooldown from the run setpoint down
// to the configured cooldown target.
func (c *Controller) enterCoolingLocked(ctx context.Context, now time.Time, reason string) {
	c.st.Paused = false
	c.st.CooldownSetpoint = c.st.Setpoint
	c.st.CooldownRemaining = c.cooldownTotal()
	c.cooldownLastStep = now
	c.setPhaseLocked(ctx, now, models.PhaseCooling, reason)
}

func (c *Controller) cooldownTotal() time.Duration {
	return time.Duration(c.cfg.CooldownHours * float64(time.Hour))
}

// advanceCooldownLocked lowers the working setpoint one step per interval
// and finishes the run when the chamber reaches the cooldown target or the
// budget runs out.
func (c *Controller) advanceCooldownLocked(ctx context.Context, now time.Time, tempC float64) {
	target := c.cfg.CooldownTargetC

	if tempC <= target {
		c.completeLocked(ctx, now, "cooldown target temperature reached")
		return
	}
	if c.st.CooldownRemaining <= 0 {
		c.completeLocked(ctx, now, "cooldown budget exhausted")
		return
	}

	step := c.opts.CooldownStep
	if step <= 0 {
		step = 5 * time.Minute
	}
	if now.Sub(c.cooldownLastStep) < step {
		return
	}
	c.cooldownLastStep = now

	totalSteps := int(c.cooldownTotal() / step)
	if totalSteps < 1 {
		totalSteps = 1
	}
	delta := (c.st.Setpoint - target) / float64(totalSteps)

	c.st.CooldownSetpoint -= delta
	if c.st.CooldownSetpoint < target {
		c.st.CooldownSetpoint = target
	}
	c.st.CooldownRemaining -= step
	if c.st.CooldownRemaining < 0 {
		c.st.CooldownRemaining = 0
	}

	c.log.Infow("cooldown_step",
		"setpoint_c", c.st.CooldownSetpoint,
		"temp_c", tempC,
		"remaining", c.st.CooldownRemaining)
	c.saveCheckpointLocked(ctx, now)
}

// completeLocked ends the run normally: everything off, checkpoint deleted,
// state back to the idle baseline. Manual overrides survive (only Start and
// EmergencyStop clear them).
func (c *Controller) completeLocked(ctx context.Context, now time.Time, reason string) {
	c.issueIntentsLocked(ctx,
		control.ApplyOverride(false, c.st.HeaterOverride),
		control.ApplyOverride(false, c.st.FansOverride),
		false)
	c.deleteCheckpointLocked(ctx)

	heaterOverride, fansOverride := c.st.HeaterOverride, c.st.FansOverride
	heaterOn, fansOn := c.st.HeaterOn, c.st.FansOn
	c.st = models.RunState{
		Phase:          models.PhaseIdle,
		HeaterOverride: heaterOverride,
		FansOverride:   fansOverride,
		HeaterOn:       heaterOn,
		FansOn:         fansOn,
	}
	c.confirmPending = false
	c.log.Infow("run_complete", "reason", reason)
	c.appendEventLocked(ctx, models.EventPhaseChange, "run complete: "+reason, nil)
}

// emergencyLocked short-circuits any phase to Idle: actuators forced off
// unconditionally, overrides cleared, checkpoint deleted. Safe to run twice.
func (c *Controller) emergencyLocked(ctx context.Context, now time.Time, reason string) {
	wasIdle := c.st.Phase == models.PhaseIdle

	c.st.HeaterOverride = nil
	c.st.FansOverride = nil
	c.issueIntentsLocked(ctx, false, false, true)
	c.deleteCheckpointLocked(ctx)

	heaterOn, fansOn := c.st.HeaterOn, c.st.FansOn
	c.st = models.RunState{
		Phase:    models.PhaseIdle,
		HeaterOn: heaterOn,
		FansOn:   fansOn,
	}
	c.confirmPending = false
	c.estopTime = now

	if !wasIdle || reason != "" {
		c.log.Errorw("emergency_stop", "reason", reason)
	}
	if !wasIdle {
		c.appendEventLocked(ctx, models.EventEmergencyStop, "emergency stop: "+reason, nil)
	}
}

// setPhaseLocked performs an evented transition and keeps the checkpoint in
// step: transitions into Idle delete it, everything else writes one.
func (c *Controller) setPhaseLocked(ctx context.Context, now time.Time, to models.Phase, reason string) {
	from := c.st.Phase
	if from == to {
		return
	}
	c.st.Phase = to
	c.log.Infow("phase_change", "from", from, "to", to, "reason", reason)
	c.appendEventLocked(ctx, models.EventPhaseChange, string(from)+" -> "+string(to)+": "+reason, map[string]any{
		"from": from, "to": to,
	})
	if to == models.PhaseIdle {
		c.deleteCheckpointLocked(ctx)
	} else {
		c.saveCheckpointLocked(ctx, now)
	}
}

func (c *Controller) saveCheckpointLocked(ctx context.Context, now time.Time) {
	c.st.LastCheckpointAt = now
	cp := models.Checkpoint{State: c.st, WrittenAt: now}
	if err := c.checkpoints.Save(ctx, cp); err != nil {
		// Persistence trouble must not stop regulation.
		c.log.Errorw("checkpoint_save_failed", "err", err)
	}
}

func (c *Controller) deleteCheckpointLocked(ctx context.Context) {
	if err := c.checkpoints.Delete(ctx); err != nil {
		c.log.Errorw("checkpoint_delete_failed", "err", err)
	}
}

func (c *Controller) appendEventLocked(ctx context.Context, typ, desc string, meta any) {
	err := c.events.Append(ctx, models.ChamberEvent{
		OccurredAt:  c.now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		c.log.Errorw("event_append_failed", "type", typ, "err", err)
	}
}

// publishLocked freezes the current state into a new immutable snapshot and
// stamps it with the next sequence number.
func (c *Controller) publishLocked(now time.Time) {
	c.last = models.StatusSnapshot{
		Sequence:             c.seq.Next(),
		Phase:                c.st.Phase,
		TemperatureC:         c.lastTempC,
		SensorOK:             !c.sensorFault,
		SetpointC:            c.workingSetpointLocked(),
		ActiveElapsedSec:     int(c.st.ActiveElapsed / time.Second),
		RemainingSec:         int(c.st.Remaining() / time.Second),
		CooldownRemainingSec: int(c.st.CooldownRemaining / time.Second),
		Paused:               c.st.Paused,
		AwaitingConfirmation: c.st.AwaitingConfirmation,
		HeaterOn:             c.st.HeaterOn,
		FansOn:               c.st.FansOn,
		HeaterManual:         c.st.HeaterOverride != nil,
		FansManual:           c.st.FansOverride != nil,
		ActuatorFault:        c.actuatorFault,
		EmergencyStop:        !c.estopTime.IsZero(),
		UpdatedAt:            now.UTC(),
	}
}

func (c *Controller) workingSetpointLocked() float64 {
	if c.st.Phase == models.PhaseCooling {
		return c.st.CooldownSetpoint
	}
	return c.st.Setpoint
}

// Snapshot returns the latest published snapshot.
func (c *Controller) Snapshot() models.StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// ApplySettings swaps the live tuning knobs. Called by the settings service
// after validation and persistence.
func (c *Controller) ApplySettings(s models.Settings) {
	c.mu.Lock()
	c.cfg = s
	c.mu.Unlock()
}

// TripEmergency requests an emergency stop from outside the lock domain
// (safety monitor). It is applied with highest priority at the next lock
// acquisition.
func (c *Controller) TripEmergency(reason string) {
	c.estopReason.Store(reason)
	c.estop.Store(true)
}
