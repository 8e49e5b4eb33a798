package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chamberheat/internal/actuator"
	"chamberheat/internal/control"
	"chamberheat/internal/logger"
	"chamberheat/internal/models"
	"chamberheat/internal/sensor"
)

// ---- Test doubles ----

type memCheckpoints struct {
	mu      sync.Mutex
	cp      *models.Checkpoint
	saves   int
	deletes int
	loadErr error
}

func (m *memCheckpoints) Save(ctx context.Context, cp models.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cp
	m.cp = &c
	m.saves++
	return nil
}

func (m *memCheckpoints) Load(ctx context.Context) (models.Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return models.Checkpoint{}, false, m.loadErr
	}
	if m.cp == nil {
		return models.Checkpoint{}, false, nil
	}
	return *m.cp, true, nil
}

func (m *memCheckpoints) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp = nil
	m.deletes++
	return nil
}

func (m *memCheckpoints) stored() *models.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cp
}

type memEvents struct {
	mu     sync.Mutex
	events []models.ChamberEvent
}

func (m *memEvents) Append(ctx context.Context, e models.ChamberEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) List(ctx context.Context, from, to time.Time, typ string) ([]models.ChamberEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChamberEvent(nil), m.events...), nil
}

func (m *memEvents) typesSeen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type rig struct {
	ctrl   *Controller
	probe  *sensor.Fake
	driver *actuator.Fake
	cps    *memCheckpoints
	events *memEvents
	clock  *fakeClock
}

func newRig(t *testing.T, settings models.Settings) *rig {
	t.Helper()
	probe := sensor.NewFake("chamber", 20)
	driver := actuator.NewFake()
	cps := &memCheckpoints{}
	events := &memEvents{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	ctrl := NewController([]sensor.Probe{probe}, driver, cps, events, settings, DefaultConfig(), logger.Get(logger.ErrorLevel))
	ctrl.now = clock.Now
	ctrl.tickInterval = time.Second

	return &rig{ctrl: ctrl, probe: probe, driver: driver, cps: cps, events: events, clock: clock}
}

// tickN advances the fake clock in lockstep with the control ticks.
func (r *rig) tickN(n int) {
	for i := 0; i < n; i++ {
		r.clock.Advance(time.Second)
		r.ctrl.Tick(context.Background())
	}
}

func (r *rig) phase() models.Phase {
	r.ctrl.mu.Lock()
	defer r.ctrl.mu.Unlock()
	return r.ctrl.st.Phase
}

func (r *rig) state() models.RunState {
	r.ctrl.mu.Lock()
	defer r.ctrl.mu.Unlock()
	return r.ctrl.st
}

func defaultTestSettings() models.Settings {
	s := models.DefaultSettings()
	s.SkipPreheat = false
	s.RequirePreheatConfirmation = false
	return s
}

func start(t *testing.T, r *rig, setpoint float64, duration time.Duration) {
	t.Helper()
	err := r.ctrl.Start(context.Background(), models.StartParams{
		SetpointC:   setpoint,
		DurationSec: int(duration / time.Second),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// ---- Tests ----

func TestStart_EntersWarmingUpAndHeats(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.tickN(1) // establish a temperature reading
	start(t, r, 60, time.Hour)

	if got := r.phase(); got != models.PhaseWarmingUp {
		t.Fatalf("phase=%s, want WARMING_UP", got)
	}
	r.tickN(1)
	heaterOn, _ := r.driver.State()
	if !heaterOn {
		t.Fatalf("heater should be on while warming up from 20 to 60")
	}
	if st := r.state(); st.ActiveElapsed != 0 {
		t.Fatalf("elapsed must not advance during warmup, got %v", st.ActiveElapsed)
	}
}

func TestStart_RejectedOutsideIdle(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.tickN(1)
	start(t, r, 60, time.Hour)

	err := r.ctrl.Start(context.Background(), models.StartParams{SetpointC: 50, DurationSec: 60})
	var ite *control.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}
	if st := r.state(); st.Setpoint != 60 {
		t.Fatalf("rejected command must not change state, setpoint=%v", st.Setpoint)
	}
}

func TestStart_Validation(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	cases := []models.StartParams{
		{SetpointC: 0, DurationSec: 600},
		{SetpointC: -5, DurationSec: 600},
		{SetpointC: 60, DurationSec: 0},
		{SetpointC: 60, DurationSec: -60},
		{SetpointC: 500, DurationSec: 600}, // above safe limit
		{Material: "UNOBTAINIUM", DurationSec: 600},
		{Material: "PLA", DurationSec: 600}, // heatless material
	}
	for _, p := range cases {
		err := r.ctrl.Start(context.Background(), p)
		var ve *control.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("params %+v: want ValidationError, got %v", p, err)
		}
		if got := r.phase(); got != models.PhaseIdle {
			t.Fatalf("params %+v: phase changed to %s on rejected start", p, got)
		}
	}
}

func TestStart_MaterialPresetPicksSetpointAndFans(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	err := r.ctrl.Start(context.Background(), models.StartParams{Material: "ASA", DurationSec: 3600})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := r.state()
	if st.Setpoint != 65 || !st.FansEnabled {
		t.Fatalf("ASA preset not applied: setpoint=%v fans=%v", st.Setpoint, st.FansEnabled)
	}
}

// Scenario: setpoint 60, duration 1h. Warmup completes at 59, the timer
// runs for 30 simulated minutes, then an emergency stop cuts everything.
func TestScenario_FullRunWithEmergencyStop(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.tickN(1)
	start(t, r, 60, time.Hour)

	r.tickN(5)
	if got := r.phase(); got != models.PhaseWarmingUp {
		t.Fatalf("still cold: phase=%s, want WARMING_UP", got)
	}

	r.probe.Set(59)
	r.tickN(1)
	if got := r.phase(); got != models.PhaseHeating {
		t.Fatalf("at temperature: phase=%s, want HEATING", got)
	}

	r.tickN(1800)
	st := r.state()
	if st.ActiveElapsed != 1800*time.Second {
		t.Fatalf("elapsed=%v, want 30m", st.ActiveElapsed)
	}

	if err := r.ctrl.EmergencyStop(context.Background()); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("phase=%s, want IDLE after emergency stop", got)
	}
	if r.cps.stored() != nil {
		t.Fatalf("checkpoint must be deleted on emergency stop")
	}
	heaterOn, fansOn := r.driver.State()
	if heaterOn || fansOn {
		t.Fatalf("actuators must be off after emergency stop: heater=%v fans=%v", heaterOn, fansOn)
	}
}

func TestPauseResume_FreezesAccountantOnly(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	r.tickN(1) // warmup completes instantly at temperature
	if got := r.phase(); !got.Running() {
		t.Fatalf("phase=%s, want running", got)
	}

	r.tickN(100)
	if err := r.ctrl.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	r.tickN(900) // paused wall time, must not count
	if err := r.ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	r.tickN(50)

	st := r.state()
	if st.ActiveElapsed != 150*time.Second {
		t.Fatalf("elapsed=%v, want 150s regardless of 900s paused", st.ActiveElapsed)
	}
}

func TestPause_InvalidOutsideRunningPhases(t *testing.T) {
	r := newRig(t, defaultTestSettings())

	for _, step := range []struct {
		name string
		call func(context.Context) error
	}{
		{"pause", r.ctrl.Pause},
		{"resume", r.ctrl.Resume},
	} {
		before := r.state()
		err := step.call(context.Background())
		var ite *control.InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("%s in idle: want InvalidTransitionError, got %v", step.name, err)
		}
		after := r.state()
		if before.Phase != after.Phase || before.ActiveElapsed != after.ActiveElapsed || before.Paused != after.Paused {
			t.Fatalf("%s: rejected command changed state", step.name)
		}
	}
}

func TestDurationElapsed_EntersCoolingThenIdle(t *testing.T) {
	s := defaultTestSettings()
	s.CooldownHours = 1
	r := newRig(t, s)
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, 10*time.Second)
	r.tickN(1) // warmup completes

	r.tickN(10)
	if got := r.phase(); got != models.PhaseCooling {
		t.Fatalf("phase=%s, want COOLING after duration elapsed", got)
	}
	if r.cps.stored() == nil {
		t.Fatalf("cooling must be checkpointed")
	}

	// Chamber reaches the cooldown target: run completes, slate wiped.
	r.probe.Set(20)
	r.tickN(1)
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("phase=%s, want IDLE once cooled", got)
	}
	if r.cps.stored() != nil {
		t.Fatalf("checkpoint must be deleted on normal completion")
	}
}

func TestCooling_SteppedSetpointRampsDown(t *testing.T) {
	s := defaultTestSettings()
	s.CooldownHours = 1 // 12 steps of 5 minutes
	r := newRig(t, s)
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, 5*time.Second)
	r.tickN(6)
	if got := r.phase(); got != models.PhaseCooling {
		t.Fatalf("phase=%s, want COOLING", got)
	}
	st := r.state()
	if st.CooldownSetpoint != 60 {
		t.Fatalf("cooldown starts at the run setpoint, got %v", st.CooldownSetpoint)
	}

	r.probe.Set(55) // stays above target so cooling continues
	r.tickN(301)    // one full step interval
	st = r.state()
	if st.CooldownSetpoint >= 60 {
		t.Fatalf("cooldown setpoint should have stepped down, got %v", st.CooldownSetpoint)
	}
	if st.CooldownRemaining >= time.Hour {
		t.Fatalf("cooldown remaining should shrink, got %v", st.CooldownRemaining)
	}
}

func TestStop_SkipsCoolingAndDeletesCheckpoint(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	r.tickN(5)

	if err := r.ctrl.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("phase=%s, want IDLE", got)
	}
	if r.cps.stored() != nil {
		t.Fatalf("checkpoint must be deleted on stop")
	}
	if err := r.ctrl.Stop(context.Background()); err == nil {
		t.Fatalf("second stop should be InvalidTransition from idle")
	}
}

func TestEmergencyStop_IdempotentAndClearsOverrides(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	if err := r.ctrl.SetManualOverride(context.Background(), actuator.Heater, true); err != nil {
		t.Fatalf("SetManualOverride: %v", err)
	}

	for i := 0; i < 3; i++ { // converging requests are harmless
		if err := r.ctrl.EmergencyStop(context.Background()); err != nil {
			t.Fatalf("EmergencyStop #%d: %v", i, err)
		}
	}
	st := r.state()
	if st.Phase != models.PhaseIdle || st.HeaterOverride != nil || st.FansOverride != nil {
		t.Fatalf("emergency stop must clear overrides, got %+v", st)
	}
	heaterOn, _ := r.driver.State()
	if heaterOn {
		t.Fatalf("heater must be forced off despite override")
	}
}

func TestSensorOutage_ForcesOffHoldsPhaseAndFreezesTime(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	r.tickN(10)
	before := r.state()

	r.probe.Fail(errors.New("probe dead"))
	r.tickN(30)

	st := r.state()
	if st.Phase != before.Phase {
		t.Fatalf("phase must hold during sensor outage: %s -> %s", before.Phase, st.Phase)
	}
	if st.ActiveElapsed != before.ActiveElapsed {
		t.Fatalf("elapsed advanced during outage: %v -> %v", before.ActiveElapsed, st.ActiveElapsed)
	}
	heaterOn, fansOn := r.driver.State()
	if heaterOn || fansOn {
		t.Fatalf("actuators must be forced off with no probes")
	}
	if snap := r.ctrl.Snapshot(); snap.SensorOK {
		t.Fatalf("snapshot must flag the sensor fault")
	}

	// Probe recovery auto-clears the fault.
	r.probe.Set(60)
	r.tickN(1)
	if snap := r.ctrl.Snapshot(); !snap.SensorOK {
		t.Fatalf("sensor flag must clear on recovery")
	}
}

func TestActuatorFailure_FlaggedAndRetriedNextTick(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(20)
	r.tickN(1)
	start(t, r, 60, time.Hour)

	r.driver.FailWith(errors.New("relay bus timeout"))
	r.tickN(1)
	if snap := r.ctrl.Snapshot(); !snap.ActuatorFault {
		t.Fatalf("snapshot must flag the actuator fault")
	}
	if got := r.phase(); got != models.PhaseWarmingUp {
		t.Fatalf("actuator failure must not kill the run, phase=%s", got)
	}

	r.driver.FailWith(nil)
	r.tickN(1)
	if snap := r.ctrl.Snapshot(); snap.ActuatorFault {
		t.Fatalf("fault flag must clear after successful retry")
	}
	heaterOn, _ := r.driver.State()
	if !heaterOn {
		t.Fatalf("retry must land the heater-on intent")
	}
}

func TestPreheatConfirmation_HoldsUntilConfirm(t *testing.T) {
	s := defaultTestSettings()
	s.RequirePreheatConfirmation = true
	r := newRig(t, s)
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)

	r.tickN(5)
	st := r.state()
	if st.Phase != models.PhaseWarmingUp || !st.AwaitingConfirmation {
		t.Fatalf("expected confirmation hold, got phase=%s awaiting=%v", st.Phase, st.AwaitingConfirmation)
	}
	if st.ActiveElapsed != 0 {
		t.Fatalf("timer must not run while awaiting confirmation")
	}

	// Temperature drifting below tolerance keeps the hold up.
	r.probe.Set(55)
	r.tickN(3)
	if st := r.state(); !st.AwaitingConfirmation {
		t.Fatalf("drift below tolerance must not revoke the prompt")
	}
	r.probe.Set(60)

	if err := r.ctrl.ConfirmPreheat(context.Background()); err != nil {
		t.Fatalf("ConfirmPreheat: %v", err)
	}
	if got := r.phase(); got != models.PhaseHeating {
		t.Fatalf("phase=%s, want HEATING after confirm", got)
	}
}

func TestPreheatConfirmation_EarlyConfirmRemembered(t *testing.T) {
	s := defaultTestSettings()
	s.RequirePreheatConfirmation = true
	r := newRig(t, s)
	r.probe.Set(20)
	r.tickN(1)
	start(t, r, 60, time.Hour)

	// Confirm while still cold; no hold should happen later.
	if err := r.ctrl.ConfirmPreheat(context.Background()); err != nil {
		t.Fatalf("ConfirmPreheat: %v", err)
	}
	r.probe.Set(60)
	r.tickN(1)
	if got := r.phase(); got != models.PhaseHeating {
		t.Fatalf("phase=%s, want HEATING with early confirm", got)
	}
}

func TestSkipPreheat_BypassesWarmingUp(t *testing.T) {
	s := defaultTestSettings()
	s.SkipPreheat = true
	r := newRig(t, s)
	r.probe.Set(65)
	r.tickN(1)
	start(t, r, 60, time.Hour)

	if got := r.phase(); got != models.PhaseHeating {
		t.Fatalf("phase=%s, want HEATING (preheat skipped above setpoint)", got)
	}
}

func TestSkipPreheat_StillWarmsUpWhenCold(t *testing.T) {
	s := defaultTestSettings()
	s.SkipPreheat = true
	r := newRig(t, s)
	r.probe.Set(20)
	r.tickN(1)
	start(t, r, 60, time.Hour)

	if got := r.phase(); got != models.PhaseWarmingUp {
		t.Fatalf("phase=%s, want WARMING_UP below setpoint", got)
	}
}

func TestSetSetpointAndAdjustDuration(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	r.tickN(1)

	if err := r.ctrl.SetSetpoint(context.Background(), 65); err != nil {
		t.Fatalf("SetSetpoint: %v", err)
	}
	if err := r.ctrl.AdjustDuration(context.Background(), 15*time.Minute); err != nil {
		t.Fatalf("AdjustDuration: %v", err)
	}
	st := r.state()
	if st.Setpoint != 65 || st.DurationTarget != time.Hour+15*time.Minute {
		t.Fatalf("changes not applied: %+v", st)
	}

	err := r.ctrl.AdjustDuration(context.Background(), -2*time.Hour)
	var ve *control.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("non-positive duration must be a ValidationError, got %v", err)
	}
	if err := r.ctrl.SetSetpoint(context.Background(), 500); !errors.As(err, &ve) {
		t.Fatalf("over-limit setpoint must be a ValidationError, got %v", err)
	}
}

func TestManualOverride_WinsOverRegulation(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(80) // way above any setpoint
	r.tickN(1)
	start(t, r, 60, time.Hour)

	if err := r.ctrl.SetManualOverride(context.Background(), actuator.Heater, true); err != nil {
		t.Fatalf("SetManualOverride: %v", err)
	}
	r.tickN(3)
	heaterOn, _ := r.driver.State()
	if !heaterOn {
		t.Fatalf("override on must keep the heater on even above setpoint")
	}

	if err := r.ctrl.ClearManualOverride(context.Background(), actuator.Heater); err != nil {
		t.Fatalf("ClearManualOverride: %v", err)
	}
	r.tickN(2)
	heaterOn, _ = r.driver.State()
	if heaterOn {
		t.Fatalf("regulation must turn the heater off once override is cleared")
	}

	if err := r.ctrl.SetManualOverride(context.Background(), "lights", true); err == nil {
		t.Fatalf("unknown actuator must be rejected")
	}
}

func TestCheckpointCadence_WhileRunning(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	r.tickN(1)

	savesBefore := r.cps.saves
	r.tickN(35) // > 3 checkpoint intervals of 10s
	if got := r.cps.saves - savesBefore; got < 3 {
		t.Fatalf("expected at least 3 periodic checkpoints, got %d", got)
	}
	cp := r.cps.stored()
	if cp == nil || !cp.State.Phase.Running() {
		t.Fatalf("stored checkpoint should reflect the running phase")
	}
}

func TestSnapshot_SequenceStrictlyIncreases(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	var rcv control.Receiver
	last := uint64(0)
	for i := 0; i < 10; i++ {
		r.tickN(1)
		snap := r.ctrl.Snapshot()
		if snap.Sequence <= last {
			t.Fatalf("sequence did not increase: %d after %d", snap.Sequence, last)
		}
		if !rcv.Accept(snap.Sequence) {
			t.Fatalf("fresh snapshot rejected by receiver")
		}
		last = snap.Sequence
	}
}

func TestPrinterEvents_DriveTheRun(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(20)
	r.tickN(1)

	// JobStarted auto-starts using the material preset.
	r.ctrl.HandleJobStarted(context.Background(), "ABS")
	st := r.state()
	if st.Phase != models.PhaseWarmingUp || st.Setpoint != 60 {
		t.Fatalf("auto-start not applied: %+v", st)
	}

	// Finish while running follows into cooling.
	r.probe.Set(60)
	r.tickN(2)
	if got := r.phase(); !got.Running() {
		t.Fatalf("expected running phase, got %s", got)
	}
	r.ctrl.HandleJobFinished(context.Background())
	if got := r.phase(); got != models.PhaseCooling {
		t.Fatalf("phase=%s, want COOLING after JobFinished", got)
	}

	// Failure from a fresh run stops outright.
	r.probe.Set(20)
	r.tickN(1)
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("precondition: expected idle, got %s", got)
	}
	r.ctrl.HandleJobStarted(context.Background(), "ABS")
	r.ctrl.HandleJobFailed(context.Background())
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("phase=%s, want IDLE after JobFailed", got)
	}
	if r.cps.stored() != nil {
		t.Fatalf("checkpoint must be gone after failed job stop")
	}
}

func TestPrinterEvents_AutoStartDisabled(t *testing.T) {
	s := defaultTestSettings()
	s.AutoStartEnabled = false
	r := newRig(t, s)
	r.tickN(1)

	r.ctrl.HandleJobStarted(context.Background(), "ABS")
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("auto-start disabled must ignore JobStarted, phase=%s", got)
	}
}

func TestPrinterEvents_HeatlessMaterialIgnored(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.tickN(1)

	r.ctrl.HandleJobStarted(context.Background(), "PLA")
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("PLA needs no chamber heat, phase=%s", got)
	}
}

func TestEvents_RecordedForLifecycle(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	r.tickN(1)
	_ = r.ctrl.Stop(context.Background())

	seen := map[string]bool{}
	for _, typ := range r.events.typesSeen() {
		seen[typ] = true
	}
	for _, want := range []string{models.EventStart, models.EventPhaseChange, models.EventStop} {
		if !seen[want] {
			t.Fatalf("missing %s event, saw %v", want, r.events.typesSeen())
		}
	}
}

// The safety monitor and a user command racing to shut down must converge.
func TestSafetyTripAppliedAtNextTick(t *testing.T) {
	r := newRig(t, defaultTestSettings())
	r.probe.Set(60)
	r.tickN(1)
	start(t, r, 60, time.Hour)
	r.tickN(1)

	r.ctrl.TripEmergency("overtemperature")
	r.tickN(1)
	if got := r.phase(); got != models.PhaseIdle {
		t.Fatalf("phase=%s, want IDLE after safety trip", got)
	}
	heaterOn, _ := r.driver.State()
	if heaterOn {
		t.Fatalf("heater must be off after safety trip")
	}
}
