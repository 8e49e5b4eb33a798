package models

import "time"

// Phase is the lifecycle stage of the current run.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseWarmingUp   Phase = "WARMING_UP"
	PhaseHeating     Phase = "HEATING"
	PhaseMaintaining Phase = "MAINTAINING"
	PhaseCooling     Phase = "COOLING"
)

// Running reports whether the phase counts down print time.
// Heating and Maintaining differ only by proximity to the setpoint.
func (p Phase) Running() bool {
	return p == PhaseHeating || p == PhaseMaintaining
}

// RunState is the authoritative state of a single run. It is owned by the
// controller and mutated only under its lock; everything else sees copies.
type RunState struct {
	Phase          Phase         `json:"phase"`
	Setpoint       float64       `json:"setpoint_c"`
	DurationTarget time.Duration `json:"duration_target"`
	ActiveElapsed  time.Duration `json:"active_elapsed"`
	Paused         bool          `json:"paused"`

	// AwaitingConfirmation marks the WarmingUp sub-state where the chamber is
	// at temperature but the timer waits for an explicit confirm.
	AwaitingConfirmation bool `json:"awaiting_confirmation"`
	RequireConfirmation  bool `json:"require_confirmation"`

	// nil means automatic; non-nil pins the actuator regardless of regulation.
	HeaterOverride *bool `json:"heater_override,omitempty"`
	FansOverride   *bool `json:"fans_override,omitempty"`

	// Last intents issued to the driver, kept for crash resync.
	HeaterOn bool `json:"heater_on"`
	FansOn   bool `json:"fans_on"`

	FansEnabled bool `json:"fans_enabled"`

	// Cooling bookkeeping: the stepped working setpoint and remaining budget.
	CooldownSetpoint  float64       `json:"cooldown_setpoint_c"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`

	RunStartedAt     time.Time `json:"run_started_at"`
	LastCheckpointAt time.Time `json:"last_checkpoint_at"`
}

// Remaining is the print time left, independent of wall clock.
func (s RunState) Remaining() time.Duration {
	if r := s.DurationTarget - s.ActiveElapsed; r > 0 {
		return r
	}
	return 0
}

// Checkpoint is the durable copy of a RunState.
type Checkpoint struct {
	State     RunState  `json:"state"`
	WrittenAt time.Time `json:"written_at"`
}

// StartParams carries the settings of a Start command.
type StartParams struct {
	SetpointC   float64 `json:"setpoint_c"`
	DurationSec int     `json:"duration_sec"`
	// Material selects a preset; when set it provides setpoint and fan policy.
	Material string `json:"material,omitempty"`
}
