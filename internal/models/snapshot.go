package models

import "time"

// StatusSnapshot is the immutable status value broadcast to observers.
// Each tick produces a new one; the sequence number is never reused, so a
// consumer can discard snapshots arriving out of order.
type StatusSnapshot struct {
	Sequence uint64 `json:"sequence"`
	Phase    Phase  `json:"phase"`

	TemperatureC float64 `json:"temperature_c"`
	SensorOK     bool    `json:"sensor_ok"`
	SetpointC    float64 `json:"setpoint_c"`

	ActiveElapsedSec     int  `json:"active_elapsed_sec"`
	RemainingSec         int  `json:"remaining_sec"`
	CooldownRemainingSec int  `json:"cooldown_remaining_sec,omitempty"`
	Paused               bool `json:"paused"`
	AwaitingConfirmation bool `json:"awaiting_confirmation"`

	HeaterOn     bool `json:"heater_on"`
	FansOn       bool `json:"fans_on"`
	HeaterManual bool `json:"heater_manual"`
	FansManual   bool `json:"fans_manual"`

	ActuatorFault bool `json:"actuator_fault"`
	EmergencyStop bool `json:"emergency_stop"`

	UpdatedAt time.Time `json:"updated_at"`
}
