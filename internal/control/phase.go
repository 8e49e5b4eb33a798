package control

import "chamberheat/internal/models"

// Command names, used in transition checks and error messages.
const (
	CmdStart          = "start"
	CmdPause          = "pause"
	CmdResume         = "resume"
	CmdConfirmPreheat = "confirm_preheat"
	CmdStop           = "stop"
	CmdEmergencyStop  = "emergency_stop"
	CmdSetSetpoint    = "set_setpoint"
	CmdAdjustDuration = "adjust_duration"
	CmdOverride       = "manual_override"
)

// validPhases lists, per command, the phases in which it is accepted.
// Commands absent here (emergency stop, overrides) are valid everywhere.
var validPhases = map[string][]models.Phase{
	CmdStart:          {models.PhaseIdle},
	CmdPause:          {models.PhaseHeating, models.PhaseMaintaining},
	CmdResume:         {models.PhaseHeating, models.PhaseMaintaining},
	CmdConfirmPreheat: {models.PhaseWarmingUp},
	CmdStop:           {models.PhaseWarmingUp, models.PhaseHeating, models.PhaseMaintaining, models.PhaseCooling},
	CmdSetSetpoint:    {models.PhaseWarmingUp, models.PhaseHeating, models.PhaseMaintaining},
	CmdAdjustDuration: {models.PhaseHeating, models.PhaseMaintaining},
}

// CheckCommand rejects a command issued in a phase that does not accept it.
func CheckCommand(cmd string, phase models.Phase) error {
	allowed, ok := validPhases[cmd]
	if !ok {
		return nil
	}
	for _, p := range allowed {
		if p == phase {
			return nil
		}
	}
	return &InvalidTransitionError{Phase: phase, Command: cmd}
}
