// Package control holds the pure decision logic of the chamber controller:
// hysteresis regulation, phase transition rules, time accounting, and status
// sequencing. Nothing here touches hardware, storage, or the clock.
package control

// HeaterIntent is the hysteresis policy. The previous intent realizes the
// deadband: below setpoint-h the heater turns on, above setpoint+h it turns
// off, inside the band the intent is unchanged so the relay never chatters.
func HeaterIntent(tempC, setpointC, hysteresisC float64, prev bool) bool {
	switch {
	case !prev && tempC < setpointC-hysteresisC:
		return true
	case prev && tempC > setpointC+hysteresisC:
		return false
	default:
		return prev
	}
}

// ApplyOverride replaces the computed intent when a manual override is set.
func ApplyOverride(computed bool, override *bool) bool {
	if override != nil {
		return *override
	}
	return computed
}

// AtSetpoint reports whether the chamber is within tolerance of the setpoint.
func AtSetpoint(tempC, setpointC, toleranceC float64) bool {
	d := tempC - setpointC
	if d < 0 {
		d = -d
	}
	return d <= toleranceC
}
