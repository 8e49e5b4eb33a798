// Package sim is a stand-in chamber for running the daemon without
// hardware: one thermal model that acts as both the temperature probe
// and the relay driver.
package sim

import (
	"context"
	"sync"
	"time"
)

// ----------- Simulation constants -----------
const (
	defaultAmbientC = 22.0  // ambient temperature °C
	heatCPerMin     = 2.0   // °C per minute with the heater on
	coolFracPerMin  = 0.02  // fraction of the gap to ambient closed per minute
	fanCoolBoost    = 2.5   // fans multiply the cooling rate
	noiseAmplitudeC = 0.05  // deterministic ripple so readings are not flat
)

// Chamber is a first-order thermal model. It satisfies both sensor.Probe
// and actuator.Driver so one instance wires into the controller on both
// sides.
type Chamber struct {
	mu       sync.Mutex
	tempC    float64
	ambientC float64
	heaterOn bool
	fansOn   bool
	lastStep time.Time
	now      func() time.Time
}

func New(ambientC float64) *Chamber {
	if ambientC <= 0 {
		ambientC = defaultAmbientC
	}
	return &Chamber{
		tempC:    ambientC,
		ambientC: ambientC,
		now:      time.Now,
	}
}

func (c *Chamber) Name() string { return "sim" }

// ReadTemp advances the model by the wall time since the last reading and
// returns the current temperature. It never fails.
func (c *Chamber) ReadTemp() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepLocked()
	return c.tempC, nil
}

func (c *Chamber) SetHeater(ctx context.Context, on bool) error {
	c.mu.Lock()
	c.stepLocked()
	c.heaterOn = on
	c.mu.Unlock()
	return nil
}

func (c *Chamber) SetFans(ctx context.Context, on bool) error {
	c.mu.Lock()
	c.stepLocked()
	c.fansOn = on
	c.mu.Unlock()
	return nil
}

func (c *Chamber) stepLocked() {
	now := c.now()
	if c.lastStep.IsZero() {
		c.lastStep = now
		return
	}
	mins := now.Sub(c.lastStep).Minutes()
	if mins <= 0 {
		return
	}
	c.lastStep = now

	if c.heaterOn {
		c.tempC += heatCPerMin * mins
	}
	cool := coolFracPerMin * mins
	if c.fansOn {
		cool *= fanCoolBoost
	}
	if cool > 1 {
		// Long gaps would otherwise overshoot past ambient.
		cool = 1
	}
	c.tempC += (c.ambientC - c.tempC) * cool

	// Small ripple keeps the hysteresis band honest in demos.
	c.tempC += noiseAmplitudeC * ripple(now)
}

func ripple(t time.Time) float64 {
	// Triangle wave with a 20 second period, range -1..1.
	phase := float64(t.UnixMilli()%20_000) / 20_000
	if phase < 0.5 {
		return 4*phase - 1
	}
	return 3 - 4*phase
}
