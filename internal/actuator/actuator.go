// Package actuator defines the relay driver boundary. Real drivers (GPIO,
// networked relays) live outside this core; commands are idempotent on/off
// intents, so repeating one after a retry is always safe.
package actuator

import "context"

// Actuator names used in commands, overrides, and error reporting.
const (
	Heater = "heater"
	Fans   = "fans"
)

// Driver switches the physical relays. Implementations may block on I/O;
// the controller always calls with a deadline context.
type Driver interface {
	SetHeater(ctx context.Context, on bool) error
	SetFans(ctx context.Context, on bool) error
}
