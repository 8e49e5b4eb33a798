package actuator

import (
	"context"
	"sync"
)

// Fake records intents in memory. It stands in for the relay driver in
// tests and when running without hardware.
type Fake struct {
	mu       sync.Mutex
	heaterOn bool
	fansOn   bool
	err      error

	// HeaterCalls and FansCalls record every issued intent in order.
	HeaterCalls []bool
	FansCalls   []bool
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) SetHeater(ctx context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HeaterCalls = append(f.HeaterCalls, on)
	if f.err != nil {
		return f.err
	}
	f.heaterOn = on
	return nil
}

func (f *Fake) SetFans(ctx context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FansCalls = append(f.FansCalls, on)
	if f.err != nil {
		return f.err
	}
	f.fansOn = on
	return nil
}

// State returns the last applied relay states.
func (f *Fake) State() (heaterOn, fansOn bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heaterOn, f.fansOn
}

// FailWith makes all subsequent calls return err; nil restores success.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
