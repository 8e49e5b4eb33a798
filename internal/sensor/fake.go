package sensor

import "sync"

// Fake is an in-memory probe for tests and bench setups without hardware.
type Fake struct {
	mu    sync.Mutex
	name  string
	tempC float64
	err   error
}

func NewFake(name string, tempC float64) *Fake {
	return &Fake{name: name, tempC: tempC}
}

func (f *Fake) Name() string { return f.name }

func (f *Fake) ReadTemp() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.tempC, nil
}

// Set updates the reading returned by subsequent ReadTemp calls.
func (f *Fake) Set(tempC float64) {
	f.mu.Lock()
	f.tempC = tempC
	f.err = nil
	f.mu.Unlock()
}

// Fail makes the probe report the given error until Set is called.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
