// Package sensor defines the temperature probe boundary. Probe drivers live
// outside this core; the controller only needs readings and per-probe
// failure reporting.
package sensor

// Probe reads one temperature sensor. ReadTemp returns an error when the
// probe fails; the controller treats a failed probe as absent, not fatal.
type Probe interface {
	Name() string
	ReadTemp() (float64, error)
}

// Average returns the mean of all healthy probes, the names of failed
// probes, and how many probes were healthy. healthy == 0 means no reading
// could be taken at all.
func Average(probes []Probe) (avg float64, failed []string, healthy int) {
	var sum float64
	for _, p := range probes {
		t, err := p.ReadTemp()
		if err != nil {
			failed = append(failed, p.Name())
			continue
		}
		sum += t
		healthy++
	}
	if healthy == 0 {
		return 0, failed, 0
	}
	return sum / float64(healthy), failed, healthy
}

// Max returns the highest healthy reading, used by the safety monitor.
func Max(probes []Probe) (max float64, healthy int) {
	for _, p := range probes {
		t, err := p.ReadTemp()
		if err != nil {
			continue
		}
		if healthy == 0 || t > max {
			max = t
		}
		healthy++
	}
	return max, healthy
}
