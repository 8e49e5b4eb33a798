package control

import (
	"time"

	"chamberheat/internal/models"
)

// AdvanceElapsed advances the run's active time by one tick. Only the
// Heating and Maintaining phases accumulate, and never while paused, so the
// remaining time is insensitive to wall-clock gaps and pause duration.
// The accumulator is clamped at the duration target.
func AdvanceElapsed(st *models.RunState, tick time.Duration) {
	if !st.Phase.Running() || st.Paused {
		return
	}
	st.ActiveElapsed += tick
	if st.ActiveElapsed > st.DurationTarget {
		st.ActiveElapsed = st.DurationTarget
	}
}

// DurationDone reports whether the run has consumed its full target.
func DurationDone(st *models.RunState) bool {
	return st.ActiveElapsed >= st.DurationTarget
}
