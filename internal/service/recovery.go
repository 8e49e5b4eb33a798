package service

import (
	"context"
	"errors"
	"time"

	"chamberheat/internal/control"
	"chamberheat/internal/models"
)

// Recover reads the checkpoint slot once at process start and, if the
// snapshot is still worth resuming, re-enters the checkpointed phase.
// The crash gap never counts as active time: the accountant picks up
// exactly where the checkpoint left it, and the start timestamp is
// recomputed backwards from it. Hardware intents are re-issued so the
// relays match software belief even if they flipped while we were down.
func (c *Controller) Recover(ctx context.Context) error {
	now := c.now()

	cp, found, err := c.checkpoints.Load(ctx)
	if err != nil {
		if errors.Is(err, control.ErrCheckpointCorrupt) {
			// Unreadable checkpoint is "no checkpoint", never a crash.
			c.log.Warnw("checkpoint_corrupt_discarded", "err", err)
			return c.checkpoints.Delete(ctx)
		}
		return err
	}
	if !found {
		return nil
	}

	if !Resumable(cp, now, c.resumeGrace(), c.maxCooldownBudget()) {
		c.log.Infow("checkpoint_stale_discarded",
			"phase", cp.State.Phase,
			"written_at", cp.WrittenAt,
			"age", now.Sub(cp.WrittenAt))
		return c.checkpoints.Delete(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.st = cp.State
	c.st.RunStartedAt = now.Add(-c.st.ActiveElapsed)
	c.st.LastCheckpointAt = cp.WrittenAt
	c.cooldownLastStep = now
	c.issueIntentsLocked(ctx, c.st.HeaterOn, c.st.FansOn, true)

	c.log.Infow("run_resumed_from_checkpoint",
		"phase", c.st.Phase,
		"elapsed", c.st.ActiveElapsed,
		"remaining", c.st.Remaining(),
		"paused", c.st.Paused)
	c.appendEventLocked(ctx, models.EventResume, "run resumed from checkpoint", map[string]any{
		"phase":       c.st.Phase,
		"elapsed_sec": int(c.st.ActiveElapsed / time.Second),
		"gap_sec":     int(now.Sub(cp.WrittenAt) / time.Second),
	})
	c.publishLocked(now)
	return nil
}

// Resumable is the phase-aware staleness rule. Heating/Maintaining
// checkpoints expire once more wall time has passed than the run had left
// (plus grace); Cooling checkpoints live for the maximum cooldown budget;
// WarmingUp and Idle are never resumed.
func Resumable(cp models.Checkpoint, now time.Time, grace, maxCooldown time.Duration) bool {
	age := now.Sub(cp.WrittenAt)
	switch cp.State.Phase {
	case models.PhaseHeating, models.PhaseMaintaining:
		return age <= cp.State.Remaining()+grace
	case models.PhaseCooling:
		return age <= maxCooldown
	default:
		return false
	}
}

func (c *Controller) resumeGrace() time.Duration {
	if c.opts.ResumeGrace > 0 {
		return c.opts.ResumeGrace
	}
	return 5 * time.Minute
}

func (c *Controller) maxCooldownBudget() time.Duration {
	if c.opts.MaxCooldownBudget > 0 {
		return c.opts.MaxCooldownBudget
	}
	return 12 * time.Hour
}
