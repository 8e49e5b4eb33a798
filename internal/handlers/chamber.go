package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chamberheat/internal/control"
	"chamberheat/internal/models"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusStarted   = "started"
	statusPaused    = "paused"
	statusResumed   = "resumed"
	statusConfirmed = "confirmed"
	statusStopped   = "stopped"
	statusEStopped  = "emergency_stopped"
	statusUpdated   = "updated"

	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondCommandError maps the command error taxonomy onto HTTP codes:
// rejected input is 400, a command in the wrong phase is 409, anything
// else is an internal error.
func (h *Handler) respondCommandError(c *gin.Context, err error, logKey string) {
	var ve *control.ValidationError
	var ite *control.InvalidTransitionError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.As(err, &ite):
		c.JSON(http.StatusConflict, gin.H{"error": ite.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "command failed", logKey, err)
	}
}

// Respond with a status and include the current snapshot.
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	resp["state"] = h.services.Monitoring.Snapshot()
	c.JSON(http.StatusOK, resp)
}

// StartRequest is the payload for starting a run. Either a material preset
// or an explicit setpoint must be given; duration is always required.
type StartRequest struct {
	// Target chamber temperature in Celsius (ignored when material is set)
	SetpointC float64 `json:"setpoint_c,omitempty" example:"60"`
	// Run duration in seconds
	DurationSec int `json:"duration_sec" example:"21600"`
	// Material preset name, e.g. ABS, ASA, PC
	Material string `json:"material,omitempty" example:"ABS"`
}

// SetpointRequest carries a mid-run setpoint change.
type SetpointRequest struct {
	SetpointC float64 `json:"setpoint_c" example:"65"`
}

// DurationRequest carries a signed adjustment of the run duration.
type DurationRequest struct {
	DeltaSec int `json:"delta_sec" example:"900"`
}

// OverrideRequest pins an actuator on or off.
type OverrideRequest struct {
	// Actuator name: heater or fans
	Actuator string `json:"actuator" binding:"required" example:"heater"`
	On       bool   `json:"on" example:"true"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Start a heating run
// @Tags         chamber
// @Accept       json
// @Produce      json
// @Param        body  body   StartRequest  true  "Run parameters"
// @Success      200   {object}  map[string]interface{}  "status, state"
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/chamber/start [post]
func (h *Handler) startRun(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	err := h.services.Chamber.Start(ctx, models.StartParams{
		SetpointC:   req.SetpointC,
		DurationSec: req.DurationSec,
		Material:    req.Material,
	})
	if err != nil {
		h.respondCommandError(c, err, "chamber_start_failed")
		return
	}
	h.respondWithStatusAndState(c, statusStarted, gin.H{})
}

// @Summary      Pause the run timer
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/pause [post]
func (h *Handler) pauseRun(c *gin.Context) {
	if err := h.services.Chamber.Pause(c.Request.Context()); err != nil {
		h.respondCommandError(c, err, "chamber_pause_failed")
		return
	}
	h.respondWithStatusAndState(c, statusPaused, gin.H{})
}

// @Summary      Resume the run timer
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/resume [post]
func (h *Handler) resumeRun(c *gin.Context) {
	if err := h.services.Chamber.Resume(c.Request.Context()); err != nil {
		h.respondCommandError(c, err, "chamber_resume_failed")
		return
	}
	h.respondWithStatusAndState(c, statusResumed, gin.H{})
}

// @Summary      Confirm preheat and start the timer
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/confirm-preheat [post]
func (h *Handler) confirmPreheat(c *gin.Context) {
	if err := h.services.Chamber.ConfirmPreheat(c.Request.Context()); err != nil {
		h.respondCommandError(c, err, "chamber_confirm_failed")
		return
	}
	h.respondWithStatusAndState(c, statusConfirmed, gin.H{})
}

// @Summary      Stop the run, skipping cooldown
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/stop [post]
func (h *Handler) stopRun(c *gin.Context) {
	if err := h.services.Chamber.Stop(c.Request.Context()); err != nil {
		h.respondCommandError(c, err, "chamber_stop_failed")
		return
	}
	h.respondWithStatusAndState(c, statusStopped, gin.H{})
}

// @Summary      Emergency stop
// @Description  Cuts all actuators and clears the run. Never fails, valid in every phase.
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/chamber/emergency-stop [post]
func (h *Handler) emergencyStop(c *gin.Context) {
	if err := h.services.Chamber.EmergencyStop(c.Request.Context()); err != nil {
		h.respondCommandError(c, err, "chamber_estop_failed")
		return
	}
	h.respondWithStatusAndState(c, statusEStopped, gin.H{})
}

// @Summary      Change the target temperature mid-run
// @Tags         chamber
// @Accept       json
// @Produce      json
// @Param        body  body   SetpointRequest  true  "New setpoint"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/chamber/setpoint [put]
func (h *Handler) setSetpoint(c *gin.Context) {
	var req SetpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Chamber.SetSetpoint(c.Request.Context(), req.SetpointC); err != nil {
		h.respondCommandError(c, err, "chamber_setpoint_failed")
		return
	}
	h.respondWithStatusAndState(c, statusUpdated, gin.H{"setpoint_c": req.SetpointC})
}

// @Summary      Add or remove run time
// @Tags         chamber
// @Accept       json
// @Produce      json
// @Param        body  body   DurationRequest  true  "Signed adjustment in seconds"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/chamber/duration [put]
func (h *Handler) adjustDuration(c *gin.Context) {
	var req DurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	delta := time.Duration(req.DeltaSec) * time.Second
	if err := h.services.Chamber.AdjustDuration(c.Request.Context(), delta); err != nil {
		h.respondCommandError(c, err, "chamber_duration_failed")
		return
	}
	h.respondWithStatusAndState(c, statusUpdated, gin.H{"delta_sec": req.DeltaSec})
}

// @Summary      Pin an actuator on or off
// @Tags         chamber
// @Accept       json
// @Produce      json
// @Param        body  body   OverrideRequest  true  "Override payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/chamber/override [put]
func (h *Handler) setOverride(c *gin.Context) {
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Chamber.SetManualOverride(c.Request.Context(), req.Actuator, req.On); err != nil {
		h.respondCommandError(c, err, "chamber_override_failed")
		return
	}
	h.respondWithStatusAndState(c, statusUpdated, gin.H{"actuator": req.Actuator, "on": req.On})
}

// @Summary      Return an actuator to automatic control
// @Tags         chamber
// @Produce      json
// @Param        actuator  path  string  true  "heater or fans"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/chamber/override/{actuator} [delete]
func (h *Handler) clearOverride(c *gin.Context) {
	name := c.Param("actuator")
	if err := h.services.Chamber.ClearManualOverride(c.Request.Context(), name); err != nil {
		h.respondCommandError(c, err, "chamber_override_clear_failed")
		return
	}
	h.respondWithStatusAndState(c, statusUpdated, gin.H{"actuator": name})
}

// @Summary      Get chamber state
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  models.StatusSnapshot
// @Router       /api/v1/chamber/state [get]
func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Snapshot())
}
