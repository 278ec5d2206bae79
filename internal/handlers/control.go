package handlers

import (
	"net/http"
	"time"

	"anesthesia_controller/internal/control"
	"anesthesia_controller/internal/models"
	"anesthesia_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK         = "ok"
	statusAccepted   = "accepted"
	statusAsserted   = "asserted"
	statusReleased   = "released"
	statusConfigured = "configured"

	errGetStatus       = "failed to load status"
	errIngestVitals    = "failed to ingest vitals"
	errSetSignal       = "failed to set signal"
	errConfigure       = "failed to apply configuration"
	errInvalidBodyPref = "invalid body: "
	errFutureTimestamp = "timestamp is in the future"
)

// maxClockSkew is how far ahead of receipt a snapshot timestamp may be.
const maxClockSkew = control.DefaultTickPeriod

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Validation failures become 400 with the reason; anything else is a 500.
func (h *Handler) serviceError(c *gin.Context, userMsg, logKey string, err error) {
	if service.IsValidationError(err) {
		if h.log != nil {
			h.log.Infow(logKey, "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err)
}

// Respond with a status and include the latest controller status if available (best-effort).
func (h *Handler) respondWithStatus(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	if h.services.Monitoring != nil {
		if st, err := h.services.Monitoring.GetStatus(ctx); err == nil {
			resp["controller"] = st
		}
	}
	c.JSON(http.StatusOK, resp)
}

// VitalsRequest is one monitor snapshot. Timestamp defaults to receipt time.
type VitalsRequest struct {
	HeartRate       *float64   `json:"heart_rate" binding:"required" example:"72"`
	MAP             *float64   `json:"map" binding:"required" example:"85"`
	RespiratoryRate *float64   `json:"respiratory_rate" binding:"required" example:"14"`
	SpO2            *float64   `json:"spo2" binding:"required" example:"98"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

// SignalRequest asserts or releases a hardware input.
type SignalRequest struct {
	Asserted *bool `json:"asserted" binding:"required" example:"true"`
}

// ThresholdsRequest replaces the whole threshold table.
type ThresholdsRequest struct {
	HeartRate       *control.ThresholdSpec `json:"heart_rate" binding:"required"`
	MAP             *control.ThresholdSpec `json:"map" binding:"required"`
	RespiratoryRate *control.ThresholdSpec `json:"respiratory_rate" binding:"required"`
	SpO2            *control.ThresholdSpec `json:"spo2" binding:"required"`
}

// GainsRequest replaces the PID gains.
type GainsRequest struct {
	Kp *float64 `json:"kp" binding:"required" example:"2"`
	Ki *float64 `json:"ki" binding:"required" example:"0.5"`
	Kd *float64 `json:"kd" binding:"required" example:"1"`
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

// @Summary      Get controller status
// @Description  State, actuator command, alarm level and causes, latest vitals and PID diagnostics.
// @Tags         control
// @Produce      json
// @Success      200  {object}  models.Status
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetStatus(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "get_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Deliver vitals
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      VitalsRequest  true  "Snapshot"
// @Success      202   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/vitals [post]
// @Security     BearerAuth
func (h *Handler) postVitals(c *gin.Context) {
	var req VitalsRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	now := time.Now().UTC()
	v := models.Vitals{
		HeartRate:       *req.HeartRate,
		MAP:             *req.MAP,
		RespiratoryRate: *req.RespiratoryRate,
		SpO2:            *req.SpO2,
		Timestamp:       now,
	}
	if req.Timestamp != nil {
		if req.Timestamp.After(now.Add(maxClockSkew)) {
			if h.log != nil {
				h.log.Infow("vitals_rejected", "timestamp", *req.Timestamp, "received", now)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": errFutureTimestamp})
			return
		}
		v.Timestamp = req.Timestamp.UTC()
	}
	if err := h.services.Control.IngestVitals(c.Request.Context(), v); err != nil {
		h.serviceError(c, errIngestVitals, "ingest_vitals_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusAccepted})
}

// @Summary      Emergency stop
// @Description  Asserting forces the actuator to zero immediately.
// @Tags         signals
// @Accept       json
// @Produce      json
// @Param        body  body      SignalRequest  true  "Signal"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/signals/emergency-stop [post]
// @Security     BearerAuth
func (h *Handler) setEmergencyStop(c *gin.Context) {
	var req SignalRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.Control.SetEmergencyStop(c.Request.Context(), *req.Asserted); err != nil {
		h.serviceError(c, errSetSignal, "emergency_stop_failed", err)
		return
	}
	h.respondWithStatus(c, signalStatus(*req.Asserted), gin.H{"signal": "emergency_stop"})
}

// @Summary      Manual override
// @Description  Asserting holds the actuator at its current command.
// @Tags         signals
// @Accept       json
// @Produce      json
// @Param        body  body      SignalRequest  true  "Signal"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/signals/manual-override [post]
// @Security     BearerAuth
func (h *Handler) setManualOverride(c *gin.Context) {
	var req SignalRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.Control.SetManualOverride(c.Request.Context(), *req.Asserted); err != nil {
		h.serviceError(c, errSetSignal, "manual_override_failed", err)
		return
	}
	h.respondWithStatus(c, signalStatus(*req.Asserted), gin.H{"signal": "manual_override"})
}

func signalStatus(asserted bool) string {
	if asserted {
		return statusAsserted
	}
	return statusReleased
}

// @Summary      Replace thresholds
// @Description  Rejected tables (e.g. low above target) leave the active table unchanged.
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        body  body      ThresholdsRequest  true  "Threshold table"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/config/thresholds [put]
// @Security     BearerAuth
func (h *Handler) putThresholds(c *gin.Context) {
	var req ThresholdsRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	t := control.Thresholds{
		HeartRate:       *req.HeartRate,
		MAP:             *req.MAP,
		RespiratoryRate: *req.RespiratoryRate,
		SpO2:            *req.SpO2,
	}
	if err := h.services.Control.ConfigureThresholds(c.Request.Context(), t); err != nil {
		h.serviceError(c, errConfigure, "configure_thresholds_failed", err)
		return
	}
	h.respondWithStatus(c, statusConfigured, gin.H{"thresholds": t})
}

// @Summary      Replace PID gains
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        body  body      GainsRequest  true  "Gains"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/config/gains [put]
// @Security     BearerAuth
func (h *Handler) putGains(c *gin.Context) {
	var req GainsRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	g := control.Gains{Kp: *req.Kp, Ki: *req.Ki, Kd: *req.Kd}
	if err := h.services.Control.ConfigureGains(c.Request.Context(), g); err != nil {
		h.serviceError(c, errConfigure, "configure_gains_failed", err)
		return
	}
	h.respondWithStatus(c, statusConfigured, gin.H{"gains": g})
}
