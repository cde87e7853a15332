package controller

import (
	"context"
	"net/http"

	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/notify"
	"FallWatch.iot/internal/utils"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EmailSender delivers one alert by email, honouring the shared cooldown.
type EmailSender interface {
	SendEmail(ctx context.Context, alert models.Alert) notify.Outcome
}

// LocationReader exposes the last known location.
type LocationReader interface {
	Read() (models.Location, bool)
}

// FallController handles detailed fall reports carrying raw motion data.
type FallController struct {
	sender    EmailSender
	locations LocationReader
	clock     clock.Clock
	logger    *zap.Logger
}

func NewFallController(sender EmailSender, locations LocationReader, clk clock.Clock, logger *zap.Logger) *FallController {
	if clk == nil {
		clk = clock.New()
	}
	return &FallController{
		sender:    sender,
		locations: locations,
		clock:     clk,
		logger:    logger,
	}
}

// HandleFallReport emails an alert for every report with fallDetected set.
// There is no edge detection here; the email cooldown is the only limit.
func (c *FallController) HandleFallReport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest, "error reading request body", nil, http.StatusBadRequest))
		return
	}
	report, err := models.ParseFallReport(body)
	if err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidFormat, err.Error(), nil, http.StatusBadRequest))
		return
	}

	if !report.FallDetected {
		c.logger.Info("Fall report received, no fall detected", zap.String("device_id", report.DeviceID))
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"message": "Data logged, no fall detected",
		})
		return
	}

	motion := report.Motion
	alert := models.Alert{
		ID:         uuid.NewString(),
		Kind:       models.AlertKindFallReport,
		DeviceID:   report.DeviceID,
		Motion:     &motion,
		RaisedAt:   c.clock.Now().UTC(),
		DeviceTime: report.Timestamp,
	}
	if loc, ok := c.locations.Read(); ok {
		alert.Location = &loc
	}
	c.logger.Warn("Fall report received", zap.String("alert_id", alert.ID), zap.String("device_id", report.DeviceID))

	// The email must not be abandoned if the device hangs up early.
	outcome := c.sender.SendEmail(context.WithoutCancel(r.Context()), alert)
	resp := map[string]interface{}{
		"status":  "success",
		"alertId": alert.ID,
		"email":   outcome.Status,
	}
	if outcome.Status == notify.StatusSent {
		resp["message"] = "Fall detected & Email sent"
		resp["emailId"] = outcome.Reference
	} else {
		resp["message"] = "Fall detected but Email failed/skipped"
		resp["error"] = outcome.Detail
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
