package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/monitor"
	"FallWatch.iot/internal/repository"
	"FallWatch.iot/internal/service"
	"FallWatch.iot/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Ingestor is the device state owner.
type Ingestor interface {
	Ingest(patch models.ReadingPatch) monitor.IngestResult
	Current() (bool, models.Reading)
}

// DataController handles device telemetry requests.
type DataController struct {
	monitor Ingestor
	service *service.DataService
	logger  *zap.Logger
}

func NewDataController(m Ingestor, service *service.DataService, logger *zap.Logger) *DataController {
	return &DataController{
		monitor: m,
		service: service,
		logger:  logger,
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// HandleIngest merges a partial reading from the device.
func (c *DataController) HandleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeBadRequest, fmt.Sprintf("error reading request body: %v", err), nil, http.StatusBadRequest))
		return
	}

	patch, err := models.ParseReadingPatch(body)
	if err != nil {
		c.logger.Warn("Rejected reading payload", zap.Error(err))
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidFormat, err.Error(), nil, http.StatusBadRequest))
		return
	}

	result := c.monitor.Ingest(patch)
	c.logger.Debug("Received readings", zap.Any("reading", result.Reading), zap.Bool("fall_edge", result.FallEdge))

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Data received",
		"data":    result.Reading,
	})
}

// HandleCurrent returns the connectivity verdict and the latest reading.
func (c *DataController) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	connected, reading := c.monitor.Current()
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"connected": connected,
		"data":      reading,
	})
}

// HandleHistory serves a windowed series of one reading field.
func (c *DataController) HandleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := models.HistoryQuery{
		Field:        query.Get("field"),
		Start:        query.Get("start"),
		Stop:         query.Get("stop"),
		WindowPeriod: query.Get("window"),
	}
	if req.Field == "" {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMissingParameter, "field is required", nil, http.StatusBadRequest))
		return
	}

	data, err := c.service.GetHistory(r.Context(), req)
	switch {
	case err == nil:
		utils.RespondWithJSON(w, http.StatusOK, data)
	case errors.Is(err, service.ErrHistoryUnavailable):
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeServiceUnavailable, err.Error(), nil, http.StatusServiceUnavailable))
	case errors.Is(err, repository.ErrInvalidQuery):
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInvalidFormat, err.Error(), nil, http.StatusBadRequest))
	default:
		c.logger.Error("Error fetching history", zap.String("field", req.Field), zap.Error(err))
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeInternalServerError, "Error fetching data from InfluxDB", nil, http.StatusInternalServerError))
	}
}
