package utils

import (
	"encoding/json"
	"net/http"

	"FallWatch.iot/internal/models"

	"go.uber.org/zap"
)

// RespondWithError sends a JSON error response using the APIError model.
func RespondWithError(writer http.ResponseWriter, apiErr models.APIError) {
	RespondWithJSON(writer, apiErr.StatusCode, apiErr)
}

// RespondWithJSON sends a JSON response with the given status code.
func RespondWithJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		zap.L().Error("Failed to encode JSON response", zap.Error(err))
	}
}

// RespondWithMessage sends {"message": msg}.
func RespondWithMessage(writer http.ResponseWriter, statusCode int, msg string) {
	RespondWithJSON(writer, statusCode, map[string]string{"message": msg})
}
