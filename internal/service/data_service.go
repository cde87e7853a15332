package service

import (
	"context"
	"errors"
	"fmt"

	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/repository"
)

var ErrHistoryUnavailable = errors.New("telemetry history is not configured")

// DataService serves stored telemetry. The repository is optional.
type DataService struct {
	repo repository.TelemetryRepository
}

func NewDataService(repo repository.TelemetryRepository) *DataService {
	return &DataService{repo: repo}
}

func (s *DataService) Enabled() bool {
	return s.repo != nil
}

// GetHistory returns the series for one reading field.
func (s *DataService) GetHistory(ctx context.Context, q models.HistoryQuery) (models.HistoryResponse, error) {
	if s.repo == nil {
		return models.HistoryResponse{}, ErrHistoryUnavailable
	}
	if q.Field == "" {
		return models.HistoryResponse{}, fmt.Errorf("%w: field is required", repository.ErrInvalidQuery)
	}
	data, err := s.repo.History(ctx, q)
	if err != nil {
		return models.HistoryResponse{}, fmt.Errorf("error querying history: %w", err)
	}
	return data, nil
}
