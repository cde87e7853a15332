package mqtt

import (
	"fmt"
	"strings"

	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/monitor"

	"go.uber.org/zap"
)

// Ingestor accepts a partial reading.
type Ingestor interface {
	Ingest(patch models.ReadingPatch) monitor.IngestResult
}

// DeviceFromTopic returns the segment after the first level of a
// "<prefix>/<device>/readings" topic, or "".
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

// NewIngestHandler feeds MQTT payloads into the same path as HTTP ingestion.
func NewIngestHandler(ingestor Ingestor, logger *zap.Logger) MessageHandler {
	return func(topic string, payload []byte) error {
		patch, err := models.ParseReadingPatch(payload)
		if err != nil {
			return fmt.Errorf("invalid reading payload: %w", err)
		}
		res := ingestor.Ingest(patch)
		logger.Debug("MQTT reading ingested",
			zap.String("topic", topic),
			zap.String("device", DeviceFromTopic(topic)),
			zap.Bool("fall_edge", res.FallEdge),
		)
		return nil
	}
}
