package controller

import (
	"net/http"

	"FallWatch.iot/internal/broadcast"
	"FallWatch.iot/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscriber registers an observer atomically with respect to ingestion.
type Subscriber interface {
	Subscribe(join func(connected bool, reading *models.Reading))
}

// LocationWriter stores the dashboard's reported position.
type LocationWriter interface {
	Update(loc models.Location)
}

// LiveController serves the observer WebSocket.
type LiveController struct {
	monitor   Subscriber
	hub       *broadcast.Hub
	locations LocationWriter
	upgrader  *websocket.Upgrader
	logger    *zap.Logger
}

func NewLiveController(m Subscriber, hub *broadcast.Hub, locations LocationWriter, upgrader *websocket.Upgrader, logger *zap.Logger) *LiveController {
	return &LiveController{
		monitor:   m,
		hub:       hub,
		locations: locations,
		upgrader:  upgrader,
		logger:    logger,
	}
}

func (c *LiveController) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	var sub *broadcast.Subscriber
	c.monitor.Subscribe(func(connected bool, reading *models.Reading) {
		initial := make([]broadcast.Message, 0, 2)
		if m, err := broadcast.NewMessage(broadcast.EventDeviceStatus, models.DeviceStatus{Connected: connected}); err == nil {
			initial = append(initial, m)
		}
		if reading != nil {
			if m, err := broadcast.NewMessage(broadcast.EventReadingUpdate, reading); err == nil {
				initial = append(initial, m)
			}
		}
		sub = c.hub.Add(initial...)
	})

	c.logger.Info("Observer connected", zap.String("subscriber_id", sub.ID.String()), zap.String("remote_addr", r.RemoteAddr))
	c.hub.Serve(conn, sub, c.handleMessage)
	c.logger.Info("Observer disconnected", zap.String("subscriber_id", sub.ID.String()))
}

func (c *LiveController) handleMessage(msg broadcast.Message) {
	switch msg.Event {
	case broadcast.EventLocationCaptured:
		loc, err := models.ParseLocation(msg.Data)
		if err != nil {
			c.logger.Warn("Ignoring invalid location", zap.Error(err))
			return
		}
		c.locations.Update(loc)
		c.logger.Info("Location captured",
			zap.Float64("latitude", loc.Latitude),
			zap.Float64("longitude", loc.Longitude),
			zap.Float64("accuracy", loc.Accuracy),
		)
	default:
		c.logger.Debug("Ignoring observer event", zap.String("event", msg.Event))
	}
}
