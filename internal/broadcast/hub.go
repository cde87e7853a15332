package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventDeviceStatus     = "device_status"
	EventReadingUpdate    = "reading_update"
	EventFallAlert        = "fall_alert"
	EventLocationCaptured = "location_captured"
)

// DefaultBufferSize is the number of undelivered messages an observer may
// lag behind before further messages are dropped for it.
const DefaultBufferSize = 32

// Message is the wire envelope in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Subscriber is one observer's outbound queue.
type Subscriber struct {
	ID   uuid.UUID
	send chan []byte
}

// Messages yields encoded envelopes. It is closed when the subscriber is removed.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Hub is a best-effort, at-most-once publish primitive: observers that are
// absent at publish time miss the update, and a full observer queue drops the
// message for that observer only.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
	bufferSize  int
	logger      *zap.Logger
}

func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[uuid.UUID]*Subscriber),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Encode builds an envelope for event.
func Encode(event string, data any) ([]byte, error) {
	m, err := NewMessage(event, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Broadcast delivers event to every current subscriber without blocking.
func (h *Hub) Broadcast(event string, data any) {
	msg, err := Encode(event, data)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			h.logger.Warn("Observer queue full, dropping message",
				zap.String("subscriber_id", id.String()),
				zap.String("event", event),
			)
		}
	}
}

// Add registers a subscriber and queues the initial messages ahead of any
// later broadcast.
func (h *Hub) Add(initial ...Message) *Subscriber {
	sub := &Subscriber{
		ID:   uuid.New(),
		send: make(chan []byte, h.bufferSize+len(initial)),
	}
	for _, m := range initial {
		msg, err := json.Marshal(m)
		if err != nil {
			h.logger.Error("Failed to encode initial message", zap.String("event", m.Event), zap.Error(err))
			continue
		}
		sub.send <- msg
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	h.logger.Debug("Observer subscribed", zap.String("subscriber_id", sub.ID.String()))
	return sub
}

// Remove unregisters sub and closes its queue. Safe to call twice.
func (h *Hub) Remove(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.ID]; !ok {
		return
	}
	delete(h.subscribers, sub.ID)
	close(sub.send)
	h.logger.Debug("Observer unsubscribed", zap.String("subscriber_id", sub.ID.String()))
}

// Len returns the number of current subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// NewMessage encodes data into an envelope, for initial messages.
func NewMessage(event string, data any) (Message, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: payload}, nil
}
