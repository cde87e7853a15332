package monitor

import (
	"sync"
	"time"

	"FallWatch.iot/internal/broadcast"
	"FallWatch.iot/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster pushes live events to every subscribed observer without blocking.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// AlertSink accepts a fired alert for asynchronous fan-out. Enqueue must not block.
type AlertSink interface {
	Enqueue(alert models.Alert) bool
}

// LocationReader exposes the last known location.
type LocationReader interface {
	Read() (models.Location, bool)
}

// Recorder receives every merged reading for history. Record must not block.
type Recorder interface {
	Record(reading models.Reading)
}

// IngestResult is the outcome of one ingestion event.
type IngestResult struct {
	Reading   models.Reading
	Connected bool
	FallEdge  bool
}

// Monitor is the single owner of the device's in-memory state. Ingestion,
// liveness expiry and observer subscription all run under one lock, so
// events are applied strictly in arrival order.
type Monitor struct {
	mu sync.Mutex

	clock    clock.Clock
	store    *ReadingStore
	liveness *LivenessTracker
	falls    FallEdgeDetector

	locations   LocationReader
	alerts      AlertSink
	broadcaster Broadcaster
	recorder    Recorder
	logger      *zap.Logger
}

type Option func(*Monitor)

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithRecorder attaches a history recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) {
		m.recorder = r
	}
}

func New(
	livenessWindow time.Duration,
	locations LocationReader,
	alerts AlertSink,
	broadcaster Broadcaster,
	logger *zap.Logger,
	opts ...Option,
) *Monitor {
	m := &Monitor{
		clock:       clock.New(),
		store:       NewReadingStore(),
		locations:   locations,
		alerts:      alerts,
		broadcaster: broadcaster,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.liveness = NewLivenessTracker(m.clock, livenessWindow, m.expire)
	return m
}

// Ingest applies one telemetry event: merge, liveness, edge detection,
// dispatch decision and broadcast, as one atomic step.
func (m *Monitor) Ingest(patch models.ReadingPatch) IngestResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	reading := m.store.Apply(patch, now)

	if m.liveness.Touch() {
		m.logger.Info("Device connected")
		m.broadcaster.Broadcast(broadcast.EventDeviceStatus, models.DeviceStatus{Connected: true})
	}

	edge := m.falls.Observe(patch.FallStatus)
	if edge {
		alert := m.buildAlert(reading, now)
		m.logger.Warn("Fall detected, dispatching alerts",
			zap.String("alert_id", alert.ID),
			zap.Bool("has_location", alert.Location != nil),
		)
		if !m.alerts.Enqueue(alert) {
			m.logger.Error("Alert queue full, fall alert dropped", zap.String("alert_id", alert.ID))
		}
	}

	if m.recorder != nil {
		m.recorder.Record(reading)
	}
	m.broadcaster.Broadcast(broadcast.EventReadingUpdate, reading)

	return IngestResult{Reading: reading, Connected: true, FallEdge: edge}
}

// Subscribe runs join under the state lock with the current connectivity and,
// only while connected, the current reading. Registering the observer inside
// join guarantees it sees no update out of order.
func (m *Monitor) Subscribe(join func(connected bool, reading *models.Reading)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.liveness.State() != Connected {
		join(false, nil)
		return
	}
	snapshot := m.store.Snapshot()
	join(true, &snapshot)
}

// Current returns the connectivity verdict and the latest reading.
func (m *Monitor) Current() (bool, models.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveness.State() == Connected, m.store.Snapshot()
}

// Close cancels the pending liveness timer.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveness.Stop()
}

func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.liveness.Expire(gen) {
		return
	}
	m.logger.Info("Device disconnected (timeout)")
	m.broadcaster.Broadcast(broadcast.EventDeviceStatus, models.DeviceStatus{Connected: false})
}

func (m *Monitor) buildAlert(reading models.Reading, now time.Time) models.Alert {
	alert := models.Alert{
		ID:       uuid.New().String(),
		Kind:     models.AlertKindFallEdge,
		Reading:  &reading,
		RaisedAt: now.UTC(),
	}
	if reading.DeviceIP != nil {
		alert.DeviceID = *reading.DeviceIP
	}
	if loc, ok := m.locations.Read(); ok {
		alert.Location = &loc
	}
	return alert
}
