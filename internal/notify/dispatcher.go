package notify

import (
	"context"
	"sync"

	"FallWatch.iot/internal/models"

	"go.uber.org/zap"
)

const DefaultQueueSize = 16

// Dispatcher decouples alert production from delivery. Enqueue never blocks;
// a single worker drains the queue through the Coordinator.
type Dispatcher struct {
	mu          sync.RWMutex
	opened      bool
	queue       chan models.Alert
	size        int
	coordinator *Coordinator
	logger      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnReport is invoked by the worker after each fan-out, if set.
	OnReport func(Report)
}

func NewDispatcher(coordinator *Coordinator, size int, logger *zap.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		size:        size,
		coordinator: coordinator,
		logger:      logger,
	}
}

func (d *Dispatcher) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.queue = make(chan models.Alert, d.size)
	d.opened = true

	d.wg.Add(1)
	go func(queue <-chan models.Alert) {
		defer d.wg.Done()
		d.run(ctx, queue)
	}(d.queue)
	return nil
}

// Close stops accepting alerts and waits for queued ones to be delivered.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return nil
	}
	d.opened = false
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	return nil
}

// Enqueue hands alert to the worker. It returns false when the queue is full
// or the dispatcher is not open.
func (d *Dispatcher) Enqueue(alert models.Alert) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.opened {
		return false
	}
	select {
	case d.queue <- alert:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) run(ctx context.Context, queue <-chan models.Alert) {
	for alert := range queue {
		report := d.coordinator.Dispatch(ctx, alert)
		if d.OnReport != nil {
			d.OnReport(report)
		}
	}
	d.logger.Debug("Alert dispatcher drained")
}
