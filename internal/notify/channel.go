package notify

import (
	"context"
	"errors"
	"fmt"

	"FallWatch.iot/internal/models"
)

// ErrSkipped marks a deliberate non-send: cooldown, missing configuration or
// nobody to notify. It is reported as a skip, never as a failure.
var ErrSkipped = errors.New("skipped")

func skipped(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkipped, reason)
}

// Channel is one independent notification path. Send returns an optional
// provider reference (message id, request id) on success.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert models.Alert) (string, error)
}

// Broadcaster pushes an event to live observers.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// Directory resolves SMS recipients at dispatch time.
type Directory interface {
	Recipients(ctx context.Context) ([]models.Recipient, error)
}

type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is the result of one channel for one alert.
type Outcome struct {
	Channel   string `json:"channel"`
	Status    Status `json:"status"`
	Reference string `json:"reference,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Report aggregates the per-channel outcomes of a fan-out.
type Report struct {
	AlertID  string    `json:"alert_id"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome returns the outcome for channel name.
func (r Report) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Channel == name {
			return o, true
		}
	}
	return Outcome{}, false
}
