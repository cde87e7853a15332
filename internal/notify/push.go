package notify

import (
	"context"

	"FallWatch.iot/internal/broadcast"
	"FallWatch.iot/internal/models"
)

// PushChannel surfaces the alert to connected dashboards.
type PushChannel struct {
	broadcaster Broadcaster
}

func NewPushChannel(b Broadcaster) *PushChannel {
	return &PushChannel{broadcaster: b}
}

func (p *PushChannel) Name() string { return "push" }

func (p *PushChannel) Send(_ context.Context, alert models.Alert) (string, error) {
	p.broadcaster.Broadcast(broadcast.EventFallAlert, alert)
	return "", nil
}
