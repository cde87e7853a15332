package session

import (
	"context"
	"fmt"

	"FallWatch.iot/internal/models"

	"github.com/benbjohnson/clock"
)

// Directory is a read-only view of active sessions that carry a phone
// number. Membership is evaluated on every call and never cached.
type Directory struct {
	store Store
	clock clock.Clock
}

func NewDirectory(store Store, clk clock.Clock) *Directory {
	return &Directory{store: store, clock: clk}
}

// Recipients returns one entry per unexpired session with a phone number.
func (d *Directory) Recipients(ctx context.Context) ([]models.Recipient, error) {
	sessions, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := d.clock.Now()
	var out []models.Recipient
	for _, s := range sessions {
		if s.Phone == "" || s.Expired(now) {
			continue
		}
		out = append(out, models.Recipient{Name: s.Name, Phone: s.Phone})
	}
	return out, nil
}
