package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FallWatch.iot/internal/models"

	"go.uber.org/zap"
)

// DefaultChannelTimeout bounds a single channel send.
const DefaultChannelTimeout = 30 * time.Second

// Coordinator fans an alert out to every configured channel. Each channel is
// isolated: an error, panic or timeout in one never affects the others, and
// the fan-out itself never fails.
type Coordinator struct {
	channels []Channel
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCoordinator(timeout time.Duration, logger *zap.Logger, channels ...Channel) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultChannelTimeout
	}
	return &Coordinator{
		channels: channels,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch sends alert on all channels concurrently and waits for every outcome.
func (c *Coordinator) Dispatch(ctx context.Context, alert models.Alert) Report {
	report := Report{
		AlertID:  alert.ID,
		Outcomes: make([]Outcome, len(c.channels)),
	}

	var wg sync.WaitGroup
	for i, ch := range c.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			report.Outcomes[i] = c.run(ctx, ch, alert)
		}(i, ch)
	}
	wg.Wait()

	c.logger.Info("Alert fan-out finished",
		zap.String("alert_id", alert.ID),
		zap.String("kind", string(alert.Kind)),
		zap.Any("outcomes", report.Outcomes),
	)
	return report
}

// SendOne sends alert on the named channel only, with the same isolation as
// Dispatch. An unconfigured channel is reported as skipped.
func (c *Coordinator) SendOne(ctx context.Context, name string, alert models.Alert) Outcome {
	for _, ch := range c.channels {
		if ch.Name() == name {
			return c.run(ctx, ch, alert)
		}
	}
	return Outcome{Channel: name, Status: StatusSkipped, Detail: "channel not configured"}
}

// SendEmail is SendOne for the email channel.
func (c *Coordinator) SendEmail(ctx context.Context, alert models.Alert) Outcome {
	return c.SendOne(ctx, "email", alert)
}

type sendResult struct {
	ref string
	err error
}

// run enforces the channel timeout even when Send ignores its context; a send
// that overruns keeps going in the background but is reported as failed.
func (c *Coordinator) run(ctx context.Context, ch Channel, alert models.Alert) Outcome {
	out := Outcome{Channel: ch.Name()}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan sendResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Notification channel panicked",
					zap.String("channel", ch.Name()),
					zap.String("alert_id", alert.ID),
					zap.Any("panic", r),
				)
				done <- sendResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		ref, err := ch.Send(ctx, alert)
		done <- sendResult{ref: ref, err: err}
	}()

	var ref string
	var err error
	select {
	case res := <-done:
		ref, err = res.ref, res.err
	case <-ctx.Done():
		err = fmt.Errorf("timeout: %w", ctx.Err())
	}
	switch {
	case err == nil:
		out.Status = StatusSent
		out.Reference = ref
		c.logger.Info("Alert sent",
			zap.String("channel", out.Channel),
			zap.String("alert_id", alert.ID),
			zap.String("reference", ref),
		)
	case errors.Is(err, ErrSkipped):
		out.Status = StatusSkipped
		out.Detail = err.Error()
		c.logger.Info("Alert skipped",
			zap.String("channel", out.Channel),
			zap.String("alert_id", alert.ID),
			zap.String("reason", out.Detail),
		)
	default:
		out.Status = StatusFailed
		out.Detail = err.Error()
		c.logger.Error("Alert failed",
			zap.String("channel", out.Channel),
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
	return out
}
