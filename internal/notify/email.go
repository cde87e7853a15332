package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"math"
	"time"

	"FallWatch.iot/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const emailSubject = "🚨 Fall Detected – Immediate Attention Required"

// Mailer delivers prepared messages. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// NewSMTPMailer returns a gomail dialer for the given relay.
func NewSMTPMailer(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

var emailTemplate = template.Must(template.New("fall").Funcs(template.FuncMap{
	"round": func(f float64) int { return int(math.Round(f)) },
}).Parse(`<div style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: auto; border: 1px solid #ddd; padding: 20px; border-radius: 10px;">
<h2 style="color: #d32f2f; text-align: center;">🚨 FALL DETECTED! 🚨</h2>
<p style="font-size: 16px;">A fall has been detected on device <strong>{{.Device}}</strong>.<br>Please check on the user immediately.</p>
{{with .Location}}
<div style="margin-top: 20px; padding: 15px; background-color: #e3f2fd; border-radius: 5px;">
<h3 style="margin-top: 0;">📍 Last Known Location</h3>
<p><strong>Latitude:</strong> {{.Latitude}}</p>
<p><strong>Longitude:</strong> {{.Longitude}}</p>
<p><strong>Accuracy:</strong> ±{{round .Accuracy}}m</p>
<a href="{{.MapsURL}}">View on Google Maps</a>
</div>
{{else}}
<div style="margin-top: 20px; padding: 15px; background-color: #f5f5f5; border-radius: 5px;">
<h3 style="margin-top: 0; color: #666;">📍 Location Unknown</h3>
<p>No GPS data available from the dashboard client.</p>
</div>
{{end}}
<hr>
<h3>📊 Device Data Snapshot</h3>
<p><strong>Time:</strong> {{.Time}}</p>
{{with .Motion}}
<table style="width: 100%; border-collapse: collapse;">
<tr><th>Sensor</th><th>X</th><th>Y</th><th>Z</th></tr>
<tr><td>Accelerometer</td><td>{{.AccX}}</td><td>{{.AccY}}</td><td>{{.AccZ}}</td></tr>
<tr><td>Gyroscope</td><td>{{.GyroX}}</td><td>{{.GyroY}}</td><td>{{.GyroZ}}</td></tr>
</table>
{{end}}
{{with .Reading}}
<table style="width: 100%; border-collapse: collapse;">
{{with .HeartRate}}<tr><td>Heart rate</td><td>{{.}} bpm</td></tr>{{end}}
{{with .SpO2}}<tr><td>SpO2</td><td>{{.}}%</td></tr>{{end}}
{{with .BatteryLevel}}<tr><td>Battery</td><td>{{.}}%</td></tr>{{end}}
</table>
{{end}}
<div style="background-color: #fff3cd; color: #856404; padding: 15px; border-radius: 5px;">
<strong>⚠ Emergency Instructions:</strong>
<ul><li>Call the user to verify status.</li><li>If no response, visit the location or contact emergency services.</li></ul>
</div>
<p style="font-size: 12px; color: #777; text-align: center;">This is an automated message from your FallWatch fall detection system.</p>
</div>`))

type emailView struct {
	Device   string
	Time     string
	Location *models.Location
	Motion   *models.Motion
	Reading  *models.Reading
}

// EmailChannel sends an HTML alert, at most once per cooldown window.
type EmailChannel struct {
	mailer   Mailer
	from     string
	to       []string
	cooldown *Cooldown
	tz       *time.Location
	logger   *zap.Logger
}

func NewEmailChannel(mailer Mailer, from string, to []string, cooldown *Cooldown, tz *time.Location, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{
		mailer:   mailer,
		from:     from,
		to:       to,
		cooldown: cooldown,
		tz:       tz,
		logger:   logger,
	}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, alert models.Alert) (string, error) {
	if e.mailer == nil || e.from == "" || len(e.to) == 0 {
		return "", skipped("email not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg, id, err := e.compose(alert)
	if err != nil {
		return "", err
	}

	attempted, err := e.cooldown.Do(func() error {
		return e.mailer.DialAndSend(msg)
	})
	if !attempted {
		remaining := e.cooldown.Remaining()
		e.logger.Info("Email cooldown active, skipping alert", zap.Duration("remaining", remaining))
		return "", skipped(fmt.Sprintf("cooldown active, %s remaining", remaining.Round(time.Second)))
	}
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return id, nil
}

func (e *EmailChannel) compose(alert models.Alert) (*gomail.Message, string, error) {
	view := emailView{
		Device:   alert.DeviceID,
		Time:     alert.DeviceTime,
		Location: alert.Location,
		Motion:   alert.Motion,
		Reading:  alert.Reading,
	}
	if view.Device == "" {
		view.Device = "Unknown"
	}
	if view.Time == "" {
		view.Time = localTime(alert.RaisedAt, e.tz)
	}

	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, view); err != nil {
		return nil, "", fmt.Errorf("failed to render email: %w", err)
	}

	id := fmt.Sprintf("<%s@fallwatch>", uuid.NewString())
	m := gomail.NewMessage()
	m.SetAddressHeader("From", e.from, "FallWatch Alert System")
	m.SetHeader("To", e.to...)
	m.SetHeader("Subject", emailSubject)
	m.SetHeader("Message-ID", id)
	m.SetBody("text/html", body.String())
	return m, id, nil
}
