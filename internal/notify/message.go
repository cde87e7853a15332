package notify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"FallWatch.iot/internal/models"
)

const alertTimeLayout = "02/01/2006, 3:04:05 pm"

func localTime(t time.Time, tz *time.Location) string {
	if tz == nil {
		tz = time.UTC
	}
	return t.In(tz).Format(alertTimeLayout)
}

func deviceLabel(alert models.Alert) string {
	if alert.DeviceID != "" {
		return alert.DeviceID
	}
	return "ESP32 device"
}

// ChatMessage renders the Markdown text used for chat-bot alerts.
func ChatMessage(alert models.Alert, tz *time.Location) string {
	var b strings.Builder
	b.WriteString("🚨 *URGENT ALERT* 🚨\n\n")
	fmt.Fprintf(&b, "Fall detected on %s!\n", deviceLabel(alert))
	fmt.Fprintf(&b, "Time: %s\n", localTime(alert.RaisedAt, tz))

	if loc := alert.Location; loc != nil {
		fmt.Fprintf(&b, "\n📍 *Last Known Location:*\n%s\n(Accuracy: ±%dm)\n", loc.MapsURL(), int(math.Round(loc.Accuracy)))
	} else {
		b.WriteString("\n📍 Location: Unknown (No client connected)\n")
	}

	b.WriteString("\nPlease check immediately!")
	return b.String()
}

// SMSMessage renders the short plain-text alert for phones.
func SMSMessage(alert models.Alert, tz *time.Location) string {
	msg := fmt.Sprintf("ALERT! Fall detected on %s at %s.", deviceLabel(alert), localTime(alert.RaisedAt, tz))
	if loc := alert.Location; loc != nil {
		msg += " Location: " + loc.MapsURL()
	}
	return msg + " Please check immediately!"
}
