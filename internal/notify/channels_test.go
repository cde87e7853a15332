package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"FallWatch.iot/internal/broadcast"
	"FallWatch.iot/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func kolkata(t *testing.T) *time.Location {
	tz, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	return tz
}

func locatedAlert() models.Alert {
	a := testAlert()
	a.Location = &models.Location{Latitude: 12.9716, Longitude: 77.5946, Accuracy: 14.6, Timestamp: 1700000000000}
	return a
}

func TestChatMessage(t *testing.T) {
	tz := kolkata(t)
	alert := locatedAlert()
	alert.RaisedAt = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	msg := ChatMessage(alert, tz)
	assert.Contains(t, msg, "*URGENT ALERT*")
	assert.Contains(t, msg, "Time: 16/10/2026, 3:00:00 pm")
	assert.Contains(t, msg, "https://www.google.com/maps?q=12.9716,77.5946")
	assert.Contains(t, msg, "(Accuracy: ±15m)")

	alert.Location = nil
	assert.Contains(t, ChatMessage(alert, tz), "Location: Unknown")
}

func TestTelegramChannel_Send(t *testing.T) {
	var got telegramRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel(srv.URL, "TOKEN", "-100", time.UTC, zap.NewNop())
	ref, err := ch.Send(context.Background(), locatedAlert())
	require.NoError(t, err)

	assert.Equal(t, "42", ref)
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, "Markdown", got.ParseMode)
	assert.Contains(t, got.Text, "maps?q=12.9716,77.5946")
}

func TestTelegramChannel_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	_, err := NewTelegramChannel(srv.URL, "TOKEN", "-100", time.UTC, zap.NewNop()).Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	_, err = NewTelegramChannel(srv.URL, "", "", time.UTC, zap.NewNop()).Send(context.Background(), testAlert())
	assert.ErrorIs(t, err, ErrSkipped)
}

type staticDirectory []models.Recipient

func (d staticDirectory) Recipients(context.Context) ([]models.Recipient, error) { return d, nil }

func TestSMSChannel_OneFailureDoesNotBlockOthers(t *testing.T) {
	var (
		mu      sync.Mutex
		numbers []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KEY", r.Header.Get("authorization"))
		var req smsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "q", req.Route)
		assert.Equal(t, "english", req.Language)

		mu.Lock()
		numbers = append(numbers, req.Numbers)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if req.Numbers == "222" {
			w.Write([]byte(`{"return":false,"message":"Invalid Numbers"}`))
			return
		}
		w.Write([]byte(`{"return":true,"request_id":"req-` + req.Numbers + `","message":["SMS sent successfully."]}`))
	}))
	defer srv.Close()

	dir := staticDirectory{{Name: "A", Phone: "111"}, {Name: "B", Phone: "222"}, {Name: "C", Phone: "333"}}
	ch := NewSMSChannel(srv.URL, "KEY", dir, time.UTC, zap.NewNop())

	ref, err := ch.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "222")
	assert.Equal(t, "req-111,req-333", ref)
	assert.ElementsMatch(t, []string{"111", "222", "333"}, numbers)
}

func TestSMSChannel_HangingRecipientDoesNotStarveOthers(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req smsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Numbers == "111" {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"return":true,"request_id":"req-` + req.Numbers + `","message":["SMS sent successfully."]}`))
	}))
	defer srv.Close()
	defer close(release)

	dir := staticDirectory{{Name: "A", Phone: "111"}, {Name: "B", Phone: "222"}}
	ch := NewSMSChannel(srv.URL, "KEY", dir, time.UTC, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	ref, err := ch.Send(ctx, testAlert())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "111")
	assert.NotContains(t, err.Error(), "222")
	assert.Equal(t, "req-222", ref)
}

func TestSMSChannel_SkipsWithoutRecipients(t *testing.T) {
	ch := NewSMSChannel("http://127.0.0.1:0", "KEY", staticDirectory{}, time.UTC, zap.NewNop())
	_, err := ch.Send(context.Background(), testAlert())
	assert.ErrorIs(t, err, ErrSkipped)

	ch = NewSMSChannel("http://127.0.0.1:0", "", staticDirectory{{Phone: "1"}}, time.UTC, zap.NewNop())
	_, err = ch.Send(context.Background(), testAlert())
	assert.ErrorIs(t, err, ErrSkipped)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestEmailChannel_CooldownAndBody(t *testing.T) {
	mock := clock.NewMock()
	mailer := &fakeMailer{}
	ch := NewEmailChannel(mailer, "alerts@example.com", []string{"carer@example.com"}, NewCooldown(mock, 10*time.Second), time.UTC, zap.NewNop())

	alert := locatedAlert()
	alert.Kind = models.AlertKindFallReport
	alert.DeviceID = "ESP32_01"
	alert.Motion = &models.Motion{AccX: 1.5, GyroZ: -3}

	id, err := ch.Send(context.Background(), alert)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@fallwatch>"))
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	assert.Equal(t, []string{"carer@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{id}, msg.GetHeader("Message-ID"))

	var body strings.Builder
	require.NoError(t, emailTemplate.Execute(&body, emailView{Device: alert.DeviceID, Location: alert.Location, Motion: alert.Motion}))
	assert.Contains(t, body.String(), "<strong>ESP32_01</strong>")
	assert.Contains(t, body.String(), "±15m")
	assert.Contains(t, body.String(), "<td>1.5</td>")

	_, err = ch.Send(context.Background(), alert)
	assert.ErrorIs(t, err, ErrSkipped)
	assert.Len(t, mailer.sent, 1)

	mock.Add(10 * time.Second)
	_, err = ch.Send(context.Background(), alert)
	require.NoError(t, err)
	assert.Len(t, mailer.sent, 2)
}

func TestEmailChannel_FailureKeepsWindowOpen(t *testing.T) {
	mock := clock.NewMock()
	mailer := &fakeMailer{err: errors.New("auth failed")}
	ch := NewEmailChannel(mailer, "alerts@example.com", []string{"carer@example.com"}, NewCooldown(mock, time.Minute), time.UTC, zap.NewNop())

	_, err := ch.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSkipped)

	mailer.err = nil
	_, err = ch.Send(context.Background(), testAlert())
	assert.NoError(t, err)
}

func TestEmailChannel_Unconfigured(t *testing.T) {
	ch := NewEmailChannel(nil, "", nil, NewCooldown(nil, time.Minute), time.UTC, zap.NewNop())
	_, err := ch.Send(context.Background(), testAlert())
	assert.ErrorIs(t, err, ErrSkipped)
}

func TestPushChannel_BroadcastsFallAlert(t *testing.T) {
	hub := broadcast.NewHub(4, zap.NewNop())
	sub := hub.Add()
	defer hub.Remove(sub)

	_, err := NewPushChannel(hub).Send(context.Background(), testAlert())
	require.NoError(t, err)

	var msg broadcast.Message
	require.NoError(t, json.Unmarshal(<-sub.Messages(), &msg))
	assert.Equal(t, broadcast.EventFallAlert, msg.Event)
	assert.Contains(t, string(msg.Data), "alert-1")
}
