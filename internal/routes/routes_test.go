package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"FallWatch.iot/internal/broadcast"
	"FallWatch.iot/internal/controller"
	"FallWatch.iot/internal/location"
	"FallWatch.iot/internal/middleware"
	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/monitor"
	"FallWatch.iot/internal/notify"
	"FallWatch.iot/internal/repository"
	"FallWatch.iot/internal/service"
	"FallWatch.iot/internal/session"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingChannel struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (c *countingChannel) Name() string { return "counter" }

func (c *countingChannel) Send(_ context.Context, a models.Alert) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
	return "", nil
}

func (c *countingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

type app struct {
	server    *httptest.Server
	channel   *countingChannel
	locations *location.Cache
}

func newApp(t *testing.T, deviceToken string) *app {
	logger := zap.NewNop()
	dir := t.TempDir()
	clk := clock.NewMock()

	hub := broadcast.NewHub(broadcast.DefaultBufferSize, logger)
	locations := location.NewCache(location.NewFileStore(filepath.Join(dir, "location.json")), logger)
	sessions := session.NewMemoryStore(clk)

	channel := &countingChannel{}
	coordinator := notify.NewCoordinator(time.Second, logger, channel)
	dispatcher := notify.NewDispatcher(coordinator, 8, logger)
	require.NoError(t, dispatcher.Open())
	t.Cleanup(func() { dispatcher.Close() })

	mon := monitor.New(5*time.Second, locations, dispatcher, hub, logger, monitor.WithClock(clk))
	t.Cleanup(mon.Close)

	users, err := repository.NewFileUserRepository(filepath.Join(dir, "users.json"))
	require.NoError(t, err)
	auth := service.NewAuthService(users, sessions, clk, time.Hour)

	static := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(static, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>FallWatch</h1>"), 0o644))

	router := mux.NewRouter()
	RegisterRoutes(router, Controllers{
		Data: controller.NewDataController(mon, service.NewDataService(nil), logger),
		Fall: controller.NewFallController(coordinator, locations, clk, logger),
		Auth: controller.NewAuthController(auth, false, logger),
		Live: controller.NewLiveController(mon, hub, locations, broadcast.NewUpgrader(true), logger),
	}, Options{
		DeviceAuth:  middleware.DeviceToken(deviceToken, logger),
		SessionAuth: middleware.RequireSession(auth),
		Logging:     middleware.RequestLogger(logger),
		StaticDir:   static,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &app{server: srv, channel: channel, locations: locations}
}

func (a *app) post(t *testing.T, path, body string, header map[string]string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoutes_FallScenarioDispatchesTwice(t *testing.T) {
	a := newApp(t, "")

	for _, v := range []string{"false", "true", "true", "false", "true"} {
		resp := a.post(t, "/api/readings", `{"fall_status":`+v+`,"heart_rate":80}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Eventually(t, func() bool { return a.channel.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return a.channel.count() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestRoutes_AlertUsesCapturedLocation(t *testing.T) {
	a := newApp(t, "")
	loc := models.Location{Latitude: 12.9716, Longitude: 77.5946, Accuracy: 14.6, Timestamp: 1700000000000}
	a.locations.Update(loc)

	a.post(t, "/api/readings", `{"fall_status":true}`, nil)

	assert.Eventually(t, func() bool { return a.channel.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	a.channel.mu.Lock()
	defer a.channel.mu.Unlock()
	require.NotNil(t, a.channel.alerts[0].Location)
	assert.Equal(t, loc, *a.channel.alerts[0].Location)
}

func TestRoutes_DeviceToken(t *testing.T) {
	a := newApp(t, "s3cret")

	resp := a.post(t, "/api/readings", `{"heart_rate":70}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.post(t, "/api/readings", `{"heart_rate":70}`, map[string]string{middleware.DeviceTokenHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_HealthStaticAndMethods(t *testing.T) {
	a := newApp(t, "")

	resp, err := http.Get(a.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(a.server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, a.server.URL+"/api/readings", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRoutes_HistoryRequiresSession(t *testing.T) {
	a := newApp(t, "")

	resp, err := http.Get(a.server.URL + "/api/readings/history?field=spo2")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
