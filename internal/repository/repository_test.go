package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FallWatch.iot/internal/models"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestReadingPoint(t *testing.T) {
	ts := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	p := readingPoint(models.Reading{
		FallStatus: ptr(true),
		HeartRate:  ptr(72.5),
		StepCount:  ptr(int64(1200)),
		DeviceIP:   ptr("10.0.0.7"),
		Timestamp:  ts,
	})
	require.NotNil(t, p)

	line := write.PointToLineProtocol(p, time.Nanosecond)
	assert.True(t, strings.HasPrefix(line, "device_readings,device_ip=10.0.0.7 "), line)
	assert.Contains(t, line, "fall_status=true")
	assert.Contains(t, line, "heart_rate=72.5")
	assert.Contains(t, line, "step_count=1200i")
	assert.Contains(t, line, "1792143000000000000")
}

func TestReadingPoint_NoMetrics(t *testing.T) {
	assert.Nil(t, readingPoint(models.Reading{DeviceIP: ptr("10.0.0.7")}))
}

func TestHistoryFlux(t *testing.T) {
	flux, err := historyFlux("fallwatch", models.HistoryQuery{Field: "heart_rate"})
	require.NoError(t, err)
	assert.Contains(t, flux, `from(bucket: "fallwatch")`)
	assert.Contains(t, flux, "range(start: -1h, stop: now())")
	assert.Contains(t, flux, `r["_field"] == "heart_rate"`)
	assert.Contains(t, flux, "every: 1m")

	flux, err = historyFlux("fallwatch", models.HistoryQuery{
		Field:        "spo2",
		Start:        "2026-10-16T00:00:00Z",
		Stop:         "2026-10-16T06:00:00+05:30",
		WindowPeriod: "15m",
	})
	require.NoError(t, err)
	assert.Contains(t, flux, "range(start: 2026-10-16T00:00:00Z, stop: 2026-10-16T00:30:00Z)")
}

func TestHistoryFlux_RejectsUnsafeInput(t *testing.T) {
	cases := map[string]models.HistoryQuery{
		"unknown field": {Field: "password"},
		"bad start":     {Field: "spo2", Start: `-1h) |> drop(`},
		"bad stop":      {Field: "spo2", Stop: "tomorrow"},
		"bad window":    {Field: "spo2", WindowPeriod: "1m, fn: last"},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := historyFlux("fallwatch", q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestFileUserRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.json")
	repo, err := NewFileUserRepository(path)
	require.NoError(t, err)

	asha, err := repo.Create(models.User{Name: "Asha", Email: "asha@example.com", Password: "hash"})
	require.NoError(t, err)
	assert.Equal(t, 1, asha.ID)

	_, err = repo.Create(models.User{Name: "Other", Email: "ASHA@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	bala, err := repo.Create(models.User{Name: "Bala", Email: "bala@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, bala.ID)

	reopened, err := NewFileUserRepository(path)
	require.NoError(t, err)

	got, err := reopened.FindByEmail("Asha@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)

	got, err = reopened.FindByID(2)
	require.NoError(t, err)
	assert.Equal(t, "bala@example.com", got.Email)

	_, err = reopened.FindByID(3)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFileUserRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileUserRepository(path)
	assert.Error(t, err)
}
