package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"FallWatch.iot/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const Measurement = "device_readings"

// HistoryFields are the reading fields that can be queried as a series.
var HistoryFields = map[string]bool{
	"heart_rate":    true,
	"step_count":    true,
	"sleep_hours":   true,
	"spo2":          true,
	"battery_level": true,
	"wifi_rssi":     true,
	"fall_status":   true,
}

var ErrInvalidQuery = errors.New("invalid history query")

// TelemetryRepository stores merged readings and serves them back as series.
type TelemetryRepository interface {
	Record(reading models.Reading)
	History(ctx context.Context, q models.HistoryQuery) (models.HistoryResponse, error)
	EnsureBucket(ctx context.Context) error
	Close()
}

// InfluxDBRepository writes readings through the non-blocking write API so
// the ingestion path never waits on the database.
type InfluxDBRepository struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	org      string
	bucket   string
	logger   *zap.Logger
	done     chan struct{}
}

func NewInfluxDBRepository(url, token, org, bucket string, logger *zap.Logger) *InfluxDBRepository {
	client := influxdb2.NewClientWithOptions(url, token,
		influxdb2.DefaultOptions().
			SetBatchSize(50).
			SetFlushInterval(1000),
	)
	r := &InfluxDBRepository{
		client:   client,
		writeAPI: client.WriteAPI(org, bucket),
		org:      org,
		bucket:   bucket,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go r.logWriteErrors()
	return r
}

func (r *InfluxDBRepository) logWriteErrors() {
	errs := r.writeAPI.Errors()
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}
			r.logger.Error("Error writing to InfluxDB", zap.String("bucket", r.bucket), zap.Error(err))
		case <-r.done:
			return
		}
	}
}

// Record queues reading for the next batch. Readings without metrics are ignored.
func (r *InfluxDBRepository) Record(reading models.Reading) {
	p := readingPoint(reading)
	if p == nil {
		return
	}
	r.writeAPI.WritePoint(p)
}

func readingPoint(reading models.Reading) *write.Point {
	fields := make(map[string]interface{})
	if reading.FallStatus != nil {
		fields["fall_status"] = *reading.FallStatus
	}
	if reading.HeartRate != nil {
		fields["heart_rate"] = *reading.HeartRate
	}
	if reading.StepCount != nil {
		fields["step_count"] = *reading.StepCount
	}
	if reading.SleepHours != nil {
		fields["sleep_hours"] = *reading.SleepHours
	}
	if reading.SpO2 != nil {
		fields["spo2"] = *reading.SpO2
	}
	if reading.BatteryLevel != nil {
		fields["battery_level"] = *reading.BatteryLevel
	}
	if reading.WifiRSSI != nil {
		fields["wifi_rssi"] = *reading.WifiRSSI
	}
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{}
	if reading.DeviceIP != nil && *reading.DeviceIP != "" {
		tags["device_ip"] = *reading.DeviceIP
	}

	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(Measurement, tags, fields, ts)
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (r *InfluxDBRepository) EnsureBucket(ctx context.Context) error {
	bucketsAPI := r.client.BucketsAPI()
	if _, err := bucketsAPI.FindBucketByName(ctx, r.bucket); err == nil {
		return nil
	}

	org, err := r.client.OrganizationsAPI().FindOrganizationByName(ctx, r.org)
	if err != nil {
		return fmt.Errorf("error finding organization '%s': %w", r.org, err)
	}
	if org == nil {
		return fmt.Errorf("organization '%s' not found", r.org)
	}

	if _, err := bucketsAPI.CreateBucketWithName(ctx, org, r.bucket); err != nil {
		return fmt.Errorf("error creating bucket '%s': %w", r.bucket, err)
	}
	r.logger.Info("Bucket created", zap.String("bucket", r.bucket))
	return nil
}

// History returns the windowed mean of one field.
func (r *InfluxDBRepository) History(ctx context.Context, q models.HistoryQuery) (models.HistoryResponse, error) {
	flux, err := historyFlux(r.bucket, q)
	if err != nil {
		return models.HistoryResponse{}, err
	}
	r.logger.Debug("Executing InfluxDB query", zap.String("query", flux))

	result, err := r.client.QueryAPI(r.org).Query(ctx, flux)
	if err != nil {
		return models.HistoryResponse{}, fmt.Errorf("error querying InfluxDB: %w", err)
	}
	defer result.Close()

	resp := models.HistoryResponse{Field: q.Field, Points: []models.DataPoint{}}
	for result.Next() {
		record := result.Record()
		point := models.DataPoint{Time: record.Time()}
		switch v := record.Value().(type) {
		case float64:
			point.Value = &v
		case int64:
			f := float64(v)
			point.Value = &f
		}
		resp.Points = append(resp.Points, point)
	}
	if err := result.Err(); err != nil {
		return models.HistoryResponse{}, fmt.Errorf("error reading InfluxDB result: %w", err)
	}
	return resp, nil
}

// Close flushes pending writes and releases the client.
func (r *InfluxDBRepository) Close() {
	r.writeAPI.Flush()
	close(r.done)
	r.client.Close()
}

var (
	relativeTime = regexp.MustCompile(`^-\d+(ms|s|m|h|d|w|mo|y)$`)
	windowPeriod = regexp.MustCompile(`^\d+(ms|s|m|h|d|w)$`)
)

func fluxTime(v string) (string, error) {
	if v == "now()" || relativeTime.MatchString(v) {
		return v, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC().Format(time.RFC3339Nano), nil
	}
	return "", fmt.Errorf("%w: bad time %q", ErrInvalidQuery, v)
}

func historyFlux(bucket string, q models.HistoryQuery) (string, error) {
	if !HistoryFields[q.Field] {
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, q.Field)
	}
	if q.Start == "" {
		q.Start = "-1h"
	}
	if q.Stop == "" {
		q.Stop = "now()"
	}
	if q.WindowPeriod == "" {
		q.WindowPeriod = "1m"
	}

	start, err := fluxTime(q.Start)
	if err != nil {
		return "", err
	}
	stop, err := fluxTime(q.Stop)
	if err != nil {
		return "", err
	}
	if !windowPeriod.MatchString(q.WindowPeriod) {
		return "", fmt.Errorf("%w: bad window %q", ErrInvalidQuery, q.WindowPeriod)
	}

	value := ""
	if q.Field == "fall_status" {
		value = "\n\t|> toInt()"
	}
	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: %s, stop: %s)
	|> filter(fn: (r) => r["_measurement"] == %q)
	|> filter(fn: (r) => r["_field"] == %q)%s
	|> aggregateWindow(every: %s, fn: mean, createEmpty: true)
	|> yield(name: "mean")`, bucket, start, stop, Measurement, q.Field, value, q.WindowPeriod), nil
}
