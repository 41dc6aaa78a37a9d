package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/cdsensor/core/metrics"
	"github.com/kilianp07/cdsensor/core/sensor"
	"github.com/kilianp07/cdsensor/infra/logger"
)

// InfluxSink writes sensor states to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// SensorPoint builds the line protocol point of a sensor state. Numeric
// states are written to the value field, everything else to text.
func SensorPoint(ev coremetrics.SensorStateEvent) *write.Point {
	p := write.NewPointWithMeasurement("sensor_state").
		AddTag("vin", ev.VIN).
		AddTag("service", ev.Service).
		AddTag("attribute", ev.Attribute).
		AddTag("unique_id", ev.UniqueID)
	if ev.Unit != "" {
		p = p.AddTag("unit", ev.Unit)
	}
	if ev.Available {
		if f, ok := sensor.Numeric(ev.State); ok {
			p = p.AddField("value", round3(f))
		} else {
			p = p.AddField("text", sensor.FormatState(ev.State))
		}
	}
	p = p.AddField("available", ev.Available)
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return p.SetTime(ev.Time)
}

// RecordSensorState writes one sensor state.
func (s *InfluxSink) RecordSensorState(ev coremetrics.SensorStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, SensorPoint(ev))
}

// RecordRefresh writes a summary of a refresh cycle.
func (s *InfluxSink) RecordRefresh(ev coremetrics.RefreshEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("platform_refresh").
		AddTag("component", "platform").
		AddField("entities", ev.Entities).
		AddField("failures", ev.Failures).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
