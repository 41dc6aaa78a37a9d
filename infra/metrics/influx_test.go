package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/cdsensor/core/metrics"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordSensorState(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()

	ev := coremetrics.SensorStateEvent{
		UniqueID:  "WBY1-remaining_fuel",
		VIN:       "WBY1",
		Service:   "STATUS",
		Attribute: "remaining_fuel",
		State:     10.0,
		Unit:      "gal",
		Available: true,
		Time:      now,
	}
	if err := sink.RecordSensorState(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("sensor_state").
		AddTag("vin", "WBY1").
		AddTag("service", "STATUS").
		AddTag("attribute", "remaining_fuel").
		AddTag("unique_id", "WBY1-remaining_fuel").
		AddTag("unit", "gal").
		AddField("value", 10.0).
		AddField("available", true).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestSensorPointText(t *testing.T) {
	now := time.Now()
	p := SensorPoint(coremetrics.SensorStateEvent{
		UniqueID:  "WBY1-charging_status",
		VIN:       "WBY1",
		Service:   "STATUS",
		Attribute: "charging_status",
		State:     "CHARGING",
		Available: true,
		Time:      now,
	})
	line := write.PointToLineProtocol(p, time.Nanosecond)
	if !strings.Contains(line, `text="CHARGING"`) || strings.Contains(line, "value=") {
		t.Fatalf("unexpected line %s", line)
	}
	if strings.Contains(line, "unit=") {
		t.Fatalf("empty unit should not be tagged: %s", line)
	}

	p = SensorPoint(coremetrics.SensorStateEvent{VIN: "WBY1", Service: "STATUS", Attribute: "mileage", UniqueID: "u", Error: "missing field", Time: now})
	line = write.PointToLineProtocol(p, time.Nanosecond)
	if !strings.Contains(line, "available=false") || !strings.Contains(line, `error="missing field"`) {
		t.Fatalf("unexpected line %s", line)
	}
}

func TestInfluxSink_RecordRefresh(t *testing.T) {
	rec := &bodyRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	if err := sink.RecordRefresh(coremetrics.RefreshEvent{Entities: 12, Failures: 1, Duration: 1500 * time.Microsecond, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("platform_refresh").
		AddTag("component", "platform").
		AddField("entities", 12).
		AddField("failures", 1).
		AddField("duration_ms", 1.5).
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != exp {
		t.Errorf("bodies: %#v", rec.bodies)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
