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

	coremetrics "github.com/kilianp07/energyiot/core/metrics"
	"github.com/kilianp07/energyiot/infra/logger"
)

// InfluxSink writes engine events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
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

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCycle writes one point per finished cycle.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	p := write.NewPointWithMeasurement("cycle").
		AddTag("kind", string(ev.Kind)).
		AddTag("outcome", ev.Outcome).
		AddTag("cycle_id", ev.ID).
		AddField("fired", ev.Fired).
		AddField("failures", ev.Failures).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordTriggerDecision(ev coremetrics.TriggerDecision) error {
	p := write.NewPointWithMeasurement("trigger_decision").
		AddTag("trigger", ev.Trigger).
		AddTag("type", ev.Type).
		AddTag("result", ev.Result).
		AddTag("cycle_id", ev.CycleID).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordActionAttempt(ev coremetrics.ActionAttempt) error {
	p := write.NewPointWithMeasurement("action_attempt").
		AddTag("group", ev.GroupID).
		AddTag("device_id", ev.DeviceID).
		AddField("state", ev.State).
		AddField("attempt", ev.Attempt).
		AddField("status", ev.StatusCode).
		AddField("success", ev.Success).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordActionFailure(ev coremetrics.ActionFailureEvent) error {
	p := write.NewPointWithMeasurement("action_failure").
		AddTag("group", ev.GroupID).
		AddTag("trigger", ev.Trigger).
		AddField("item", ev.Item).
		AddField("reason", ev.Reason).
		AddField("retries", ev.Retries).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) RecordPriceUpdate(ev coremetrics.PriceUpdate) error {
	p := write.NewPointWithMeasurement("price_update").
		AddField("slots", ev.Slots).
		AddField("min", round3(ev.Min)).
		AddField("max", round3(ev.Max)).
		AddField("mean", round3(ev.Mean)).
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
