package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"hvac_gateway/internal/logger"
	"hvac_gateway/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	influxConnectTimeout = 10 * time.Second
	measurement          = "hvac_state"
)

// InfluxConfig configures NewInfluxSink.
type InfluxConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
	Device  string
}

// pointWriter is the part of api.WriteAPI the sink uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxSink writes one point per snapshot through the non-blocking write
// API. Write errors arrive asynchronously and are logged.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	device string
	now    func() time.Time
}

// NewInfluxSink connects and verifies the server with a ping.
func NewInfluxSink(cfg InfluxConfig, log *logger.Logger) (*InfluxSink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logger.Nop()
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, influxdb2.DefaultOptions())

	ctx, cancel := context.WithTimeout(context.Background(), influxConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping %s: %w", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb ping %s: server not healthy", cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errs <-chan error) {
		for err := range errs {
			log.Warnw("influx_write_failed", "error", err)
		}
	}(writeAPI.Errors())

	return &InfluxSink{client: client, writer: writeAPI, device: cfg.Device, now: time.Now}, nil
}

// Publish queues the snapshot as a point. It does not block on the network.
func (s *InfluxSink) Publish(_ context.Context, st models.DeviceState) error {
	s.writer.WritePoint(snapshotPoint(s.device, st, s.now()))
	return nil
}

// Close flushes pending points and closes the client.
func (s *InfluxSink) Close() error {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func snapshotPoint(device string, st models.DeviceState, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"temperature_outside": st.OutsideTemperature,
		"temperature_inside":  st.InsideTemperature,
		"temperature_feed":    st.FeedTemperature,
		"hysteresis":          st.Hysteresis,
		"mode":                st.Mode.String(),
	}
	for i, v := range st.HeatExchangerTemperatures {
		fields["temperature_he"+strconv.Itoa(i+1)] = v
	}
	for i := range st.ValveOpenStates {
		n := strconv.Itoa(i + 1)
		fields["valve_opened"+n] = st.ValveOpenStates[i]
		fields["valve_activated"+n] = st.ValveActivatedStates[i]
	}
	return influxdb2.NewPoint(measurement, map[string]string{"device": device}, fields, ts)
}
