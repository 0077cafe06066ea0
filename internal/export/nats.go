package export

import (
	"NetSimScope/internal/config"
	"NetSimScope/internal/model"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// seriesMessage is the wire shape published for one time-series point.
type seriesMessage struct {
	Version       string  `json:"version"`
	IntervalStart float64 `json:"interval_start"`
	IntervalWidth float64 `json:"interval_width"`
	Metric        string  `json:"metric"`
	FlowID        uint32  `json:"flow_id"`
	Value         float64 `json:"value"`
}

// NATSWriter publishes finished time-series points to a NATS subject so
// downstream dashboards can pick up new runs. It implements model.Writer.
type NATSWriter struct {
	nc      *nats.Conn
	subject string
}

// NewNATSWriter connects to the NATS server from the config.
func NewNATSWriter(cfg config.NATSConfig) (model.Writer, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSWriter{nc: nc, subject: cfg.Subject}, nil
}

// Name returns the writer identifier.
func (w *NATSWriter) Name() string { return "nats" }

// Write publishes every point as a JSON message, then flushes the connection
// so the run's data is on the wire before the process exits.
func (w *NATSWriter) Write(rs *model.ResultSet, version string) error {
	for _, p := range rs.Points {
		msg := seriesMessage{
			Version:       version,
			IntervalStart: p.Interval.Start.Seconds(),
			IntervalWidth: p.Interval.Width.Seconds(),
			Metric:        p.Metric,
			FlowID:        p.FlowID,
			Value:         p.Value,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal series message: %w", err)
		}
		if err := w.nc.Publish(w.subject, data); err != nil {
			return fmt.Errorf("failed to publish series message: %w", err)
		}
	}
	if err := w.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	log.Printf("Published %d time-series points to '%s'", len(rs.Points), w.subject)
	return nil
}

// Close drains and closes the NATS connection.
func (w *NATSWriter) Close() {
	if w.nc != nil {
		w.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
