package model

import (
	"sort"
	"time"
)

// AggregateFlowID marks a TimeSeriesPoint that combines all flows.
// FlowMonitor assigns flow ids starting at 1, so 0 is free.
const AggregateFlowID uint32 = 0

// Metric names for the series produced by the aggregator. Auxiliary metrics
// loaded from the simulation metrics table keep their column names.
const (
	MetricThroughput = "throughput_bps"
	MetricLatency    = "latency_ms"
	MetricLossRatio  = "loss_ratio"
)

// FlowRecord holds the final cumulative counters of one simulated flow, as
// reported by the flow monitor. Timestamps are offsets from simulation start.
// Records are immutable once parsing completes.
type FlowRecord struct {
	FlowID      uint32
	SrcEndpoint string
	DstEndpoint string
	Protocol    string
	TxBytes     uint64
	RxBytes     uint64
	TxPackets   uint64
	RxPackets   uint64
	LostPackets uint64
	DelaySum    time.Duration
	JitterSum   time.Duration
	FirstTxTime time.Duration
	LastRxTime  time.Duration
}

// ActiveSpan returns the duration of the flow's observed activity window.
func (r *FlowRecord) ActiveSpan() time.Duration {
	return r.LastRxTime - r.FirstTxTime
}

// DeliveryEvent is a single observed packet delivery, typically recovered
// from a pcap capture taken alongside the flow monitor. Events allow exact
// per-interval attribution instead of the uniform-distribution approximation.
type DeliveryEvent struct {
	Timestamp time.Duration
	FlowID    uint32
	Bytes     uint64
	Delay     time.Duration
}

// MetricSample is one scalar observation from the auxiliary metrics table.
type MetricSample struct {
	Timestamp time.Duration
	Name      string
	Value     float64
}

// Interval is a fixed-width time bucket [Start, Start+Width).
type Interval struct {
	Start time.Duration
	Width time.Duration
}

// End returns the exclusive upper bound of the interval.
func (iv Interval) End() time.Duration { return iv.Start + iv.Width }

// Contains reports whether t falls within the interval.
func (iv Interval) Contains(t time.Duration) bool {
	return t >= iv.Start && t < iv.End()
}

// TimeSeriesPoint is the unit of the aggregator's output: one metric value
// for one flow (or the aggregate) in one interval.
type TimeSeriesPoint struct {
	Interval Interval
	Metric   string
	FlowID   uint32
	Value    float64
}

// FlowSummary holds whole-run derived statistics for one flow, used by the
// report and the summary exports.
type FlowSummary struct {
	FlowID        uint32
	SrcEndpoint   string
	DstEndpoint   string
	Protocol      string
	TxBytes       uint64
	RxBytes       uint64
	TxPackets     uint64
	RxPackets     uint64
	LostPackets   uint64
	LossRatio     float64
	AvgDelayMs    float64
	AvgJitterMs   float64
	ThroughputBps float64
	FirstTxTime   time.Duration
	LastRxTime    time.Duration
}

// ResultSet is the complete output of one aggregation run. Points are kept in
// canonical order so identical inputs always produce identical output.
type ResultSet struct {
	RunStart time.Duration
	RunEnd   time.Duration
	Width    time.Duration
	Points   []TimeSeriesPoint
	Flows    []FlowSummary

	// SkippedRows counts malformed metrics-table rows that were dropped
	// during loading. Non-zero means the auxiliary series are degraded.
	SkippedRows int
}

// SortPoints orders points canonically: interval start, then metric name,
// then flow id (aggregate first).
func SortPoints(points []TimeSeriesPoint) {
	sort.Slice(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.Interval.Start != b.Interval.Start {
			return a.Interval.Start < b.Interval.Start
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		return a.FlowID < b.FlowID
	})
}
