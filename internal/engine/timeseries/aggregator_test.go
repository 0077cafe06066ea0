package timeseries

import (
	"NetSimScope/internal/model"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func findPoint(t *testing.T, points []model.TimeSeriesPoint, start time.Duration, metric string, flowID uint32) model.TimeSeriesPoint {
	t.Helper()
	for _, p := range points {
		if p.Interval.Start == start && p.Metric == metric && p.FlowID == flowID {
			return p
		}
	}
	t.Fatalf("No point for interval %s metric %s flow %d", start, metric, flowID)
	return model.TimeSeriesPoint{}
}

func hasPoint(points []model.TimeSeriesPoint, metric string, flowID uint32) bool {
	for _, p := range points {
		if p.Metric == metric && p.FlowID == flowID {
			return true
		}
	}
	return false
}

func TestAggregate_SingleFlowSingleInterval(t *testing.T) {
	// 1000 bytes delivered over a 1s window with 1s intervals must yield
	// exactly one throughput point of 1000 bytes/sec (8000 bit/s).
	records := []model.FlowRecord{{
		FlowID:      1,
		TxBytes:     1000,
		RxBytes:     1000,
		TxPackets:   10,
		RxPackets:   10,
		FirstTxTime: 0,
		LastRxTime:  time.Second,
	}}

	rs, err := New(time.Second).Aggregate(records, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	var flowPoints []model.TimeSeriesPoint
	for _, p := range rs.Points {
		if p.Metric == model.MetricThroughput && p.FlowID == 1 {
			flowPoints = append(flowPoints, p)
		}
	}
	if len(flowPoints) != 1 {
		t.Fatalf("Expected 1 throughput point for the flow, got %d", len(flowPoints))
	}
	if flowPoints[0].Value != 8000 {
		t.Errorf("Expected 8000 bit/s (1000 bytes/sec), got %g", flowPoints[0].Value)
	}

	agg := findPoint(t, rs.Points, 0, model.MetricThroughput, model.AggregateFlowID)
	if agg.Value != 8000 {
		t.Errorf("Expected aggregate throughput 8000 bit/s, got %g", agg.Value)
	}
}

func TestAggregate_LossRatio(t *testing.T) {
	// tx=100, rx=90, lost=10 -> loss ratio 0.10.
	records := []model.FlowRecord{{
		FlowID:      1,
		TxPackets:   100,
		RxPackets:   90,
		LostPackets: 10,
		RxBytes:     9000,
		FirstTxTime: 0,
		LastRxTime:  time.Second,
	}}

	rs, err := New(time.Second).Aggregate(records, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	p := findPoint(t, rs.Points, 0, model.MetricLossRatio, 1)
	if p.Value != 0.10 {
		t.Errorf("Expected loss ratio 0.10, got %g", p.Value)
	}
	if len(rs.Flows) != 1 || rs.Flows[0].LossRatio != 0.10 {
		t.Errorf("Expected flow summary loss ratio 0.10, got %+v", rs.Flows)
	}

	for _, pt := range rs.Points {
		if pt.Metric == model.MetricLossRatio && (pt.Value < 0 || pt.Value > 1) {
			t.Errorf("Loss ratio %g outside [0,1] at %s flow %d", pt.Value, pt.Interval.Start, pt.FlowID)
		}
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	rs, err := New(time.Second).Aggregate(nil, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error for empty input, got: %v", err)
	}
	if len(rs.Points) != 0 || len(rs.Flows) != 0 {
		t.Errorf("Expected empty result set, got %d points, %d flows", len(rs.Points), len(rs.Flows))
	}
}

func TestAggregate_WeightedMeanLatency(t *testing.T) {
	// Flow 1: 90 packets at 1ms mean; flow 2: 10 packets at 10ms mean.
	// The aggregate must be the packet-weighted mean 1.9ms, not the plain
	// mean 5.5ms.
	records := []model.FlowRecord{
		{
			FlowID: 1, TxPackets: 90, RxPackets: 90, RxBytes: 9000,
			DelaySum: 90 * time.Millisecond, FirstTxTime: 0, LastRxTime: time.Second,
		},
		{
			FlowID: 2, TxPackets: 10, RxPackets: 10, RxBytes: 1000,
			DelaySum: 100 * time.Millisecond, FirstTxTime: 0, LastRxTime: time.Second,
		},
	}

	rs, err := New(time.Second).Aggregate(records, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	f1 := findPoint(t, rs.Points, 0, model.MetricLatency, 1)
	if f1.Value != 1.0 {
		t.Errorf("Expected flow 1 latency 1ms, got %g", f1.Value)
	}
	f2 := findPoint(t, rs.Points, 0, model.MetricLatency, 2)
	if f2.Value != 10.0 {
		t.Errorf("Expected flow 2 latency 10ms, got %g", f2.Value)
	}
	agg := findPoint(t, rs.Points, 0, model.MetricLatency, model.AggregateFlowID)
	if agg.Value != 1.9 {
		t.Errorf("Expected weighted-mean aggregate latency 1.9ms, got %g", agg.Value)
	}
}

func TestAggregate_FlowWithNoDeliveries(t *testing.T) {
	// Transmissions with zero receptions: loss ratio 1.0, zero throughput,
	// and no latency point since there is no delay sample to average.
	records := []model.FlowRecord{{
		FlowID:      1,
		TxPackets:   10,
		LostPackets: 4, // rest still in flight at trace end
		TxBytes:     1000,
		FirstTxTime: 0,
		LastRxTime:  time.Second,
	}}

	rs, err := New(time.Second).Aggregate(records, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	loss := findPoint(t, rs.Points, 0, model.MetricLossRatio, 1)
	if loss.Value != 1.0 {
		t.Errorf("Expected loss ratio 1.0, got %g", loss.Value)
	}
	tp := findPoint(t, rs.Points, 0, model.MetricThroughput, 1)
	if tp.Value != 0 {
		t.Errorf("Expected zero throughput, got %g", tp.Value)
	}
	if hasPoint(rs.Points, model.MetricLatency, 1) {
		t.Error("Expected no latency point for a flow with zero received packets")
	}
}

func TestAggregate_UniformDistributionAcrossIntervals(t *testing.T) {
	// 4000 bytes over a 4s window with 1s intervals: 1000 bytes in each.
	records := []model.FlowRecord{{
		FlowID:      1,
		TxPackets:   40,
		RxPackets:   40,
		RxBytes:     4000,
		FirstTxTime: 0,
		LastRxTime:  4 * time.Second,
	}}

	rs, err := New(time.Second).Aggregate(records, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		p := findPoint(t, rs.Points, time.Duration(i)*time.Second, model.MetricThroughput, 1)
		if p.Value != 8000 {
			t.Errorf("Interval %d: expected 8000 bit/s, got %g", i, p.Value)
		}
	}
}

func TestAggregate_DeliveryEventsExactBucketing(t *testing.T) {
	records := []model.FlowRecord{{
		FlowID:      1,
		TxPackets:   2,
		RxPackets:   2,
		RxBytes:     400,
		DelaySum:    4 * time.Millisecond,
		FirstTxTime: 0,
		LastRxTime:  2 * time.Second,
	}}
	events := []model.DeliveryEvent{
		{Timestamp: 500 * time.Millisecond, FlowID: 1, Bytes: 100, Delay: time.Millisecond},
		{Timestamp: 1500 * time.Millisecond, FlowID: 1, Bytes: 300, Delay: 3 * time.Millisecond},
	}

	rs, err := New(time.Second).Aggregate(records, events, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	p0 := findPoint(t, rs.Points, 0, model.MetricThroughput, 1)
	if p0.Value != 800 {
		t.Errorf("Expected 800 bit/s in first interval, got %g", p0.Value)
	}
	p1 := findPoint(t, rs.Points, time.Second, model.MetricThroughput, 1)
	if p1.Value != 2400 {
		t.Errorf("Expected 2400 bit/s in second interval, got %g", p1.Value)
	}

	l0 := findPoint(t, rs.Points, 0, model.MetricLatency, 1)
	if l0.Value != 1.0 {
		t.Errorf("Expected 1ms latency in first interval, got %g", l0.Value)
	}
	l1 := findPoint(t, rs.Points, time.Second, model.MetricLatency, 1)
	if l1.Value != 3.0 {
		t.Errorf("Expected 3ms latency in second interval, got %g", l1.Value)
	}
}

func TestAggregate_AuxiliarySamples(t *testing.T) {
	records := []model.FlowRecord{{
		FlowID: 1, TxPackets: 1, RxPackets: 1, RxBytes: 100,
		FirstTxTime: 0, LastRxTime: 2 * time.Second,
	}}
	samples := []model.MetricSample{
		{Timestamp: 200 * time.Millisecond, Name: "Channel_Utilization", Value: 1},
		{Timestamp: 400 * time.Millisecond, Name: "Channel_Utilization", Value: 3},
		{Timestamp: 1500 * time.Millisecond, Name: "Channel_Utilization", Value: 5},
	}

	rs, err := New(time.Second).Aggregate(records, nil, samples)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	p0 := findPoint(t, rs.Points, 0, "Channel_Utilization", model.AggregateFlowID)
	if p0.Value != 2 {
		t.Errorf("Expected interval mean 2, got %g", p0.Value)
	}
	p1 := findPoint(t, rs.Points, time.Second, "Channel_Utilization", model.AggregateFlowID)
	if p1.Value != 5 {
		t.Errorf("Expected interval mean 5, got %g", p1.Value)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	records := []model.FlowRecord{
		{FlowID: 2, TxPackets: 10, RxPackets: 8, LostPackets: 2, RxBytes: 800,
			DelaySum: 16 * time.Millisecond, FirstTxTime: time.Second, LastRxTime: 3 * time.Second},
		{FlowID: 1, TxPackets: 90, RxPackets: 90, RxBytes: 9000,
			DelaySum: 90 * time.Millisecond, FirstTxTime: 0, LastRxTime: 2 * time.Second},
	}
	samples := []model.MetricSample{
		{Timestamp: 500 * time.Millisecond, Name: "util", Value: 0.5},
	}

	first, err := New(time.Second).Aggregate(records, nil, samples)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	second, err := New(time.Second).Aggregate(records, nil, samples)
	if err != nil {
		t.Fatalf("Aggregate failed on re-run: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Re-aggregation produced different output (-first +second):\n%s", diff)
	}

	// Canonical ordering: interval start, then metric, then flow id.
	for i := 1; i < len(first.Points); i++ {
		a, b := first.Points[i-1], first.Points[i]
		if a.Interval.Start > b.Interval.Start {
			t.Fatalf("Points out of interval order at %d", i)
		}
		if a.Interval.Start == b.Interval.Start && a.Metric > b.Metric {
			t.Fatalf("Points out of metric order at %d", i)
		}
		if a.Interval.Start == b.Interval.Start && a.Metric == b.Metric && a.FlowID >= b.FlowID {
			t.Fatalf("Points out of flow order at %d", i)
		}
	}
}

func TestAggregate_DerivedWidth(t *testing.T) {
	// Smallest positive gap between flow start times is 500ms.
	records := []model.FlowRecord{
		{FlowID: 1, TxPackets: 1, RxPackets: 1, RxBytes: 100, FirstTxTime: 0, LastRxTime: 2 * time.Second},
		{FlowID: 2, TxPackets: 1, RxPackets: 1, RxBytes: 100, FirstTxTime: 500 * time.Millisecond, LastRxTime: 2 * time.Second},
	}

	rs, err := New(0).Aggregate(records, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if rs.Width != 500*time.Millisecond {
		t.Errorf("Expected derived width 500ms, got %s", rs.Width)
	}
}

func TestAggregate_PointMassWindow(t *testing.T) {
	// A zero-width activity window lands entirely in its containing interval.
	records := []model.FlowRecord{{
		FlowID: 1, TxPackets: 1, RxPackets: 1, RxBytes: 500,
		FirstTxTime: 2500 * time.Millisecond, LastRxTime: 2500 * time.Millisecond,
	}, {
		FlowID: 2, TxPackets: 1, RxPackets: 1, RxBytes: 100,
		FirstTxTime: 0, LastRxTime: 4 * time.Second,
	}}

	rs, err := New(time.Second).Aggregate(records, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	p := findPoint(t, rs.Points, 2*time.Second, model.MetricThroughput, 1)
	if p.Value != 4000 {
		t.Errorf("Expected 4000 bit/s point mass, got %g", p.Value)
	}
}
