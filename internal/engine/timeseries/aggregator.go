package timeseries

import (
	"NetSimScope/internal/model"
	"fmt"
	"log"
	"sort"
	"time"
)

// DefaultWidth is used when no width is configured and none can be derived
// from the data.
const DefaultWidth = time.Second

// AggregationError signals an internal invariant violation, such as a
// negative derived rate. Given validated parser output it should never occur;
// seeing one means a bug upstream, not bad input.
type AggregationError struct {
	Metric string
	FlowID uint32
	Err    error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation %s flow %d: %v", e.Metric, e.FlowID, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// Aggregator converts final cumulative flow counters (plus optional
// per-packet delivery events and auxiliary metric samples) into per-interval
// time series. Aggregation is a pure function of its inputs: identical inputs
// and width always produce identical output, point for point.
type Aggregator struct {
	width time.Duration
}

// New creates an Aggregator. A zero width means derive it from the data: the
// smallest positive gap between flow start times, falling back to
// DefaultWidth.
func New(width time.Duration) *Aggregator {
	return &Aggregator{width: width}
}

// flowBuckets holds the per-interval attribution for one flow.
type flowBuckets struct {
	rec      *model.FlowRecord
	first    int // index of the first interval the flow is active in
	txPkts   []float64
	rxPkts   []float64
	rxBytes  []float64
	lostPkts []float64
	delaySum []float64 // nanoseconds
}

// Aggregate produces the complete result set for one run. Events may be nil;
// without them a flow's cumulative counters are distributed uniformly across
// its active window, a documented approximation of the true per-interval
// rates.
func (a *Aggregator) Aggregate(records []model.FlowRecord, events []model.DeliveryEvent, samples []model.MetricSample) (*model.ResultSet, error) {
	recs := make([]*model.FlowRecord, len(records))
	for i := range records {
		recs[i] = &records[i]
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].FlowID < recs[j].FlowID })

	runStart, runEnd, ok := runBounds(recs, samples)
	if !ok {
		return &model.ResultSet{Width: a.width}, nil
	}

	width := a.width
	if width <= 0 {
		width = deriveWidth(recs)
		log.Printf("Derived interval width %s from %d flows", width, len(recs))
	}

	n := intervalCount(runStart, runEnd, width)
	intervals := make([]model.Interval, n)
	for i := range intervals {
		intervals[i] = model.Interval{Start: runStart + time.Duration(i)*width, Width: width}
	}

	eventsByFlow := groupEvents(events)

	rs := &model.ResultSet{
		RunStart: runStart,
		RunEnd:   runEnd,
		Width:    width,
	}

	// Per-interval totals across flows, for the aggregate series.
	aggTx := make([]float64, n)
	aggRx := make([]float64, n)
	aggBytes := make([]float64, n)
	aggLost := make([]float64, n)
	aggDelay := make([]float64, n)

	for _, rec := range recs {
		fb, err := bucketFlow(rec, eventsByFlow[rec.FlowID], intervals, runStart, width)
		if err != nil {
			return nil, err
		}

		for i := 0; i < n; i++ {
			aggTx[i] += fb.txPkts[i]
			aggRx[i] += fb.rxPkts[i]
			aggBytes[i] += fb.rxBytes[i]
			aggLost[i] += fb.lostPkts[i]
			aggDelay[i] += fb.delaySum[i]
		}

		if err := emitFlowPoints(rs, fb, intervals); err != nil {
			return nil, err
		}

		rs.Flows = append(rs.Flows, summarize(rec))
	}

	// Aggregate series span every interval so charts never have gaps:
	// no traffic means zero throughput and zero loss, not a missing point.
	if len(recs) > 0 {
		for i, iv := range intervals {
			rs.Points = append(rs.Points, model.TimeSeriesPoint{
				Interval: iv,
				Metric:   model.MetricThroughput,
				FlowID:   model.AggregateFlowID,
				Value:    aggBytes[i] * 8 / width.Seconds(),
			})
			loss := 0.0
			if aggTx[i] > 0 {
				loss = aggLost[i] / aggTx[i]
			}
			if loss < 0 || loss > 1 {
				return nil, &AggregationError{Metric: model.MetricLossRatio, FlowID: model.AggregateFlowID,
					Err: fmt.Errorf("ratio %g outside [0,1]", loss)}
			}
			rs.Points = append(rs.Points, model.TimeSeriesPoint{
				Interval: iv,
				Metric:   model.MetricLossRatio,
				FlowID:   model.AggregateFlowID,
				Value:    loss,
			})
			// Weighted-mean latency: total delay over total received
			// packets, so heavy flows count for more than idle ones.
			if aggRx[i] > 0 {
				rs.Points = append(rs.Points, model.TimeSeriesPoint{
					Interval: iv,
					Metric:   model.MetricLatency,
					FlowID:   model.AggregateFlowID,
					Value:    aggDelay[i] / aggRx[i] / 1e6,
				})
			}
		}
	}

	bucketSamples(rs, samples, intervals, runStart, width)

	model.SortPoints(rs.Points)
	return rs, nil
}

// bucketFlow attributes one flow's counters to intervals. With delivery
// events the receive-side numbers are exact; otherwise everything is spread
// uniformly over the flow's active window. Transmit-side numbers are always
// uniform since the monitor reports no per-packet transmit times.
func bucketFlow(rec *model.FlowRecord, evs []model.DeliveryEvent, intervals []model.Interval, runStart time.Duration, width time.Duration) (*flowBuckets, error) {
	n := len(intervals)
	fb := &flowBuckets{
		rec:      rec,
		txPkts:   make([]float64, n),
		rxPkts:   make([]float64, n),
		rxBytes:  make([]float64, n),
		lostPkts: make([]float64, n),
		delaySum: make([]float64, n),
	}

	span := rec.ActiveSpan()
	fb.first = clampIndex(int((rec.FirstTxTime-runStart)/width), n)

	// A flow that transmitted but never completed a delivery is treated as
	// fully lost over its window.
	lost := float64(rec.LostPackets)
	if rec.TxPackets > 0 && rec.RxPackets == 0 {
		lost = float64(rec.TxPackets)
	}

	for i, iv := range intervals {
		frac := overlapFraction(iv, rec.FirstTxTime, rec.LastRxTime, span, i == fb.first)
		if frac == 0 {
			continue
		}
		fb.txPkts[i] = float64(rec.TxPackets) * frac
		fb.lostPkts[i] = lost * frac
		if len(evs) == 0 {
			fb.rxPkts[i] = float64(rec.RxPackets) * frac
			fb.rxBytes[i] = float64(rec.RxBytes) * frac
			fb.delaySum[i] = float64(rec.DelaySum) * frac
		}
	}

	for _, ev := range evs {
		i := clampIndex(int((ev.Timestamp-runStart)/width), n)
		fb.rxPkts[i]++
		fb.rxBytes[i] += float64(ev.Bytes)
		fb.delaySum[i] += float64(ev.Delay)
	}

	return fb, nil
}

// emitFlowPoints appends the per-flow series for every interval the flow is
// active in.
func emitFlowPoints(rs *model.ResultSet, fb *flowBuckets, intervals []model.Interval) error {
	rec := fb.rec
	width := rs.Width.Seconds()
	for i, iv := range intervals {
		active := fb.txPkts[i] > 0 || fb.rxPkts[i] > 0 || fb.rxBytes[i] > 0
		if !active {
			continue
		}

		bps := fb.rxBytes[i] * 8 / width
		if bps < 0 {
			return &AggregationError{Metric: model.MetricThroughput, FlowID: rec.FlowID,
				Err: fmt.Errorf("negative rate %g", bps)}
		}
		rs.Points = append(rs.Points, model.TimeSeriesPoint{
			Interval: iv, Metric: model.MetricThroughput, FlowID: rec.FlowID, Value: bps,
		})

		loss := 0.0
		if fb.txPkts[i] > 0 {
			loss = fb.lostPkts[i] / fb.txPkts[i]
		}
		if loss < 0 || loss > 1 {
			return &AggregationError{Metric: model.MetricLossRatio, FlowID: rec.FlowID,
				Err: fmt.Errorf("ratio %g outside [0,1]", loss)}
		}
		rs.Points = append(rs.Points, model.TimeSeriesPoint{
			Interval: iv, Metric: model.MetricLossRatio, FlowID: rec.FlowID, Value: loss,
		})

		// No received packets means no delay samples to average, so the
		// latency series simply has no point here.
		if fb.rxPkts[i] > 0 {
			rs.Points = append(rs.Points, model.TimeSeriesPoint{
				Interval: iv, Metric: model.MetricLatency, FlowID: rec.FlowID,
				Value: fb.delaySum[i] / fb.rxPkts[i] / 1e6,
			})
		}
	}
	return nil
}

// bucketSamples turns auxiliary metric samples into per-interval mean series
// under their own metric names, attributed to the aggregate flow.
func bucketSamples(rs *model.ResultSet, samples []model.MetricSample, intervals []model.Interval, runStart time.Duration, width time.Duration) {
	if len(samples) == 0 {
		return
	}
	n := len(intervals)
	type acc struct {
		sum   float64
		count int
	}
	byMetric := make(map[string][]acc)
	var names []string
	for _, s := range samples {
		if s.Timestamp < runStart || s.Timestamp > intervals[n-1].End() {
			continue
		}
		i := clampIndex(int((s.Timestamp-runStart)/width), n)
		buckets, ok := byMetric[s.Name]
		if !ok {
			buckets = make([]acc, n)
			byMetric[s.Name] = buckets
			names = append(names, s.Name)
		}
		buckets[i].sum += s.Value
		buckets[i].count++
	}
	sort.Strings(names)
	for _, name := range names {
		for i, b := range byMetric[name] {
			if b.count == 0 {
				continue
			}
			rs.Points = append(rs.Points, model.TimeSeriesPoint{
				Interval: intervals[i],
				Metric:   name,
				FlowID:   model.AggregateFlowID,
				Value:    b.sum / float64(b.count),
			})
		}
	}
}

// runBounds finds the time window the interval grid must cover.
func runBounds(recs []*model.FlowRecord, samples []model.MetricSample) (start, end time.Duration, ok bool) {
	first := true
	for _, r := range recs {
		if first || r.FirstTxTime < start {
			start = r.FirstTxTime
		}
		if first || r.LastRxTime > end {
			end = r.LastRxTime
		}
		first = false
	}
	if first {
		// No flows; fall back to the auxiliary samples so their series
		// can still be produced.
		for _, s := range samples {
			if first || s.Timestamp < start {
				start = s.Timestamp
			}
			if first || s.Timestamp > end {
				end = s.Timestamp
			}
			first = false
		}
	}
	return start, end, !first
}

// deriveWidth picks an interval width from the smallest positive gap between
// flow start times.
func deriveWidth(recs []*model.FlowRecord) time.Duration {
	starts := make([]time.Duration, 0, len(recs))
	for _, r := range recs {
		starts = append(starts, r.FirstTxTime)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	best := time.Duration(0)
	for i := 1; i < len(starts); i++ {
		gap := starts[i] - starts[i-1]
		if gap > 0 && (best == 0 || gap < best) {
			best = gap
		}
	}
	if best == 0 {
		return DefaultWidth
	}
	return best
}

func intervalCount(start, end time.Duration, width time.Duration) int {
	if end <= start {
		return 1
	}
	n := int((end - start) / width)
	if start+time.Duration(n)*width < end {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// overlapFraction returns the share of a flow's active window that falls in
// the interval. A zero-width window is a point mass in its first interval.
func overlapFraction(iv model.Interval, firstTx, lastRx, span time.Duration, isFirst bool) float64 {
	if span <= 0 {
		if isFirst {
			return 1
		}
		return 0
	}
	lo := iv.Start
	if firstTx > lo {
		lo = firstTx
	}
	hi := iv.End()
	if lastRx < hi {
		hi = lastRx
	}
	if hi <= lo {
		// The window's right edge may land exactly on an interval start;
		// the point at lastRx belongs to the previous interval.
		return 0
	}
	return float64(hi-lo) / float64(span)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// summarize computes whole-run statistics for one flow.
func summarize(rec *model.FlowRecord) model.FlowSummary {
	s := model.FlowSummary{
		FlowID:      rec.FlowID,
		SrcEndpoint: rec.SrcEndpoint,
		DstEndpoint: rec.DstEndpoint,
		Protocol:    rec.Protocol,
		TxBytes:     rec.TxBytes,
		RxBytes:     rec.RxBytes,
		TxPackets:   rec.TxPackets,
		RxPackets:   rec.RxPackets,
		LostPackets: rec.LostPackets,
		FirstTxTime: rec.FirstTxTime,
		LastRxTime:  rec.LastRxTime,
	}
	if rec.TxPackets > 0 {
		if rec.RxPackets == 0 {
			s.LossRatio = 1
		} else {
			s.LossRatio = float64(rec.LostPackets) / float64(rec.TxPackets)
		}
	}
	if rec.RxPackets > 0 {
		s.AvgDelayMs = float64(rec.DelaySum) / float64(rec.RxPackets) / 1e6
		s.AvgJitterMs = float64(rec.JitterSum) / float64(rec.RxPackets) / 1e6
	}
	if span := rec.ActiveSpan(); span > 0 {
		s.ThroughputBps = float64(rec.RxBytes) * 8 / span.Seconds()
	}
	return s
}

// groupEvents indexes delivery events by flow, preserving their order.
func groupEvents(events []model.DeliveryEvent) map[uint32][]model.DeliveryEvent {
	if len(events) == 0 {
		return nil
	}
	byFlow := make(map[uint32][]model.DeliveryEvent)
	for _, ev := range events {
		byFlow[ev.FlowID] = append(byFlow[ev.FlowID], ev)
	}
	return byFlow
}
