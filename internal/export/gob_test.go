package export

import (
	"NetSimScope/internal/model"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGobWriter_RoundTrip(t *testing.T) {
	root := t.TempDir()
	rs := &model.ResultSet{
		RunStart: 0,
		RunEnd:   2 * time.Second,
		Width:    time.Second,
		Points: []model.TimeSeriesPoint{
			{Interval: model.Interval{Start: 0, Width: time.Second}, Metric: model.MetricThroughput, FlowID: model.AggregateFlowID, Value: 8000},
			{Interval: model.Interval{Start: 0, Width: time.Second}, Metric: model.MetricThroughput, FlowID: 1, Value: 8000},
		},
		Flows: []model.FlowSummary{
			{FlowID: 1, TxPackets: 10, RxPackets: 10, ThroughputBps: 8000},
		},
		SkippedRows: 1,
	}

	w := NewGobWriter(root)
	if err := w.Write(rs, "v1"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := ReadGob(root, "v1")
	if err != nil {
		t.Fatalf("ReadGob failed: %v", err)
	}
	if diff := cmp.Diff(rs, got); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(root, "v1", "summary.json"))
	if err != nil {
		t.Fatalf("Failed to read summary: %v", err)
	}
	var summary SummaryData
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary.Version != "v1" || summary.TotalPoints != 2 || summary.TotalFlows != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.SkippedRows != 1 {
		t.Errorf("Expected skipped_rows 1, got %d", summary.SkippedRows)
	}
}
