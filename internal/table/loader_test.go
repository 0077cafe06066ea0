package table

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"
)

func TestLoadReader(t *testing.T) {
	const csvData = `Time(s),Channel_Utilization,Active_UEs
0.0,0.25,3
1.0,0.50,4
2.0,0.75,5
`
	res, err := LoadReader(strings.NewReader(csvData), "simulation_metrics.csv")
	if err != nil {
		t.Fatalf("LoadReader failed: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %d", len(res.Warnings))
	}
	if len(res.Samples) != 6 {
		t.Fatalf("Expected 6 samples (3 rows x 2 metrics), got %d", len(res.Samples))
	}

	s := res.Samples[0]
	if s.Name != "Channel_Utilization" || s.Value != 0.25 || s.Timestamp != 0 {
		t.Errorf("Unexpected first sample: %+v", s)
	}
	last := res.Samples[len(res.Samples)-1]
	if last.Name != "Active_UEs" || last.Value != 5 || last.Timestamp != 2*time.Second {
		t.Errorf("Unexpected last sample: %+v", last)
	}
}

func TestLoadReader_MalformedRowSkipped(t *testing.T) {
	// One bad row among ten must not abort the load.
	var b strings.Builder
	b.WriteString("Time(s),Utilization\n")
	for i := 0; i < 5; i++ {
		b.WriteString("1.0,0.5\n")
	}
	b.WriteString("6.0,not-a-number\n")
	for i := 0; i < 4; i++ {
		b.WriteString("7.0,0.5\n")
	}

	res, err := LoadReader(strings.NewReader(b.String()), "simulation_metrics.csv")
	if err != nil {
		t.Fatalf("Expected malformed row to be non-fatal, got: %v", err)
	}
	if len(res.Samples) != 9 {
		t.Errorf("Expected 9 samples, got %d", len(res.Samples))
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(res.Warnings))
	}
	if res.Warnings[0].Row != 7 {
		t.Errorf("Expected warning for row 7, got row %d", res.Warnings[0].Row)
	}
}

func TestLoadReader_MissingHeader(t *testing.T) {
	_, err := LoadReader(strings.NewReader(""), "simulation_metrics.csv")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("Expected LoadError for empty file, got: %v", err)
	}
}

func TestLoadReader_HeaderWithoutMetrics(t *testing.T) {
	_, err := LoadReader(strings.NewReader("Time(s)\n1.0\n"), "simulation_metrics.csv")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("Expected LoadError for metric-less header, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("does-not-exist.csv")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Expected fs.ErrNotExist, got: %v", err)
	}
}
