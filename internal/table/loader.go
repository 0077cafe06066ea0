package table

import (
	"NetSimScope/internal/model"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"
)

// LoadError describes a fatal problem with the metrics table: a missing file
// or a missing/unusable header row. Individual malformed data rows are not
// fatal; they become RowWarnings instead.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("metrics table %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RowWarning records one skipped data row.
type RowWarning struct {
	Row    int
	Reason string
}

// Result holds the loaded samples plus any per-row degradation.
type Result struct {
	Samples  []model.MetricSample
	Warnings []RowWarning
}

// Load reads the simulation metrics table. The first column is the sample
// time in seconds; every remaining header column names one metric series and
// each cell becomes one MetricSample. Rows with non-numeric cells are skipped
// and counted, never silently dropped.
func Load(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics table: %w", err)
	}
	defer f.Close()
	return LoadReader(f, path)
}

// LoadReader is like Load but reads from r; name is used in errors.
func LoadReader(r io.Reader, name string) (*Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &LoadError{File: name, Err: fmt.Errorf("missing header row")}
	}
	if err != nil {
		return nil, &LoadError{File: name, Err: fmt.Errorf("unreadable header row: %w", err)}
	}
	if len(header) < 2 {
		return nil, &LoadError{File: name, Err: fmt.Errorf("header row needs a time column and at least one metric column")}
	}

	res := &Result{}
	rowNum := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			res.skip(rowNum, fmt.Sprintf("unparseable row: %v", err))
			continue
		}
		if len(row) != len(header) {
			res.skip(rowNum, fmt.Sprintf("expected %d columns, got %d", len(header), len(row)))
			continue
		}

		ts, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			res.skip(rowNum, fmt.Sprintf("bad timestamp %q", row[0]))
			continue
		}

		samples := make([]model.MetricSample, 0, len(header)-1)
		ok := true
		for i := 1; i < len(row); i++ {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				res.skip(rowNum, fmt.Sprintf("column %q: bad value %q", header[i], row[i]))
				ok = false
				break
			}
			samples = append(samples, model.MetricSample{
				Timestamp: time.Duration(ts * float64(time.Second)),
				Name:      header[i],
				Value:     v,
			})
		}
		if ok {
			res.Samples = append(res.Samples, samples...)
		}
	}

	return res, nil
}

func (res *Result) skip(row int, reason string) {
	log.Printf("Skipping metrics row %d: %s", row, reason)
	res.Warnings = append(res.Warnings, RowWarning{Row: row, Reason: reason})
}
