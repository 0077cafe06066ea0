package export

import (
	"NetSimScope/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SummaryData holds the metadata written next to a gob snapshot.
type SummaryData struct {
	Version     string  `json:"version"`
	TotalPoints int     `json:"total_points"`
	TotalFlows  int     `json:"total_flows"`
	RunSeconds  float64 `json:"run_seconds"`
	SkippedRows int     `json:"skipped_rows"`
	Timestamp   string  `json:"timestamp"`
}

// GobWriter persists a result set to disk in gob format, one snapshot
// directory per version. It implements the model.Writer interface.
type GobWriter struct {
	rootPath string
}

// NewGobWriter creates a new on-disk result writer.
func NewGobWriter(rootPath string) model.Writer {
	return &GobWriter{rootPath: rootPath}
}

// Name returns the writer identifier.
func (w *GobWriter) Name() string { return "gob" }

// Write serializes the result set under <root>/<version>/ together with a
// human-readable summary.json.
func (w *GobWriter) Write(rs *model.ResultSet, version string) error {
	dir := filepath.Join(w.rootPath, version)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	dataPath := filepath.Join(dir, "result.dat")
	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", dataPath, err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(rs); err != nil {
		return fmt.Errorf("failed to encode result set to gob for file '%s': %w", dataPath, err)
	}

	summary := SummaryData{
		Version:     version,
		TotalPoints: len(rs.Points),
		TotalFlows:  len(rs.Flows),
		RunSeconds:  (rs.RunEnd - rs.RunStart).Seconds(),
		SkippedRows: rs.SkippedRows,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	summaryPath := filepath.Join(dir, "summary.json")
	summaryFile, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	return nil
}

// ReadGob loads a previously written result set, used by tests and the
// report API's local fallback.
func ReadGob(rootPath, version string) (*model.ResultSet, error) {
	dataPath := filepath.Join(rootPath, version, "result.dat")
	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	var rs model.ResultSet
	if err := gob.NewDecoder(file).Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &rs, nil
}
