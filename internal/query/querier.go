package query

import (
	"NetSimScope/internal/config"
	"NetSimScope/internal/export"
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// SeriesPoint is one stored time-series value, as served by the report API.
type SeriesPoint struct {
	IntervalStart float64 `json:"interval_start"`
	IntervalWidth float64 `json:"interval_width"`
	Metric        string  `json:"metric"`
	FlowID        uint32  `json:"flow_id"`
	Value         float64 `json:"value"`
}

// MetricSummary aggregates one metric over a whole stored version.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Points uint64  `json:"points"`
}

// Querier defines the read interface over stored analysis results.
type Querier interface {
	Series(ctx context.Context, version, metric string, flowID *uint32) ([]SeriesPoint, error)
	Summary(ctx context.Context, version string) ([]MetricSummary, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := export.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// Series returns the stored points for one version, optionally narrowed to a
// metric and a flow.
func (q *clickhouseQuerier) Series(ctx context.Context, version, metric string, flowID *uint32) ([]SeriesPoint, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT IntervalStart, IntervalWidth, Metric, FlowID, Value
		FROM sim_time_series
	`)

	whereClauses := []string{"Version = ?"}
	args := []interface{}{version}

	if metric != "" {
		whereClauses = append(whereClauses, "Metric = ?")
		args = append(args, metric)
	}
	if flowID != nil {
		whereClauses = append(whereClauses, "FlowID = ?")
		args = append(args, *flowID)
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	queryBuilder.WriteString(" ORDER BY IntervalStart, Metric, FlowID")

	rows, err := q.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute series query: %w", err)
	}
	defer rows.Close()

	var points []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		if err := rows.Scan(&p.IntervalStart, &p.IntervalWidth, &p.Metric, &p.FlowID, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		points = append(points, p)
	}

	return points, nil
}

// Summary aggregates the stored per-metric statistics for one version,
// restricted to the aggregate series so per-flow lines do not skew the means.
func (q *clickhouseQuerier) Summary(ctx context.Context, version string) ([]MetricSummary, error) {
	const query = `
		SELECT Metric, avg(Value), min(Value), max(Value), count(*)
		FROM sim_time_series
		WHERE Version = ? AND FlowID = 0
		GROUP BY Metric
		ORDER BY Metric
	`

	rows, err := q.conn.Query(ctx, query, version)
	if err != nil {
		return nil, fmt.Errorf("failed to execute summary query: %w", err)
	}
	defer rows.Close()

	var summaries []MetricSummary
	for rows.Next() {
		var s MetricSummary
		if err := rows.Scan(&s.Metric, &s.Mean, &s.Min, &s.Max, &s.Points); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, nil
}
