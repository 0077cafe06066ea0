package report

import (
	"NetSimScope/internal/model"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
)

// chartSpec describes one rendered chart.
type chartSpec struct {
	metric string
	title  string
	yAxis  string
	file   string
}

var coreCharts = []chartSpec{
	{model.MetricThroughput, "Throughput Over Time", "Throughput (bit/s)", "throughput_time_series.png"},
	{model.MetricLatency, "Average Latency Over Time", "Latency (ms)", "latency_time_series.png"},
	{model.MetricLossRatio, "Packet Loss Over Time", "Loss ratio", "packet_loss_time_series.png"},
}

// RenderCharts renders one PNG per metric family into plotsDir: the three
// core series with per-flow and aggregate lines, plus one chart per
// auxiliary metric from the simulation metrics table. It returns the file
// names written, in a stable order for the report.
func RenderCharts(rs *model.ResultSet, plotsDir string) ([]string, error) {
	byMetric := splitByMetric(rs.Points)

	var written []string
	for _, spec := range coreCharts {
		points := byMetric[spec.metric]
		delete(byMetric, spec.metric)
		if len(points) == 0 {
			continue
		}
		if err := renderOne(spec, points, plotsDir); err != nil {
			return nil, err
		}
		written = append(written, spec.file)
	}

	auxNames := make([]string, 0, len(byMetric))
	for name := range byMetric {
		auxNames = append(auxNames, name)
	}
	sort.Strings(auxNames)
	for _, name := range auxNames {
		spec := chartSpec{
			metric: name,
			title:  humanizeMetric(name) + " Over Time",
			yAxis:  humanizeMetric(name),
			file:   sanitizeFileName(name) + "_time_series.png",
		}
		if err := renderOne(spec, byMetric[name], plotsDir); err != nil {
			return nil, err
		}
		written = append(written, spec.file)
	}

	return written, nil
}

func renderOne(spec chartSpec, points []model.TimeSeriesPoint, plotsDir string) error {
	byFlow := make(map[uint32][]model.TimeSeriesPoint)
	var ids []uint32
	for _, p := range points {
		if _, seen := byFlow[p.FlowID]; !seen {
			ids = append(ids, p.FlowID)
		}
		byFlow[p.FlowID] = append(byFlow[p.FlowID], p)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var series []chart.Series
	yMin, yMax := points[0].Value, points[0].Value
	for _, id := range ids {
		pts := byFlow[id]
		xs := make([]float64, 0, len(pts))
		ys := make([]float64, 0, len(pts))
		for _, p := range pts {
			// Plot at the interval midpoint.
			xs = append(xs, (p.Interval.Start + p.Interval.Width/2).Seconds())
			ys = append(ys, p.Value)
			if p.Value < yMin {
				yMin = p.Value
			}
			if p.Value > yMax {
				yMax = p.Value
			}
		}
		// go-chart needs at least two points per series.
		if len(xs) == 1 {
			xs = append(xs, xs[0]+1e-9)
			ys = append(ys, ys[0])
		}
		series = append(series, chart.ContinuousSeries{
			Name:    seriesName(id),
			XValues: xs,
			YValues: ys,
		})
	}

	yAxis := chart.YAxis{Name: spec.yAxis}
	if yMin == yMax {
		// A flat series gives go-chart a zero value range; widen it so
		// constant metrics (e.g. zero loss) still render.
		yAxis.Range = &chart.ContinuousRange{Min: yMin - 1, Max: yMax + 1}
	}

	ch := chart.Chart{
		Title:      spec.title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 8}},
		XAxis:      chart.XAxis{Name: "Time (s)"},
		YAxis:      yAxis,
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	path := filepath.Join(plotsDir, spec.file)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file '%s': %w", path, err)
	}
	defer f.Close()

	if err := ch.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render chart '%s': %w", spec.file, err)
	}
	return nil
}

func splitByMetric(points []model.TimeSeriesPoint) map[string][]model.TimeSeriesPoint {
	byMetric := make(map[string][]model.TimeSeriesPoint)
	for _, p := range points {
		byMetric[p.Metric] = append(byMetric[p.Metric], p)
	}
	return byMetric
}

func seriesName(id uint32) string {
	if id == model.AggregateFlowID {
		return "Aggregate"
	}
	return fmt.Sprintf("Flow %d", id)
}

func humanizeMetric(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}
