package report

import (
	"NetSimScope/internal/model"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

const reportTemplate = `# Simulation Report: {{.Version}}

**Report Generated:** {{.Generated}}

## Summary

- **Run Duration:** {{printf "%.3f" .RunSeconds}} s
- **Interval Width:** {{printf "%.3f" .WidthSeconds}} s
- **Flows:** {{len .Flows}}
- **Total Tx Packets:** {{.TotalTxPackets}}
- **Total Rx Packets:** {{.TotalRxPackets}}
- **Total Lost Packets:** {{.TotalLostPackets}}
- **Overall Loss Ratio:** {{printf "%.4f" .OverallLoss}}
- **Mean Throughput:** {{printf "%.2f" .MeanThroughputKbps}} Kbit/s
- **Mean Latency:** {{printf "%.3f" .MeanLatencyMs}} ms
{{- if .SkippedRows}}

> **Warning:** {{.SkippedRows}} malformed row(s) were skipped while loading
> the simulation metrics table; auxiliary series are incomplete.
{{- end}}

## Plots
{{range .Plots}}
### {{.Title}}

![{{.File}}](../plots/{{.File}})
{{end}}
## Per-Flow Breakdown

| Flow | Source | Destination | Proto | Tx Pkts | Rx Pkts | Lost | Loss Ratio | Avg Delay (ms) | Avg Jitter (ms) | Throughput (Kbit/s) |
|-----:|--------|-------------|-------|--------:|--------:|-----:|-----------:|---------------:|----------------:|--------------------:|
{{- range .Flows}}
| {{.FlowID}} | {{.SrcEndpoint}} | {{.DstEndpoint}} | {{.Protocol}} | {{.TxPackets}} | {{.RxPackets}} | {{.LostPackets}} | {{printf "%.4f" .LossRatio}} | {{printf "%.3f" .AvgDelayMs}} | {{printf "%.3f" .AvgJitterMs}} | {{printf "%.2f" .Kbps}} |
{{- end}}
`

type plotRef struct {
	File  string
	Title string
}

type flowRow struct {
	model.FlowSummary
}

// Kbps converts the summary throughput for display.
func (r flowRow) Kbps() float64 { return r.ThroughputBps / 1e3 }

type reportData struct {
	Version            string
	Generated          string
	RunSeconds         float64
	WidthSeconds       float64
	TotalTxPackets     uint64
	TotalRxPackets     uint64
	TotalLostPackets   uint64
	OverallLoss        float64
	MeanThroughputKbps float64
	MeanLatencyMs      float64
	SkippedRows        int
	Plots              []plotRef
	Flows              []flowRow
}

// WriteMarkdown renders the summary report for one version into reportsDir.
// plotFiles are the chart file names produced by RenderCharts, in order.
func WriteMarkdown(rs *model.ResultSet, version string, plotFiles []string, reportsDir string) (string, error) {
	data := reportData{
		Version:      version,
		Generated:    time.Now().Format("2006-01-02 15:04:05"),
		RunSeconds:   (rs.RunEnd - rs.RunStart).Seconds(),
		WidthSeconds: rs.Width.Seconds(),
		SkippedRows:  rs.SkippedRows,
	}

	var delaySum float64
	for _, f := range rs.Flows {
		data.TotalTxPackets += f.TxPackets
		data.TotalRxPackets += f.RxPackets
		data.TotalLostPackets += f.LostPackets
		delaySum += f.AvgDelayMs * float64(f.RxPackets)
		data.MeanThroughputKbps += f.ThroughputBps / 1e3
		data.Flows = append(data.Flows, flowRow{f})
	}
	if data.TotalTxPackets > 0 {
		data.OverallLoss = float64(data.TotalLostPackets) / float64(data.TotalTxPackets)
	}
	if data.TotalRxPackets > 0 {
		data.MeanLatencyMs = delaySum / float64(data.TotalRxPackets)
	}

	for _, file := range plotFiles {
		title := strings.TrimSuffix(file, filepath.Ext(file))
		title = humanizeMetric(title)
		data.Plots = append(data.Plots, plotRef{File: file, Title: title})
	}

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse report template: %w", err)
	}

	path := filepath.Join(reportsDir, "simulation-report.md")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return path, nil
}
