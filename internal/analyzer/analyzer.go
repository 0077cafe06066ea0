package analyzer

import (
	"NetSimScope/internal/config"
	"NetSimScope/internal/engine/timeseries"
	"NetSimScope/internal/export"
	"NetSimScope/internal/model"
	"NetSimScope/internal/report"
	"NetSimScope/internal/table"
	"NetSimScope/internal/trace"
	"NetSimScope/pkg/pcap"
	"context"
	"fmt"
	"log"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Options selects the inputs for one analysis run.
type Options struct {
	// Version identifies the run, e.g. "v2"; results land under
	// <versions_root>/<version>/.
	Version string
	// InputDir holds the simulation output files.
	InputDir string
	// PcapFile optionally points at a receive-side capture; with it the
	// aggregator buckets deliveries exactly instead of uniformly.
	PcapFile string
}

// Pipeline wires the parser, loader, aggregator, report assembler and result
// writers into one batch run per version.
type Pipeline struct {
	cfg     *config.Config
	writers []model.Writer
}

// New builds a pipeline and all enabled writers from the configuration.
func New(cfg *config.Config) (*Pipeline, error) {
	var writers []model.Writer
	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		var (
			w   model.Writer
			err error
		)
		switch def.Type {
		case "gob":
			w = export.NewGobWriter(def.Gob.RootPath)
		case "clickhouse":
			w, err = export.NewClickHouseWriter(def.ClickHouse)
		case "nats":
			w, err = export.NewNATSWriter(def.NATS)
		default:
			log.Printf("Warning: unknown writer type '%s' in config, skipping.", def.Type)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create writer '%s': %w", def.Type, err)
		}
		writers = append(writers, w)
	}
	return &Pipeline{cfg: cfg, writers: writers}, nil
}

// Run analyzes one completed simulation run end to end: parse and load in
// parallel, aggregate, render the report, then hand the result set to every
// writer. The trace is load-bearing, so any trace failure aborts the run;
// metrics-table row problems only degrade the auxiliary series.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*model.ResultSet, error) {
	layout, err := report.SetupVersionDir(p.cfg.Analyzer.VersionsRoot, opts.Version)
	if err != nil {
		return nil, err
	}
	report.CopyInputFiles(opts.InputDir, layout.VersionDir,
		p.cfg.Analyzer.TraceFile, p.cfg.Analyzer.MetricsFile)

	tracePath := filepath.Join(layout.VersionDir, p.cfg.Analyzer.TraceFile)
	metricsPath := filepath.Join(layout.VersionDir, p.cfg.Analyzer.MetricsFile)

	var (
		records []model.FlowRecord
		events  []model.DeliveryEvent
		loaded  *table.Result
	)

	// The two inputs are independent, so parse them concurrently and join
	// before aggregation.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = trace.Parse(tracePath)
		if err != nil {
			return err
		}
		log.Printf("Parsed %d flows from '%s'", len(records), tracePath)
		if opts.PcapFile != "" {
			events, err = readDeliveries(opts.PcapFile, records)
			if err != nil {
				return err
			}
			log.Printf("Read %d delivery events from '%s'", len(events), opts.PcapFile)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		loaded, err = table.Load(metricsPath)
		if err != nil {
			return err
		}
		log.Printf("Loaded %d metric samples from '%s' (%d rows skipped)",
			len(loaded.Samples), metricsPath, len(loaded.Warnings))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	width, err := p.cfg.Analyzer.Width()
	if err != nil {
		return nil, err
	}

	rs, err := timeseries.New(width).Aggregate(records, events, loaded.Samples)
	if err != nil {
		return nil, err
	}
	rs.SkippedRows = len(loaded.Warnings)

	plots, err := report.RenderCharts(rs, layout.PlotsDir)
	if err != nil {
		return nil, err
	}
	reportPath, err := report.WriteMarkdown(rs, opts.Version, plots, layout.ReportsDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Generated report at '%s'", reportPath)

	for _, w := range p.writers {
		if err := w.Write(rs, opts.Version); err != nil {
			return nil, fmt.Errorf("writer '%s': %w", w.Name(), err)
		}
	}

	return rs, nil
}

func readDeliveries(path string, records []model.FlowRecord) ([]model.DeliveryEvent, error) {
	r, err := pcap.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadDeliveries(records)
}
