package main

import (
	"NetSimScope/internal/analyzer"
	"NetSimScope/internal/config"
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	var (
		configPath string
		version    string
		inputDir   string
		pcapFile   string
	)

	cmd := &cobra.Command{
		Use:   "sim-analyzer",
		Short: "Derive time-series statistics from a completed network-simulation run",
		Long: `sim-analyzer reads a flow-monitor XML trace and a simulation metrics
table, derives per-flow and aggregate throughput, latency and packet-loss
time series, and renders charts plus a Markdown report under a versioned
output directory.

Quick start:
  sim-analyzer --version v2 --input input/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			pipeline, err := analyzer.New(cfg)
			if err != nil {
				return err
			}

			rs, err := pipeline.Run(context.Background(), analyzer.Options{
				Version:  version,
				InputDir: inputDir,
				PcapFile: pcapFile,
			})
			if err != nil {
				return err
			}

			log.Printf("Analysis for version '%s' completed: %d flows, %d points.",
				version, len(rs.Flows), len(rs.Points))
			if rs.SkippedRows > 0 {
				log.Printf("Warning: %d metrics-table rows were skipped; see the report for details.", rs.SkippedRows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "path to the configuration file")
	cmd.Flags().StringVar(&version, "version", "", "version identifier for the simulation run (e.g. v1, v2)")
	cmd.Flags().StringVar(&inputDir, "input", "input/", "directory containing the simulation output files")
	cmd.Flags().StringVar(&pcapFile, "pcap", "", "optional receive-side pcap capture for exact interval bucketing")
	cmd.MarkFlagRequired("version")

	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
