package main

import (
	"fmt"
	"os"

	"github.com/aluiziolira/go-scrape-topstocks/scraper"
	"github.com/aluiziolira/go-scrape-topstocks/telemetry"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [snapshot]",
	Short: "Re-extracts the table from a saved page snapshot without a browser.",
	Long: "Re-extracts the Top Stock table from an HTML snapshot written by `scrape --snapshot`.\n" +
		"The argument may be a file path or URL; it defaults to top_stocks.html in the download path.",
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("download-path", "", "Directory for outputs (env DOWNLOAD_PATH)")
	addOutputFlags(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(cfg.TraceEnabled, os.Stderr)
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing)

	target := cfg.SnapshotPath()
	if len(args) == 1 {
		target = args[0]
	}

	replayer := scraper.NewReplayer(cfg)
	stopMetrics := startMetricsServer(cfg.MetricsAddr, replayer.Metrics.Registry)
	defer stopMetrics()

	result, err := replayer.Replay(cmd.Context(), target)
	if err != nil {
		return fmt.Errorf("replay %s: %w", target, err)
	}
	return persist(cmd.Context(), cfg, result)
}
