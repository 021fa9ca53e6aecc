package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-topstocks/browser"
	"github.com/aluiziolira/go-scrape-topstocks/config"
	"github.com/aluiziolira/go-scrape-topstocks/models"
	"github.com/aluiziolira/go-scrape-topstocks/pipeline"
	"github.com/aluiziolira/go-scrape-topstocks/scraper"
	"github.com/aluiziolira/go-scrape-topstocks/session"
	"github.com/aluiziolira/go-scrape-topstocks/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Opens a browser session, extracts the Top Stock table and saves it.",
	Args:  cobra.NoArgs,
	RunE:  runScrape,
}

func init() {
	flags := scrapeCmd.Flags()
	flags.String("download-path", "", "Directory for state.json and outputs (env DOWNLOAD_PATH)")
	flags.Bool("headless", false, "Run the browser without a window (env TOPSTOCKS_HEADLESS)")
	flags.Bool("install", false, "Install the browser driver before launching")
	flags.String("confirm", "", "Login confirmation: console, signal or http (env TOPSTOCKS_CONFIRM)")
	flags.Bool("snapshot", false, "Also save the rendered page for replay (env TOPSTOCKS_SNAPSHOT)")
	addOutputFlags(scrapeCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "Output format: csv, json, or dual (env TOPSTOCKS_FORMAT)")
	cmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address (env TOPSTOCKS_METRICS_ADDR)")
	cmd.Flags().Bool("trace", false, "Print OpenTelemetry spans to stderr (env TOPSTOCKS_TRACE)")
}

// loadConfig layers defaults, environment and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Verbose = verbose

	flags := cmd.Flags()
	if flags.Changed("download-path") {
		cfg.DownloadPath, _ = flags.GetString("download-path")
	}
	if flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("install") {
		cfg.InstallDrivers, _ = flags.GetBool("install")
	}
	if flags.Changed("confirm") {
		mode, _ := flags.GetString("confirm")
		cfg.ConfirmMode = strings.ToLower(mode)
	}
	if flags.Changed("snapshot") {
		cfg.SaveSnapshot, _ = flags.GetBool("snapshot")
	}
	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		cfg.OutputFormat = strings.ToLower(format)
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("trace") {
		cfg.TraceEnabled, _ = flags.GetBool("trace")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(cfg.TraceEnabled, os.Stderr)
	if err != nil {
		return err
	}
	defer flushTracing(shutdownTracing)

	extractor := scraper.NewExtractor(cfg)
	stopMetrics := startMetricsServer(cfg.MetricsAddr, extractor.Metrics.Registry)
	defer stopMetrics()

	confirmer, err := newConfirmer(cfg)
	if err != nil {
		return err
	}
	launch := func() (browser.Engine, error) {
		return browser.StartPlaywright(browser.EngineOptions{
			Install: cfg.InstallDrivers,
			Verbose: cfg.Verbose,
		})
	}

	mgr := session.NewManager(cfg, launch, confirmer)
	defer func() {
		if teardownErr := mgr.Teardown(); teardownErr != nil {
			slog.Error("teardown incomplete", slog.Any("error", teardownErr))
		}
	}()

	slog.Info("starting session",
		slog.String("download_path", cfg.DownloadPath),
		slog.Bool("headless", cfg.Headless),
	)
	started := time.Now()
	if err := mgr.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	extractor.Metrics.IncAuth(string(mgr.Mode()))

	if err := mgr.EnsureAuthenticated(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	extractor.Metrics.ObservePhase("session", time.Since(started))

	result, err := extractor.ExtractTopStocks(ctx, mgr.Page())
	if err != nil {
		return fmt.Errorf("extract top stocks: %w", err)
	}
	result.AuthMode = mgr.Mode()

	if cfg.SaveSnapshot {
		saveSnapshot(mgr.Page(), cfg.SnapshotPath())
	}

	return persist(ctx, cfg, result)
}

// persist writes result in the configured format and prints it.
func persist(ctx context.Context, cfg *config.Config, result *models.ScrapeResult) (err error) {
	_, span := telemetry.Tracer("topstocks/cmd").Start(ctx, "pipeline.Persist")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	writer, err := createWriter(cfg)
	if err != nil {
		return err
	}

	// processing errors are sticky; Close aborts the staged output after one
	p := pipeline.NewPipeline(writer)
	_ = p.Process(result.Table)
	_ = p.Close()
	if err := p.Err(); err != nil {
		return fmt.Errorf("persist table: %w", err)
	}

	path := outputPath(cfg)
	slog.Info("table saved",
		slog.String("path", path),
		slog.String("run_id", result.RunID),
		slog.Int("rows", result.Table.Len()),
		slog.Int("skipped", len(result.Diagnostics)),
	)
	printResult(os.Stdout, path, result, p.GetMetrics())
	return nil
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.JSONPath())
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputPath())
	case "dual":
		return pipeline.NewDualWriter(cfg.OutputPath(), cfg.JSONPath())
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func outputPath(cfg *config.Config) string {
	if cfg.OutputFormat == "json" {
		return cfg.JSONPath()
	}
	return cfg.OutputPath()
}

func newConfirmer(cfg *config.Config) (session.Confirmer, error) {
	switch cfg.ConfirmMode {
	case "console":
		return session.NewConsoleConfirmer(), nil
	case "signal":
		return &session.SignalConfirmer{Out: os.Stdout}, nil
	case "http":
		return &session.HTTPConfirmer{Addr: cfg.ConfirmAddr}, nil
	default:
		return nil, fmt.Errorf("unsupported confirm mode: %s", cfg.ConfirmMode)
	}
}

func saveSnapshot(page browser.Page, path string) {
	html, err := page.Content()
	if err != nil {
		slog.Warn("snapshot skipped", slog.Any("error", err))
		return
	}
	if err := pipeline.WriteSnapshot(path, html); err != nil {
		slog.Warn("snapshot skipped", slog.Any("error", err))
		return
	}
	slog.Info("snapshot saved", slog.String("path", path))
}

func startMetricsServer(addr string, registry *prometheus.Registry) func() {
	if addr == "" || registry == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func flushTracing(shutdown telemetry.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("trace flush failed", slog.Any("error", err))
	}
}
