package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"matchset/internal/app"
	"matchset/internal/config"
	"matchset/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (defaults to config.yaml if present)")
	inputDir := flag.String("input", "", "directory with per-team game log CSVs (overrides config)")
	outputFile := flag.String("output", "", "path for the training table CSV (overrides config)")
	span := flag.Int("span", 0, "moving average window length in games (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("matchset %s\n", app.Version)
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		return 1
	}
	applyOverrides(cfg, *inputDir, *outputFile, *span)

	application, err := app.NewApplicationWithConfig(cfg)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := application.Shutdown(context.Background()); err != nil {
			slog.Error("Shutdown error", slog.String("error", err.Error()))
		}
	}()

	stopMetrics := serveMetrics(application)
	defer stopMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.Run(ctx)
	if result != nil {
		printRunSummary(os.Stdout, result)
	}
	if err != nil {
		slog.Error("Pipeline run failed", slog.String("error", err.Error()))
		return 1
	}

	fmt.Printf("\nTraining table written to %s\n", result.OutputPath)
	return 0
}

// loadConfig loads from the explicit file when given, otherwise from the
// default locations plus MATCHSET_* environment variables.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// applyOverrides layers the command line flags over the loaded config
func applyOverrides(cfg *config.Config, inputDir, outputFile string, span int) {
	if inputDir != "" {
		cfg.Paths.InputDir = inputDir
	}
	if outputFile != "" {
		cfg.Paths.OutputFile = outputFile
	}
	if span > 0 {
		cfg.Pipeline.Span = span
	}
}

// serveMetrics exposes the Prometheus endpoint while the run is active.
// Returns a stop function; a no-op when no metrics address is configured.
func serveMetrics(application *app.Application) func() {
	addr := application.Config.Telemetry.MetricsAddr
	handler := application.Telemetry.PrometheusHTTP
	if addr == "" || handler == nil {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server error", slog.String("error", err.Error()))
		}
	}()
	application.Logger.Info("Metrics endpoint listening", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", slog.String("error", err.Error()))
		}
	}
}

// printRunSummary prints the per-step outcome table for a finished run
func printRunSummary(w io.Writer, result *pipeline.RunResult) {
	fmt.Fprintf(w, "\nRun: %s  |  Status: %s  |  Duration: %s\n\n",
		result.ID, result.Status, result.Duration.Round(time.Millisecond))

	table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	table.Header("STEP", "STATUS", "DURATION", "DETAIL")

	order := []string{
		pipeline.StepIDLoad,
		pipeline.StepIDDerive,
		pipeline.StepIDMerge,
		pipeline.StepIDTag,
		pipeline.StepIDExport,
	}
	for _, id := range order {
		step := result.Steps[id]
		if step == nil {
			continue
		}
		table.Append(step.Name, string(step.Status), stepDuration(step), stepDetail(step))
	}
	table.Render()

	fmt.Fprintf(w, "\nEntities: %d  |  Derived rows: %d  |  Matchup rows: %d\n",
		result.Entities, result.DerivedRows, result.MatchupRows)
}

func stepDuration(step *pipeline.StepState) string {
	if step.StartTime == nil {
		return "—"
	}
	return step.Duration().Round(time.Millisecond).String()
}

// stepDetail summarizes a step for the table: counts on success, the
// error on failure, the skip reason otherwise.
func stepDetail(step *pipeline.StepState) string {
	switch {
	case step.Error != nil:
		return step.Error.Error()
	case step.Status == pipeline.StepStatusSkipped:
		return step.Message
	}

	details := make([]string, 0, 2)
	for _, key := range []string{"entities", "derived_rows", "matchups", "tournament_rows", "rows", "output_path"} {
		if v, ok := step.Metadata[key]; ok {
			details = append(details, fmt.Sprintf("%s=%v", key, v))
		}
	}
	return strings.Join(details, "  ")
}
