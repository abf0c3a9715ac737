package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/clock"
	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/engine"
	"github.com/sawpanic/basisengine/internal/errs"
	"github.com/sawpanic/basisengine/internal/eventlog"
	"github.com/sawpanic/basisengine/internal/execution"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/health"
	"github.com/sawpanic/basisengine/internal/metrics"
	"github.com/sawpanic/basisengine/internal/pnl"
	"github.com/sawpanic/basisengine/internal/position"
	"github.com/sawpanic/basisengine/internal/reconcile"
	"github.com/sawpanic/basisengine/internal/risk"
	"github.com/sawpanic/basisengine/internal/scheduler"
	"github.com/sawpanic/basisengine/internal/strategy"
	"github.com/sawpanic/basisengine/internal/venue"
)

const (
	appName = "basisengine"
	version = "v0.1.0"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Unified backtest/live engine for yield and basis strategies",
		Version: version,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay a mode against historical CSV data",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().String("mode-config", "", "Path to the mode config YAML (required)")
	backtestCmd.Flags().String("data-dir", "", "Directory of per-category historical CSV files (required)")
	backtestCmd.Flags().String("run-id", "", "Run identifier; defaults to a timestamp-derived id")
	backtestCmd.Flags().String("event-log-dir", "./events", "Root directory for the JSONL event log")
	backtestCmd.Flags().Duration("cadence", time.Hour, "Clock tick cadence")
	backtestCmd.Flags().String("start", "", "Backtest start time, RFC3339 (required)")
	backtestCmd.Flags().String("end", "", "Backtest end time, RFC3339 (required)")
	backtestCmd.Flags().Int("metrics-port", 0, "If nonzero, serve /metrics on this port")
	_ = backtestCmd.MarkFlagRequired("mode-config")
	_ = backtestCmd.MarkFlagRequired("data-dir")
	_ = backtestCmd.MarkFlagRequired("start")
	_ = backtestCmd.MarkFlagRequired("end")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Run a mode against live venues and data feeds",
		RunE:  runLive,
	}
	liveCmd.Flags().String("mode-config", "", "Path to the mode config YAML (required)")
	_ = liveCmd.MarkFlagRequired("mode-config")

	rootCmd.AddCommand(backtestCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(int(errs.ExitCodeFor(err)))
	}
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	modeConfigPath, _ := cmd.Flags().GetString("mode-config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	runID, _ := cmd.Flags().GetString("run-id")
	eventLogDir, _ := cmd.Flags().GetString("event-log-dir")
	cadence, _ := cmd.Flags().GetDuration("cadence")
	startRaw, _ := cmd.Flags().GetString("start")
	endRaw, _ := cmd.Flags().GetString("end")
	metricsPort, _ := cmd.Flags().GetInt("metrics-port")

	if runID == "" {
		runID = fmt.Sprintf("backtest-%d", time.Now().Unix())
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return fmt.Errorf("%w: parse --start: %v", errs.ConfigError, err)
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return fmt.Errorf("%w: parse --end: %v", errs.ConfigError, err)
	}

	cfg, err := config.Load(modeConfigPath)
	if err != nil {
		return err
	}

	sink, err := eventlog.NewJSONLSink(eventLogDir, runID, 4096, log.Logger)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer sink.Close()

	reg := metrics.NewRegistry()
	healthReg := health.NewRegistry()
	healthReg.Register("event_log", sink)
	if metricsPort != 0 {
		go serveMetrics(reg, healthReg, metricsPort)
	}

	source := dataprovider.NewCSVHistoricalSource(dataDir)
	provider := dataprovider.NewBacktestProvider(source, dataprovider.NewMemoryCache(), categoriesFor(*cfg), log.Logger)

	eng, err := buildEngine(runID, cfg, provider, sink, reg, clock.NewBacktest(start, end, cadence))
	if err != nil {
		return err
	}

	log.Info().Str("run_id", runID).Str("mode", string(cfg.Mode)).Msg("starting backtest")
	ctx := context.Background()
	return eng.RunBacktest(ctx)
}

// runLive wires the engine against live venue and data-feed adapters.
// Those adapters (a RESTRouter implementation and a LiveSource
// implementation per venue/exchange) are external collaborators this
// module does not implement; wiring them in is deployment-specific.
func runLive(cmd *cobra.Command, _ []string) error {
	modeConfigPath, _ := cmd.Flags().GetString("mode-config")
	cfg, err := config.Load(modeConfigPath)
	if err != nil {
		return err
	}

	hourly := cfg.Mode != config.ModeMLDirectional
	tickSource, err := scheduler.NewTickSource(scheduler.CronFor(hourly))
	if err != nil {
		return fmt.Errorf("build live tick schedule: %w", err)
	}
	tickSource.Start()
	defer tickSource.Stop()

	return fmt.Errorf("%w: live mode requires a deployment-specific RESTRouter and LiveSource wiring not provided by this binary", errs.ConfigError)
}

func buildEngine(runID string, cfg *config.ModeConfig, provider dataprovider.Provider, sink eventlog.Sink, reg *metrics.Registry, clk clock.Clock) (*engine.Engine, error) {
	store := position.New(runID, log.Logger, sink)
	expMon := exposure.New(cfg.Asset, string(cfg.ShareClass))
	riskMon := risk.New(risk.Thresholds{
		HealthFactorCritical: decimal.NewFromFloat(cfg.RiskThresholds.HealthFactorCritical),
		MarginRatioCritical:  decimal.NewFromFloat(cfg.RiskThresholds.MarginRatioCritical),
		DeltaDriftCritical:   decimal.NewFromFloat(cfg.RiskThresholds.DeltaDriftCritical),
		WarningFraction:      decimal.NewFromFloat(cfg.RiskThresholds.Warning()),
	})
	pnlMon := pnl.New(cfg.Asset, string(cfg.ShareClass))

	decider, err := strategy.New(*cfg)
	if err != nil {
		return nil, err
	}

	v := venue.NewBacktest(venue.DefaultBacktestConfig())

	exec := execution.New(store, v, reconcile.DefaultToleranceTable(nil, nil), sink, runID, execution.Config{
		MaxRetries:       cfg.MaxRetries,
		BaseRetryDelay:   time.Duration(cfg.BaseRetryDelayMS) * time.Millisecond,
		TightLoopTimeout: time.Duration(cfg.TightLoopTimeout) * time.Second,
	}, log.Logger).WithMetrics(reg)

	var mlSignals engine.MLSignalSource
	eng := engine.New(runID, clk, provider, store, expMon, riskMon, pnlMon, decider, exec, sink, *cfg, mlSignals, log.Logger).WithMetrics(reg)
	return eng, nil
}

func categoriesFor(cfg config.ModeConfig) []dataprovider.DataCategory {
	seen := map[string]bool{}
	var out []dataprovider.DataCategory
	for _, name := range cfg.DataRequirements() {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, dataprovider.DataCategory(name))
	}
	return out
}

func serveMetrics(reg *metrics.Registry, healthReg *health.Registry, port int) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := healthReg.Check(r.Context())
		status := http.StatusOK
		if report.Overall != health.StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		fmt.Fprintf(w, "%s\n", report.Overall)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
