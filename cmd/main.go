package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"h3bench/internal/bench"
	"h3bench/internal/cli"
	"h3bench/internal/config"
	"h3bench/internal/engine/h3"
	"h3bench/internal/influx"
	"h3bench/internal/netio"
	"h3bench/internal/printer"
	"h3bench/internal/report"
)

var version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "h3bench [url]",
	Short: "HTTP/3 single-connection latency benchmark client",
	Long: `h3bench issues sequential GET requests over one QUIC/HTTP-3 connection and
measures per-request time-to-first-byte and total latency.

Per-request results are written as CSV to stdout; diagnostics and the run
summary go to stderr. Run without arguments for an interactive prompt.

Examples:
  h3bench https://10.20.0.10/small            # 1 warmup + 10 measured requests
  h3bench -n 100 -w 5 https://example.org/    # 5 warmup + 100 measured
  h3bench --insecure https://localhost:4433/  # skip certificate verification
  h3bench > results.csv 2> run.log`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.Uint32P("requests", "n", config.DefaultRequests, "number of measured requests")
	f.Uint32P("warmup", "w", config.DefaultWarmup, "warmup requests (not included in results)")
	f.Uint64("idle-timeout", config.DefaultIdleTimeoutMs, "idle timeout in milliseconds")
	f.String("ca-cert", "", "path to CA certificate for TLS verification")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.StringVar(&configPath, "config", "", "path to JSON config file")
	f.Bool("influx", false, "export per-request latencies to InfluxDB")
	f.String("influx-url", "", "InfluxDB host URL")
	f.String("influx-token", "", "InfluxDB auth token")
	f.String("influx-database", "", "InfluxDB database name")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printer.Failf("%v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if len(args) == 1 {
		cfg.URL = args[0]
	} else if cfg.URL == "" {
		cli.PrintBanner()
		if err := cli.PromptOptions(cfg); err != nil {
			return err
		}
	}

	if err := cfg.Resolve(); err != nil {
		return err
	}

	logCfg := zap.NewDevelopmentConfig()
	logCfg.DisableCaller = true
	logCfg.DisableStacktrace = true
	logger, err := logCfg.Build()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ch, err := netio.Dial(cfg.PeerAddr, cfg.IdleTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	eng, err := h3.Dial(ctx, h3.Options{
		Local:       ch.LocalAddr(),
		Peer:        cfg.PeerAddr,
		ServerName:  cfg.Target.Hostname(),
		CACert:      cfg.CACert,
		Insecure:    cfg.Insecure,
		IdleTimeout: cfg.IdleTimeout,
	})
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	printer.Infof("benchmarking %s", cfg.String())

	rec := bench.NewRecorder(cfg.Requests)
	runner := bench.NewRunner(eng, ch, eng.NewSession,
		cfg.RequestHeaders(), cfg.Warmup, cfg.Requests, rec, logger)

	if err := runner.Run(ctx); err != nil {
		return err
	}

	results := rec.Results()
	if err := report.WriteCSV(os.Stdout, results); err != nil {
		return err
	}
	report.PrintSummary(cfg, eng.Stats(), len(results))

	if cfg.Influx.Enabled {
		ic := influx.NewClient(ctx, cfg.Influx)
		runID := influx.RunID(time.Now())
		ic.WriteRunMeta(runID, cfg.URL, cfg.Requests, cfg.Warmup)
		ic.WriteRequestLatencies(runID, cfg.URL, results)
		ic.Close()
	}

	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()

	if f.Changed("requests") {
		cfg.Requests, _ = f.GetUint32("requests")
	}
	if f.Changed("warmup") {
		cfg.Warmup, _ = f.GetUint32("warmup")
	}
	if f.Changed("idle-timeout") {
		cfg.IdleTimeoutMs, _ = f.GetUint64("idle-timeout")
	}
	if f.Changed("ca-cert") {
		cfg.CACert, _ = f.GetString("ca-cert")
	}
	if f.Changed("insecure") {
		cfg.Insecure, _ = f.GetBool("insecure")
	}
	if f.Changed("influx") {
		cfg.Influx.Enabled, _ = f.GetBool("influx")
	}
	if f.Changed("influx-url") {
		cfg.Influx.URL, _ = f.GetString("influx-url")
	}
	if f.Changed("influx-token") {
		cfg.Influx.Token, _ = f.GetString("influx-token")
	}
	if f.Changed("influx-database") {
		cfg.Influx.Database, _ = f.GetString("influx-database")
	}
}
