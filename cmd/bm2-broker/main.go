/*
Description: Command-line entry point for the bm2 broker: the
authoritative, single-threaded event loop that matches producers and
workers over TCP.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnagy/bm2-core/pkg/bmconfig"
	"github.com/bnagy/bm2-core/pkg/broker"
	"github.com/bnagy/bm2-core/pkg/logging"
)

var (
	configFile   string
	listenAddr   string
	dbqMax       int
	pollInterval time.Duration
	workDir      string
	logLevel     string
	jsonLogs     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "bm2-broker",
		Short:   "bm2 distributed fuzzing broker",
		Version: "1.0.0",
		RunE:    run,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen-addr", "0.0.0.0:10001", "TCP address to listen on")
	rootCmd.PersistentFlags().IntVar(&dbqMax, "dbq-max", 1000, "Pending result-store queue size that triggers shedding")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll-interval", 5*time.Second, "Ack timeout before resend/requeue")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "./bm2-broker-work", "Working directory for broker state; created on startup after operator confirmation")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")

	var statsLogDir string
	logStatsCmd := &cobra.Command{
		Use:   "log-stats",
		Short: "Summarize the broker's own log files and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogStats(statsLogDir)
		},
	}
	logStatsCmd.Flags().StringVar(&statsLogDir, "log-dir", "./logs", "Directory containing bm2 log files")
	rootCmd.AddCommand(logStatsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := bmconfig.DefaultBrokerConfig()
	if err := bmconfig.Load(configFile, map[string]any{
		"listen_addr":   listenAddr,
		"dbq_max":       dbqMax,
		"poll_interval": pollInterval,
		"work_dir":      workDir,
		"log_level":     logLevel,
		"json_logs":     jsonLogs,
	}, &cfg); err != nil {
		return err
	}

	if err := bmconfig.EnsureWorkDir(cfg.WorkDir, os.Stdin); err != nil {
		return fmt.Errorf("bm2-broker: %w", err)
	}

	format := logging.LogFormatCustom
	if cfg.JSONLogs {
		format = logging.LogFormatJSON
	}
	lg, err := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.LogLevel(cfg.LogLevel),
		Format:    format,
		OutputDir: "./logs",
		MaxFiles:  10,
		MaxSize:   100 * 1024 * 1024,
		Timestamp: true,
		Caller:    false,
		Colors:    !cfg.JSONLogs,
	})
	if err != nil {
		return fmt.Errorf("bm2-broker: init logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetLogger()

	b := broker.New(broker.Config{
		ListenAddr:   cfg.ListenAddr,
		DBQMax:       cfg.DBQMax,
		PollInterval: cfg.PollInterval,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return b.ListenAndServe(ctx)
}

// runLogStats reports file counts/sizes and a level/event breakdown for an
// existing log directory, without starting the broker itself.
func runLogStats(logDir string) error {
	mgr := logging.NewLogManager(logDir, 0, 0, false)
	stats, err := mgr.GetLogStats()
	if err != nil {
		return fmt.Errorf("bm2-broker: log-stats: %w", err)
	}
	fmt.Printf("files: %d (compressed %d, uncompressed %d), total size: %d bytes\n",
		stats.TotalFiles, stats.CompressedFiles, stats.UncompressedFiles, stats.TotalSize)

	analyzer := logging.NewLogAnalyzer(logDir)
	analysis, err := analyzer.AnalyzeLogs()
	if err != nil {
		return fmt.Errorf("bm2-broker: log-stats: %w", err)
	}
	fmt.Println(analysis.GetLogSummary())
	return nil
}
