/*
Description: Command-line entry point for the bm2 worker: connects to
a broker, announces readiness for a named queue, and executes
delivered tests against a target subprocess.
*/
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnagy/bm2-core/pkg/bmconfig"
	"github.com/bnagy/bm2-core/pkg/connector"
	"github.com/bnagy/bm2-core/pkg/logging"
	"github.com/bnagy/bm2-core/pkg/workerharness"
)

var (
	configFile  string
	brokerAddr  string
	queue       string
	hostTag     string
	workDir     string
	logLevel    string
	target      string
	targetArgs  []string
	execTimeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "bm2-worker",
		Short:   "bm2 distributed fuzzing worker",
		Version: "1.0.0",
		RunE:    run,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker-addr", "127.0.0.1:10001", "Broker TCP address")
	rootCmd.PersistentFlags().StringVar(&queue, "queue", "default", "Queue name to serve")
	rootCmd.PersistentFlags().StringVar(&hostTag, "host-tag", "", "Stable per-host identifier")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "./bm2-worker-work", "Working directory for worker state; created on startup after operator confirmation")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&target, "target", "", "Path to the target binary to execute per delivered test (required)")
	rootCmd.PersistentFlags().StringSliceVar(&targetArgs, "target-args", []string{}, "Arguments for the target binary")
	rootCmd.PersistentFlags().DurationVar(&execTimeout, "exec-timeout", 5*time.Second, "Per-test execution timeout")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := bmconfig.DefaultWorkerConfig()
	if err := bmconfig.Load(configFile, map[string]any{
		"broker_addr": brokerAddr,
		"queue":       queue,
		"host_tag":    hostTag,
		"work_dir":    workDir,
		"log_level":   logLevel,
	}, &cfg); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("bm2-worker: --target is required")
	}

	if err := bmconfig.EnsureWorkDir(cfg.WorkDir, os.Stdin); err != nil {
		return fmt.Errorf("bm2-worker: %w", err)
	}

	lg, err := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.LogLevel(cfg.LogLevel),
		Format:    logging.LogFormatCustom,
		OutputDir: "./logs",
		MaxFiles:  10,
		MaxSize:   100 * 1024 * 1024,
		Timestamp: true,
		Colors:    true,
	})
	if err != nil {
		return fmt.Errorf("bm2-worker: init logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetLogger()

	conn, err := net.Dial("tcp", cfg.BrokerAddr)
	if err != nil {
		return fmt.Errorf("bm2-worker: dial broker: %w", err)
	}
	defer conn.Close()

	hook := connector.SubprocessHook(target, targetArgs, execTimeout)
	w := workerharness.New(workerharness.Config{Queue: cfg.Queue, HostTag: cfg.HostTag}, hook, log)

	return w.Run(conn)
}
