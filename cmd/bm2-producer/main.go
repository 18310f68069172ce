/*
Description: Command-line entry point for the bm2 producer: loads a
seed corpus file, expands it into the full basic_tests mutation
sequence, and submits each mutated test case to a broker queue.
*/
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bnagy/bm2-core/pkg/bmconfig"
	"github.com/bnagy/bm2-core/pkg/logging"
	"github.com/bnagy/bm2-core/pkg/mutation"
	"github.com/bnagy/bm2-core/pkg/producerharness"
)

var (
	configFile  string
	brokerAddr  string
	queue       string
	workDir     string
	logLevel    string
	seedPath    string
	maxLen      int
	fuzzLevel   int
	randomCases int
	sendUnfixed bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "bm2-producer",
		Short:   "bm2 distributed fuzzing producer",
		Version: "1.0.0",
		RunE:    run,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker-addr", "127.0.0.1:10001", "Broker TCP address")
	rootCmd.PersistentFlags().StringVar(&queue, "queue", "default", "Queue name to submit test cases to")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "./bm2-producer-work", "Working directory for producer state; created on startup after operator confirmation")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&seedPath, "seed", "", "Seed corpus file to mutate (required)")
	rootCmd.PersistentFlags().IntVar(&maxLen, "max-len", 4096, "Maximum replacement/injection content length")
	rootCmd.PersistentFlags().IntVar(&fuzzLevel, "fuzz-level", 1, "Fuzzing intensity, scales group-phase case counts")
	rootCmd.PersistentFlags().IntVar(&randomCases, "random-cases", 8, "Random replacement cases per field")
	rootCmd.PersistentFlags().BoolVar(&sendUnfixed, "send-unfixed", false, "Also send each replacement before fixups run")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := bmconfig.DefaultProducerConfig()
	if err := bmconfig.Load(configFile, map[string]any{
		"broker_addr": brokerAddr,
		"queue":       queue,
		"work_dir":    workDir,
		"log_level":   logLevel,
	}, &cfg); err != nil {
		return err
	}
	if seedPath == "" {
		return fmt.Errorf("bm2-producer: --seed is required")
	}

	if err := bmconfig.EnsureWorkDir(cfg.WorkDir, os.Stdin); err != nil {
		return fmt.Errorf("bm2-producer: %w", err)
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
		return fmt.Errorf("bm2-producer: init logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetLogger()

	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("bm2-producer: read seed: %w", err)
	}

	template, err := mutation.TemplateFromBytes("seed", raw)
	if err != nil {
		return fmt.Errorf("bm2-producer: build template: %w", err)
	}

	gen := mutation.Generate(template, mutation.Options{
		MaxLen:      maxLen,
		SendUnfixed: sendUnfixed,
		FuzzLevel:   fuzzLevel,
		RandomCases: randomCases,
	})
	log.WithField("test_count", gen.Len()).Info("bm2-producer: expanded seed into mutation sequence")

	conn, err := net.Dial("tcp", cfg.BrokerAddr)
	if err != nil {
		return fmt.Errorf("bm2-producer: dial broker: %w", err)
	}
	defer conn.Close()

	p := producerharness.New(producerharness.Config{Queue: cfg.Queue}, gen, log)
	if err := p.Run(conn); err != nil {
		return err
	}

	counters := p.Counters()
	log.WithFields(logrus.Fields{
		"submitted": counters.Submitted,
		"delivered": counters.Delivered,
		"results":   counters.Results,
		"crashes":   counters.Crashes,
	}).Info("bm2-producer: run complete")
	return nil
}
