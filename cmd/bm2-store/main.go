/*
Description: Command-line entry point for the bm2 result-store worker:
connects to a broker, announces availability with db_ready, and
persists each forwarded test_result into the relational store.
*/
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnagy/bm2-core/pkg/bmconfig"
	"github.com/bnagy/bm2-core/pkg/crashparse"
	"github.com/bnagy/bm2-core/pkg/framing"
	"github.com/bnagy/bm2-core/pkg/logging"
	"github.com/bnagy/bm2-core/pkg/store"
	"github.com/bnagy/bm2-core/pkg/storeharness"
)

var (
	configFile string
	brokerAddr string
	dbPath     string
	storeRoot  string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "bm2-store",
		Short:   "bm2 distributed fuzzing result-store worker",
		Version: "1.0.0",
		RunE:    run,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&brokerAddr, "broker-addr", "127.0.0.1:10001", "Broker TCP address")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "./bm2-results.db", "Path to the sqlite database file")
	rootCmd.PersistentFlags().StringVar(&storeRoot, "store-root", "./bm2-store", "Directory holding crashfiles/, crashdata/, templates/")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := bmconfig.DefaultStoreConfig()
	if err := bmconfig.Load(configFile, map[string]any{
		"broker_addr": brokerAddr,
		"db_path":     dbPath,
		"store_root":  storeRoot,
		"log_level":   logLevel,
	}, &cfg); err != nil {
		return err
	}

	if err := bmconfig.EnsureWorkDir(cfg.WorkDir, os.Stdin); err != nil {
		return fmt.Errorf("bm2-store: %w", err)
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
		return fmt.Errorf("bm2-store: init logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetLogger()

	st, err := store.Open(cfg.DBPath, cfg.StoreRoot)
	if err != nil {
		return fmt.Errorf("bm2-store: open store: %w", err)
	}
	defer st.Close()

	conn, err := net.Dial("tcp", cfg.BrokerAddr)
	if err != nil {
		return fmt.Errorf("bm2-store: dial broker: %w", err)
	}
	defer conn.Close()

	h := storeharness.New(storeharness.Config{}, persistResult(st), log)
	return h.Run(conn)
}

// persistResult adapts a *store.Store into the storeharness.ResultHandler
// the broker protocol loop calls per test_result, mirroring cmd/bm2-worker's
// connector.SubprocessHook wiring one layer further down the pipeline.
func persistResult(st *store.Store) storeharness.ResultHandler {
	return func(msg framing.Message) (int64, error) {
		statusVal, _ := msg.Field("status")
		status, _ := statusVal.(string)
		detailVal, _ := msg.Field("detail")
		detail, _ := detailVal.(string)
		dataVal, _ := msg.Field("data")
		data, _ := dataVal.([]byte)
		queueVal, _ := msg.Field("queue")
		stream, _ := queueVal.(string)
		if stream == "" {
			stream = "default"
		}

		templateID, err := st.InsertTemplate(data)
		if err != nil {
			return 0, fmt.Errorf("bm2-store: insert template: %w", err)
		}

		switch status {
		case "crash":
			parsed := crashparse.Parse(detail)
			return st.InsertCrash(templateID, stream, data, detail, parsed)
		case "success":
			return st.InsertSuccess(templateID, stream)
		default:
			return templateID, nil
		}
	}
}
