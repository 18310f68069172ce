/*
Package bmconfig defines the per-component configuration structs for
the broker, worker, and producer binaries, and the viper-backed loader
that merges a config file, environment variables, and bound cobra
flags into them, following how the teacher's command layer wires
viper and cobra together.
*/
package bmconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BrokerConfig configures the broker binary.
type BrokerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	DBQMax       int           `mapstructure:"dbq_max"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WorkDir      string        `mapstructure:"work_dir"`
	LogLevel     string        `mapstructure:"log_level"`
	JSONLogs     bool          `mapstructure:"json_logs"`
}

// DefaultBrokerConfig mirrors spec.md §6's documented defaults.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		ListenAddr:   "0.0.0.0:10001",
		DBQMax:       1000,
		PollInterval: 5 * time.Second,
		WorkDir:      "./bm2-broker-work",
		LogLevel:     "info",
	}
}

// WorkerConfig configures the worker binary.
type WorkerConfig struct {
	BrokerAddr string `mapstructure:"broker_addr"`
	Queue      string `mapstructure:"queue"`
	HostTag    string `mapstructure:"host_tag"`
	WorkDir    string `mapstructure:"work_dir"`
	LogLevel   string `mapstructure:"log_level"`
	JSONLogs   bool   `mapstructure:"json_logs"`
}

// DefaultWorkerConfig returns sane worker defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BrokerAddr: "127.0.0.1:10001",
		Queue:      "default",
		WorkDir:    "./bm2-worker-work",
		LogLevel:   "info",
	}
}

// ProducerConfig configures the producer binary.
type ProducerConfig struct {
	BrokerAddr string `mapstructure:"broker_addr"`
	Queue      string `mapstructure:"queue"`
	WorkDir    string `mapstructure:"work_dir"`
	LogLevel   string `mapstructure:"log_level"`
	JSONLogs   bool   `mapstructure:"json_logs"`
}

// DefaultProducerConfig returns sane producer defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		BrokerAddr: "127.0.0.1:10001",
		Queue:      "default",
		WorkDir:    "./bm2-producer-work",
		LogLevel:   "info",
	}
}

// StoreConfig configures the result-store binary.
type StoreConfig struct {
	BrokerAddr string `mapstructure:"broker_addr"`
	DBPath     string `mapstructure:"db_path"`
	StoreRoot  string `mapstructure:"store_root"`
	WorkDir    string `mapstructure:"work_dir"`
	LogLevel   string `mapstructure:"log_level"`
	JSONLogs   bool   `mapstructure:"json_logs"`
}

// DefaultStoreConfig returns sane result-store defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		BrokerAddr: "127.0.0.1:10001",
		DBPath:     "./bm2-results.db",
		StoreRoot:  "./bm2-store",
		WorkDir:    "./bm2-store-work",
		LogLevel:   "info",
	}
}

// EnsureWorkDir implements spec.md §6's startup contract: if workDir is
// already a directory, succeed; if it is absent, prompt the operator on
// prompt (typically os.Stdin) and create it only on an explicit "y" or
// "yes" answer, else return an error so the caller exits. Any other stat
// failure (e.g. the path exists but is a file) is returned as-is.
func EnsureWorkDir(workDir string, prompt io.Reader) error {
	info, err := os.Stat(workDir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("bmconfig: work_dir %q exists and is not a directory", workDir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("bmconfig: stat work_dir %q: %w", workDir, err)
	}

	fmt.Printf("work_dir %q does not exist. Create it? [y/N]: ", workDir)
	answer, _ := bufio.NewReader(prompt).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		return fmt.Errorf("bmconfig: work_dir %q missing and operator declined creation", workDir)
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("bmconfig: create work_dir %q: %w", workDir, err)
	}
	return nil
}

// Load reads configFile (if non-empty) via viper, merges in
// BM2_-prefixed environment variables, sets defaults from the defaults
// map, and unmarshals the merged result into into.
func Load(configFile string, defaults map[string]any, into any) error {
	v := viper.New()
	v.SetEnvPrefix("BM2")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("bmconfig: read config %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(into); err != nil {
		return fmt.Errorf("bmconfig: unmarshal: %w", err)
	}
	return nil
}
