package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesDomainHelpersToFile(t *testing.T) {
	dir := t.TempDir()
	lg, err := NewLogger(&LoggerConfig{
		Level:     LogLevelDebug,
		Format:    LogFormatCustom,
		OutputDir: dir,
		MaxFiles:  10,
		MaxSize:   1024 * 1024,
		Timestamp: true,
		Colors:    false,
	})
	require.NoError(t, err)

	lg.LogDelivery("1", 0, "success", nil)
	lg.LogCrash("2", "access-violation", nil)
	lg.LogTimeout("3", "default", nil)
	lg.LogQueueDepth("default", 4, 1, nil)
	lg.LogSubmit("5", "crc32", nil)
	lg.LogStats(10, 1, false, 2.5, nil)

	require.NoError(t, lg.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "bm2_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	body := string(data)
	require.Contains(t, body, "test case delivered")
	require.Contains(t, body, "crash detected")
	require.Contains(t, body, "ack timed out")
	require.Contains(t, body, "queue depth")
	require.Contains(t, body, "test case submitted")
	require.Contains(t, body, "statistics update")
}

func TestLoggerConfigValidateRejectsBadValues(t *testing.T) {
	cfg := &LoggerConfig{OutputDir: "", MaxFiles: 1, MaxSize: 1, Format: LogFormatText, Level: LogLevelInfo}
	require.Error(t, cfg.Validate())

	cfg.OutputDir = "./logs"
	cfg.Format = "bogus"
	require.Error(t, cfg.Validate())

	cfg.Format = LogFormatText
	cfg.Level = "bogus"
	require.Error(t, cfg.Validate())

	cfg.Level = LogLevelInfo
	require.NoError(t, cfg.Validate())
}

func TestLogManagerAndAnalyzerSummarizeWrittenLogs(t *testing.T) {
	dir := t.TempDir()
	lg, err := NewLogger(&LoggerConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatCustom,
		OutputDir: dir,
		MaxFiles:  10,
		MaxSize:   1024 * 1024,
		Timestamp: true,
	})
	require.NoError(t, err)
	lg.LogDelivery("1", 0, "success", nil)
	lg.LogCrash("2", "access-violation", nil)
	require.NoError(t, lg.Close())

	mgr := NewLogManager(dir, 10, 1024*1024, false)
	stats, err := mgr.GetLogStats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalFiles)
	require.Equal(t, 1, stats.UncompressedFiles)

	analyzer := NewLogAnalyzer(dir)
	analysis, err := analyzer.AnalyzeLogs()
	require.NoError(t, err)
	require.Equal(t, int64(1), analysis.DeliverCount)
	require.Equal(t, int64(1), analysis.CrashCount)
	require.Contains(t, analysis.GetLogSummary(), "Deliveries: 1")
}
