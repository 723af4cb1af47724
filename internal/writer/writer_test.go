package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/metrics"
)

func TestWriteSummaryRowWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "simple")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s := metrics.RoundSummary{OrphanRate: metrics.SummaryMetric{Mean: 0.01, Stdev: 0.001}}
	if err := w.WriteSummaryRow("round-1", s, map[string]interface{}{"network.ping_ms": 70.0}); err != nil {
		t.Fatalf("WriteSummaryRow: %v", err)
	}
	if err := w.WriteSummaryRow("round-2", s, map[string]interface{}{"network.ping_ms": 100.0}); err != nil {
		t.Fatalf("WriteSummaryRow: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "results_summary.csv"))
	if err != nil {
		t.Fatalf("reading results_summary.csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "round,orphanRate,orphanRate_Std") {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[0], "network.ping_ms") {
		t.Errorf("header missing sweep param column: %q", lines[0])
	}
}

func TestWriteMetricsRowsSkippedUnderSimpleMode(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "simple")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.WriteMetricsRows("round-1", map[string]metrics.PoolMetrics{"P0": {PoolID: "P0"}}); err != nil {
		t.Fatalf("WriteMetricsRows: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "results_metrics.csv")); !os.IsNotExist(err) {
		t.Errorf("results_metrics.csv should not exist under DATA_MODE=simple")
	}
}

func TestWriteConfigSnapshotIncludesContentHash(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, "simple")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg := &config.Config{}
	if err := w.WriteConfigSnapshot(cfg); err != nil {
		t.Fatalf("WriteConfigSnapshot: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "config_snapshot.json"))
	if err != nil {
		t.Fatalf("reading config_snapshot.json: %v", err)
	}
	if !strings.Contains(string(data), "contentHash") {
		t.Errorf("config_snapshot.json missing contentHash field")
	}
}
