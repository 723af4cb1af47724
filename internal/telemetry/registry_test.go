package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNewRegistryOnlyOpensEnabledModes(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry([]string{"info"}, dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer r.Close()

	r.Info("engine event", zap.String("roundId", "r0"))
	r.Probe("should not be written")
	r.Stats("should not be written")

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "info.log")); err != nil {
		t.Errorf("expected info.log to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "probe.log")); err == nil {
		t.Errorf("expected probe.log to not be created when probe mode is disabled")
	}
}

func TestRegistryInfoWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry([]string{"info"}, dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	r.Info("round starting", zap.String("roundId", "r0"), zap.Uint32("seed", 42))
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatalf("reading info.log: %v", err)
	}

	var line struct {
		Msg     string `json:"msg"`
		RoundID string `json:"roundId"`
		Seed    uint32 `json:"seed"`
	}
	if err := json.Unmarshal(body, &line); err != nil {
		t.Fatalf("unmarshaling log line: %v\nbody: %s", err, body)
	}
	if line.Msg != "round starting" || line.RoundID != "r0" || line.Seed != 42 {
		t.Errorf("unexpected log line: %+v", line)
	}
}

func TestRegistryAllModesDisabledByDefault(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(nil, dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer r.Close()

	// Every call should be a safe no-op; nothing should be written to dir.
	r.Info("x")
	r.Probe("y")
	r.Stats("z")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no log files when all modes disabled, got %v", entries)
	}
}
