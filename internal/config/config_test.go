package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bawdyanarchist/minesim/internal/simerrors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func baseYAML(dir string) string {
	return `
sim:
  depth_hours: 24
  rounds: "1"
  workers: 2
  worker_ram_mb: 512
  data_mode: metrics
  seed: 42
difficulty:
  target_seconds: 120
  window: 720
  lag: 15
  cut: 60
network:
  network_hashrate: 1000000
  ping_ms: 70
  cv: 0.5
  mbps: 100
  ntp_stdev: 2
  block_size_kb: 20
paths:
  pools_file: ` + filepath.Join(dir, "pools.csv") + `
  strategy_manifest_file: ` + filepath.Join(dir, "manifest.json") + `
  bootstrap_file: ` + filepath.Join(dir, "bootstrap.csv") + `
`
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", baseYAML(dir))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sim.Workers != 2 {
		t.Errorf("Sim.Workers = %d, want 2", cfg.Sim.Workers)
	}
	if cfg.API.Enabled {
		t.Errorf("API.Enabled default should be false")
	}
	if cfg.DepthSeconds() != 24*3600 {
		t.Errorf("DepthSeconds() = %v, want %v", cfg.DepthSeconds(), 24*3600)
	}
}

func TestLoadRejectsBadDataMode(t *testing.T) {
	dir := t.TempDir()
	yaml := strings.Replace(baseYAML(dir), "data_mode: metrics", "data_mode: bogus", 1)
	path := writeFile(t, dir, "config.yaml", yaml)

	_, err := Load(path)
	if !errors.Is(err, simerrors.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadInputsValidatesHPPSum(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pools.csv", "poolId,strategy,hpp\nP0,honest0,0.6\nP1,honest0,0.3\n")
	writeFile(t, dir, "manifest.json", `[{"id":"honest0","entryPoint":"honest","config":{}}]`)

	cfg := &Config{Paths: PathsConfig{
		PoolsFile:            filepath.Join(dir, "pools.csv"),
		StrategyManifestFile: filepath.Join(dir, "manifest.json"),
	}}
	_, err := LoadInputs(cfg)
	if !errors.Is(err, simerrors.ErrConfig) {
		t.Fatalf("expected ErrConfig for HPP sum 0.9, got %v", err)
	}
}

func TestLoadInputsValidatesStrategyReference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pools.csv", "poolId,strategy,hpp\nP0,nonexistent,1.0\n")
	writeFile(t, dir, "manifest.json", `[{"id":"honest0","entryPoint":"honest","config":{}}]`)

	cfg := &Config{Paths: PathsConfig{
		PoolsFile:            filepath.Join(dir, "pools.csv"),
		StrategyManifestFile: filepath.Join(dir, "manifest.json"),
	}}
	_, err := LoadInputs(cfg)
	if !errors.Is(err, simerrors.ErrConfig) {
		t.Fatalf("expected ErrConfig for unknown strategy, got %v", err)
	}
}

func TestLoadInputsAccepts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pools.csv", "poolId,strategy,hpp\nP0,honest0,0.6\nP1,selfish0,0.4\n")
	writeFile(t, dir, "manifest.json", `[
		{"id":"honest0","entryPoint":"honest","config":{}},
		{"id":"selfish0","entryPoint":"selfish","config":{"kThresh":1,"retortPolicy":1}}
	]`)

	cfg := &Config{Paths: PathsConfig{
		PoolsFile:            filepath.Join(dir, "pools.csv"),
		StrategyManifestFile: filepath.Join(dir, "manifest.json"),
	}}
	inputs, err := LoadInputs(cfg)
	if err != nil {
		t.Fatalf("LoadInputs: %v", err)
	}
	if len(inputs.Pools) != 2 || len(inputs.Manifest) != 2 {
		t.Fatalf("got %d pools, %d strategies", len(inputs.Pools), len(inputs.Manifest))
	}
}

func TestIsSweep(t *testing.T) {
	cfg := &Config{Sim: SimConfig{Rounds: "sweep"}}
	if !cfg.IsSweep() {
		t.Error("IsSweep() should be true for rounds=sweep")
	}
	cfg.Sim.Rounds = "10"
	if cfg.IsSweep() {
		t.Error("IsSweep() should be false for a fixed round count")
	}
}
