package config

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/bawdyanarchist/minesim/internal/simerrors"
)

// PoolConfig is one row of the pools table (spec 6: "{poolId -> {strategy,
// HPP}}").
type PoolConfig struct {
	Strategy string
	HPP      float64
}

// StrategyParams carries the unified agent's tunables (spec 4.4): kThresh
// selects the Eyal-Sirer/Stubborn/Very-Stubborn family, retortPolicy selects
// silent/equal-fork/clobber, Scoring names the ordered scoring-function
// plug-ins (spec 4.4.2).
type StrategyParams struct {
	KThresh      int      `json:"kThresh"`
	RetortPolicy int      `json:"retortPolicy"`
	Scoring      []string `json:"scoring"`
}

// StrategyEntry is one entry of the strategy_manifest (spec 6).
type StrategyEntry struct {
	ID         string         `json:"id"`
	EntryPoint string         `json:"entryPoint"` // "honest" or "selfish"
	Config     StrategyParams `json:"config"`
}

// Inputs holds the pools table and strategy manifest resolved from the files
// named in Config.Paths, separately from the viper-sourced Config because
// they are CSV/JSON, not key/value config (spec 6 "Inputs (files)").
type Inputs struct {
	Pools    map[string]PoolConfig
	Manifest map[string]StrategyEntry
}

// LoadInputs reads the pools table and strategy manifest named by c.Paths
// and cross-validates them (spec 7 "Config" errors: HPP sum, unknown
// strategy id).
func LoadInputs(c *Config) (*Inputs, error) {
	pools, err := loadPools(c.Paths.PoolsFile)
	if err != nil {
		return nil, err
	}
	manifest, err := loadManifest(c.Paths.StrategyManifestFile)
	if err != nil {
		return nil, err
	}

	var sum float64
	for poolID, p := range pools {
		sum += p.HPP
		if _, ok := manifest[p.Strategy]; !ok {
			return nil, fmt.Errorf("%w: pool %q references unknown strategy id %q", simerrors.ErrConfig, poolID, p.Strategy)
		}
	}
	if math.Abs(sum-1.0) > 1e-3 {
		return nil, fmt.Errorf("%w: pool HPP sums to %v, want 1 ± 1e-3", simerrors.ErrConfig, sum)
	}

	return &Inputs{Pools: pools, Manifest: manifest}, nil
}

// loadPools parses poolId,strategy,hpp CSV rows.
func loadPools(path string) (map[string]PoolConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening pools file %s: %v", simerrors.ErrConfig, path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	pools := make(map[string]PoolConfig)
	lineNo := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", simerrors.ErrConfig, path, lineNo, err)
		}
		if lineNo == 1 {
			if _, perr := strconv.ParseFloat(rec[2], 64); perr != nil {
				continue // header row
			}
		}
		hpp, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: bad HPP %q: %v", simerrors.ErrConfig, path, lineNo, rec[2], err)
		}
		pools[rec[0]] = PoolConfig{Strategy: rec[1], HPP: hpp}
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("%w: %s defines no pools", simerrors.ErrConfig, path)
	}
	return pools, nil
}

// loadManifest parses the strategy_manifest JSON array.
func loadManifest(path string) (map[string]StrategyEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening strategy manifest %s: %v", simerrors.ErrConfig, path, err)
	}
	defer f.Close()

	var entries []StrategyEntry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: parsing strategy manifest %s: %v", simerrors.ErrConfig, path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s defines no strategies", simerrors.ErrConfig, path)
	}

	manifest := make(map[string]StrategyEntry, len(entries))
	for _, e := range entries {
		if e.EntryPoint != "honest" && e.EntryPoint != "selfish" {
			return nil, fmt.Errorf("%w: strategy %q: entryPoint must be honest or selfish, got %q", simerrors.ErrConfig, e.ID, e.EntryPoint)
		}
		manifest[e.ID] = e
	}
	return manifest, nil
}
