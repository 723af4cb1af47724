// Package round drives one simulated round end to end: it seeds the noise
// samplers and the bootstrap chain, constructs the pools named by the
// strategy manifest, runs the event engine to the configured depth, and
// computes the round's per-pool and summary metrics (spec 4.7/4.1, grounded
// on the teacher's master.go top-level Start/Stop lifecycle and its
// GetStats/GetNetworkStats summary-assembly pattern).
package round

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/bawdyanarchist/minesim/internal/agent"
	"github.com/bawdyanarchist/minesim/internal/bootstrap"
	"github.com/bawdyanarchist/minesim/internal/chain"
	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/engine"
	"github.com/bawdyanarchist/minesim/internal/metrics"
	"github.com/bawdyanarchist/minesim/internal/noise"
	"github.com/bawdyanarchist/minesim/internal/simerrors"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
	"github.com/bawdyanarchist/minesim/internal/telemetry"
)

// Result is everything a round produces for the caller to persist or
// aggregate: the metrics of spec 4.7 plus enough bookkeeping for the worker
// pool and status API to report progress.
type Result struct {
	RoundID         string
	Seed            uint32
	PerPool         map[string]metrics.PoolMetrics
	Summary         metrics.RoundSummary
	EventsProcessed int64
	BlocksMined     int
}

// Job names everything one round needs that isn't shared read-only input
// (spec 6 "Inputs"): its id, its seed, and the fully resolved config for this
// permutation (sweep overlays already applied by internal/sweep).
type Job struct {
	RoundID string
	Seed    uint32
	Config  *config.Config
	Inputs  *config.Inputs
}

// Run executes one round synchronously and returns its computed metrics. It
// is safe to call concurrently for distinct Jobs: bootstrap blocks are
// reloaded per call rather than shared, so no round's chain.Table or Pool
// state is ever visible to another (spec 5 "exclusively owned").
func Run(job Job, telem *telemetry.Registry) (*Result, *chain.Table, map[string]*simtypes.Pool, error) {
	cfg := job.Config

	minRows := cfg.Difficulty.Window + cfg.Difficulty.Lag
	bootBlocks, err := bootstrap.Load(cfg.Paths.BootstrapFile, minRows)
	if err != nil {
		return nil, nil, nil, err
	}

	tbl := chain.New(cfg.Difficulty.ToParams())
	tip, err := tbl.Seed(bootBlocks)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: round %s: %v", simerrors.ErrRuntimeInvariant, job.RoundID, err)
	}

	samplers := noise.NewSamplers(job.Seed, cfg.Network.ToNoiseConfig())

	pools, err := buildPools(job.Inputs, cfg, samplers, tip)
	if err != nil {
		return nil, nil, nil, err
	}

	if telem != nil {
		telem.Info("round starting", zap.String("roundId", job.RoundID), zap.Uint32("seed", job.Seed), zap.Int("pools", len(pools)))
	}

	eng := engine.New(tbl, pools, samplers, cfg.DepthSeconds())
	eng.Seed()
	eng.Run()

	per, summary := metrics.Compute(pools, tbl)

	blocksMined := tbl.Len() - len(bootBlocks)
	result := &Result{
		RoundID:         job.RoundID,
		Seed:            job.Seed,
		PerPool:         per,
		Summary:         summary,
		EventsProcessed: eng.EventsProcessed(),
		BlocksMined:     blocksMined,
	}

	if telem != nil {
		telem.Info("round complete", zap.String("roundId", job.RoundID),
			zap.Int64("eventsProcessed", result.EventsProcessed),
			zap.Int("blocksMined", result.BlocksMined))
	}

	return result, tbl, pools, nil
}

// buildPools constructs one simtypes.Pool per entry in inputs.Pools,
// resolving each pool's strategy manifest entry into a simtypes.Strategy
// (spec 4.4) and sampling its fixed NTP drift (spec 4.3).
func buildPools(inputs *config.Inputs, cfg *config.Config, samplers *noise.Samplers, tip simtypes.BlockID) (map[string]*simtypes.Pool, error) {
	ids := make([]string, 0, len(inputs.Pools))
	for id := range inputs.Pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pools := make(map[string]*simtypes.Pool, len(ids))
	for _, id := range ids {
		pc := inputs.Pools[id]
		entry, ok := inputs.Manifest[pc.Strategy]
		if !ok {
			return nil, fmt.Errorf("%w: pool %q references unknown strategy %q", simerrors.ErrConfig, id, pc.Strategy)
		}

		scoring, err := agent.BuildScoring(entry.Config.Scoring)
		if err != nil {
			return nil, fmt.Errorf("%w: pool %q strategy %q: %v", simerrors.ErrConfig, id, pc.Strategy, err)
		}

		strategy := simtypes.Strategy{
			Honest:       entry.EntryPoint == "honest",
			KThresh:      entry.Config.KThresh,
			RetortPolicy: entry.Config.RetortPolicy,
			Scoring:      scoring,
		}

		ntpDrift := samplers.NTPDrift(cfg.Network.NTPStdev)
		hashrate := pc.HPP * cfg.Network.NetworkHashrate
		pools[id] = simtypes.NewPool(id, pc.HPP, hashrate, ntpDrift, tip, strategy)
	}
	return pools, nil
}
