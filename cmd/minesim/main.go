// minesim runs a discrete-event Monte Carlo simulation of a Monero-style
// mining network: a fixed round, or a config-driven sweep across many
// rounds, evaluating honest and strategic pool behavior (spec 1 "Overview").
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bawdyanarchist/minesim/internal/api"
	"github.com/bawdyanarchist/minesim/internal/bootstrap"
	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/notify"
	"github.com/bawdyanarchist/minesim/internal/profiling"
	"github.com/bawdyanarchist/minesim/internal/registry"
	"github.com/bawdyanarchist/minesim/internal/sweep"
	"github.com/bawdyanarchist/minesim/internal/telemetry"
	"github.com/bawdyanarchist/minesim/internal/workerpool"
	"github.com/bawdyanarchist/minesim/internal/writer"

	"github.com/spf13/viper"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

// permutation is one round's fully resolved config plus the sweep axis
// values (if any) that produced it, so the writer can echo them as extra
// results_summary.csv columns (spec 6 "then optional sweep-parameter
// columns").
type permutation struct {
	cfg    *config.Config
	params map[string]interface{}
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("minesim v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if err := telemetry.InitLogger("info", "console", ""); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	baseViper, err := config.LoadViper(*configPath)
	if err != nil {
		telemetry.Log().Fatalf("failed to load config: %v", err)
	}
	cfg, err := config.FromViper(baseViper)
	if err != nil {
		telemetry.Log().Fatalf("failed to load config: %v", err)
	}

	telemetry.Log().Infof("minesim v%s starting", version)

	inputs, err := config.LoadInputs(cfg)
	if err != nil {
		telemetry.Log().Fatalf("failed to load inputs: %v", err)
	}

	perms, err := resolvePermutations(*configPath, baseViper, cfg)
	if err != nil {
		telemetry.Log().Fatalf("failed to resolve sweep permutations: %v", err)
	}
	telemetry.Log().Infof("resolved %d round permutation(s)", len(perms))

	narration, err := telemetry.NewRegistry(cfg.Log.Modes, cfg.Log.Dir)
	if err != nil {
		telemetry.Log().Fatalf("failed to initialize narration logs: %v", err)
	}
	defer narration.Close()

	w, err := writer.New(cfg.Paths.OutputDir, cfg.Sim.DataMode)
	if err != nil {
		telemetry.Log().Fatalf("failed to initialize output writer: %v", err)
	}
	defer w.Close()

	if err := w.WriteConfigSnapshot(cfg); err != nil {
		telemetry.Log().Errorf("failed to write config snapshot: %v", err)
	}
	if bootBlocks, err := bootstrap.Load(cfg.Paths.BootstrapFile, cfg.Difficulty.Window+cfg.Difficulty.Lag); err != nil {
		telemetry.Log().Fatalf("failed to load bootstrap chain: %v", err)
	} else if err := w.WriteHistoricalBlocksOnce(bootBlocks); err != nil {
		telemetry.Log().Errorf("failed to write historical_blocks.csv: %v", err)
	}

	reg := registry.New(cfg.Registry.RedisAddr, cfg.Registry.RedisPassword, cfg.Registry.RedisDB)
	defer reg.Close()

	apmAgent := telemetry.NewAPMAgent(&cfg.NewRelic)
	if err := apmAgent.Start(); err != nil {
		telemetry.Log().Errorf("failed to start New Relic agent: %v", err)
	}
	defer apmAgent.Stop()

	notifier := notify.NewNotifier(&cfg.Notify)

	var profServer *profiling.Server
	if cfg.Profiling.Enabled {
		profServer = profiling.NewServer(&cfg.Profiling)
		if err := profServer.Start(); err != nil {
			telemetry.Log().Errorf("failed to start pprof server: %v", err)
		}
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, reg)
		if err := apiServer.Start(); err != nil {
			telemetry.Log().Errorf("failed to start status API: %v", err)
		}
	}

	runner := workerpool.NewLocalRunner(narration)
	pool := workerpool.NewLocalPool(runner, cfg.Sim.Workers, cfg.Sim.WorkerRAMMB)

	done := make(chan struct{})
	go drainResults(pool, w, reg, notifier, apmAgent, apiServer, perms, done)

	for i, p := range perms {
		roundID := fmt.Sprintf("round-%04d", i)
		reg.SetQueued(roundID)
		pool.Submit(workerpool.RoundJob{
			ID:     roundID,
			Seed:   cfg.Sim.Seed + uint32(i),
			Cfg:    *p.cfg,
			Inputs: inputs,
		})
	}
	pool.Close()
	<-done

	telemetry.Log().Info("all rounds complete")

	if apiServer == nil && profServer == nil {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	telemetry.Log().Info("status API/profiling still serving results; press Ctrl+C to stop")
	<-sigChan

	telemetry.Log().Info("shutting down")
	if apiServer != nil {
		apiServer.Stop()
	}
	if profServer != nil {
		profServer.Stop()
	}
}

// resolvePermutations expands cfg.Sim.Rounds into the concrete list of
// per-round configs to run: either N copies of cfg (fixed-round mode) or the
// Cartesian product of the sweep file's axes (spec 6 "SIM_ROUNDS: integer or
// sweep").
func resolvePermutations(configPath string, v *viper.Viper, cfg *config.Config) ([]permutation, error) {
	if !cfg.IsSweep() {
		n, err := strconv.Atoi(cfg.Sim.Rounds)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("sim.rounds must be a positive integer or \"sweep\", got %q", cfg.Sim.Rounds)
		}
		perms := make([]permutation, n)
		for i := 0; i < n; i++ {
			perms[i] = permutation{cfg: cfg}
		}
		return perms, nil
	}

	overlays, err := sweep.LoadFile(cfg.Paths.SweepFile)
	if err != nil {
		return nil, err
	}
	perms := make([]permutation, 0, len(overlays))
	for _, o := range overlays {
		fresh, err := config.LoadViper(configPath)
		if err != nil {
			return nil, err
		}
		permCfg, err := sweep.Apply(fresh, o)
		if err != nil {
			return nil, err
		}
		perms = append(perms, permutation{cfg: permCfg, params: o})
	}
	return perms, nil
}

// drainResults consumes every completed round off pool, persists its output,
// mirrors its status, and fires alerts, until pool.Results() closes (after
// pool.Close() and every in-flight round finishes).
func drainResults(pool *workerpool.LocalPool, w *writer.Writer, reg *registry.Registry, notifier *notify.Notifier, apm *telemetry.APMAgent, apiServer *api.Server, perms []permutation, done chan<- struct{}) {
	defer close(done)

	completed := 0
	started := timeNow()
	for res := range pool.Results() {
		completed++
		roundIdx := roundIndex(res.ID)
		var params map[string]interface{}
		if roundIdx >= 0 && roundIdx < len(perms) {
			params = perms[roundIdx].params
		}

		if res.Err != nil || res.Partial {
			telemetry.Log().Warnf("round %s did not complete cleanly: err=%v partial=%v", res.ID, res.Err, res.Partial)
			reg.SetPartial(res.ID, nil, res.Err)
			notifier.NotifyPartialResult(res.ID, res.Err)
			if apiServer != nil {
				if st, ok := reg.Get(res.ID); ok {
					apiServer.BroadcastRound(st)
				}
			}
			continue
		}

		if err := w.WriteSummaryRow(res.ID, res.Summary, params); err != nil {
			telemetry.Log().Errorf("round %s: failed to write summary row: %v", res.ID, err)
		}
		if err := w.WriteMetricsRows(res.ID, res.PerPool); err != nil {
			telemetry.Log().Errorf("round %s: failed to write metrics rows: %v", res.ID, err)
		}
		if res.Table != nil {
			if err := w.WriteBlocks(res.ID, res.Table.AllBlocks()); err != nil {
				telemetry.Log().Errorf("round %s: failed to write blocks: %v", res.ID, err)
			}
		}
		if res.Pools != nil {
			if err := w.WriteScores(res.ID, res.Pools); err != nil {
				telemetry.Log().Errorf("round %s: failed to write scores: %v", res.ID, err)
			}
		}

		reg.SetDone(res.ID, res.Summary)
		apm.RecordRoundComplete(res.ID, res.Summary)
		notifier.NotifyAnomalousRound(res.ID, res.Summary)
		if apiServer != nil {
			if st, ok := reg.Get(res.ID); ok {
				apiServer.BroadcastRound(st)
			}
		}

		telemetry.Log().Infof("round %s complete (%d/%d)", res.ID, completed, len(perms))
	}

	elapsed := timeNow().Sub(started)
	if elapsed > 0 {
		apm.RecordThroughput(float64(completed) / elapsed.Minutes())
	}
}

// roundIndex extracts the permutation index from a "round-%04d" id, or -1 if
// it doesn't parse (defensive; every id this binary assigns does).
func roundIndex(id string) int {
	if len(id) < len("round-0000") {
		return -1
	}
	n, err := strconv.Atoi(id[len("round-"):])
	if err != nil {
		return -1
	}
	return n
}

func timeNow() time.Time { return time.Now() }
