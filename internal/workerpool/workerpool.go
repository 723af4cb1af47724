// Package workerpool defines the cross-round fan-out contracts (spec 5
// "Concurrency & Resource Model": one round runs on a single goroutine,
// rounds across a sweep run in parallel, isolated workers) and a
// goroutine-based reference Pool. The OS-thread/process-per-round design is
// out of scope; only the in-process shape is implemented here, grounded on
// the teacher's rpc.UpstreamManager health-check idiom: a ticker-driven
// monitor, a mutex-guarded map of in-flight rounds, and cancellation via
// context.
package workerpool

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/bawdyanarchist/minesim/internal/chain"
	"github.com/bawdyanarchist/minesim/internal/config"
	"github.com/bawdyanarchist/minesim/internal/metrics"
	"github.com/bawdyanarchist/minesim/internal/round"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
	"github.com/bawdyanarchist/minesim/internal/telemetry"
)

// RoundJob names one unit of work the pool dispatches to a worker.
type RoundJob struct {
	ID     string
	Seed   uint32
	Cfg    config.Config
	Inputs *config.Inputs
}

// RoundResult is what a completed (or abandoned) round reports back. Table
// and Pools are the engine's final chain state, carried through so a caller
// writing DATA_MODE=full output can dump every block and score without the
// runner re-deriving them (spec 6 "Outputs (files)": results_blocks,
// results_scores).
type RoundResult struct {
	ID      string
	Summary metrics.RoundSummary
	PerPool map[string]metrics.PoolMetrics
	Table   *chain.Table
	Pools   map[string]*simtypes.Pool
	Err     error
	Partial bool
}

// Runner executes a single RoundJob to completion or until ctx is canceled.
type Runner interface {
	Run(ctx context.Context, job RoundJob) (RoundResult, error)
}

// Pool fans RoundJobs out to a bounded set of workers and streams results
// back as they complete, in no particular order (spec 5 "cross-round:
// parallel isolated workers").
type Pool interface {
	Submit(job RoundJob)
	Results() <-chan RoundResult
	Cancel(id string)
	Close()
}

// localRunner adapts internal/round.Run to the Runner contract, racing it
// against ctx cancellation since round.Run itself has no cancellation point.
type localRunner struct {
	telemetry *telemetry.Registry
}

// NewLocalRunner returns a Runner that drives internal/round.Run, narrating
// to telem if non-nil.
func NewLocalRunner(telem *telemetry.Registry) Runner {
	return &localRunner{telemetry: telem}
}

func (r *localRunner) Run(ctx context.Context, job RoundJob) (RoundResult, error) {
	type outcome struct {
		res   *round.Result
		table *chain.Table
		pools map[string]*simtypes.Pool
		err   error
	}
	done := make(chan outcome, 1)
	cfg := job.Cfg
	go func() {
		res, table, pools, err := round.Run(round.Job{RoundID: job.ID, Seed: job.Seed, Config: &cfg, Inputs: job.Inputs}, r.telemetry)
		done <- outcome{res, table, pools, err}
	}()

	select {
	case <-ctx.Done():
		return RoundResult{ID: job.ID, Partial: true, Err: ctx.Err()}, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return RoundResult{ID: job.ID, Err: o.err}, o.err
		}
		return RoundResult{ID: job.ID, Summary: o.res.Summary, PerPool: o.res.PerPool, Table: o.table, Pools: o.pools}, nil
	}
}

// LocalPool is the reference in-process Pool (spec 2.6: "a goroutine-based
// reference Pool satisfies this for in-process fan-out").
type LocalPool struct {
	runner   Runner
	ramCapMB int

	jobs    chan RoundJob
	results chan RoundResult

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	wg        sync.WaitGroup
	ctx       context.Context
	cancelAll context.CancelFunc

	ramStop chan struct{}
}

// NewLocalPool starts workers goroutines draining jobs through runner.
// ramCapMB caps the process's observed heap allocation (runtime.MemStats):
// exceeding it cancels every in-flight round, which reports Partial (spec 5
// "a round exceeding WORKER_RAM is canceled and its partial result recorded").
func NewLocalPool(runner Runner, workers, ramCapMB int) *LocalPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &LocalPool{
		runner:    runner,
		ramCapMB:  ramCapMB,
		jobs:      make(chan RoundJob, workers),
		results:   make(chan RoundResult, workers),
		cancels:   make(map[string]context.CancelFunc),
		ctx:       ctx,
		cancelAll: cancel,
		ramStop:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	if ramCapMB > 0 {
		go p.monitorRAM()
	}
	return p
}

func (p *LocalPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		jobCtx, cancel := context.WithCancel(p.ctx)
		p.mu.Lock()
		p.cancels[job.ID] = cancel
		p.mu.Unlock()

		res, err := p.runner.Run(jobCtx, job)
		if err != nil && jobCtx.Err() != nil {
			res.Partial = true
		}

		p.mu.Lock()
		delete(p.cancels, job.ID)
		p.mu.Unlock()
		cancel()

		p.results <- res
	}
}

// monitorRAM samples runtime.MemStats.Alloc every tick; once it exceeds the
// configured cap, every in-flight round is canceled (spec 5 resource row).
// MemStats is process-wide, not per-goroutine, so this is a conservative,
// whole-pool trip rather than a per-round accounting — acceptable for the
// contracts-only scope spec 2.6 calls for.
func (p *LocalPool) monitorRAM() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	capBytes := uint64(p.ramCapMB) * 1024 * 1024

	for {
		select {
		case <-p.ramStop:
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			if ms.Alloc > capBytes {
				p.cancelAllInFlight()
			}
		}
	}
}

func (p *LocalPool) cancelAllInFlight() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.cancels {
		cancel()
	}
}

// Submit enqueues job. Blocks if every worker is busy and the queue is full.
func (p *LocalPool) Submit(job RoundJob) { p.jobs <- job }

// Results returns the channel completed (or abandoned) rounds are posted to.
func (p *LocalPool) Results() <-chan RoundResult { return p.results }

// Cancel requests the in-flight round with the given id stop early.
func (p *LocalPool) Cancel(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.cancels[id]; ok {
		cancel()
	}
}

// Close stops accepting new jobs, waits for in-flight rounds to finish or be
// canceled, then closes the results channel.
func (p *LocalPool) Close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.ramStop)
	p.cancelAll()
	close(p.results)
}
