// Package engine implements the discrete-event simulator loop of spec 4.1:
// a priority-queued, totally-ordered dispatcher that generates block-find
// events, propagates blocks with stochastic delays, and integrates the pool
// agent's decisions back into the block table and pool state.
package engine

import (
	"sort"

	"github.com/bawdyanarchist/minesim/internal/agent"
	"github.com/bawdyanarchist/minesim/internal/chain"
	"github.com/bawdyanarchist/minesim/internal/noise"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// DecideFunc is the pool-strategy contract (spec 4.4): pluggable so tests can
// substitute a scripted agent.
type DecideFunc func(simtypes.Event, simtypes.PoolView, simtypes.ChainView) simtypes.Decision

// pruneInterval is how many integrated events elapse between difficulty
// window pruning and heap compaction passes (spec 4.1 step 4).
const pruneInterval = 64

// Engine owns the block table, the live pool states, the event queue and the
// per-round noise samplers (spec 5: "exclusively owned by the engine").
type Engine struct {
	chain     *chain.Table
	pools     map[string]*simtypes.Pool
	poolOrder []string
	queue     *queue
	samplers  *noise.Samplers
	simDepth  float64
	decide    DecideFunc

	eventsSincePrune int
	eventsProcessed  int64
}

// New constructs an Engine for one round. simDepthSeconds bounds the loop
// (spec 4.1: "until ... peek().simClock > simDepth").
func New(tbl *chain.Table, pools map[string]*simtypes.Pool, samplers *noise.Samplers, simDepthSeconds float64) *Engine {
	order := make([]string, 0, len(pools))
	for id := range pools {
		order = append(order, id)
	}
	sort.Strings(order)
	return &Engine{
		chain:     tbl,
		pools:     pools,
		poolOrder: order,
		queue:     newQueue(),
		samplers:  samplers,
		simDepth:  simDepthSeconds,
		decide:    agent.Decide,
	}
}

// SetDecideFunc overrides the default agent.Decide, for tests.
func (e *Engine) SetDecideFunc(f DecideFunc) { e.decide = f }

// Seed schedules every pool's first HASHER_FIND (spec 4.1 "Seeding").
func (e *Engine) Seed() {
	for _, id := range e.poolOrder {
		e.simulateBlockTime(e.pools[id], 0)
	}
}

// EventsProcessed returns the number of RECV_OWN/RECV_OTHER events the
// engine has integrated, for progress reporting.
func (e *Engine) EventsProcessed() int64 { return e.eventsProcessed }

// Run drains the queue until it is empty or the next event falls beyond
// simDepth (spec 4.1 "Loop").
func (e *Engine) Run() {
	for {
		peeked, ok := e.queue.peek()
		if !ok || peeked.SimClock > e.simDepth {
			return
		}
		ev, _ := e.queue.pop()
		pool, ok := e.pools[ev.PoolID]
		if !ok {
			continue
		}

		switch ev.Action {
		case simtypes.HasherFind:
			e.hasherFindsBlock(pool, ev)
			continue
		case simtypes.RecvOwn:
			if !e.generateBlock(pool, &ev) {
				continue
			}
		case simtypes.RecvOther:
			// dispatched to the agent directly, no physics step.
		default:
			continue
		}

		dec := e.decide(ev, pool.View(), e.chain)
		e.integrate(pool, ev, dec)
		e.eventsProcessed++

		e.eventsSincePrune++
		if e.eventsSincePrune >= pruneInterval {
			e.pruneAndCompact()
			e.eventsSincePrune = 0
		}
	}
}

func (e *Engine) pruneAndCompact() {
	tips := make([]simtypes.BlockID, 0, len(e.pools))
	for _, p := range e.pools {
		tips = append(tips, p.Chaintip)
	}
	e.chain.Prune(tips)
	e.queue.compact()
}
