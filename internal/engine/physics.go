package engine

import (
	"math/big"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// simulateBlockTime schedules this pool's next HASHER_FIND (spec 4.2).
func (e *Engine) simulateBlockTime(pool *simtypes.Pool, now float64) {
	tip, ok := e.chain.Block(pool.Chaintip)
	if !ok || tip.NxtDifficulty == nil || tip.NxtDifficulty.Sign() <= 0 {
		return
	}
	nxtF, _ := new(big.Float).SetInt(tip.NxtDifficulty).Float64()
	lambda := pool.Hashrate / nxtF
	t := now + e.samplers.OWDP2H() + e.samplers.BlockTime(lambda)
	e.queue.push(simtypes.Event{SimClock: t, PoolID: pool.ID, Action: simtypes.HasherFind, Chaintip: pool.Chaintip})
}

// stillRelevant implements the staleness check shared by hasherFindsBlock and
// generateBlock (spec 4.2).
func (e *Engine) stillRelevant(pool *simtypes.Pool, eventChaintip simtypes.BlockID, eventSimClock float64) bool {
	if eventChaintip == pool.Chaintip {
		return true
	}
	tip, ok := e.chain.Block(pool.Chaintip)
	if !ok || tip.PrevID != eventChaintip {
		return false
	}
	tipScore := pool.Scores.Get(pool.Chaintip)
	if tipScore == nil {
		return false
	}
	return eventSimClock <= tipScore.SimClock+e.samplers.OWDP2H()
}

// hasherFindsBlock validates the event's chaintip is still relevant and, if
// so, schedules the RECV_OWN that delivers the found block back to its own
// pool (spec 4.2). Stale finds are silently discarded (spec 7).
func (e *Engine) hasherFindsBlock(pool *simtypes.Pool, ev simtypes.Event) {
	if !e.stillRelevant(pool, ev.Chaintip, ev.SimClock) {
		return
	}
	e.queue.push(simtypes.Event{
		SimClock: ev.SimClock + e.samplers.OWDP2H(),
		PoolID:   pool.ID,
		Action:   simtypes.RecvOwn,
		Chaintip: ev.Chaintip,
	})
}

// generateBlock repeats the staleness check and, on acceptance, mints the new
// block and stamps ev.NewIDs for the subsequent agent invocation (spec 4.2).
// Returns false if the find turned out stale.
func (e *Engine) generateBlock(pool *simtypes.Pool, ev *simtypes.Event) bool {
	if !e.stillRelevant(pool, ev.Chaintip, ev.SimClock) {
		return false
	}
	prev, ok := e.chain.Block(ev.Chaintip)
	if !ok || prev.NxtDifficulty == nil {
		return false
	}
	id := simtypes.NewBlockID(prev.Height+1, pool.ID)
	diff := new(big.Int).Set(prev.NxtDifficulty)
	cum := new(big.Int).Add(prev.CumDifficulty, diff)
	b := &simtypes.Block{
		ID: id, Height: prev.Height + 1, PoolID: pool.ID, PrevID: ev.Chaintip,
		SimClock: ev.SimClock, Difficulty: diff, CumDifficulty: cum,
	}
	e.chain.Put(b)
	ev.NewIDs = []simtypes.BlockID{id}
	return true
}
