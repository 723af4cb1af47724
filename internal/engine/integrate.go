package engine

import (
	"sort"

	"github.com/bawdyanarchist/minesim/internal/chain"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// integrate applies a Decision to live engine state in the order spec 4.5
// specifies.
func (e *Engine) integrate(pool *simtypes.Pool, ev simtypes.Event, dec simtypes.Decision) {
	// 1. clear satisfied requests.
	for _, id := range ev.NewIDs {
		delete(pool.RequestIDs, id)
	}

	// 2. stamp the timestamp and extend the difficulty window.
	if dec.Timestamp != nil {
		if b, ok := e.chain.Block(ev.LastNewID()); ok {
			b.Timestamp = dec.Timestamp
			e.chain.ExtendWindow(b)
			b.NxtDifficulty = e.chain.NextDifficulty(b.ID)
		}
	}

	// 3. merge scores, sorted by height on insertion.
	for _, id := range sortedScoreIDsByHeight(dec.Scores, e.chain) {
		s := dec.Scores[id]
		pool.Scores.Put(id, s)
		if s.Resolved() {
			delete(pool.Unscored, id)
		} else {
			pool.Unscored[id] = e.chain.Height(id)
		}
	}

	// 4. honTip.
	if dec.HonTip != nil {
		pool.HonTip = *dec.HonTip
	}

	// 5. chaintip change reschedules this pool's block-find.
	if dec.Chaintip != nil && *dec.Chaintip != pool.Chaintip {
		pool.Chaintip = *dec.Chaintip
		e.simulateBlockTime(pool, ev.SimClock)
	}

	// 6. new ancestor requests.
	var newRequests []simtypes.BlockID
	for _, id := range dec.RequestIDs {
		if _, already := pool.RequestIDs[id]; !already {
			pool.RequestIDs[id] = struct{}{}
			newRequests = append(newRequests, id)
		}
	}
	if len(newRequests) > 0 {
		sortByHeight(newRequests, e.chain)
		t := ev.SimClock + 2*e.samplers.OWDP2P() + e.samplers.TxTime()*float64(len(newRequests))
		e.queue.push(simtypes.Event{
			SimClock: t, PoolID: pool.ID, Action: simtypes.RecvOther,
			Chaintip: pool.Chaintip, NewIDs: newRequests,
		})
	}

	// 7. broadcast newly public blocks to every other pool.
	if len(dec.BroadcastIDs) > 0 {
		ids := append([]simtypes.BlockID(nil), dec.BroadcastIDs...)
		sortByHeight(ids, e.chain)
		for _, id := range ids {
			if b, ok := e.chain.Block(id); ok {
				b.Broadcast = simtypes.BroadcastPublic
			}
		}
		for _, qID := range e.poolOrder {
			if qID == pool.ID {
				continue
			}
			t := ev.SimClock + e.samplers.OWDP2P()
			e.queue.push(simtypes.Event{
				SimClock: t, PoolID: qID, Action: simtypes.RecvOther,
				Chaintip: pool.Chaintip, NewIDs: ids,
			})
		}
	}
}

func sortByHeight(ids []simtypes.BlockID, tbl *chain.Table) {
	sort.Slice(ids, func(i, j int) bool { return tbl.Height(ids[i]) < tbl.Height(ids[j]) })
}

func sortedScoreIDsByHeight(scores map[simtypes.BlockID]*simtypes.Score, tbl *chain.Table) []simtypes.BlockID {
	ids := make([]simtypes.BlockID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		hi, hj := tbl.Height(ids[i]), tbl.Height(ids[j])
		if hi != hj {
			return hi < hj
		}
		return ids[i] < ids[j]
	})
	return ids
}
