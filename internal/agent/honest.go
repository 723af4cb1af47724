package agent

import "github.com/bawdyanarchist/minesim/internal/simtypes"

// honestDecision implements spec 4.4 step 6.
func honestDecision(event simtypes.Event, pool simtypes.PoolView, chain simtypes.ChainView, fresh map[simtypes.BlockID]*simtypes.Score, ancestor simtypes.BlockID) simtypes.Decision {
	dec := simtypes.NewDecision()

	currentScore := pool.Scores.Get(pool.Chaintip)
	best := bestFreshScore(fresh, event.Action == simtypes.RecvOwn, pool.ID)

	newChaintip := pool.Chaintip
	if best != nil {
		cmp := 1
		if currentScore.Resolved() {
			cmp = best.CumDiffScore.Cmp(currentScore.CumDiffScore)
		}
		ownWins := event.Action == simtypes.RecvOwn && blockPoolID(best.BlockID) == pool.ID
		if cmp > 0 || (cmp == 0 && ownWins) {
			newChaintip = best.BlockID
		}
	}

	if event.Action == simtypes.RecvOwn {
		ownID := event.LastNewID()
		if s := fresh[ownID]; s != nil {
			ts := s.LocalTime
			dec.Timestamp = &ts
		}
		dec.BroadcastIDs = append(dec.BroadcastIDs, ownID)
	}

	if newChaintip != pool.Chaintip {
		dec.Chaintip = &newChaintip
	}
	for id, s := range fresh {
		dec.Scores[id] = s
	}
	propagateHeadPath(&dec, pool, chain, ancestor, pool.Chaintip, newChaintip)
	return dec
}
