package agent

import "github.com/bawdyanarchist/minesim/internal/simtypes"

// propagateHeadPath implements spec 4.4 step 8: walk the chosen chaintip back
// to ancestor marking isHeadPath=true, and if that walk did not pass through
// the old chaintip (a reorg), walk the old chaintip back to ancestor marking
// isHeadPath=false.
func propagateHeadPath(dec *simtypes.Decision, pool simtypes.PoolView, chain simtypes.ChainView, ancestor, oldChaintip, newChaintip simtypes.BlockID) {
	if newChaintip == oldChaintip {
		return
	}

	passedOld := false
	id := newChaintip
	for id != "" && id != ancestor {
		if id == oldChaintip {
			passedOld = true
		}
		s := scoreForDecision(dec, pool, id)
		s.IsHeadPath = true
		if s.Chaintip == nil {
			s.Chaintip = &newChaintip
		}
		dec.Scores[id] = s
		b, ok := chain.Block(id)
		if !ok {
			break
		}
		id = b.PrevID
	}
	if id == oldChaintip {
		passedOld = true
	}

	if !passedOld {
		id := oldChaintip
		for id != "" && id != ancestor {
			s := scoreForDecision(dec, pool, id)
			s.IsHeadPath = false
			dec.Scores[id] = s
			b, ok := chain.Block(id)
			if !ok {
				break
			}
			id = b.PrevID
		}
	}
}

func scoreForDecision(dec *simtypes.Decision, pool simtypes.PoolView, id simtypes.BlockID) *simtypes.Score {
	if s, ok := dec.Scores[id]; ok {
		return s
	}
	if s := pool.Scores.Get(id); s != nil {
		return s.Clone()
	}
	return &simtypes.Score{BlockID: id}
}
