package agent

import "github.com/bawdyanarchist/minesim/internal/simtypes"

// selfishDecision implements the selfish-mining family of spec 4.4.1, driven
// by the two integer knobs kThresh and retortPolicy rather than a per-variant
// switch.
func selfishDecision(event simtypes.Event, pool simtypes.PoolView, chain simtypes.ChainView, fresh map[simtypes.BlockID]*simtypes.Score, ancestor simtypes.BlockID) simtypes.Decision {
	dec := simtypes.NewDecision()

	prevHonTip := pool.HonTip
	honTip := prevHonTip
	var honAdded int64
	if event.Action == simtypes.RecvOther {
		if cand := bestFreshScore(fresh, false, pool.ID); cand != nil {
			honScore := scoreOf(pool, fresh, honTip)
			if !honScore.Resolved() || cand.CumDiffScore.Cmp(honScore.CumDiffScore) > 0 {
				oldHeight := heightOf(chain, honTip)
				newHeight := heightOf(chain, cand.BlockID)
				if d := int64(newHeight - oldHeight); d > 0 {
					honAdded = d
				}
				honTip = cand.BlockID
			}
		}
	}

	selfTip := pool.Chaintip
	if event.Action == simtypes.RecvOwn {
		selfTip = event.LastNewID()
	}

	selfishAncestor := commonAncestorForSelfish(honTip, selfTip, pool, chain)
	ancestorHeight := heightOf(chain, selfishAncestor)
	honLength := int64(heightOf(chain, honTip) - ancestorHeight)
	selfLength := int64(heightOf(chain, selfTip) - ancestorHeight)

	kThresh := int64(pool.Config.KThresh)
	kNew := selfLength - honLength
	zeroPrimeBump := int64(1)
	if selfLength > 1 && kNew == 1 && event.Action == simtypes.RecvOwn {
		zeroPrimeBump = 2
	}

	abandonThresh := honLength * (minInt64(0, kThresh) - kNew)
	claimThresh := honLength * (maxInt64(0, kThresh) - kNew + zeroPrimeBump)
	retortCount := minInt64(int64(pool.Config.RetortPolicy)*honAdded, honAdded+1)

	newChaintip := pool.Chaintip
	var broadcastIDs []simtypes.BlockID

	if abandonThresh > 0 || selfLength == 0 {
		newChaintip = honTip
	} else {
		private := unbroadcastPrivateChain(selfTip, chain)
		switch {
		case claimThresh > 0:
			broadcastIDs = private
		case retortCount > 0:
			n := retortCount
			if n > int64(len(private)) {
				n = int64(len(private))
			}
			broadcastIDs = private[:n]
		}
		if event.Action == simtypes.RecvOwn {
			newChaintip = selfTip
		}
	}

	if len(broadcastIDs) > 0 {
		tipID := broadcastIDs[len(broadcastIDs)-1]
		tipScore := scoreOf(pool, fresh, tipID)
		honScore := scoreOf(pool, fresh, honTip)
		if tipScore.Resolved() && (!honScore.Resolved() || tipScore.CumDiffScore.Cmp(honScore.CumDiffScore) > 0) {
			honTip = tipID
		}
	}

	if event.Action == simtypes.RecvOwn {
		if s := fresh[event.LastNewID()]; s != nil {
			ts := s.LocalTime
			dec.Timestamp = &ts
		}
	}

	if newChaintip != pool.Chaintip {
		dec.Chaintip = &newChaintip
	}
	if honTip != prevHonTip {
		dec.HonTip = &honTip
	}
	dec.BroadcastIDs = broadcastIDs
	for id, s := range fresh {
		dec.Scores[id] = s
	}
	propagateHeadPath(&dec, pool, chain, ancestor, pool.Chaintip, newChaintip)
	return dec
}

// commonAncestorForSelfish walks back from honTip to the nearest head-path
// score, with the concurrent-find correction of spec 4.4.1.
func commonAncestorForSelfish(honTip, selfTip simtypes.BlockID, pool simtypes.PoolView, chain simtypes.ChainView) simtypes.BlockID {
	start := honTip
	if heightOf(chain, selfTip) == heightOf(chain, honTip) {
		if s := pool.Scores.Get(honTip); s != nil && s.IsHeadPath {
			if b, ok := chain.Block(honTip); ok {
				start = b.PrevID
			}
		}
	}
	id := start
	for id != "" {
		if s := pool.Scores.Get(id); s != nil && s.IsHeadPath {
			return id
		}
		b, ok := chain.Block(id)
		if !ok {
			break
		}
		id = b.PrevID
	}
	return id
}

// unbroadcastPrivateChain collects the consecutive unbroadcast blocks from
// tip back to the first already-public ancestor, ascending by height (spec
// 4.4.1).
func unbroadcastPrivateChain(tip simtypes.BlockID, chain simtypes.ChainView) []simtypes.BlockID {
	var rev []simtypes.BlockID
	id := tip
	for id != "" {
		b, ok := chain.Block(id)
		if !ok || b.Broadcast == simtypes.BroadcastPublic {
			break
		}
		rev = append(rev, id)
		id = b.PrevID
	}
	return reverseIDs(rev)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
