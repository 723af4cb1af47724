// Package agent implements the unified pool strategy of spec 4.4: a pure
// function of (event, pool view, chain view) that scores incoming blocks,
// resolves forks, and — for selfish variants — decides when to withhold or
// release a private branch. Decide never mutates its inputs; every state
// change travels back through the returned Decision (spec 9).
package agent

import (
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// Decide runs one invocation of the agent over event for pool, using chain
// as the read-only block graph.
func Decide(event simtypes.Event, pool simtypes.PoolView, chain simtypes.ChainView) simtypes.Decision {
	if last := event.LastNewID(); last != "" {
		if s := pool.Scores.Get(last); s.Resolved() {
			return simtypes.NewDecision()
		}
	}
	if event.Action == simtypes.RecvOther && len(event.NewIDs) == 0 {
		return simtypes.NewDecision()
	}

	fresh := make(map[simtypes.BlockID]*simtypes.Score)
	var requestIDs []simtypes.BlockID
	ancestor := pool.Chaintip

	if len(event.NewIDs) > 0 {
		tip := event.NewIDs[len(event.NewIDs)-1]
		br := resolveBranch(tip, pool, chain)
		ancestor = br.ancestor
		requestIDs = br.toRequest
		scoreBranch(br.toScore, ancestor, pool, chain, fresh, event.SimClock)
	}

	scoreDanglingChaintips(pool, chain, fresh, heightOf(chain, event.LastNewID()))

	var dec simtypes.Decision
	if pool.Config.Honest {
		dec = honestDecision(event, pool, chain, fresh, ancestor)
	} else {
		dec = selfishDecision(event, pool, chain, fresh, ancestor)
	}
	dec.RequestIDs = requestIDs
	return dec
}

// branch is the result of walking back from a newly-seen tip (spec 4.4 step
// 2 "resolveBranch").
type branch struct {
	// toScore lists ids needing a tentative score, ascending by height.
	toScore []simtypes.BlockID
	// ancestor is the already-scored, head-path block the walk terminated
	// at, or "" if the walk hit a block missing from the chain first.
	ancestor simtypes.BlockID
	// toRequest lists ids the pool has never seen, to be fetched.
	toRequest []simtypes.BlockID
}

func resolveBranch(tip simtypes.BlockID, pool simtypes.PoolView, chain simtypes.ChainView) branch {
	var rev []simtypes.BlockID
	var toRequest []simtypes.BlockID
	id := tip
	for id != "" {
		if s := pool.Scores.Get(id); s != nil {
			if s.IsHeadPath {
				return branch{toScore: reverseIDs(rev), ancestor: id, toRequest: toRequest}
			}
			// Already scored on some other branch: no need to rescore, but
			// keep walking to find the true common ancestor with headPath.
			b, ok := chain.Block(id)
			if !ok {
				break
			}
			id = b.PrevID
			continue
		}
		b, ok := chain.Block(id)
		if !ok {
			toRequest = append(toRequest, id)
			break
		}
		rev = append(rev, id)
		id = b.PrevID
	}
	return branch{toScore: reverseIDs(rev), toRequest: toRequest}
}

func reverseIDs(ids []simtypes.BlockID) []simtypes.BlockID {
	out := make([]simtypes.BlockID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

// scoreBranch resolves each id in ascending height order, stopping at the
// first unresolvable parent (spec 4.4 step 3).
func scoreBranch(ids []simtypes.BlockID, ancestor simtypes.BlockID, pool simtypes.PoolView, chain simtypes.ChainView, fresh map[simtypes.BlockID]*simtypes.Score, simClock float64) {
	prevID := ancestor
	for _, id := range ids {
		b, ok := chain.Block(id)
		if !ok {
			return
		}
		prevScore := lookupScore(pool, fresh, prevID)
		tentative := &simtypes.Score{
			BlockID:   id,
			SimClock:  simClock,
			LocalTime: int64(math.Floor(simClock + pool.NTPDrift)),
		}
		if !prevScore.Resolved() {
			fresh[id] = tentative
			return
		}
		diff := computeDiffScore(chain, pool, id, b)
		tentative.DiffScore = diff
		tentative.CumDiffScore = new(big.Int).Add(prevScore.CumDiffScore, diff)
		fresh[id] = tentative
		prevID = id
	}
}

// scoreDanglingChaintips retries previously-unresolvable blocks whose parent
// may have been resolved this round, via fixpoint iteration (spec 4.4 step
// 4).
func scoreDanglingChaintips(pool simtypes.PoolView, chain simtypes.ChainView, fresh map[simtypes.BlockID]*simtypes.Score, minHeight simtypes.Height) {
	progress := true
	for progress {
		progress = false
		for _, id := range sortedUnscored(pool.Unscored) {
			height := pool.Unscored[id]
			if height <= minHeight {
				continue
			}
			if s, ok := fresh[id]; ok && s.Resolved() {
				continue
			}
			existing := pool.Scores.Get(id)
			if existing == nil {
				continue
			}
			b, ok := chain.Block(id)
			if !ok {
				continue
			}
			prevScore := lookupScore(pool, fresh, b.PrevID)
			if !prevScore.Resolved() {
				continue
			}
			diff := computeDiffScore(chain, pool, id, b)
			resolved := existing.Clone()
			resolved.DiffScore = diff
			resolved.CumDiffScore = new(big.Int).Add(prevScore.CumDiffScore, diff)
			fresh[id] = resolved
			progress = true
		}
	}
}

func sortedUnscored(m map[simtypes.BlockID]simtypes.Height) []simtypes.BlockID {
	out := make([]simtypes.BlockID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func lookupScore(pool simtypes.PoolView, fresh map[simtypes.BlockID]*simtypes.Score, id simtypes.BlockID) *simtypes.Score {
	if id == "" {
		return nil
	}
	if s, ok := fresh[id]; ok {
		return s
	}
	return pool.Scores.Get(id)
}

func computeDiffScore(chain simtypes.ChainView, pool simtypes.PoolView, id simtypes.BlockID, b *simtypes.Block) *big.Int {
	total := new(big.Int).Set(b.Difficulty)
	for _, sf := range pool.Config.Scoring {
		adj := sf.Fn(chain, pool, id)
		if adj != 0 {
			total = new(big.Int).Add(total, big.NewInt(adj))
		}
	}
	return total
}

func heightOf(chain simtypes.ChainView, id simtypes.BlockID) simtypes.Height {
	if id == "" {
		return -1
	}
	return chain.Height(id)
}

func blockPoolID(id simtypes.BlockID) string {
	s := string(id)
	if i := strings.IndexByte(s, '_'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// bestFreshScore returns the max-cumDiffScore entry among resolved fresh
// scores (spec 4.4 step 5 "findHighestScore"). cumDiffScore is monotone
// along a chain, so the max over all resolved entries is always a branch
// tip. preferOwn breaks exact ties toward ownID (spec step 6, RECV_OWN).
func bestFreshScore(fresh map[simtypes.BlockID]*simtypes.Score, preferOwn bool, ownID string) *simtypes.Score {
	ids := make([]simtypes.BlockID, 0, len(fresh))
	for id := range fresh {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var best *simtypes.Score
	for _, id := range ids {
		s := fresh[id]
		if !s.Resolved() {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		cmp := s.CumDiffScore.Cmp(best.CumDiffScore)
		if cmp > 0 || (cmp == 0 && preferOwn && blockPoolID(id) == ownID) {
			best = s
		}
	}
	return best
}

func scoreOf(pool simtypes.PoolView, fresh map[simtypes.BlockID]*simtypes.Score, id simtypes.BlockID) *simtypes.Score {
	if id == "" {
		return nil
	}
	if s, ok := fresh[id]; ok {
		return s
	}
	return pool.Scores.Get(id)
}
