package agent

import (
	"fmt"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// ScoringRegistry names the scoring-function plug-ins a strategy manifest
// entry may reference (spec 4.4.2: "uncle-, time-, and depth-based bonuses/
// penalties" are given as examples). Each constructor returns a stateless
// package-level function, so plug-ins never share mutable state across pools.
var ScoringRegistry = map[string]func() simtypes.ScoringFunc{
	"uncleBonus":   func() simtypes.ScoringFunc { return uncleBonus },
	"timeBonus":    func() simtypes.ScoringFunc { return timeBonus },
	"depthPenalty": func() simtypes.ScoringFunc { return depthPenalty },
}

// BuildScoring resolves an ordered list of scoring-function names from a
// strategy manifest entry into the closures the agent sums into diffScore.
func BuildScoring(names []string) ([]simtypes.NamedScoringFunc, error) {
	out := make([]simtypes.NamedScoringFunc, 0, len(names))
	for _, name := range names {
		ctor, ok := ScoringRegistry[name]
		if !ok {
			return nil, fmt.Errorf("agent: unknown scoring function %q", name)
		}
		out = append(out, simtypes.NamedScoringFunc{Name: name, Fn: ctor()})
	}
	return out, nil
}

// siblingAt returns another scored block at id's height, if one exists.
func siblingAt(chain simtypes.ChainView, pool simtypes.PoolView, id simtypes.BlockID) (simtypes.BlockID, bool) {
	h := chain.Height(id)
	for _, other := range pool.Scores.InOrder() {
		if other == id {
			continue
		}
		if chain.Height(other) == h {
			return other, true
		}
	}
	return "", false
}

// uncleBonus rewards a block that is contested at its own height: a pool
// seeing two competing blocks at the same height scores the one it is
// evaluating slightly higher, matching the "uncle" bonus idiom of
// Nakamoto-family scoring variants.
func uncleBonus(chain simtypes.ChainView, pool simtypes.PoolView, id simtypes.BlockID) int64 {
	if _, ok := siblingAt(chain, pool, id); ok {
		return 1
	}
	return 0
}

// timeBonus favors a block over the first already-scored sibling at its
// height when the block's true creation time (Block.SimClock) is earlier.
func timeBonus(chain simtypes.ChainView, pool simtypes.PoolView, id simtypes.BlockID) int64 {
	sib, ok := siblingAt(chain, pool, id)
	if !ok {
		return 0
	}
	b, bok := chain.Block(id)
	s, sok := chain.Block(sib)
	if !bok || !sok {
		return 0
	}
	if b.SimClock < s.SimClock {
		return 1
	}
	return 0
}

// depthPenalty discourages adopting a branch that jumps far ahead of the
// pool's current chaintip in one step.
func depthPenalty(chain simtypes.ChainView, pool simtypes.PoolView, id simtypes.BlockID) int64 {
	tipHeight := chain.Height(pool.Chaintip)
	gap := int64(chain.Height(id)) - int64(tipHeight)
	if gap > 1 {
		return -(gap - 1)
	}
	return 0
}
