// Package difficulty implements the cut-trimmed rolling-window difficulty
// calculation of spec 4.6, a port of Monero's next-difficulty algorithm.
package difficulty

import (
	"errors"
	"math/big"
	"sort"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// Params are the consensus-shaped difficulty parameters, validated the way
// the pack's difficulty-policy references validate theirs (a Params struct
// with a Validate() error method), even though the retarget algorithm itself
// here is the Monero cut-trim, not an EMA.
type Params struct {
	// TargetSeconds is the desired average seconds between blocks.
	TargetSeconds int64
	// Window (W) is the number of samples kept after dropping the lag; the
	// cut trimming then keeps at most W-2*Cut of them for the retarget.
	Window int
	// Lag (L) is the number of most-recent samples dropped before trimming.
	Lag int
	// Cut is the number of outliers trimmed from each end of the sorted
	// window.
	Cut int
}

// Validate checks the parameters are self-consistent.
func (p Params) Validate() error {
	if p.TargetSeconds <= 0 {
		return errors.New("difficulty: TargetSeconds must be > 0")
	}
	if p.Window <= 0 {
		return errors.New("difficulty: Window must be > 0")
	}
	if p.Lag < 0 {
		return errors.New("difficulty: Lag must be >= 0")
	}
	if p.Cut < 0 || 2*p.Cut >= p.Window {
		return errors.New("difficulty: Cut must satisfy 0 <= 2*Cut < Window")
	}
	return nil
}

// MaxLen is the longest window this Params will ever need retained.
func (p Params) MaxLen() int {
	return p.Window + p.Lag
}

var one = big.NewInt(1)

// NextDifficulty computes the next-block difficulty from a chaintip's
// rolling window, per spec 4.6.
//
// Steps: take the last W+L entries, drop the last L (lag), sort the
// remainder by timestamp ascending, cut-trim outliers from both ends, then
// nextDifficulty = ceil(totalWork * targetSeconds / timeSpan), clamped >= 1.
func NextDifficulty(window simtypes.DifficultyWindow, p Params) *big.Int {
	entries := window
	if len(entries) > p.MaxLen() {
		entries = entries[len(entries)-p.MaxLen():]
	}
	if p.Lag > 0 {
		if len(entries) <= p.Lag {
			entries = nil
		} else {
			entries = entries[:len(entries)-p.Lag]
		}
	}
	if len(entries) <= 1 {
		return big.NewInt(1)
	}

	sorted := make(simtypes.DifficultyWindow, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	n := len(sorted)
	var cutBegin, cutEnd int
	trimmed := p.Window - 2*p.Cut
	if n <= trimmed {
		cutBegin, cutEnd = 0, n
	} else {
		cutBegin = (n - trimmed + 1) / 2
		cutEnd = cutBegin + trimmed
	}
	if cutEnd > n {
		cutEnd = n
	}
	if cutEnd-cutBegin <= 1 {
		return big.NewInt(1)
	}

	timeSpan := sorted[cutEnd-1].Timestamp - sorted[cutBegin].Timestamp
	if timeSpan < 1 {
		timeSpan = 1
	}

	totalWork := new(big.Int).Sub(sorted[cutEnd-1].CumDifficulty, sorted[cutBegin].CumDifficulty)
	if totalWork.Sign() < 0 {
		totalWork = big.NewInt(0)
	}

	// ceil(totalWork * targetSeconds / timeSpan)
	num := new(big.Int).Mul(totalWork, big.NewInt(p.TargetSeconds))
	den := big.NewInt(timeSpan)
	next := new(big.Int)
	rem := new(big.Int)
	next.DivMod(num, den, rem)
	if rem.Sign() != 0 {
		next.Add(next, one)
	}
	if next.Cmp(one) < 0 {
		return big.NewInt(1)
	}
	return next
}

// ReconstructWindow walks prev links up to W+L entries and reverses them into
// chronological order, used on a cache miss (spec 4.6).
func ReconstructWindow(chain simtypes.ChainView, tip simtypes.BlockID, p Params) simtypes.DifficultyWindow {
	maxLen := p.MaxLen()
	var rev simtypes.DifficultyWindow
	id := tip
	for len(rev) < maxLen {
		b, ok := chain.Block(id)
		if !ok {
			break
		}
		ts := b.SimClock
		var tsInt int64
		if b.Timestamp != nil {
			tsInt = *b.Timestamp
		} else {
			tsInt = int64(ts)
		}
		rev = append(rev, simtypes.WindowEntry{Timestamp: tsInt, CumDifficulty: b.CumDifficulty})
		if b.PrevID == "" || b.PrevID == id {
			break
		}
		id = b.PrevID
	}
	out := make(simtypes.DifficultyWindow, len(rev))
	for i, e := range rev {
		out[len(rev)-1-i] = e
	}
	return out
}
