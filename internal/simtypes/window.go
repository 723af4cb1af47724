package simtypes

import "math/big"

// WindowEntry is one (timestamp, cumDifficulty) sample in a difficulty
// window (spec 3/4.6).
type WindowEntry struct {
	Timestamp     int64
	CumDifficulty *big.Int
}

// DifficultyWindow is the per-chaintip rolling array of timestamp/cumulative
// difficulty samples, length <= W+L, oldest first.
type DifficultyWindow []WindowEntry

// Clone returns a deep copy.
func (w DifficultyWindow) Clone() DifficultyWindow {
	cp := make(DifficultyWindow, len(w))
	for i, e := range w {
		cp[i] = WindowEntry{Timestamp: e.Timestamp, CumDifficulty: cloneBig(e.CumDifficulty)}
	}
	return cp
}

// Append returns a new window with e appended, dropping the oldest entry if
// the result would exceed maxLen (spec 4.5 step 2: "drop-head + append").
func (w DifficultyWindow) Append(e WindowEntry, maxLen int) DifficultyWindow {
	out := append(DifficultyWindow{}, w...)
	out = append(out, e)
	if len(out) > maxLen {
		out = out[len(out)-maxLen:]
	}
	return out
}
