package simtypes

import "math/big"

// Score is a pool's subjective record of a block (spec 3 "Score").
type Score struct {
	BlockID BlockID

	// SimClock is a copy of the event time that produced this score; used
	// for event-ordering audits.
	SimClock float64

	// LocalTime is the pool's belief of UTC header time:
	// floor(SimClock + pool.NTPDrift).
	LocalTime int64

	DiffScore    *big.Int
	CumDiffScore *big.Int

	IsHeadPath bool

	// Chaintip is the chaintip the pool adopted when this block was first
	// walked onto its head path (spec 4.4 step 8). A score that has never
	// been on the pool's head path keeps it nil, whether resolved or not.
	Chaintip *BlockID
}

// Resolved reports whether this score has both diff values assigned.
func (s *Score) Resolved() bool {
	return s != nil && s.DiffScore != nil && s.CumDiffScore != nil
}

// Clone returns a deep copy safe to hand out as a read-only view.
func (s *Score) Clone() *Score {
	if s == nil {
		return nil
	}
	cp := *s
	cp.DiffScore = cloneBig(s.DiffScore)
	cp.CumDiffScore = cloneBig(s.CumDiffScore)
	if s.Chaintip != nil {
		id := *s.Chaintip
		cp.Chaintip = &id
	}
	return &cp
}
