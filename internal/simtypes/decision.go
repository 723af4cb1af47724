package simtypes

// Decision is the value an agent invocation returns (spec 4.4 "Decision
// object"). Every field is nullable/zero-meaning "no change"; the engine
// (spec 4.5) is the only thing that ever applies a Decision to live state —
// the agent itself must not mutate its inputs.
type Decision struct {
	Chaintip *BlockID
	HonTip   *BlockID

	// Timestamp, if non-nil, is written onto the block at event.NewIDs[last]
	// (spec 4.5 step 2).
	Timestamp *int64

	// Scores are newly created or updated score entries to merge into the
	// pool's score map, keyed by block id.
	Scores map[BlockID]*Score

	BroadcastIDs []BlockID
	RequestIDs   []BlockID
}

// NewDecision returns a zero Decision (no changes).
func NewDecision() Decision {
	return Decision{Scores: make(map[BlockID]*Score)}
}
