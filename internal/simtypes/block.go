// Package simtypes holds the data model shared by the engine, the agent and
// the difficulty cache: blocks, per-pool scores, pools and events.
package simtypes

import (
	"fmt"
	"math/big"
)

// Height is a block height, counted from the bootstrap root at zero.
type Height int64

// BlockID is the canonical "<height>_<poolId>" identifier of a block.
type BlockID string

// NewBlockID formats the canonical id for a block mined by poolID at height.
func NewBlockID(height Height, poolID string) BlockID {
	return BlockID(fmt.Sprintf("%d_%s", height, poolID))
}

// Broadcast is the tri-state visibility of a block.
type Broadcast int

const (
	// BroadcastUnset means the block has not been resolved as public or private.
	BroadcastUnset Broadcast = iota
	BroadcastPrivate
	BroadcastPublic
)

// Block is immutable once NxtDifficulty is set; Broadcast and Timestamp are
// filled in later by the integration step (spec 4.5).
type Block struct {
	ID     BlockID
	Height Height
	PoolID string
	PrevID BlockID

	// SimClock is the true creation time in the simulated clock.
	SimClock float64

	// Timestamp is the integer-second header time, which a selfish agent
	// may manipulate; it is nil until the agent assigns one (spec 4.5 step 2).
	Timestamp *int64

	Difficulty    *big.Int
	CumDifficulty *big.Int
	NxtDifficulty *big.Int

	Broadcast Broadcast
}

// Clone returns a deep copy safe to hand to an agent as a read-only view.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	cp := *b
	if b.Timestamp != nil {
		t := *b.Timestamp
		cp.Timestamp = &t
	}
	cp.Difficulty = cloneBig(b.Difficulty)
	cp.CumDifficulty = cloneBig(b.CumDifficulty)
	cp.NxtDifficulty = cloneBig(b.NxtDifficulty)
	return &cp
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
