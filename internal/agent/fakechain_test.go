package agent

import (
	"math/big"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// fakeChain is a minimal in-memory simtypes.ChainView for agent tests.
type fakeChain struct {
	blocks map[simtypes.BlockID]*simtypes.Block
}

func newFakeChain() *fakeChain {
	return &fakeChain{blocks: make(map[simtypes.BlockID]*simtypes.Block)}
}

func (c *fakeChain) add(id, prev simtypes.BlockID, height simtypes.Height, poolID string, diff int64, broadcast simtypes.Broadcast) *simtypes.Block {
	d := big.NewInt(diff)
	cum := new(big.Int).Set(d)
	if p, ok := c.blocks[prev]; ok {
		cum = new(big.Int).Add(p.CumDifficulty, d)
	}
	b := &simtypes.Block{
		ID: id, PrevID: prev, Height: height, PoolID: poolID,
		Difficulty: d, CumDifficulty: cum, NxtDifficulty: big.NewInt(diff),
		Broadcast: broadcast,
	}
	c.blocks[id] = b
	return b
}

func (c *fakeChain) Block(id simtypes.BlockID) (*simtypes.Block, bool) {
	b, ok := c.blocks[id]
	return b, ok
}

func (c *fakeChain) Height(id simtypes.BlockID) simtypes.Height {
	if b, ok := c.blocks[id]; ok {
		return b.Height
	}
	return -1
}

func (c *fakeChain) Exists(id simtypes.BlockID) bool {
	_, ok := c.blocks[id]
	return ok
}

func rootScore(id simtypes.BlockID, cum int64) *simtypes.Score {
	return &simtypes.Score{
		BlockID: id, DiffScore: big.NewInt(0), CumDiffScore: big.NewInt(cum),
		IsHeadPath: true, Chaintip: &id,
	}
}

func honestStrategy() simtypes.Strategy { return simtypes.Strategy{Honest: true} }

func selfishStrategy(kThresh, retort int) simtypes.Strategy {
	return simtypes.Strategy{Honest: false, KThresh: kThresh, RetortPolicy: retort}
}
