package difficulty

import (
	"math/big"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// fakeChain is a minimal in-memory simtypes.ChainView for difficulty tests.
type fakeChain struct {
	blocks map[simtypes.BlockID]*simtypes.Block
}

func newFakeChain() *fakeChain {
	return &fakeChain{blocks: make(map[simtypes.BlockID]*simtypes.Block)}
}

func (c *fakeChain) addRoot(id simtypes.BlockID, height simtypes.Height, ts int64, diff int64) {
	d := big.NewInt(diff)
	c.blocks[id] = &simtypes.Block{
		ID: id, Height: height, Timestamp: &ts,
		Difficulty: d, CumDifficulty: new(big.Int).Set(d),
	}
}

func (c *fakeChain) addChild(id, prev simtypes.BlockID, height simtypes.Height, ts int64, diff int64) {
	p := c.blocks[prev]
	d := big.NewInt(diff)
	cum := new(big.Int).Add(p.CumDifficulty, d)
	c.blocks[id] = &simtypes.Block{
		ID: id, PrevID: prev, Height: height, Timestamp: &ts,
		Difficulty: d, CumDifficulty: cum,
	}
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
