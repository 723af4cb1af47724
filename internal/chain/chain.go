// Package chain implements the append-only block table and the per-chaintip
// difficulty-window cache that the event engine exclusively owns (spec 3
// "Lifecycle", spec 5 "Shared resource policy").
package chain

import (
	"fmt"
	"math/big"

	"github.com/bawdyanarchist/minesim/internal/difficulty"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// Table is the engine's mutable block table plus difficulty-window cache. It
// satisfies simtypes.ChainView for read-only access from the agent.
type Table struct {
	blocks map[simtypes.BlockID]*simtypes.Block
	// windows caches the reconstructed DifficultyWindow per chaintip, built
	// incrementally during integration and pruned whenever the engine calls
	// Prune (every pruneInterval integrated events; spec 4.6).
	windows map[simtypes.BlockID]simtypes.DifficultyWindow
	params  difficulty.Params
}

// New returns an empty table parameterized by the round's difficulty config.
func New(params difficulty.Params) *Table {
	return &Table{
		blocks:  make(map[simtypes.BlockID]*simtypes.Block),
		windows: make(map[simtypes.BlockID]simtypes.DifficultyWindow),
		params:  params,
	}
}

// Block implements simtypes.ChainView.
func (t *Table) Block(id simtypes.BlockID) (*simtypes.Block, bool) {
	b, ok := t.blocks[id]
	return b, ok
}

// Height implements simtypes.ChainView.
func (t *Table) Height(id simtypes.BlockID) simtypes.Height {
	if b, ok := t.blocks[id]; ok {
		return b.Height
	}
	return -1
}

// Exists implements simtypes.ChainView.
func (t *Table) Exists(id simtypes.BlockID) bool {
	_, ok := t.blocks[id]
	return ok
}

// Put inserts a block. Blocks are never mutated in place once inserted here
// except for the Timestamp/NxtDifficulty/Broadcast fields the integration
// step fills in (spec 3 "immutable once nxtDifficulty is set").
func (t *Table) Put(b *simtypes.Block) {
	t.blocks[b.ID] = b
}

// Len returns the number of blocks in the table.
func (t *Table) Len() int {
	return len(t.blocks)
}

// AllBlocks returns the live block map. Callers must treat it as read-only;
// it exists for metrics walks and tests that need to range over every block.
func (t *Table) AllBlocks() map[simtypes.BlockID]*simtypes.Block {
	return t.blocks
}

// Seed installs the bootstrap chain (already-linked Block records, oldest
// first) and the reconstructed window for the bootstrap tip.
func (t *Table) Seed(bootstrap []*simtypes.Block) (simtypes.BlockID, error) {
	if len(bootstrap) == 0 {
		return "", fmt.Errorf("chain: empty bootstrap chain")
	}
	for _, b := range bootstrap {
		t.blocks[b.ID] = b
	}
	tip := bootstrap[len(bootstrap)-1].ID
	window := difficulty.ReconstructWindow(t, tip, t.params)
	t.windows[tip] = window
	// spec 4.1 "Seeding": the engine computes nxtDifficulty for the
	// bootstrap tip before scheduling any HASHER_FIND.
	t.blocks[tip].NxtDifficulty = difficulty.NextDifficulty(window, t.params)
	return tip, nil
}

// Window returns the cached DifficultyWindow for tip, reconstructing it by
// walking prev links on a cache miss (spec 4.6).
func (t *Table) Window(tip simtypes.BlockID) simtypes.DifficultyWindow {
	if w, ok := t.windows[tip]; ok {
		return w
	}
	w := difficulty.ReconstructWindow(t, tip, t.params)
	t.windows[tip] = w
	return w
}

// ExtendWindow builds and caches the window for a newly-timestamped block by
// copying its parent's window and appending this block's own sample (spec
// 4.5 step 2: "extend the difficulty window (copy the parent's window,
// drop-head + append)").
func (t *Table) ExtendWindow(b *simtypes.Block) simtypes.DifficultyWindow {
	parent := t.Window(b.PrevID)
	ts := int64(b.SimClock)
	if b.Timestamp != nil {
		ts = *b.Timestamp
	}
	next := parent.Clone().Append(simtypes.WindowEntry{Timestamp: ts, CumDifficulty: b.CumDifficulty}, t.params.MaxLen())
	t.windows[b.ID] = next
	return next
}

// NextDifficulty computes the next-block difficulty for tip from its cached
// or reconstructed window (spec 4.6).
func (t *Table) NextDifficulty(tip simtypes.BlockID) *big.Int {
	return difficulty.NextDifficulty(t.Window(tip), t.params)
}

// Prune drops any cached window not referenced by one of the given live
// chaintips or their immediate parent (spec 5: "DifficultyWindows not
// referenced by any pool's current tip or its parent are pruned after every
// event").
func (t *Table) Prune(liveTips []simtypes.BlockID) {
	keep := make(map[simtypes.BlockID]struct{}, len(liveTips)*2)
	for _, tip := range liveTips {
		keep[tip] = struct{}{}
		if b, ok := t.blocks[tip]; ok {
			keep[b.PrevID] = struct{}{}
		}
	}
	for id := range t.windows {
		if _, ok := keep[id]; !ok {
			delete(t.windows, id)
		}
	}
}
