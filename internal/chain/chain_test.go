package chain

import (
	"math/big"
	"testing"

	"github.com/bawdyanarchist/minesim/internal/difficulty"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

func bootstrapChain(n int) []*simtypes.Block {
	var out []*simtypes.Block
	cum := big.NewInt(0)
	var prev simtypes.BlockID
	for i := 0; i < n; i++ {
		ts := int64(i * 120)
		diff := big.NewInt(100)
		cum = new(big.Int).Add(cum, diff)
		id := simtypes.NewBlockID(simtypes.Height(i), "HH0")
		out = append(out, &simtypes.Block{
			ID: id, Height: simtypes.Height(i), PoolID: "HH0", PrevID: prev,
			Timestamp: &ts, Difficulty: diff, CumDifficulty: new(big.Int).Set(cum),
			NxtDifficulty: big.NewInt(100),
		})
		prev = id
	}
	return out
}

func testParams() difficulty.Params {
	return difficulty.Params{TargetSeconds: 120, Window: 8, Lag: 2, Cut: 1}
}

func TestSeedBuildsWindowForTip(t *testing.T) {
	tab := New(testParams())
	tip, err := tab.Seed(bootstrapChain(15))
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	w := tab.Window(tip)
	if len(w) == 0 {
		t.Fatal("expected non-empty window for bootstrap tip")
	}
}

func TestExtendWindowCopiesAndAppends(t *testing.T) {
	tab := New(testParams())
	tip, _ := tab.Seed(bootstrapChain(15))
	parentLen := len(tab.Window(tip))

	ts := int64(2000)
	child := &simtypes.Block{
		ID: simtypes.NewBlockID(15, "P0"), Height: 15, PoolID: "P0", PrevID: tip,
		Timestamp: &ts, Difficulty: big.NewInt(100),
		CumDifficulty: new(big.Int).Add(mustBlock(t, tab, tip).CumDifficulty, big.NewInt(100)),
	}
	tab.Put(child)
	w := tab.ExtendWindow(child)
	if len(w) != parentLen+1 && len(w) != tab.params.MaxLen() {
		t.Errorf("ExtendWindow length = %d, want parent+1 (capped at MaxLen)", len(w))
	}
	if w[len(w)-1].Timestamp != ts {
		t.Errorf("ExtendWindow last entry timestamp = %d, want %d", w[len(w)-1].Timestamp, ts)
	}
}

func mustBlock(t *testing.T, tab *Table, id simtypes.BlockID) *simtypes.Block {
	t.Helper()
	b, ok := tab.Block(id)
	if !ok {
		t.Fatalf("block %s not found", id)
	}
	return b
}

func TestPruneDropsUnreferencedWindows(t *testing.T) {
	tab := New(testParams())
	tip, _ := tab.Seed(bootstrapChain(15))
	_ = tab.Window(tip)
	tab.windows["orphan_window"] = simtypes.DifficultyWindow{}

	tab.Prune([]simtypes.BlockID{tip})
	if _, ok := tab.windows["orphan_window"]; ok {
		t.Error("Prune should have dropped the unreferenced window")
	}
	if _, ok := tab.windows[tip]; !ok {
		t.Error("Prune must keep the live tip's window")
	}
}
