package agent

import (
	"math/big"
	"testing"

	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

func newPoolWithRoot(id string, cfg simtypes.Strategy, root simtypes.BlockID) *simtypes.Pool {
	p := simtypes.NewPool(id, 1.0, 100, 0, root, cfg)
	p.Scores.Put(root, rootScore(root, 100))
	return p
}

func TestHonestExtendsChainOnRecvOwn(t *testing.T) {
	chain := newFakeChain()
	chain.add("0_HH0", "", 0, "HH0", 100, simtypes.BroadcastPublic)
	chain.add("1_P0", "0_HH0", 1, "P0", 100, simtypes.BroadcastUnset)

	pool := newPoolWithRoot("P0", honestStrategy(), "0_HH0")
	event := simtypes.Event{SimClock: 10, PoolID: "P0", Action: simtypes.RecvOwn, Chaintip: "0_HH0", NewIDs: []simtypes.BlockID{"1_P0"}}

	dec := Decide(event, pool.View(), chain)

	if dec.Chaintip == nil || *dec.Chaintip != "1_P0" {
		t.Fatalf("Chaintip = %v, want 1_P0", dec.Chaintip)
	}
	if dec.Timestamp == nil {
		t.Error("expected Timestamp to be set on RECV_OWN")
	}
	if len(dec.BroadcastIDs) != 1 || dec.BroadcastIDs[0] != "1_P0" {
		t.Errorf("BroadcastIDs = %v, want [1_P0]", dec.BroadcastIDs)
	}
	s := dec.Scores["1_P0"]
	if s == nil || !s.Resolved() || !s.IsHeadPath {
		t.Fatalf("score for 1_P0 not resolved/headPath: %+v", s)
	}
	if s.CumDiffScore.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("CumDiffScore = %v, want 200", s.CumDiffScore)
	}
}

func TestAlreadyScoredShortCircuit(t *testing.T) {
	chain := newFakeChain()
	chain.add("0_HH0", "", 0, "HH0", 100, simtypes.BroadcastPublic)
	chain.add("1_P0", "0_HH0", 1, "P0", 100, simtypes.BroadcastUnset)

	pool := newPoolWithRoot("P0", honestStrategy(), "0_HH0")
	pool.Scores.Put("1_P0", &simtypes.Score{
		BlockID: "1_P0", DiffScore: big.NewInt(100), CumDiffScore: big.NewInt(200), IsHeadPath: true,
	})

	event := simtypes.Event{SimClock: 10, PoolID: "P0", Action: simtypes.RecvOwn, NewIDs: []simtypes.BlockID{"1_P0"}}
	dec := Decide(event, pool.View(), chain)

	if dec.Chaintip != nil {
		t.Error("expected no chaintip change on already-scored short-circuit")
	}
	if len(dec.Scores) != 0 {
		t.Errorf("expected empty Scores, got %v", dec.Scores)
	}
}

func TestMissingBlockSchedulesRequest(t *testing.T) {
	chain := newFakeChain()
	chain.add("0_HH0", "", 0, "HH0", 100, simtypes.BroadcastPublic)

	pool := newPoolWithRoot("P0", honestStrategy(), "0_HH0")
	event := simtypes.Event{SimClock: 10, PoolID: "P0", Action: simtypes.RecvOther, NewIDs: []simtypes.BlockID{"5_P1"}}
	dec := Decide(event, pool.View(), chain)

	if len(dec.RequestIDs) != 1 || dec.RequestIDs[0] != "5_P1" {
		t.Fatalf("RequestIDs = %v, want [5_P1]", dec.RequestIDs)
	}
	if dec.Chaintip != nil {
		t.Error("expected no chaintip change when the referenced block is unresolvable")
	}
}

func TestEmptyNewIDsOnRecvOtherIsNoop(t *testing.T) {
	chain := newFakeChain()
	chain.add("0_HH0", "", 0, "HH0", 100, simtypes.BroadcastPublic)
	pool := newPoolWithRoot("P0", honestStrategy(), "0_HH0")

	event := simtypes.Event{SimClock: 10, PoolID: "P0", Action: simtypes.RecvOther}
	dec := Decide(event, pool.View(), chain)

	if dec.Chaintip != nil || len(dec.Scores) != 0 || len(dec.RequestIDs) != 0 {
		t.Errorf("expected full no-op Decision, got %+v", dec)
	}
}

func TestSelfishZeroHonLengthNoBroadcast(t *testing.T) {
	chain := newFakeChain()
	chain.add("0_HH0", "", 0, "HH0", 100, simtypes.BroadcastPublic)
	chain.add("1_P0", "0_HH0", 1, "P0", 100, simtypes.BroadcastUnset)

	pool := newPoolWithRoot("P0", selfishStrategy(1, 1), "0_HH0")
	event := simtypes.Event{SimClock: 10, PoolID: "P0", Action: simtypes.RecvOwn, NewIDs: []simtypes.BlockID{"1_P0"}}
	dec := Decide(event, pool.View(), chain)

	if len(dec.BroadcastIDs) != 0 {
		t.Errorf("expected no broadcast with honLength=0, got %v", dec.BroadcastIDs)
	}
	if dec.Chaintip == nil || *dec.Chaintip != "1_P0" {
		t.Errorf("Chaintip = %v, want private tip 1_P0", dec.Chaintip)
	}
	if dec.HonTip != nil {
		t.Errorf("expected honTip unchanged, got %v", dec.HonTip)
	}
}

func TestSelfishClaimsOnTieWithHonest(t *testing.T) {
	chain := newFakeChain()
	chain.add("0_HH0", "", 0, "HH0", 100, simtypes.BroadcastPublic)
	chain.add("1_P0", "0_HH0", 1, "P0", 100, simtypes.BroadcastUnset)
	chain.add("1_HH1", "0_HH0", 1, "HH1", 100, simtypes.BroadcastPublic)

	pool := newPoolWithRoot("P0", selfishStrategy(1, 1), "0_HH0")
	pool.Chaintip = "1_P0"
	pool.Scores.Put("1_P0", &simtypes.Score{
		BlockID: "1_P0", DiffScore: big.NewInt(100), CumDiffScore: big.NewInt(200), IsHeadPath: true,
	})

	event := simtypes.Event{SimClock: 20, PoolID: "P0", Action: simtypes.RecvOther, NewIDs: []simtypes.BlockID{"1_HH1"}}
	dec := Decide(event, pool.View(), chain)

	if len(dec.BroadcastIDs) != 1 || dec.BroadcastIDs[0] != "1_P0" {
		t.Fatalf("BroadcastIDs = %v, want claim of [1_P0] on a tie", dec.BroadcastIDs)
	}
	if dec.HonTip == nil || *dec.HonTip != "1_HH1" {
		t.Errorf("HonTip = %v, want 1_HH1", dec.HonTip)
	}
}

func TestSelfishAbandonsWhenSelfLengthZero(t *testing.T) {
	chain := newFakeChain()
	chain.add("0_HH0", "", 0, "HH0", 100, simtypes.BroadcastPublic)
	chain.add("1_HH1", "0_HH0", 1, "HH1", 100, simtypes.BroadcastPublic)
	chain.add("2_HH1", "1_HH1", 2, "HH1", 100, simtypes.BroadcastPublic)

	pool := newPoolWithRoot("P0", selfishStrategy(1, 1), "0_HH0")
	event := simtypes.Event{SimClock: 30, PoolID: "P0", Action: simtypes.RecvOther, NewIDs: []simtypes.BlockID{"1_HH1", "2_HH1"}}
	dec := Decide(event, pool.View(), chain)

	if dec.Chaintip == nil || *dec.Chaintip != "2_HH1" {
		t.Fatalf("Chaintip = %v, want abandon to honest tip 2_HH1", dec.Chaintip)
	}
}
