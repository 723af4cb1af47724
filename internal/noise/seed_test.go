package noise

import "testing"

func TestDeriveSeedIsDeterministic(t *testing.T) {
	a := DeriveSeed(7, StreamOWDP2P)
	b := DeriveSeed(7, StreamOWDP2P)
	if a != b {
		t.Errorf("DeriveSeed(7, owdP2P) not deterministic: %v != %v", a, b)
	}
}

func TestDeriveSeedStreamsAreDistinct(t *testing.T) {
	streams := []StreamName{
		StreamOWDP2P, StreamOWDP2H, StreamTxTime,
		StreamBlockTime, StreamReserved1, StreamReserved2,
	}
	seen := make(map[int64]StreamName, len(streams))
	for _, s := range streams {
		v := DeriveSeed(1, s)
		if other, ok := seen[v]; ok {
			t.Errorf("stream %q collided with %q: both derived seed %v", s, other, v)
		}
		seen[v] = s
	}
}

func TestDeriveSeedVariesByRoundSeed(t *testing.T) {
	a := DeriveSeed(1, StreamBlockTime)
	b := DeriveSeed(2, StreamBlockTime)
	if a == b {
		t.Errorf("DeriveSeed gave the same value for different round seeds: %v", a)
	}
}

func TestDeriveSeedNeverNegative(t *testing.T) {
	for roundSeed := uint32(0); roundSeed < 50; roundSeed++ {
		if v := DeriveSeed(roundSeed, StreamReserved2); v < 0 {
			t.Errorf("DeriveSeed(%d, reserved2) = %v, want >= 0", roundSeed, v)
		}
	}
}
