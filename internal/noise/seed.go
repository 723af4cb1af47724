// Package noise implements the per-round stochastic samplers of spec 4.3:
// owdP2P, owdP2H, txTime and blockTime, each on its own deterministic stream
// derived from the round seed.
package noise

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// StreamName identifies one of the independent noise streams. Six are
// derived (spec 9 "Per-stream RNGs") even though only four samplers are
// named in spec 4.3: reserved1 feeds the per-pool NTP drift draw and
// reserved2 is unused, so new consumers can take a stream without
// perturbing the draws of the existing ones.
type StreamName string

const (
	StreamOWDP2P       StreamName = "owdP2P"
	StreamOWDP2H       StreamName = "owdP2H"
	StreamTxTime       StreamName = "txTime"
	StreamBlockTime    StreamName = "blockTime"
	StreamReserved1    StreamName = "reserved1"
	StreamReserved2    StreamName = "reserved2"
)

// DeriveSeed turns a round seed and a stream name into an independent
// deterministic non-negative int64 seed for that stream's math/rand.Rand, using blake3
// instead of ad hoc XOR offsets (spec 4.3 "Determinism", spec 9 "Per-stream
// RNGs"). The non-goal against computing PoW hashes does not apply here: this
// hash never stands in for proof of work, only for seed derivation.
func DeriveSeed(roundSeed uint32, stream StreamName) int64 {
	h := blake3.New()
	_, _ = h.Write([]byte("minesim-noise"))
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], roundSeed)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(stream))
	sum := h.Sum(nil)
	v := binary.BigEndian.Uint64(sum[:8])
	// math/rand.Seed takes an int64; clear the sign bit so callers never
	// have to reason about negative seeds.
	return int64(v &^ (1 << 63))
}
