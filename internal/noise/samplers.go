package noise

import (
	"math"
	"math/rand"
)

// Config holds the network-noise parameters of spec 4.3, resolved from the
// round's difficulty/internet config block.
type Config struct {
	// PingMS is the base one-way pool-to-pool ping, in milliseconds. It is
	// converted to seconds before feeding both the lognormal mean and the
	// tail-spike formula, which the spec states in terms of one
	// consistently-scaled "ping" symbol.
	PingMS float64
	// CV is the coefficient of variation shared by the owdP2P/owdP2H/txTime
	// lognormal samplers.
	CV float64
	// MBPS is pool bandwidth in megabits/sec, for txTime's mean.
	MBPS float64
	// BlockSizeKB is the compact-block size used for txTime's mean.
	BlockSizeKB float64
}

// Samplers owns the six independent per-round RNG streams (spec 9) and
// exposes the four named samplers of spec 4.3.
type Samplers struct {
	cfg Config

	owdP2P    *rand.Rand
	owdP2H    *rand.Rand
	txTime    *rand.Rand
	blockTime *rand.Rand
	reserved1 *rand.Rand
	reserved2 *rand.Rand
}

// NewSamplers derives all six streams from roundSeed via blake3 (noise.DeriveSeed).
func NewSamplers(roundSeed uint32, cfg Config) *Samplers {
	return &Samplers{
		cfg:       cfg,
		owdP2P:    rand.New(rand.NewSource(DeriveSeed(roundSeed, StreamOWDP2P))),
		owdP2H:    rand.New(rand.NewSource(DeriveSeed(roundSeed, StreamOWDP2H))),
		txTime:    rand.New(rand.NewSource(DeriveSeed(roundSeed, StreamTxTime))),
		blockTime: rand.New(rand.NewSource(DeriveSeed(roundSeed, StreamBlockTime))),
		reserved1: rand.New(rand.NewSource(DeriveSeed(roundSeed, StreamReserved1))),
		reserved2: rand.New(rand.NewSource(DeriveSeed(roundSeed, StreamReserved2))),
	}
}

// lognormalParams returns (mu, sigma) such that the resulting distribution's
// mean is `mean`, per spec 4.3: sigma = sqrt(ln(1+CV^2)), mu = ln(mean) -
// sigma^2/2.
func lognormalParams(mean, cv float64) (mu, sigma float64) {
	sigma = math.Sqrt(math.Log(1 + cv*cv))
	mu = math.Log(mean) - sigma*sigma/2
	return mu, sigma
}

func sampleLognormal(r *rand.Rand, mean, cv float64) float64 {
	mu, sigma := lognormalParams(mean, cv)
	return math.Exp(mu + sigma*r.NormFloat64())
}

// spikeProb is spec 4.3's tail-spike probability: base=0.01 for P2P, 0.04 for
// P2H. ping is in the same unit as the lognormal mean it accompanies
// (seconds), per spec 4.3's single "ping" symbol.
func spikeProb(base, ping float64) float64 {
	return (base - 0.01) + (1-base)*ping/(ping+5)
}

func applyTailSpike(r *rand.Rand, sample, base, ping float64) float64 {
	if r.Float64() < spikeProb(base, ping) {
		sample *= 1 + math.Pow(1+ping, 0.7)
	}
	return sample
}

// OWDP2P returns one pool-to-pool one-way-delay sample, in seconds.
func (s *Samplers) OWDP2P() float64 {
	pingSec := s.cfg.PingMS / 1000
	sample := sampleLognormal(s.owdP2P, pingSec, s.cfg.CV)
	return applyTailSpike(s.owdP2P, sample, 0.01, pingSec)
}

// OWDP2H returns one pool-to-hasher one-way-delay sample, in seconds.
func (s *Samplers) OWDP2H() float64 {
	pingSec := s.cfg.PingMS / 1000
	sample := sampleLognormal(s.owdP2H, 2*pingSec, s.cfg.CV)
	return applyTailSpike(s.owdP2H, sample, 0.04, pingSec)
}

// TxTime returns one compact-block transmission-time sample, in seconds.
// mean = blockSize / (mbps*1024/8).
func (s *Samplers) TxTime() float64 {
	kBPerSec := s.cfg.MBPS * 1024 / 8
	if kBPerSec <= 0 {
		return 0
	}
	mean := s.cfg.BlockSizeKB / kBPerSec
	return sampleLognormal(s.txTime, mean, s.cfg.CV)
}

// BlockTime draws Exponential(lambda) — the time until the next block is
// found at the given per-pool find rate lambda = hashrate/difficulty.
func (s *Samplers) BlockTime(lambda float64) float64 {
	if lambda <= 0 {
		return math.Inf(1)
	}
	return -math.Log(1-s.blockTime.Float64()) / lambda
}

// NTPDrift draws one pool's fixed round-start clock offset from N(0,
// ntpStdev) on the first reserved stream (spec 4.3 "Determinism"; spec 9
// reserves two streams beyond the four named samplers).
func (s *Samplers) NTPDrift(ntpStdev float64) float64 {
	return ntpStdev * s.reserved1.NormFloat64()
}
