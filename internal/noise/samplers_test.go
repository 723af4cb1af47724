package noise

import (
	"math"
	"testing"
)

func TestSpikeProbStaysSmallAtRealisticPing(t *testing.T) {
	tests := []struct {
		name    string
		base    float64
		pingSec float64
		max     float64
	}{
		{"P2P at 70ms", 0.01, 70.0 / 1000, 0.05},
		{"P2H at 70ms", 0.04, 70.0 / 1000, 0.1},
		{"P2P at 200ms", 0.01, 200.0 / 1000, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spikeProb(tt.base, tt.pingSec)
			if got < 0 || got > tt.max {
				t.Errorf("spikeProb(%v, %v) = %v, want in [0, %v]", tt.base, tt.pingSec, got, tt.max)
			}
		})
	}
}

func TestSpikeProbApproachesOneOnlyAtLargePing(t *testing.T) {
	// Only at pings far beyond any realistic network config should the spike
	// probability approach its ceiling.
	got := spikeProb(0.01, 5000.0)
	if got < 0.9 {
		t.Errorf("spikeProb at a 5000s ping = %v, want close to 1", got)
	}
}

func TestOWDP2PUsesSecondsScaledPingConsistently(t *testing.T) {
	// With a realistic 70ms ping, owdP2P delay samples should stay within a
	// couple orders of magnitude of the mean one-way delay, not be routinely
	// blown out by a tail-spike multiplier firing on most draws.
	s := NewSamplers(1, Config{PingMS: 70, CV: 0.5, MBPS: 100, BlockSizeKB: 20})
	spikes := 0
	const trials = 2000
	for i := 0; i < trials; i++ {
		d := s.OWDP2P()
		if d > 1.0 {
			spikes++
		}
	}
	rate := float64(spikes) / trials
	if rate > 0.1 {
		t.Errorf("tail-spike-sized owdP2P samples fired on %.1f%% of draws, want well under 10%%", rate*100)
	}
}

func TestLognormalParamsProduceCorrectMean(t *testing.T) {
	mean, cv := 0.07, 0.5
	mu, sigma := lognormalParams(mean, cv)
	gotMean := math.Exp(mu + sigma*sigma/2)
	if math.Abs(gotMean-mean) > 1e-9 {
		t.Errorf("lognormal mean = %v, want %v", gotMean, mean)
	}
}

func TestBlockTimeZeroLambdaIsInfinite(t *testing.T) {
	s := NewSamplers(1, Config{PingMS: 70, CV: 0.5, MBPS: 100, BlockSizeKB: 20})
	got := s.BlockTime(0)
	if !math.IsInf(got, 1) {
		t.Errorf("BlockTime(0) = %v, want +Inf", got)
	}
}

func TestTxTimeZeroBandwidthIsZero(t *testing.T) {
	s := NewSamplers(1, Config{PingMS: 70, CV: 0.5, MBPS: 0, BlockSizeKB: 20})
	if got := s.TxTime(); got != 0 {
		t.Errorf("TxTime() with zero bandwidth = %v, want 0", got)
	}
}

func TestNTPDriftIsDeterministicPerSeed(t *testing.T) {
	a := NewSamplers(42, Config{}).NTPDrift(2.0)
	b := NewSamplers(42, Config{}).NTPDrift(2.0)
	if a != b {
		t.Errorf("NTPDrift not deterministic for the same seed: %v != %v", a, b)
	}

	c := NewSamplers(43, Config{}).NTPDrift(2.0)
	if a == c {
		t.Errorf("NTPDrift gave identical draws for different seeds: %v", a)
	}
}
