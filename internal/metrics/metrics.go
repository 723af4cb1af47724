// Package metrics computes the per-pool and summary round metrics of spec
// 4.7, walking each pool's scores in first-seen insertion order as spec 9
// "Metrics walk order" requires.
package metrics

import (
	"math"
	"math/big"
	"sort"

	"github.com/bawdyanarchist/minesim/internal/chain"
	"github.com/bawdyanarchist/minesim/internal/simtypes"
)

// PoolMetrics is one pool's view of the round (spec 4.7).
type PoolMetrics struct {
	PoolID           string
	OrphanRate       float64
	ReorgMax         int
	ReorgP99         float64
	ReorgRate        float64
	SelfShares       float64
	Gamma            float64
	DifficultyAtHead *big.Int
}

// SummaryMetric is the mean/stdev pair reported across honest pools for one
// metric (spec 4.7: "stdev flags partition divergence").
type SummaryMetric struct {
	Mean  float64
	Stdev float64
}

// RoundSummary is the aggregate metric set written to results_summary.csv.
type RoundSummary struct {
	OrphanRate SummaryMetric
	ReorgMax   SummaryMetric
	ReorgP99   SummaryMetric
	ReorgRate  SummaryMetric
	SelfShares SummaryMetric
	Gamma      SummaryMetric
}

// Compute returns the per-pool metrics for every pool and the cross-honest
// summary.
func Compute(pools map[string]*simtypes.Pool, tbl *chain.Table) (map[string]PoolMetrics, RoundSummary) {
	selfishHPP := 0.0
	for _, p := range pools {
		if !p.Config.Honest {
			selfishHPP += p.HPP
		}
	}

	per := make(map[string]PoolMetrics, len(pools))
	ids := make([]string, 0, len(pools))
	for id := range pools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		per[id] = computePool(pools[id], tbl, pools, selfishHPP)
	}

	return per, summarize(per, pools)
}

func computePool(pool *simtypes.Pool, tbl *chain.Table, allPools map[string]*simtypes.Pool, selfishHPP float64) PoolMetrics {
	scoreIDs := pool.Scores.InOrder()

	var canonicalCount, orphanCount, selfishMinedCanonical int
	lastAtHeight := make(map[simtypes.Height]simtypes.BlockID)
	var gammaPrevSelfish, gammaAnySelfish int

	for _, id := range scoreIDs {
		s := pool.Scores.Get(id)
		b, _ := tbl.Block(id)
		h := tbl.Height(id)

		if prev, ok := lastAtHeight[h]; ok {
			prevSelfish := minedBySelfish(prev, tbl, allPools)
			curSelfish := minedBySelfish(id, tbl, allPools)
			if prevSelfish || curSelfish {
				gammaAnySelfish++
				if prevSelfish {
					gammaPrevSelfish++
				}
			}
		}
		lastAtHeight[h] = id

		if s.IsHeadPath {
			canonicalCount++
			if minedBySelfish(id, tbl, allPools) {
				selfishMinedCanonical++
			}
		} else if b != nil && b.PoolID != pool.ID {
			orphanCount++
		}
	}

	canonicalHeight := float64(canonicalCount - 1)
	denom := canonicalHeight
	if denom <= 0 {
		denom = 1
	}

	var reorgList []int
	depth := 0
	for _, id := range scoreIDs {
		s := pool.Scores.Get(id)
		if !s.IsHeadPath {
			if s.Chaintip != nil && *s.Chaintip == id {
				depth++
			}
			continue
		}
		if depth > 0 {
			reorgList = append(reorgList, depth)
		}
		depth = 0
	}
	if depth > 0 {
		reorgList = append(reorgList, depth)
	}

	reorgMax := 0
	deepReorgs := 0
	for _, d := range reorgList {
		if d > reorgMax {
			reorgMax = d
		}
		if d >= 10 {
			deepReorgs++
		}
	}

	gammaRaw := 0.0
	if gammaAnySelfish > 0 {
		gammaRaw = float64(gammaPrevSelfish) / float64(gammaAnySelfish)
	}
	gammaScale := 0.0
	if selfishHPP < 1 {
		gammaScale = pool.HPP / (1 - selfishHPP)
	}

	var diffAtHead *big.Int
	if b, ok := tbl.Block(pool.Chaintip); ok {
		diffAtHead = b.Difficulty
	}

	return PoolMetrics{
		PoolID:           pool.ID,
		OrphanRate:       float64(orphanCount) / denom,
		ReorgMax:         reorgMax,
		ReorgP99:         percentile(reorgList, 0.99),
		ReorgRate:        float64(deepReorgs) / denom,
		SelfShares:       float64(selfishMinedCanonical)/denom - selfishHPP,
		Gamma:            gammaRaw * gammaScale,
		DifficultyAtHead: diffAtHead,
	}
}

func minedBySelfish(id simtypes.BlockID, tbl *chain.Table, pools map[string]*simtypes.Pool) bool {
	b, ok := tbl.Block(id)
	if !ok {
		return false
	}
	owner, ok := pools[b.PoolID]
	return ok && !owner.Config.Honest
}

func percentile(samples []int, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]int(nil), samples...)
	sort.Ints(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return float64(sorted[rank])
}

func summarize(per map[string]PoolMetrics, pools map[string]*simtypes.Pool) RoundSummary {
	var orphan, reorgMax, reorgP99, reorgRate, selfShares, gamma []float64
	for id, m := range per {
		if !pools[id].Config.Honest {
			continue
		}
		orphan = append(orphan, m.OrphanRate)
		reorgMax = append(reorgMax, float64(m.ReorgMax))
		reorgP99 = append(reorgP99, m.ReorgP99)
		reorgRate = append(reorgRate, m.ReorgRate)
		selfShares = append(selfShares, m.SelfShares)
		gamma = append(gamma, m.Gamma)
	}
	return RoundSummary{
		OrphanRate: meanStdev(orphan),
		ReorgMax:   meanStdev(reorgMax),
		ReorgP99:   meanStdev(reorgP99),
		ReorgRate:  meanStdev(reorgRate),
		SelfShares: meanStdev(selfShares),
		Gamma:      meanStdev(gamma),
	}
}

func meanStdev(xs []float64) SummaryMetric {
	if len(xs) == 0 {
		return SummaryMetric{}
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))

	return SummaryMetric{Mean: mean, Stdev: math.Sqrt(variance)}
}
