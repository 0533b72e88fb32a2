package metrics

import (
	"iter"
	"sort"

	"github.com/saveenergy/brofiler/pkg/types"
)

type LinkSource interface {
	Len() int
	All() iter.Seq2[int, types.LinkSnapshot]
}

// CalculateThroughput summarizes total capture throughput. Each snapshot
// contributes the sum over its interfaces.
func CalculateThroughput(h LinkSource) types.ThroughputMetrics {
	if h.Len() == 0 {
		return types.ThroughputMetrics{}
	}

	mbps := make([]float64, 0, h.Len())
	var kppsSum, mbpsSum float64
	for _, snap := range h.All() {
		m := snap.TotalMbps()
		kppsSum += snap.TotalKpps()
		mbpsSum += m
		mbps = append(mbps, m)
	}
	if len(mbps) == 0 {
		return types.ThroughputMetrics{}
	}
	last := mbps[len(mbps)-1]

	sort.Float64s(mbps)
	n := float64(len(mbps))
	return types.ThroughputMetrics{
		Samples:  len(mbps),
		AvgKpps:  kppsSum / n,
		AvgMbps:  mbpsSum / n,
		MinMbps:  mbps[0],
		MaxMbps:  mbps[len(mbps)-1],
		P50Mbps:  mbps[len(mbps)*50/100],
		P95Mbps:  mbps[len(mbps)*95/100],
		LastMbps: last,
	}
}
