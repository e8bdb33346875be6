package main

import (
	"math"
	"slices"
	"time"
)

// LatencyStats summarizes a set of operation latencies.
type LatencyStats struct {
	Count       int64   `json:"count"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate_percent"`
	Mean        string  `json:"mean,omitempty"`
	Median      string  `json:"median,omitempty"`
	P90         string  `json:"p90,omitempty"`
	P99         string  `json:"p99,omitempty"`
	Min         string  `json:"min,omitempty"`
	Max         string  `json:"max,omitempty"`
	StdDev      string  `json:"std_dev,omitempty"`
}

// calculateLatencyStats computes latency statistics. latencies is sorted in place.
func calculateLatencyStats(latencies []time.Duration, successful, total int64) LatencyStats {
	stats := LatencyStats{
		Count:       total,
		Successful:  successful,
		Failed:      total - successful,
		SuccessRate: 100,
	}
	if total > 0 {
		stats.SuccessRate = float64(successful) * 100 / float64(total)
	}
	if len(latencies) == 0 {
		return stats
	}

	slices.Sort(latencies)

	var sum time.Duration
	for _, lat := range latencies {
		sum += lat
	}
	n := len(latencies)
	mean := sum / time.Duration(n)

	var variance float64
	for _, lat := range latencies {
		diff := float64(lat - mean)
		variance += diff * diff
	}
	variance /= float64(n)

	stats.Mean = mean.String()
	stats.Median = percentile(latencies, 50).String()
	stats.P90 = percentile(latencies, 90).String()
	stats.P99 = percentile(latencies, 99).String()
	stats.Min = latencies[0].String()
	stats.Max = latencies[n-1].String()
	stats.StdDev = time.Duration(math.Sqrt(variance)).String()
	return stats
}

// percentile returns the p-th percentile of sorted, interpolating between neighbors.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	fraction := rank - float64(lower)
	return sorted[lower] + time.Duration(fraction*float64(sorted[upper]-sorted[lower]))
}

// throughput returns completed operations per second of wall time.
func throughput(ops int64, elapsed time.Duration) float64 {
	if ops == 0 || elapsed <= 0 {
		return 0
	}
	return float64(ops) / elapsed.Seconds()
}
