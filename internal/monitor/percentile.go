package monitor

import (
	"math"
	"sort"
)

// Percentile returns the nearest-rank percentile of values for p in [1,99]:
// sort ascending, take the value at rank ceil(p/100*n), 1-indexed and clamped
// to [1,n]. For n=1 every percentile is that one value; ties are harmless.
//
// Note the inverted alerting semantics used throughout this agent: a LOW
// percentile is the STRICTER check. P10 is the value that 90% of the window's
// samples are at or above, so a process whose P10 is 97 sat at >=97% CPU for
// at least 90% of the window. This reads the floor of sustained usage, not the
// usual "ignore small excursions" high-percentile read.
func Percentile(values []float64, p int) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	rank := int(math.Ceil(float64(p) / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}

// Evaluate computes windowed statistics for every instance view that holds at
// least one sample. An instance present for only part of the window is still
// evaluated on whatever it accumulated; there is no minimum-sample gate.
func Evaluate(views []InstanceSamples, percentile int) []InstanceStats {
	stats := make([]InstanceStats, 0, len(views))
	for _, v := range views {
		if len(v.Samples) == 0 {
			continue
		}
		values := make([]float64, len(v.Samples))
		minV, maxV, sum := v.Samples[0].CPU, v.Samples[0].CPU, 0.0
		for i, s := range v.Samples {
			values[i] = s.CPU
			if s.CPU < minV {
				minV = s.CPU
			}
			if s.CPU > maxV {
				maxV = s.CPU
			}
			sum += s.CPU
		}
		stats = append(stats, InstanceStats{
			Key:             v.Key,
			FirstSeen:       v.FirstSeen,
			LastSeen:        v.LastSeen,
			LastCPU:         v.LastCPU,
			PercentileValue: Percentile(values, percentile),
			Min:             minV,
			Max:             maxV,
			Mean:            sum / float64(len(values)),
			Count:           len(values),
			CPUValues:       values,
		})
	}
	return stats
}
