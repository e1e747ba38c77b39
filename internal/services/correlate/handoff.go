package correlate

import (
	"math"
	"sort"
	"time"

	"TagSentry/internal/domain/models"
)

// HandoffScore detects explicit address rotations inside a set of records
// sharing a fingerprint: sort by first-seen, declare a hand-off whenever a
// record is born within the gap window of its predecessor's death, then
// grade how regular those hand-offs are. Fewer than two qualifying
// hand-offs score zero regardless of record count.
func (c *Correlator) HandoffScore(records []models.DeviceRecord) float64 {
	if len(records) < 2 {
		return 0
	}
	sorted := make([]models.DeviceRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FirstSeen.Before(sorted[j].FirstSeen) })

	var handoffs []time.Time
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].FirstSeen.Sub(sorted[i-1].LastSeen)
		if gap < 0 {
			gap = -gap
		}
		if gap <= c.cfg.HandoffGap {
			handoffs = append(handoffs, sorted[i].FirstSeen)
		}
	}
	if len(handoffs) < 2 {
		return 0
	}

	intervals := make([]float64, 0, len(handoffs)-1)
	for i := 1; i < len(handoffs); i++ {
		intervals = append(intervals, handoffs[i].Sub(handoffs[i-1]).Seconds())
	}
	regularity := 1 - math.Min(coefficientOfVariation(intervals), 1)

	score := float64(len(handoffs)) / float64(len(records)-1) * regularity
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func coefficientOfVariation(xs []float64) float64 {
	m := mean(xs)
	if m == 0 {
		return 0
	}
	return math.Sqrt(variance(xs)) / m
}
