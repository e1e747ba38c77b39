package movement

import (
	"math"

	"TagSentry/internal/domain/models"
)

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two fixes in meters.
func Haversine(a, b models.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// PairwiseDistances returns all N*(N-1)/2 pairwise distances in meters.
func PairwiseDistances(locs []models.Location) []float64 {
	if len(locs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(locs)*(len(locs)-1)/2)
	for i := 0; i < len(locs); i++ {
		for j := i + 1; j < len(locs); j++ {
			out = append(out, Haversine(locs[i], locs[j]))
		}
	}
	return out
}

// MaxAvgDistance returns the maximum and average of the pairwise distances.
func MaxAvgDistance(locs []models.Location) (maxD, avgD float64) {
	ds := PairwiseDistances(locs)
	if len(ds) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, d := range ds {
		if d > maxD {
			maxD = d
		}
		sum += d
	}
	return maxD, sum / float64(len(ds))
}
