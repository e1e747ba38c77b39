package movement

import (
	"TagSentry/internal/domain/models"
)

// Cluster is one spatial group of locations with a running center.
type Cluster struct {
	CenterLat float64
	CenterLon float64
	Size      int
}

func (c *Cluster) center() models.Location {
	return models.Location{Latitude: c.CenterLat, Longitude: c.CenterLon}
}

func (c *Cluster) absorb(l models.Location) {
	n := float64(c.Size)
	c.CenterLat = (c.CenterLat*n + l.Latitude) / (n + 1)
	c.CenterLon = (c.CenterLon*n + l.Longitude) / (n + 1)
	c.Size++
}

// ClusterLocations runs one greedy pass: each location joins the first
// existing cluster whose center lies within radiusMeters, otherwise it
// seeds a new cluster. Order-dependent on purpose; callers feed locations
// in sighting order.
func ClusterLocations(locs []models.Location, radiusMeters float64) []Cluster {
	var clusters []Cluster
	for _, l := range locs {
		joined := false
		for i := range clusters {
			if Haversine(clusters[i].center(), l) <= radiusMeters {
				clusters[i].absorb(l)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, Cluster{CenterLat: l.Latitude, CenterLon: l.Longitude, Size: 1})
		}
	}
	return clusters
}

// DiversityScore rewards devices seen across many distinct, far-apart
// areas: min(clusters/10,1)*0.6 + min(avgInterClusterDist/5000,1)*0.4.
func DiversityScore(clusters []Cluster) float64 {
	if len(clusters) == 0 {
		return 0
	}
	countScore := float64(len(clusters)) / 10
	if countScore > 1 {
		countScore = 1
	}

	distScore := 0.0
	if len(clusters) > 1 {
		sum, n := 0.0, 0
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				sum += Haversine(clusters[i].center(), clusters[j].center())
				n++
			}
		}
		avg := sum / float64(n)
		distScore = avg / 5000
		if distScore > 1 {
			distScore = 1
		}
	}

	return countScore*0.6 + distScore*0.4
}
