package movement

import (
	"sort"
	"time"

	"TagSentry/internal/domain/models"
	"TagSentry/pkg/config"
)

// Sub-score weights for the combined movement correlation.
const (
	weightSync  = 0.40
	weightRoute = 0.30
	weightDwell = 0.20
	weightTime  = 0.10
)

// minRecords / minPathPoints guard against reading noise as signal: below
// these the correlator reports insufficient data instead of a misleading
// low score.
const (
	minRecords    = 3
	minPathPoints = 3
)

// Correlator compares a device's sighting history against the user's own
// movement trail.
type Correlator struct {
	cfg config.Detection
}

func NewCorrelator(cfg config.Detection) *Correlator {
	return &Correlator{cfg: cfg}
}

// Correlate computes the movement-synchronization signals for one device.
func (c *Correlator) Correlate(deviceLocations []models.Location, deviceSightings []models.SightingRecord,
	userLocations []models.Location, userPath []models.UserPathPoint) models.MovementAnalysis {

	if len(deviceSightings) < minRecords || len(userPath) < minPathPoints {
		return models.MovementAnalysis{InsufficientData: true}
	}

	clusters := ClusterLocations(deviceLocations, c.cfg.ClusterRadiusMeters)

	sightings := make([]models.SightingRecord, len(deviceSightings))
	copy(sightings, deviceSightings)
	sort.Slice(sightings, func(i, j int) bool { return sightings[i].Timestamp.Before(sightings[j].Timestamp) })

	path := make([]models.UserPathPoint, len(userPath))
	copy(path, userPath)
	sort.Slice(path, func(i, j int) bool { return path[i].Timestamp.Before(path[j].Timestamp) })

	sync := c.syncScore(path, sightings)
	route := routeOverlapScore(path, sightings)
	dwell := c.dwellScore(path, sightings)
	tod := timeOfDayScore(sightings)

	combined := sync*weightSync + route*weightRoute + dwell*weightDwell + tod*weightTime
	if combined > 1 {
		combined = 1
	}
	if combined < 0 {
		combined = 0
	}

	return models.MovementAnalysis{
		SyncScore:      sync,
		RouteOverlap:   route,
		DwellMatch:     dwell,
		TimeOfDayScore: tod,
		Combined:       combined,
		ClusterCount:   len(clusters),
		Diversity:      DiversityScore(clusters),
	}
}

// syncScore finds the moments the user's path switches location id ("move
// events") and checks whether any device sighting lands inside the window
// around each. Score = matched moves / total moves.
func (c *Correlator) syncScore(path []models.UserPathPoint, sightings []models.SightingRecord) float64 {
	var moves []time.Time
	for i := 1; i < len(path); i++ {
		if path[i].LocationID != path[i-1].LocationID {
			moves = append(moves, path[i].Timestamp)
		}
	}
	if len(moves) == 0 {
		return 0
	}

	matched := 0
	for _, m := range moves {
		for _, s := range sightings {
			d := s.Timestamp.Sub(m)
			if d < 0 {
				d = -d
			}
			if d <= c.cfg.SyncWindow {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(moves))
}

// routeOverlapScore collapses both trails to run-length-merged location-id
// sequences and scores LCS(user, device) / len(device). Visiting the same
// places in the same order separates a follower from someone who merely
// shares a few locations.
func routeOverlapScore(path []models.UserPathPoint, sightings []models.SightingRecord) float64 {
	userSeq := make([]string, 0, len(path))
	for _, p := range path {
		userSeq = append(userSeq, p.LocationID)
	}
	devSeq := make([]string, 0, len(sightings))
	for _, s := range sightings {
		devSeq = append(devSeq, s.LocationID)
	}

	userSeq = CollapseRuns(userSeq)
	devSeq = CollapseRuns(devSeq)
	if len(devSeq) == 0 {
		return 0
	}
	return float64(LCS(userSeq, devSeq)) / float64(len(devSeq))
}

// dwellScore compares how long user and device stayed at each shared
// location. A match allows the difference to be under half the user's
// dwell or under the absolute tolerance, whichever is looser.
func (c *Correlator) dwellScore(path []models.UserPathPoint, sightings []models.SightingRecord) float64 {
	userSpan := spanByLocation(path, func(p models.UserPathPoint) (string, time.Time) {
		return p.LocationID, p.Timestamp
	})
	devSpan := spanByLocation(sightings, func(s models.SightingRecord) (string, time.Time) {
		return s.LocationID, s.Timestamp
	})

	shared, matched := 0, 0
	for loc, u := range userSpan {
		d, ok := devSpan[loc]
		if !ok {
			continue
		}
		shared++
		diff := u - d
		if diff < 0 {
			diff = -diff
		}
		if diff < u/2 || diff < c.cfg.DwellTolerance {
			matched++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(matched) / float64(shared)
}

func spanByLocation[T any](items []T, key func(T) (string, time.Time)) map[string]time.Duration {
	first := make(map[string]time.Time)
	last := make(map[string]time.Time)
	for _, it := range items {
		loc, ts := key(it)
		if f, ok := first[loc]; !ok || ts.Before(f) {
			first[loc] = ts
		}
		if l, ok := last[loc]; !ok || ts.After(l) {
			last[loc] = ts
		}
	}
	spans := make(map[string]time.Duration, len(first))
	for loc := range first {
		spans[loc] = last[loc].Sub(first[loc])
	}
	return spans
}

// timeOfDayScore buckets sightings by hour of day and rewards
// concentration in the peak hours. Concentration spread over more than two
// hours' worth of buckets is halved.
func timeOfDayScore(sightings []models.SightingRecord) float64 {
	if len(sightings) == 0 {
		return 0
	}
	var buckets [24]int
	for _, s := range sightings {
		buckets[s.Timestamp.Hour()]++
	}

	peak, peakHours := 0, 0
	for _, n := range buckets {
		if n > peak {
			peak = n
		}
	}
	if peak == 0 {
		return 0
	}
	peakTotal := 0
	for _, n := range buckets {
		if n == peak {
			peakHours++
			peakTotal += n
		}
	}

	score := float64(peakTotal) / float64(len(sightings))
	if peakHours > 2 {
		score *= 0.5
	}
	return score
}
