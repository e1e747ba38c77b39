package movement

import (
	"testing"
	"time"

	"TagSentry/internal/domain/models"
	"TagSentry/pkg/config"
)

func loc(id string, lat, lon float64) models.Location {
	return models.Location{ID: id, Latitude: lat, Longitude: lon}
}

func TestPairwiseDistanceCount(t *testing.T) {
	locs := []models.Location{
		loc("a", 52.52, 13.40),
		loc("b", 52.53, 13.41),
		loc("c", 52.54, 13.42),
		loc("d", 52.55, 13.43),
		loc("e", 52.56, 13.44),
	}
	ds := PairwiseDistances(locs)
	if len(ds) != 10 {
		t.Fatalf("expected 10 pairwise distances for 5 locations, got %d", len(ds))
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Berlin -> Brandenburg an der Havel, roughly 60 km.
	d := Haversine(loc("a", 52.5200, 13.4050), loc("b", 52.3906, 12.5364))
	if d < 55000 || d > 65000 {
		t.Fatalf("unexpected distance %f", d)
	}
}

func TestClusterRadius(t *testing.T) {
	// Two fixes ~50 m apart and a third far away.
	locs := []models.Location{
		loc("a", 52.52000, 13.40500),
		loc("b", 52.52040, 13.40510),
		loc("c", 52.60000, 13.50000),
	}
	clusters := ClusterLocations(locs, 100)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Size != 2 {
		t.Fatalf("expected first cluster to absorb 2 fixes, got %d", clusters[0].Size)
	}

	// With a tiny radius every fix stands alone.
	clusters = ClusterLocations(locs, 1)
	if len(clusters) != 3 {
		t.Fatalf("expected 3 clusters at radius 1m, got %d", len(clusters))
	}
}

func TestCollapseRuns(t *testing.T) {
	got := CollapseRuns([]string{"a", "a", "b", "b", "b", "a", "c", "c"})
	want := []string{"a", "b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLCSBounds(t *testing.T) {
	a := []string{"a", "b", "c", "d"}
	b := []string{"b", "d", "e"}
	n := LCS(a, b)
	if n != 2 {
		t.Fatalf("LCS = %d, want 2", n)
	}
	if n > len(a) || n > len(b) {
		t.Fatalf("LCS exceeds input length")
	}
}

func TestLCSWithSelfEqualsCollapsedLength(t *testing.T) {
	seq := CollapseRuns([]string{"a", "a", "b", "c", "c", "a"})
	if got := LCS(seq, seq); got != len(seq) {
		t.Fatalf("LCS(seq, seq) = %d, want %d", got, len(seq))
	}
}

func TestInsufficientDataFlag(t *testing.T) {
	c := NewCorrelator(config.DefaultDetection())
	got := c.Correlate(nil, nil, nil, nil)
	if !got.InsufficientData {
		t.Fatalf("expected insufficient data flag")
	}
	if got.Combined != 0 {
		t.Fatalf("insufficient data must score 0, got %v", got.Combined)
	}
}

func TestSyncScorePerfectFollower(t *testing.T) {
	c := NewCorrelator(config.DefaultDetection())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// User moves through l1 -> l2 -> l3; the device is sighted within a
	// minute of every move.
	path := []models.UserPathPoint{
		{LocationID: "l1", Timestamp: base},
		{LocationID: "l2", Timestamp: base.Add(30 * time.Minute)},
		{LocationID: "l3", Timestamp: base.Add(60 * time.Minute)},
	}
	sightings := []models.SightingRecord{
		{DeviceID: "d", LocationID: "l1", Timestamp: base.Add(1 * time.Minute)},
		{DeviceID: "d", LocationID: "l2", Timestamp: base.Add(31 * time.Minute)},
		{DeviceID: "d", LocationID: "l3", Timestamp: base.Add(61 * time.Minute)},
	}
	locs := []models.Location{
		loc("l1", 52.52, 13.40),
		loc("l2", 52.55, 13.45),
		loc("l3", 52.58, 13.50),
	}

	got := c.Correlate(locs, sightings, locs, path)
	if got.InsufficientData {
		t.Fatalf("unexpected insufficient data")
	}
	if got.SyncScore != 1 {
		t.Fatalf("expected sync score 1, got %v", got.SyncScore)
	}
	if got.RouteOverlap != 1 {
		t.Fatalf("expected full route overlap, got %v", got.RouteOverlap)
	}
	if got.Combined <= 0.5 {
		t.Fatalf("expected strong combined score, got %v", got.Combined)
	}
}

func TestCombinedWithinUnitRange(t *testing.T) {
	c := NewCorrelator(config.DefaultDetection())
	base := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)

	var path []models.UserPathPoint
	var sightings []models.SightingRecord
	for i := 0; i < 20; i++ {
		path = append(path, models.UserPathPoint{LocationID: "p", Timestamp: base.Add(time.Duration(i) * time.Minute)})
		sightings = append(sightings, models.SightingRecord{DeviceID: "d", LocationID: "p", Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	got := c.Correlate(nil, sightings, nil, path)
	if got.Combined < 0 || got.Combined > 1 {
		t.Fatalf("combined score out of range: %v", got.Combined)
	}
}

func TestTimeOfDayPenaltyForSpread(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// One sighting in each of 6 different hours: six peak buckets.
	var spread []models.SightingRecord
	for h := 0; h < 6; h++ {
		spread = append(spread, models.SightingRecord{Timestamp: base.Add(time.Duration(h) * time.Hour)})
	}
	wide := timeOfDayScore(spread)

	// All sightings in one hour.
	var tight []models.SightingRecord
	for i := 0; i < 6; i++ {
		tight = append(tight, models.SightingRecord{Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	narrow := timeOfDayScore(tight)

	if narrow != 1 {
		t.Fatalf("expected 1.0 for single-hour concentration, got %v", narrow)
	}
	if wide >= narrow {
		t.Fatalf("spread concentration must score lower: wide=%v narrow=%v", wide, narrow)
	}
}
