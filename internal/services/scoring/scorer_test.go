package scoring

import (
	"math"
	"strings"
	"testing"
	"time"

	"TagSentry/internal/domain/models"
	"TagSentry/pkg/config"
)

func newScorer() *Scorer { return NewScorer(config.DefaultDetection()) }

func TestPrimaryWeightsSumToOne(t *testing.T) {
	sum := weightMovement + weightLocations + weightCategory + weightSignal +
		weightMaxDistance + weightConsistency + weightTimeSpan
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("primary weights sum to %v, want 1.00", sum)
	}
}

func TestLegacyWeightsSumToOne(t *testing.T) {
	sum := legacyWeightLocations + legacyWeightDistance + legacyWeightTimeSpan +
		legacyWeightConsistency + legacyWeightCategory
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("legacy weights sum to %v, want 1.00", sum)
	}
}

func TestScoreAlwaysInUnitRange(t *testing.T) {
	s := newScorer()
	now := time.Now()
	inputs := []models.ScoreInput{
		{}, // fully degenerate
		{
			Device:      models.DeviceRecord{DeviceType: models.CategoryTracker, IsTracker: true, FindMySeparated: true, HighestRSSI: -30, FirstSeen: now.Add(-96 * time.Hour), LastSeen: now},
			Locations:   make([]models.Location, 50),
			Movement:    models.MovementAnalysis{Combined: 1},
			MaxDistance: 1e7,
		},
		{
			Device:    models.DeviceRecord{HighestRSSI: -120},
			Locations: make([]models.Location, 1),
		},
	}
	for i, in := range inputs {
		if got := s.Score(in); got < 0 || got > 1 {
			t.Fatalf("case %d: primary score out of range: %v", i, got)
		}
		if got := s.ScoreLegacy(in); got < 0 || got > 1 {
			t.Fatalf("case %d: legacy score out of range: %v", i, got)
		}
	}
}

func TestWeakLinkDiscountExact(t *testing.T) {
	s := newScorer()
	siblings := []models.DeviceRecord{
		{LinkStrength: models.LinkWeak},
		{LinkStrength: models.LinkWeak},
		{LinkStrength: models.LinkStrong},
		{LinkStrength: models.LinkStrong},
		{LinkStrength: models.LinkStrong},
	}
	got := s.WeakLinkDiscount(siblings)
	if math.Abs(got-0.12) > 1e-9 {
		t.Fatalf("discount = %v, want 0.12", got)
	}
	if d := s.WeakLinkDiscount(nil); d != 0 {
		t.Fatalf("zero siblings must discount 0, got %v", d)
	}
}

func TestSignalTiers(t *testing.T) {
	cases := map[int]float64{
		-30:  1.0,
		-50:  0.775,
		-70:  0.55,
		-85:  0.325,
		-100: 0.1,
	}
	for rssi, want := range cases {
		if got := signalFactor(rssi); got != want {
			t.Fatalf("signalFactor(%d) = %v, want %v", rssi, got, want)
		}
	}
}

func TestHighThreatScenario(t *testing.T) {
	// Tracker across 4 locations, 50 km max spread, very-strong RSSI,
	// movement sync 0.8: must land in the HIGH band.
	s := newScorer()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	sightings := []models.SightingRecord{
		{Timestamp: now.Add(-3 * time.Hour)},
		{Timestamp: now.Add(-2 * time.Hour)},
		{Timestamp: now.Add(-1 * time.Hour)},
		{Timestamp: now},
	}
	in := models.ScoreInput{
		Device: models.DeviceRecord{
			DeviceType:  models.CategoryTracker,
			IsTracker:   true,
			HighestRSSI: -40,
			FirstSeen:   now.Add(-30 * time.Hour),
			LastSeen:    now,
		},
		Locations:   make([]models.Location, 4),
		Sightings:   sightings,
		Movement:    models.MovementAnalysis{Combined: 0.8},
		MaxDistance: 50000,
	}
	got := s.Score(in)
	if got < 0.75 {
		t.Fatalf("expected HIGH (>= 0.75), got %v", got)
	}
	if models.LevelForScore(got) != models.ThreatHigh && models.LevelForScore(got) != models.ThreatCritical {
		t.Fatalf("unexpected level %s for %v", models.LevelForScore(got), got)
	}
}

func TestConsistencyTiers(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(gap time.Duration) []models.SightingRecord {
		return []models.SightingRecord{
			{Timestamp: base},
			{Timestamp: base.Add(gap)},
			{Timestamp: base.Add(2 * gap)},
		}
	}
	if got := consistencyFactor(mk(30 * time.Minute)); got != 1.0 {
		t.Fatalf("sub-hour gap: got %v", got)
	}
	if got := consistencyFactor(mk(3 * time.Hour)); got != 0.67 {
		t.Fatalf("3h gap: got %v", got)
	}
	if got := consistencyFactor(mk(12 * time.Hour)); got != 0.33 {
		t.Fatalf("12h gap: got %v", got)
	}
	if got := consistencyFactor(mk(48 * time.Hour)); got != 0.13 {
		t.Fatalf("2-day gap: got %v", got)
	}
}

func TestCategoryFactorSeparationBonus(t *testing.T) {
	plain := categoryFactor(models.DeviceRecord{DeviceType: models.CategoryTracker, IsTracker: true})
	separated := categoryFactor(models.DeviceRecord{DeviceType: models.CategoryTracker, IsTracker: true, FindMySeparated: true})
	if separated <= plain {
		t.Fatalf("separated tracker must outscore owned tracker: %v vs %v", separated, plain)
	}
	if separated > 1 {
		t.Fatalf("category factor must cap at 1, got %v", separated)
	}
}

func TestReasonMentionsSeparation(t *testing.T) {
	in := models.ScoreInput{
		Device: models.DeviceRecord{
			Name:            "Unknown tag",
			FindMySeparated: true,
			FirstSeen:       time.Now().Add(-5 * time.Hour),
			LastSeen:        time.Now(),
		},
		Locations:   make([]models.Location, 4),
		MaxDistance: 1200,
	}
	got := Reason(in, 0.91)
	if !strings.Contains(got, " - SEPARATED FROM OWNER") {
		t.Fatalf("reason missing separation warning: %q", got)
	}
	if !strings.Contains(got, "CRITICAL") {
		t.Fatalf("reason missing level word: %q", got)
	}
}
