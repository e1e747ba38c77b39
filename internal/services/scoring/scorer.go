package scoring

import (
	"time"

	"TagSentry/internal/domain/models"
	"TagSentry/pkg/config"
)

// Primary method weights. They sum to exactly 1.00.
const (
	weightMovement    = 0.25
	weightLocations   = 0.18
	weightCategory    = 0.15
	weightSignal      = 0.12
	weightMaxDistance = 0.12
	weightConsistency = 0.10
	weightTimeSpan    = 0.08
)

// Legacy method weights (no movement correlation). Sum 1.00.
const (
	legacyWeightLocations   = 0.30
	legacyWeightDistance    = 0.25
	legacyWeightTimeSpan    = 0.20
	legacyWeightConsistency = 0.15
	legacyWeightCategory    = 0.10
)

// weakLinkFactor scales the discount applied for circumstantially linked
// siblings: discount = weakFraction * weakLinkFactor.
const weakLinkFactor = 0.3

// Normalization caps.
const (
	locationCountCap = 10
	maxDistanceCap   = 10000 // meters
)

// Separation-from-owner bonuses feeding the category factor.
const (
	separationBonusTracker = 0.30
	separationBonusOther   = 0.15
)

// Scorer combines correlation signals into a single normalized threat
// score. Pure computation; all tunables come from the config.
type Scorer struct {
	cfg config.Detection
}

func NewScorer(cfg config.Detection) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score is the primary seven-factor method.
func (s *Scorer) Score(in models.ScoreInput) float64 {
	score := in.Movement.Combined*weightMovement +
		locationFactor(len(in.Locations))*weightLocations +
		categoryFactor(in.Device)*weightCategory +
		signalFactor(in.Device.HighestRSSI)*weightSignal +
		distanceFactor(in.MaxDistance)*weightMaxDistance +
		consistencyFactor(in.Sightings)*weightConsistency +
		timeSpanFactor(in.Device.FirstSeen, in.Device.LastSeen)*weightTimeSpan
	return clamp(score)
}

// ScoreLegacy is the five-factor method kept for runs without path data.
func (s *Scorer) ScoreLegacy(in models.ScoreInput) float64 {
	score := locationFactor(len(in.Locations))*legacyWeightLocations +
		distanceFactor(in.MaxDistance)*legacyWeightDistance +
		timeSpanFactor(in.Device.FirstSeen, in.Device.LastSeen)*legacyWeightTimeSpan +
		consistencyFactor(in.Sightings)*legacyWeightConsistency +
		categoryFactor(in.Device)*legacyWeightCategory
	return clamp(score)
}

// WeakLinkDiscount returns the fraction to shave off a score when some of
// the device's address-linked siblings were linked only circumstantially.
// No links, no discount.
func (s *Scorer) WeakLinkDiscount(siblings []models.DeviceRecord) float64 {
	if len(siblings) == 0 {
		return 0
	}
	weak := 0
	for _, sib := range siblings {
		if sib.LinkStrength == models.LinkWeak {
			weak++
		}
	}
	return float64(weak) / float64(len(siblings)) * weakLinkFactor
}

func locationFactor(count int) float64 {
	f := float64(count) / locationCountCap
	if f > 1 {
		return 1
	}
	return f
}

// categoryBase grades how alarming a category is on its own.
func categoryBase(cat models.DeviceCategory) float64 {
	switch cat {
	case models.CategoryTracker:
		return 1.0
	case models.CategoryUnknown:
		return 0.5
	case models.CategoryBeacon:
		return 0.4
	case models.CategoryHeadphones:
		return 0.3
	case models.CategoryWatch:
		return 0.2
	case models.CategoryPhone, models.CategoryTablet, models.CategoryLaptop:
		return 0.1
	default:
		return 0.5
	}
}

// categoryFactor blends the base category grade with the
// separated-from-owner bonus: base*0.7 + bonus*0.3, capped at 1. The bonus
// only applies when the device is broadcasting away from its owner.
func categoryFactor(d models.DeviceRecord) float64 {
	base := categoryBase(d.DeviceType)
	bonus := 0.0
	if d.FindMySeparated {
		if d.IsTracker {
			bonus = separationBonusTracker
		} else {
			bonus = separationBonusOther
		}
	}
	f := base*0.7 + bonus*0.3
	if f > 1 {
		return 1
	}
	return f
}

// signalFactor grades the strongest signal ever observed in five tiers. A
// device once seen very close stays suspicious even if it is far now.
func signalFactor(highestRSSI int) float64 {
	switch {
	case highestRSSI >= -45:
		return 1.0 // very strong
	case highestRSSI >= -60:
		return 0.775
	case highestRSSI >= -75:
		return 0.55
	case highestRSSI >= -90:
		return 0.325
	default:
		return 0.1 // very weak
	}
}

func distanceFactor(maxDistance float64) float64 {
	f := maxDistance / maxDistanceCap
	if f > 1 {
		return 1
	}
	return f
}

// consistencyFactor tiers the average gap between consecutive sightings.
func consistencyFactor(sightings []models.SightingRecord) float64 {
	if len(sightings) < 2 {
		return 0.13
	}
	first, last := sightings[0].Timestamp, sightings[0].Timestamp
	for _, s := range sightings[1:] {
		if s.Timestamp.Before(first) {
			first = s.Timestamp
		}
		if s.Timestamp.After(last) {
			last = s.Timestamp
		}
	}
	avgGap := last.Sub(first) / time.Duration(len(sightings)-1)
	switch {
	case avgGap < time.Hour:
		return 1.0
	case avgGap < 6*time.Hour:
		return 0.67
	case avgGap < 24*time.Hour:
		return 0.33
	default:
		return 0.13
	}
}

// timeSpanFactor tiers the total tracked duration.
func timeSpanFactor(firstSeen, lastSeen time.Time) float64 {
	span := lastSeen.Sub(firstSeen)
	switch {
	case span < time.Hour:
		return 0.25
	case span < 24*time.Hour:
		return 0.75
	default:
		return 1.0
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
