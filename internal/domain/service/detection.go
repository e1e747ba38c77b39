package service

import (
	"context"

	"TagSentry/internal/domain/models"
)

// Identifier resolves a raw advertisement into a device identity verdict.
type Identifier interface {
	Identify(s *models.Sighting) models.Identification
}

// Fingerprinter derives the best available address-independent identifier
// for a sighting. ok is false when no stable fingerprint exists.
type Fingerprinter interface {
	Fingerprint(s *models.Sighting, ident models.Identification) (models.Fingerprint, bool)
}

// RotationCorrelator groups device records across hardware-address
// rotations. Shadows returns the MAC-agnostic detection candidates; a
// failure is reported as an error, never a panic across this boundary.
type RotationCorrelator interface {
	HandoffScore(records []models.DeviceRecord) float64
	Shadows(ctx context.Context) ([]models.ShadowDetectionResult, error)
}

// MovementCorrelator compares one device's sighting history against the
// user's own trail.
type MovementCorrelator interface {
	Correlate(deviceLocations []models.Location, deviceSightings []models.SightingRecord,
		userLocations []models.Location, userPath []models.UserPathPoint) models.MovementAnalysis
}

// ThreatScorer combines the correlation signals into one normalized score.
type ThreatScorer interface {
	Score(in models.ScoreInput) float64
	ScoreLegacy(in models.ScoreInput) float64
	WeakLinkDiscount(siblings []models.DeviceRecord) float64
}
