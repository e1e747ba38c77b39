package models

import "time"

// ThreatLevel buckets a threat score into the words surfaced to users.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "LOW"
	ThreatMedium   ThreatLevel = "MEDIUM"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

// LevelForScore maps a normalized threat score to its level word.
func LevelForScore(score float64) ThreatLevel {
	switch {
	case score >= 0.9:
		return ThreatCritical
	case score >= 0.75:
		return ThreatHigh
	case score >= 0.6:
		return ThreatMedium
	default:
		return ThreatLow
	}
}

// DetectionResult is one suspicious device produced by a sweep. Results
// are built fresh on every run and never persisted by the core.
type DetectionResult struct {
	Device      DeviceRecord
	Locations   []Location
	Score       float64
	Level       ThreatLevel
	MaxDistance float64
	AvgDistance float64
	Reason      string
	DetectedAt  time.Time
}

// ShadowDetectionResult is the MAC-agnostic detection path's output: many
// rotating addresses grouped under one shared fingerprint ("shadow key").
type ShadowDetectionResult struct {
	Device        DeviceRecord
	ShadowKey     string
	Persistence   float64
	Rotation      float64
	Combined      float64
	LocationCount int
}

// Identification is the advertisement parser's verdict for one payload.
type Identification struct {
	Category         DeviceCategory
	Model            string
	IsTracker        bool
	ManufacturerID   uint16
	ManufacturerName string
	Confidence       float64
	Method           IdentificationMethod
	// Separated reports the owner-separation bit of offline-finding
	// payloads; meaningful only for tracker verdicts.
	Separated bool
}

// IdentificationMethod names the signal the parser resolved on.
type IdentificationMethod string

const (
	MethodServiceUUID      IdentificationMethod = "service_uuid"
	MethodManufacturerData IdentificationMethod = "manufacturer_data"
	MethodAppearance       IdentificationMethod = "appearance"
	MethodName             IdentificationMethod = "name"
	MethodNone             IdentificationMethod = "none"
)

// Fingerprint is a derived, address-independent identifier believed to be
// stable across address rotations of one physical device.
type Fingerprint struct {
	Value      string
	Confidence float64
	Source     FingerprintSource
}

// FingerprintSource names the derivation that produced a fingerprint.
type FingerprintSource string

const (
	SourceProtocolPayload FingerprintSource = "protocol_payload"
	SourceServiceUUID     FingerprintSource = "service_uuid"
	SourceComposite       FingerprintSource = "composite"
)
