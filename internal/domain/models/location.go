package models

import "time"

// Location is a single GPS fix recorded by the location subsystem.
// Immutable; the detection core only reads these.
type Location struct {
	ID        string
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
	Provider  string
}

// UserPathPoint is one step of the user's fine-grained movement trail: a
// timestamped pointer into the location table. Consecutive points may
// repeat the same location id while the user lingers.
type UserPathPoint struct {
	LocationID string
	Timestamp  time.Time
}

// Settings are the caller-supplied detection thresholds.
type Settings struct {
	AlertThresholdCount        int
	MinDetectionDistanceMeters float64
}
