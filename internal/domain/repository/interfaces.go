package repository

import (
	"context"

	"TagSentry/internal/domain/models"
)

// SightingStream is a live feed of sightings from a scanner gateway.
type SightingStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Sighting, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// DeviceStore maintains per-address device records, including the
// link bookkeeping requested by the rotation correlator.
type DeviceStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Upsert(ctx context.Context, rec *models.DeviceRecord) error
	Get(ctx context.Context, id string) (*models.DeviceRecord, error)
	// Candidates returns records with at least minLocations distinct
	// locations, pre-aggregated across linked addresses.
	Candidates(ctx context.Context, minLocations int) ([]models.DeviceRecord, error)
	// LinkedSiblings returns all records whose LinkedDeviceID points at id.
	LinkedSiblings(ctx context.Context, id string) ([]models.DeviceRecord, error)
	// ByFingerprint groups unlinked records by their fingerprint value.
	ByFingerprint(ctx context.Context) (map[string][]models.DeviceRecord, error)
	Link(ctx context.Context, req models.LinkRequest) error
	Close() error
}

// SightingStore persists raw sightings.
type SightingStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.Sighting) error
	StoreBatch(ctx context.Context, ss []*models.Sighting) error
	// ForDevice returns the slim sighting rows for one device,
	// aggregated across its linked addresses.
	ForDevice(ctx context.Context, deviceID string) ([]models.SightingRecord, error)
	Close() error
}

// LocationStore exposes the location history the detection core reads.
type LocationStore interface {
	// ForDevice returns the locations a device was sighted at,
	// aggregated across linked addresses by the store.
	ForDevice(ctx context.Context, deviceID string) ([]models.Location, error)
	// UserLocations returns the user's visited location set.
	UserLocations(ctx context.Context) ([]models.Location, error)
	// UserPath returns the user's fine-grained movement trail.
	UserPath(ctx context.Context) ([]models.UserPathPoint, error)
}

// SettingsStore loads detection thresholds. A load failure is
// configuration-level and propagates out of a sweep.
type SettingsStore interface {
	Load(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// WhitelistStore tracks device ids the user has excused.
type WhitelistStore interface {
	IDs(ctx context.Context) (map[string]struct{}, error)
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, deviceID, note string) error
	Remove(ctx context.Context, deviceID string) error
}

// AlertPublisher hands high-scoring results to the delivery system.
// Delivery itself is outside the core.
type AlertPublisher interface {
	Publish(ctx context.Context, res *models.DetectionResult) error
	Close() error
}

// Metrics records operational counters for the detection service.
type Metrics interface {
	RecordSightingIngested(source string, category string)
	RecordDetection(level string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordCandidates(n int)
}
