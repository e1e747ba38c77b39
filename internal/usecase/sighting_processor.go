package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TagSentry/internal/domain/models"
	drepo "TagSentry/internal/domain/repository"
	"TagSentry/internal/domain/service"
	"TagSentry/internal/repository"
	pkgkafka "TagSentry/pkg/kafka"
)

// SightingProcessor enriches raw sightings and routes them to the
// configured backend. With the "kafka" backend frames are published raw
// and enriched by the consumer side; with "clickhouse" they are enriched
// and stored in-process.
type SightingProcessor struct {
	identifier    service.Identifier
	fingerprinter service.Fingerprinter
	devices       drepo.DeviceStore
	sightings     drepo.SightingStore
	producer      *pkgkafka.Producer
	topic         string
	metrics       drepo.Metrics
	backend       string
	source        string
}

// NewSightingProcessor creates a new SightingProcessor instance.
func NewSightingProcessor(
	identifier service.Identifier,
	fingerprinter service.Fingerprinter,
	devices drepo.DeviceStore,
	sightings drepo.SightingStore,
	producer *pkgkafka.Producer,
	topic string,
	metrics drepo.Metrics,
	backend string,
) *SightingProcessor {
	return &SightingProcessor{
		identifier:    identifier,
		fingerprinter: fingerprinter,
		devices:       devices,
		sightings:     sightings,
		producer:      producer,
		topic:         topic,
		metrics:       metrics,
		backend:       backend,
		source:        "gateway",
	}
}

// Process routes a single sighting to the configured backend.
func (p *SightingProcessor) Process(ctx context.Context, s *models.Sighting) error {
	if s == nil {
		return fmt.Errorf("sighting is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.publish(ctx, s)
	case "clickhouse":
		err = p.Ingest(ctx, s)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process sighting: %w", err)
	}

	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// Ingest enriches one sighting and persists it together with the updated
// device record. This is the single write path shared by the direct
// backend and the Kafka consumer.
func (p *SightingProcessor) Ingest(ctx context.Context, s *models.Sighting) error {
	ident := p.identifier.Identify(s)
	fp, hasFP := p.fingerprinter.Fingerprint(s, ident)

	rec, err := p.mergeRecord(ctx, s, ident)
	if err != nil {
		return err
	}
	if hasFP && fp.Confidence >= rec.FingerprintConf {
		rec.Fingerprint = fp.Value
		rec.FingerprintConf = fp.Confidence
	}

	if err := p.devices.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	if err := p.sightings.Store(ctx, s); err != nil {
		return fmt.Errorf("store sighting: %w", err)
	}

	p.metrics.RecordSightingIngested(p.source, string(rec.DeviceType))
	return nil
}

// SetSource overrides the ingestion source label used in metrics.
func (p *SightingProcessor) SetSource(source string) {
	if source != "" {
		p.source = source
	}
}

// mergeRecord folds a sighting into the existing device record, or starts
// a fresh one. Tracker verdicts and owner separation are sticky: one
// confident resolution is not erased by a later generic frame.
func (p *SightingProcessor) mergeRecord(ctx context.Context, s *models.Sighting, ident models.Identification) (*models.DeviceRecord, error) {
	rec, err := p.devices.Get(ctx, s.DeviceID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("get device: %w", err)
		}
		rec = &models.DeviceRecord{
			ID:        s.DeviceID,
			Address:   s.Address,
			FirstSeen: s.Timestamp,
			LastSeen:  s.Timestamp,
			// the store keeps the loudest frame ever heard
			HighestRSSI: s.RSSI,
		}
	}

	rec.DetectionCount++
	if s.Timestamp.After(rec.LastSeen) {
		rec.LastSeen = s.Timestamp
	}
	if s.Timestamp.Before(rec.FirstSeen) || rec.FirstSeen.IsZero() {
		rec.FirstSeen = s.Timestamp
	}
	if s.Name != "" {
		rec.Name = s.Name
	}
	if s.RSSI > rec.HighestRSSI {
		rec.HighestRSSI = s.RSSI
	}
	rec.SignalStrength = s.RSSI
	if s.TxPower != 0 {
		rec.TxPower = s.TxPower
	}
	if s.Appearance != 0 {
		rec.Appearance = s.Appearance
	}
	if len(s.ServiceUUIDs) > 0 {
		rec.ServiceUUIDs = s.ServiceUUIDs
	}
	if len(s.ManufacturerData) > 0 {
		rec.ManufacturerData = s.ManufacturerData
		rec.ManufacturerID = s.ManufacturerID
	}

	if ident.Confidence > 0 {
		if ident.Category != models.CategoryUnknown && (rec.DeviceType == models.CategoryUnknown || rec.DeviceType == "" || ident.IsTracker) {
			rec.DeviceType = ident.Category
		}
		if ident.Model != "" {
			rec.DeviceModel = ident.Model
		}
	}
	if ident.IsTracker {
		rec.IsTracker = true
	}
	if ident.Separated {
		rec.FindMySeparated = true
	}

	return rec, nil
}

func (p *SightingProcessor) publish(ctx context.Context, s *models.Sighting) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Address), map[string]interface{}{
		"addr":        s.Address,
		"name":        s.Name,
		"mfg_id":      s.ManufacturerID,
		"mfg_data":    fmt.Sprintf("%x", s.ManufacturerData),
		"svc_uuids":   s.ServiceUUIDs,
		"rssi":        s.RSSI,
		"tx_power":    s.TxPower,
		"appearance":  s.Appearance,
		"ts":          s.Timestamp.UnixMilli(),
		"location_id": s.LocationID,
	})
}

// Close closes underlying resources if available.
func (p *SightingProcessor) Close() {
	if p.producer != nil {
		_ = p.producer.Close()
	}
	if p.sightings != nil {
		_ = p.sightings.Close()
	}
}
