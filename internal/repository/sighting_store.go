package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TagSentry/internal/domain/models"
	pkgch "TagSentry/pkg/clickhouse"
	applogger "TagSentry/pkg/logger"
)

// CHSightingStore implements SightingStore backed by ClickHouse.
type CHSightingStore struct {
	ch     *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
	source string
}

func NewCHSightingStore(ch *pkgch.Client, source string, l *applogger.Logger) *CHSightingStore {
	if source == "" {
		source = "gateway"
	}
	return &CHSightingStore{ch: ch, db: ch.DB(), l: l, source: source}
}

func (s *CHSightingStore) Init(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHSightingStore) Store(ctx context.Context, sg *models.Sighting) error {
	q := `INSERT INTO sightings
		(device_id, address, name, manufacturer_id, manufacturer_data, service_uuids,
		 rssi, tx_power, appearance, ts, location_id, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, sightingArgs(sg, s.source)...)
	if err != nil {
		return fmt.Errorf("store sighting %s: %w", sg.DeviceID, err)
	}
	return nil
}

// StoreBatch inserts sightings in chunks to bound statement size.
func (s *CHSightingStore) StoreBatch(ctx context.Context, ss []*models.Sighting) error {
	if len(ss) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(ss); start += chunkSize {
		end := start + chunkSize
		if end > len(ss) {
			end = len(ss)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*12)
		for _, sg := range ss[start:end] {
			if sg == nil || sg.DeviceID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, sightingArgs(sg, s.source)...)
		}
		if len(values) == 0 {
			continue
		}

		q := `INSERT INTO sightings
			(device_id, address, name, manufacturer_id, manufacturer_data, service_uuids,
			 rssi, tx_power, appearance, ts, location_id, source)
			VALUES ` + strings.Join(values, ",")
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store sighting batch: %w", err)
		}
	}
	return nil
}

// ForDevice returns the slim sighting rows for a device and every record
// linked to it, ordered by time.
func (s *CHSightingStore) ForDevice(ctx context.Context, deviceID string) ([]models.SightingRecord, error) {
	start := time.Now()
	q := `SELECT device_id, location_id, rssi, ts
		FROM sightings
		WHERE device_id IN (
			SELECT id FROM devices FINAL WHERE id = ? OR linked_device_id = ?
		)
		ORDER BY ts ASC`
	rows, err := s.db.QueryContext(ctx, q, deviceID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("sightings for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var out []models.SightingRecord
	for rows.Next() {
		var (
			rec  models.SightingRecord
			rssi int16
		)
		if err := rows.Scan(&rec.DeviceID, &rec.LocationID, &rssi, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		rec.RSSI = int(rssi)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sighting rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("sightings fetched",
			applogger.String("device", deviceID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHSightingStore) Close() error {
	return nil // connection pool is owned by pkg/clickhouse
}

func sightingArgs(sg *models.Sighting, source string) []interface{} {
	return []interface{}{
		sg.DeviceID,
		sg.Address,
		sg.Name,
		sg.ManufacturerID,
		string(sg.ManufacturerData),
		sg.ServiceUUIDs,
		int16(sg.RSSI),
		int16(sg.TxPower),
		sg.Appearance,
		sg.Timestamp,
		sg.LocationID,
		source,
	}
}
