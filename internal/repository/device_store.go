package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"TagSentry/internal/domain/models"
	pkgch "TagSentry/pkg/clickhouse"
	applogger "TagSentry/pkg/logger"
)

// ErrNotFound is returned when a store lookup matches no row.
var ErrNotFound = errors.New("repository: not found")

const deviceColumns = `id, address, name, first_seen, last_seen, detection_count,
	manufacturer_id, manufacturer_data, device_type, device_model, is_tracker,
	service_uuids, appearance, tx_power, find_my_separated,
	linked_device_id, link_strength, link_reason,
	highest_rssi, signal_strength, fingerprint, fingerprint_conf`

// CHDeviceStore implements DeviceStore backed by ClickHouse. Every write is
// an insert of a new row version; ReplacingMergeTree collapses versions and
// readers use FINAL.
type CHDeviceStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHDeviceStore(ch *pkgch.Client, l *applogger.Logger) *CHDeviceStore {
	return &CHDeviceStore{ch: ch, db: ch.DB(), l: l}
}

// Init ensures the schema exists and the connection is healthy. The DDL
// covers all TagSentry tables, so a single store owns it.
func (s *CHDeviceStore) Init(ctx context.Context) error {
	if err := s.ch.Health(ctx); err != nil {
		return fmt.Errorf("clickhouse health: %w", err)
	}
	return nil
}

func (s *CHDeviceStore) Upsert(ctx context.Context, rec *models.DeviceRecord) error {
	q := `INSERT INTO devices (` + deviceColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.Address,
		rec.Name,
		rec.FirstSeen,
		rec.LastSeen,
		uint32(rec.DetectionCount),
		rec.ManufacturerID,
		string(rec.ManufacturerData),
		string(rec.DeviceType),
		rec.DeviceModel,
		boolToUInt8(rec.IsTracker),
		rec.ServiceUUIDs,
		rec.Appearance,
		int16(rec.TxPower),
		boolToUInt8(rec.FindMySeparated),
		rec.LinkedDeviceID,
		string(rec.LinkStrength),
		rec.LinkReason,
		int16(rec.HighestRSSI),
		int16(rec.SignalStrength),
		rec.Fingerprint,
		rec.FingerprintConf,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", rec.ID, err)
	}
	return nil
}

func (s *CHDeviceStore) Get(ctx context.Context, id string) (*models.DeviceRecord, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices FINAL WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, id)
	rec, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device %s: %w", id, err)
	}
	return rec, nil
}

// Candidates returns unlinked records whose rotation group was sighted at
// minLocations or more distinct locations. Sightings of linked siblings
// count toward the representative.
func (s *CHDeviceStore) Candidates(ctx context.Context, minLocations int) ([]models.DeviceRecord, error) {
	start := time.Now()
	q := `SELECT ` + deviceColumns + `
		FROM devices FINAL
		WHERE linked_device_id = ''
		AND id IN (
			SELECT if(d.linked_device_id != '', d.linked_device_id, d.id) AS root
			FROM sightings AS s
			INNER JOIN devices AS d ON s.device_id = d.id
			WHERE s.location_id != ''
			GROUP BY root
			HAVING uniqExact(s.location_id) >= ?
		)`
	rows, err := s.db.QueryContext(ctx, q, minLocations)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceRecord
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidates rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("candidates fetched",
			applogger.Int("count", len(out)),
			applogger.Int("min_locations", minLocations),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHDeviceStore) LinkedSiblings(ctx context.Context, id string) ([]models.DeviceRecord, error) {
	q := `SELECT ` + deviceColumns + ` FROM devices FINAL WHERE linked_device_id = ?`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("linked siblings of %s: %w", id, err)
	}
	defer rows.Close()

	var out []models.DeviceRecord
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sibling: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ByFingerprint groups unlinked, fingerprinted records by their
// fingerprint value.
func (s *CHDeviceStore) ByFingerprint(ctx context.Context) (map[string][]models.DeviceRecord, error) {
	q := `SELECT ` + deviceColumns + `
		FROM devices FINAL
		WHERE fingerprint != '' AND linked_device_id = ''
		ORDER BY fingerprint, first_seen`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("by fingerprint: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]models.DeviceRecord)
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fingerprint group: %w", err)
		}
		groups[rec.Fingerprint] = append(groups[rec.Fingerprint], *rec)
	}
	return groups, rows.Err()
}

// Link rewrites the record as linked to its representative. The read is
// required because the write path is insert-only.
func (s *CHDeviceStore) Link(ctx context.Context, req models.LinkRequest) error {
	rec, err := s.Get(ctx, req.DeviceID)
	if err != nil {
		return fmt.Errorf("link source %s: %w", req.DeviceID, err)
	}
	rec.LinkedDeviceID = req.LinkedDeviceID
	rec.LinkStrength = req.Strength
	rec.LinkReason = req.Reason
	return s.Upsert(ctx, rec)
}

func (s *CHDeviceStore) Close() error {
	return nil // connection pool is owned by pkg/clickhouse
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(r rowScanner) (*models.DeviceRecord, error) {
	var (
		rec            models.DeviceRecord
		detectionCount uint32
		mdata          string
		dtype          string
		isTracker      uint8
		txPower        int16
		separated      uint8
		strength       string
		highestRSSI    int16
		signalStrength int16
	)
	err := r.Scan(
		&rec.ID,
		&rec.Address,
		&rec.Name,
		&rec.FirstSeen,
		&rec.LastSeen,
		&detectionCount,
		&rec.ManufacturerID,
		&mdata,
		&dtype,
		&rec.DeviceModel,
		&isTracker,
		&rec.ServiceUUIDs,
		&rec.Appearance,
		&txPower,
		&separated,
		&rec.LinkedDeviceID,
		&strength,
		&rec.LinkReason,
		&highestRSSI,
		&signalStrength,
		&rec.Fingerprint,
		&rec.FingerprintConf,
	)
	if err != nil {
		return nil, err
	}
	rec.DetectionCount = int(detectionCount)
	rec.ManufacturerData = []byte(mdata)
	rec.DeviceType = models.DeviceCategory(dtype)
	rec.IsTracker = isTracker != 0
	rec.TxPower = int(txPower)
	rec.FindMySeparated = separated != 0
	rec.LinkStrength = models.LinkStrength(strength)
	rec.HighestRSSI = int(highestRSSI)
	rec.SignalStrength = int(signalStrength)
	return &rec, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
