package repository

import (
	"context"
	"database/sql"
	"fmt"

	"TagSentry/internal/domain/models"
	pkgch "TagSentry/pkg/clickhouse"
)

const locationColumns = `id, latitude, longitude, accuracy, ts, provider`

// CHLocationStore implements LocationStore backed by ClickHouse. The
// locations table is the user's own movement history as recorded by the
// companion app; the detection core only reads it.
type CHLocationStore struct {
	db *sql.DB
}

func NewCHLocationStore(ch *pkgch.Client) *CHLocationStore {
	return &CHLocationStore{db: ch.DB()}
}

// ForDevice returns the distinct locations the device (or any record
// linked to it) was sighted at.
func (s *CHLocationStore) ForDevice(ctx context.Context, deviceID string) ([]models.Location, error) {
	q := `SELECT DISTINCT l.id, l.latitude, l.longitude, l.accuracy, l.ts, l.provider
		FROM locations AS l FINAL
		INNER JOIN sightings AS sg ON sg.location_id = l.id
		WHERE sg.device_id IN (
			SELECT id FROM devices FINAL WHERE id = ? OR linked_device_id = ?
		)
		ORDER BY l.ts ASC`
	return s.queryLocations(ctx, q, deviceID, deviceID)
}

func (s *CHLocationStore) UserLocations(ctx context.Context) ([]models.Location, error) {
	q := `SELECT ` + locationColumns + ` FROM locations FINAL ORDER BY ts ASC`
	return s.queryLocations(ctx, q)
}

func (s *CHLocationStore) UserPath(ctx context.Context) ([]models.UserPathPoint, error) {
	q := `SELECT location_id, ts FROM user_path ORDER BY ts ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("user path: %w", err)
	}
	defer rows.Close()

	var out []models.UserPathPoint
	for rows.Next() {
		var p models.UserPathPoint
		if err := rows.Scan(&p.LocationID, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan path point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordLocation inserts one user location fix.
func (s *CHLocationStore) RecordLocation(ctx context.Context, loc *models.Location) error {
	q := `INSERT INTO locations (` + locationColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		loc.ID, loc.Latitude, loc.Longitude, loc.Accuracy, loc.Timestamp, loc.Provider)
	if err != nil {
		return fmt.Errorf("record location %s: %w", loc.ID, err)
	}
	return nil
}

// RecordPathPoint appends one step to the user's movement trail.
func (s *CHLocationStore) RecordPathPoint(ctx context.Context, p models.UserPathPoint) error {
	q := `INSERT INTO user_path (location_id, ts) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, q, p.LocationID, p.Timestamp); err != nil {
		return fmt.Errorf("record path point: %w", err)
	}
	return nil
}

func (s *CHLocationStore) queryLocations(ctx context.Context, q string, args ...interface{}) ([]models.Location, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Latitude, &l.Longitude, &l.Accuracy, &l.Timestamp, &l.Provider); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
