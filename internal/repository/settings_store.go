package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"TagSentry/internal/domain/models"
	pkgch "TagSentry/pkg/clickhouse"
)

const settingsRowID = "default"

// CHSettingsStore implements SettingsStore as a single versioned row.
type CHSettingsStore struct {
	db       *sql.DB
	defaults models.Settings
}

func NewCHSettingsStore(ch *pkgch.Client, defaults models.Settings) *CHSettingsStore {
	return &CHSettingsStore{db: ch.DB(), defaults: defaults}
}

// Load returns the stored settings, falling back to configured defaults
// when nothing was saved yet. Query failures propagate: settings gate the
// whole sweep and a silent fallback would hide misconfiguration.
func (s *CHSettingsStore) Load(ctx context.Context) (models.Settings, error) {
	q := `SELECT alert_threshold_count, min_detection_distance_m
		FROM settings FINAL WHERE id = ?`
	var out models.Settings
	err := s.db.QueryRowContext(ctx, q, settingsRowID).
		Scan(&out.AlertThresholdCount, &out.MinDetectionDistanceMeters)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults, nil
		}
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return out, nil
}

func (s *CHSettingsStore) Save(ctx context.Context, set models.Settings) error {
	q := `INSERT INTO settings (id, alert_threshold_count, min_detection_distance_m, updated_at)
		VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		settingsRowID, set.AlertThresholdCount, set.MinDetectionDistanceMeters, time.Now())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// CHWhitelistStore implements WhitelistStore. Removal is a tombstone row
// so that ReplacingMergeTree keeps the latest verdict per device.
type CHWhitelistStore struct {
	db *sql.DB
}

func NewCHWhitelistStore(ch *pkgch.Client) *CHWhitelistStore {
	return &CHWhitelistStore{db: ch.DB()}
}

func (s *CHWhitelistStore) IDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *CHWhitelistStore) List(ctx context.Context) ([]string, error) {
	q := `SELECT device_id FROM whitelist FINAL WHERE removed = 0 ORDER BY device_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list whitelist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan whitelist: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *CHWhitelistStore) Add(ctx context.Context, deviceID, note string) error {
	return s.write(ctx, deviceID, note, 0)
}

func (s *CHWhitelistStore) Remove(ctx context.Context, deviceID string) error {
	return s.write(ctx, deviceID, "", 1)
}

func (s *CHWhitelistStore) write(ctx context.Context, deviceID, note string, removed uint8) error {
	q := `INSERT INTO whitelist (device_id, note, removed, updated_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, deviceID, note, removed, time.Now()); err != nil {
		return fmt.Errorf("write whitelist %s: %w", deviceID, err)
	}
	return nil
}
