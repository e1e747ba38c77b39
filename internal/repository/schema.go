package repository

// SchemaStatements returns idempotent DDL for all TagSentry tables.
// Device records use ReplacingMergeTree so upserts and link updates are
// plain inserts; readers query with FINAL.
func SchemaStatements(database string) []string {
	return []string{
		`CREATE DATABASE IF NOT EXISTS ` + database,

		`CREATE TABLE IF NOT EXISTS ` + database + `.devices (
			id                 String,
			address            String,
			name               String,
			first_seen         DateTime64(3),
			last_seen          DateTime64(3),
			detection_count    UInt32,
			manufacturer_id    UInt16,
			manufacturer_data  String,
			device_type        LowCardinality(String),
			device_model       String,
			is_tracker         UInt8,
			service_uuids      Array(String),
			appearance         UInt16,
			tx_power           Int16,
			find_my_separated  UInt8,
			linked_device_id   String,
			link_strength      LowCardinality(String),
			link_reason        String,
			highest_rssi       Int16,
			signal_strength    Int16,
			fingerprint        String,
			fingerprint_conf   Float64,
			updated_at         DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY id`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.sightings (
			device_id          String,
			address            String,
			name               String,
			manufacturer_id    UInt16,
			manufacturer_data  String,
			service_uuids      Array(String),
			rssi               Int16,
			tx_power           Int16,
			appearance         UInt16,
			ts                 DateTime64(3),
			location_id        String,
			source             LowCardinality(String)
		) ENGINE = MergeTree
		PARTITION BY toYYYYMMDD(ts)
		ORDER BY (device_id, ts)
		TTL toDateTime(ts) + INTERVAL 30 DAY`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.locations (
			id         String,
			latitude   Float64,
			longitude  Float64,
			accuracy   Float64,
			ts         DateTime64(3),
			provider   LowCardinality(String)
		) ENGINE = ReplacingMergeTree(ts)
		ORDER BY id`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.user_path (
			location_id  String,
			ts           DateTime64(3)
		) ENGINE = MergeTree
		ORDER BY ts
		TTL toDateTime(ts) + INTERVAL 30 DAY`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.settings (
			id                        String,
			alert_threshold_count     Int32,
			min_detection_distance_m  Float64,
			updated_at                DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY id`,

		`CREATE TABLE IF NOT EXISTS ` + database + `.whitelist (
			device_id   String,
			note        String,
			removed     UInt8,
			updated_at  DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY device_id`,
	}
}
