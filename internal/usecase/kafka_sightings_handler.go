package usecase

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"TagSentry/internal/domain/models"
	domrepo "TagSentry/internal/domain/repository"
	pkgkafka "TagSentry/pkg/kafka"
)

// KafkaSightingsHandler consumes sighting frames from Kafka and feeds
// them through the shared ingest path.
type KafkaSightingsHandler struct {
	topic   string
	proc    *SightingProcessor
	metrics domrepo.Metrics
}

func NewKafkaSightingsHandler(topic string, proc *SightingProcessor, metrics domrepo.Metrics) *KafkaSightingsHandler {
	return &KafkaSightingsHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaSightingsHandler) Topic() string { return h.topic }

// incoming message schema mirrors the gateway wire frame entry.
func (h *KafkaSightingsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Address        string   `json:"addr"`
		Name           string   `json:"name"`
		ManufacturerID uint16   `json:"mfg_id"`
		Manufacturer   string   `json:"mfg_data"`
		ServiceUUIDs   []string `json:"svc_uuids"`
		RSSI           int      `json:"rssi"`
		TxPower        int      `json:"tx_power"`
		Appearance     uint16   `json:"appearance"`
		Timestamp      int64    `json:"ts"` // ms
		LocationID     string   `json:"location_id"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	addr := strings.ToUpper(strings.TrimSpace(m.Address))
	if addr == "" {
		h.metrics.RecordError("consumer_empty_address")
		return nil // nothing to retry
	}

	var mdata []byte
	if m.Manufacturer != "" {
		if decoded, err := hex.DecodeString(m.Manufacturer); err == nil {
			mdata = decoded
		}
	}
	ts := time.Now()
	if m.Timestamp > 0 {
		ts = time.UnixMilli(m.Timestamp)
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())

	start := time.Now()
	err := h.proc.Ingest(ctx, &models.Sighting{
		DeviceID:         addr,
		Address:          addr,
		Name:             strings.TrimSpace(m.Name),
		ManufacturerID:   m.ManufacturerID,
		ManufacturerData: mdata,
		ServiceUUIDs:     m.ServiceUUIDs,
		RSSI:             m.RSSI,
		TxPower:          m.TxPower,
		Appearance:       m.Appearance,
		Timestamp:        ts,
		LocationID:       m.LocationID,
	})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_ingest")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSightingsHandler)(nil)
