package gateway

import (
	"encoding/hex"
	"strings"
	"time"

	"TagSentry/internal/domain/models"
)

// decodeSighting maps one wire frame entry to the domain type. Frames
// without an address are unusable and dropped.
func decodeSighting(d wsSighting) *models.Sighting {
	addr := strings.ToUpper(strings.TrimSpace(d.Address))
	if addr == "" {
		return nil
	}

	var mdata []byte
	if d.Manufacturer != "" {
		if b, err := hex.DecodeString(d.Manufacturer); err == nil {
			mdata = b
		}
	}

	ts := time.Now()
	if d.Timestamp > 0 {
		ts = time.UnixMilli(d.Timestamp)
	}

	return &models.Sighting{
		DeviceID:         addr,
		Address:          addr,
		Name:             strings.TrimSpace(d.Name),
		ManufacturerID:   d.ManufacturerID,
		ManufacturerData: mdata,
		ServiceUUIDs:     d.ServiceUUIDs,
		RSSI:             d.RSSI,
		TxPower:          d.TxPower,
		Appearance:       d.Appearance,
		Timestamp:        ts,
		LocationID:       d.LocationID,
	}
}
