package models

import "time"

// DeviceCategory is the coarse class inferred for a radio device.
type DeviceCategory string

const (
	CategoryUnknown    DeviceCategory = "UNKNOWN"
	CategoryTracker    DeviceCategory = "TRACKER"
	CategoryPhone      DeviceCategory = "PHONE"
	CategoryTablet     DeviceCategory = "TABLET"
	CategoryWatch      DeviceCategory = "WATCH"
	CategoryHeadphones DeviceCategory = "HEADPHONES"
	CategoryLaptop     DeviceCategory = "LAPTOP"
	CategoryBeacon     DeviceCategory = "BEACON"
)

// LinkStrength grades an inferred address-to-address linkage.
// STRONG derives from stable identifiers, WEAK from circumstantial
// correlation such as rotation timing.
type LinkStrength string

const (
	LinkStrong LinkStrength = "STRONG"
	LinkWeak   LinkStrength = "WEAK"
)

// DeviceRecord is the per-hardware-address aggregation maintained by the
// device store. A record with LinkedDeviceID set is never itself the target
// of another record's link; the correlator flattens chains to a single
// representative before requesting links.
type DeviceRecord struct {
	ID               string
	Address          string
	Name             string
	FirstSeen        time.Time
	LastSeen         time.Time
	DetectionCount   int
	ManufacturerData []byte
	ManufacturerID   uint16
	DeviceType       DeviceCategory
	DeviceModel      string
	IsTracker        bool
	ServiceUUIDs     []string
	Appearance       uint16
	TxPower          int
	FindMySeparated  bool
	LinkedDeviceID   string
	LinkStrength     LinkStrength
	LinkReason       string
	HighestRSSI      int
	SignalStrength   int
	Fingerprint      string
	FingerprintConf  float64
}

// Linked reports whether this record has been linked to another address.
func (d *DeviceRecord) Linked() bool { return d.LinkedDeviceID != "" }

// Label returns the best human-readable handle for the device.
func (d *DeviceRecord) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.DeviceModel != "" {
		return d.DeviceModel
	}
	return d.Address
}

// LinkRequest asks the device store to mark one record as a rotation of
// another. Links are stored as plain foreign-key ids, never live
// references.
type LinkRequest struct {
	DeviceID       string
	LinkedDeviceID string
	Strength       LinkStrength
	Reason         string
}

// Sighting is one observation of a radio device. Immutable once recorded.
type Sighting struct {
	DeviceID         string
	Address          string
	Name             string
	ManufacturerID   uint16
	ManufacturerData []byte
	ServiceUUIDs     []string
	RSSI             int
	TxPower          int
	Appearance       uint16
	Timestamp        time.Time
	LocationID       string
}

// SightingRecord is the slim per-sighting row the detection pipeline
// consumes: where and when a known device was heard, and how loudly.
type SightingRecord struct {
	DeviceID   string
	LocationID string
	RSSI       int
	Timestamp  time.Time
}
