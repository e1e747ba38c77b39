package identify

import (
	"TagSentry/internal/domain/models"
)

// Apple continuity message types. The first payload byte discriminates the
// frame; only offline-finding frames identify trackers.
const (
	appleTypeIBeacon         byte = 0x02
	appleTypeAirDrop         byte = 0x05
	appleTypeHomeKit         byte = 0x06
	appleTypeProximityPair   byte = 0x07
	appleTypeAirPlayTarget   byte = 0x09
	appleTypeNearbyAction    byte = 0x0F
	appleTypeNearbyInfo      byte = 0x10
	appleTypeHandoff         byte = 0x0C
	appleTypeOfflineFinding  byte = 0x12
)

// offline-finding status byte: bit 2 set means the device has been away
// from its owner long enough to enter the separated broadcast state.
const appleSeparatedBit = 0x04

// AppleAnalyzer decodes Apple continuity frames. The offline-finding frame
// (0x12) is the highest-confidence tracker signal this package knows; the
// remaining frame types come from phones, tablets and accessories and must
// never be flagged as trackers.
type AppleAnalyzer struct{}

func (AppleAnalyzer) Analyze(payload []byte, _ []string, _ int, _ string) Inference {
	if len(payload) == 0 {
		return Inference{}
	}
	switch payload[0] {
	case appleTypeOfflineFinding:
		inf := Inference{
			Category:   models.CategoryTracker,
			Model:      "Find My device",
			IsTracker:  true,
			Confidence: 0.98,
			Resolved:   true,
		}
		if len(payload) >= 3 && payload[2]&appleSeparatedBit != 0 {
			inf.Separated = true
		}
		return inf
	case appleTypeProximityPair:
		return Inference{
			Category:   models.CategoryHeadphones,
			Model:      "AirPods",
			Confidence: 0.90,
			Resolved:   true,
		}
	case appleTypeNearbyInfo, appleTypeNearbyAction, appleTypeHandoff, appleTypeAirDrop:
		// Ordinary phone/tablet chatter. Low stakes on purpose.
		return Inference{
			Category:   models.CategoryPhone,
			Confidence: 0.50,
			Resolved:   true,
		}
	case appleTypeAirPlayTarget:
		return Inference{
			Category:   models.CategoryBeacon,
			Model:      "AirPlay target",
			Confidence: 0.60,
			Resolved:   true,
		}
	case appleTypeIBeacon:
		return Inference{
			Category:   models.CategoryBeacon,
			Model:      "iBeacon",
			Confidence: 0.70,
			Resolved:   true,
		}
	case appleTypeHomeKit:
		return Inference{
			Category:   models.CategoryBeacon,
			Model:      "HomeKit accessory",
			Confidence: 0.60,
			Resolved:   true,
		}
	}
	return Inference{}
}
