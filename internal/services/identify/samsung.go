package identify

import (
	"TagSentry/internal/domain/models"
)

// Samsung advertisement frame types (first payload byte).
const (
	samsungTypeSmartTag byte = 0x02
	samsungTypeGalaxy   byte = 0x01
	samsungTypeWatch    byte = 0x03
	samsungTypeBuds     byte = 0x09
)

// smart tag status byte: bit 1 set when the tag is in overmature offline
// mode, i.e. broadcasting without its owner nearby.
const samsungSeparatedBit = 0x02

// SamsungAnalyzer decodes Samsung advertisement frames. SmartTag frames
// are a strong tracker signal; Galaxy phone, watch and earbud frames share
// the same company identifier and must stay low-stakes.
type SamsungAnalyzer struct{}

func (SamsungAnalyzer) Analyze(payload []byte, _ []string, _ int, _ string) Inference {
	if len(payload) == 0 {
		return Inference{}
	}
	switch payload[0] {
	case samsungTypeSmartTag:
		inf := Inference{
			Category:   models.CategoryTracker,
			Model:      "Galaxy SmartTag",
			IsTracker:  true,
			Confidence: 0.95,
			Resolved:   true,
		}
		if len(payload) >= 2 && payload[1]&samsungSeparatedBit != 0 {
			inf.Separated = true
		}
		return inf
	case samsungTypeGalaxy:
		return Inference{
			Category:   models.CategoryPhone,
			Confidence: 0.50,
			Resolved:   true,
		}
	case samsungTypeWatch:
		return Inference{
			Category:   models.CategoryWatch,
			Model:      "Galaxy Watch",
			Confidence: 0.60,
			Resolved:   true,
		}
	case samsungTypeBuds:
		return Inference{
			Category:   models.CategoryHeadphones,
			Model:      "Galaxy Buds",
			Confidence: 0.60,
			Resolved:   true,
		}
	}
	return Inference{}
}
