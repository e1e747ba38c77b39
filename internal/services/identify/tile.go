package identify

import (
	"TagSentry/internal/domain/models"
)

// TileAnalyzer handles Tile manufacturer payloads. Tile advertises its
// dedicated service UUID most of the time, so this decoder only backs up
// the service-table match when the UUID list was not captured.
type TileAnalyzer struct{}

func (TileAnalyzer) Analyze(payload []byte, _ []string, _ int, _ string) Inference {
	if len(payload) == 0 {
		return Inference{}
	}
	return Inference{
		Category:   models.CategoryTracker,
		Model:      "Tile",
		IsTracker:  true,
		Confidence: 0.90,
		Resolved:   true,
	}
}

// ChipoloAnalyzer handles Chipolo manufacturer payloads; everything under
// this company identifier is a tracker product.
type ChipoloAnalyzer struct{}

func (ChipoloAnalyzer) Analyze(payload []byte, _ []string, _ int, _ string) Inference {
	if len(payload) == 0 {
		return Inference{}
	}
	return Inference{
		Category:   models.CategoryTracker,
		Model:      "Chipolo",
		IsTracker:  true,
		Confidence: 0.90,
		Resolved:   true,
	}
}
