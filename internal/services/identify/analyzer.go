package identify

import (
	"TagSentry/internal/domain/models"
)

// Inference is one manufacturer decoder's verdict for a payload.
type Inference struct {
	Category   models.DeviceCategory
	Model      string
	IsTracker  bool
	Confidence float64
	Separated  bool // device is broadcasting away from its owner
	Resolved   bool
}

// Analyzer decodes one vendor's manufacturer-specific payload framing.
// Implementations must be pure: no state, no side effects, and they must
// tolerate empty or truncated payloads.
type Analyzer interface {
	Analyze(payload []byte, serviceUUIDs []string, rssi int, name string) Inference
}

// Registry maps Bluetooth SIG company identifiers to their decoder.
// Vendors are added by registering an Analyzer, not by growing a
// conditional chain.
type Registry struct {
	analyzers map[uint16]Analyzer
}

func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[uint16]Analyzer)}
}

// Register binds a decoder to a company identifier. Later registrations
// replace earlier ones.
func (r *Registry) Register(manufacturerID uint16, a Analyzer) {
	r.analyzers[manufacturerID] = a
}

// Lookup returns the decoder for a company identifier, if any.
func (r *Registry) Lookup(manufacturerID uint16) (Analyzer, bool) {
	a, ok := r.analyzers[manufacturerID]
	return a, ok
}

// DefaultRegistry returns a registry with all built-in vendor decoders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ManufacturerApple, AppleAnalyzer{})
	r.Register(ManufacturerSamsung, SamsungAnalyzer{})
	r.Register(ManufacturerTile, TileAnalyzer{})
	r.Register(ManufacturerChipolo, ChipoloAnalyzer{})
	return r
}
