package identify

import (
	"strings"

	"TagSentry/internal/domain/models"
)

// serviceProduct is one row of the fixed service-UUID table.
type serviceProduct struct {
	model        string
	manufacturer uint16
}

// trackerServices maps 16-bit advertised service identifiers to known
// tracker products. Service UUIDs do not rotate, which makes this the most
// reliable signal the parser has; it is checked before everything else.
var trackerServices = map[string]serviceProduct{
	"feed": {model: "Tile", manufacturer: ManufacturerTile},
	"feec": {model: "Tile", manufacturer: ManufacturerTile},
	"fd5a": {model: "Galaxy SmartTag", manufacturer: ManufacturerSamsung},
	"fe33": {model: "Chipolo", manufacturer: ManufacturerChipolo},
}

// Appearance categories (upper 10 bits of the 16-bit appearance value).
const (
	appearanceCategoryTag     = 0x008 // generic tag
	appearanceCategoryKeyring = 0x009
	appearanceCategoryPhone   = 0x001
	appearanceCategoryWatch   = 0x003
)

// trackerNameFragments is the last-resort name heuristic list.
var trackerNameFragments = []string{
	"airtag",
	"smarttag",
	"smart tag",
	"tile",
	"chipolo",
	"itag",
	"keyfinder",
	"tracker",
	"nutale",
}

// Identifier resolves raw advertisements to a device identity. It is a
// pure function of its inputs; the registry is fixed at construction.
type Identifier struct {
	registry *Registry
}

func NewIdentifier(registry *Registry) *Identifier {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Identifier{registry: registry}
}

// Identify runs the priority chain: service-UUID table, manufacturer
// payload decoder, appearance, name fragments. The first signal that
// resolves a category wins; later signals never override an earlier one
// even with a higher confidence. Undersized payloads are fine: the result
// degrades to UNKNOWN with confidence 0.
func (i *Identifier) Identify(s *models.Sighting) models.Identification {
	ident := models.Identification{
		Category:         models.CategoryUnknown,
		ManufacturerID:   s.ManufacturerID,
		ManufacturerName: ManufacturerName(s.ManufacturerID),
		Method:           models.MethodNone,
	}

	if svc, model, mfr := matchTrackerService(s.ServiceUUIDs); svc {
		ident.Category = models.CategoryTracker
		ident.Model = model
		ident.IsTracker = true
		ident.Confidence = 0.95
		ident.Method = models.MethodServiceUUID
		if ident.ManufacturerName == "" {
			ident.ManufacturerName = ManufacturerName(mfr)
		}
		return ident
	}

	if a, ok := i.registry.Lookup(s.ManufacturerID); ok {
		inf := a.Analyze(s.ManufacturerData, s.ServiceUUIDs, s.RSSI, s.Name)
		if inf.Resolved {
			ident.Category = inf.Category
			ident.Model = inf.Model
			ident.IsTracker = inf.IsTracker
			ident.Confidence = inf.Confidence
			ident.Separated = inf.Separated
			ident.Method = models.MethodManufacturerData
			return ident
		}
	}

	if cat, conf := categoryFromAppearance(s.Appearance); cat != models.CategoryUnknown {
		ident.Category = cat
		ident.IsTracker = cat == models.CategoryTracker
		ident.Confidence = conf
		ident.Method = models.MethodAppearance
		return ident
	}

	if model, ok := matchTrackerName(s.Name); ok {
		ident.Category = models.CategoryTracker
		ident.Model = model
		ident.IsTracker = true
		ident.Confidence = 0.50
		ident.Method = models.MethodName
		return ident
	}

	return ident
}

func matchTrackerService(uuids []string) (bool, string, uint16) {
	for _, u := range uuids {
		p, ok := trackerServices[shortUUID(u)]
		if ok {
			return true, p.model, p.manufacturer
		}
	}
	return false, "", 0
}

// shortUUID extracts the 16-bit identifier from either a short form
// ("feed", "0xFEED") or the canonical 128-bit Bluetooth base form
// ("0000feed-0000-1000-8000-00805f9b34fb").
func shortUUID(u string) string {
	u = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "0x"))
	if len(u) == 36 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, "-0000-1000-8000-00805f9b34fb") {
		return u[4:8]
	}
	return u
}

// categoryFromAppearance maps the upper bits of the standard appearance
// value to a coarse category. Tag and keyring categories imply tracker.
func categoryFromAppearance(appearance uint16) (models.DeviceCategory, float64) {
	switch appearance >> 6 {
	case appearanceCategoryTag:
		return models.CategoryTracker, 0.80
	case appearanceCategoryKeyring:
		return models.CategoryTracker, 0.70
	case appearanceCategoryPhone:
		return models.CategoryPhone, 0.70
	case appearanceCategoryWatch:
		return models.CategoryWatch, 0.70
	}
	return models.CategoryUnknown, 0
}

func matchTrackerName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	lower := strings.ToLower(name)
	for _, frag := range trackerNameFragments {
		if strings.Contains(lower, frag) {
			return name, true
		}
	}
	return "", false
}
