package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"TagSentry/internal/domain/models"
	"TagSentry/internal/services/identify"
)

// Confidence tiers per derivation. A composite fingerprint never exceeds
// compositeCap no matter how many signals contribute.
const (
	protocolConfidence = 0.95
	serviceConfidence  = 0.90
	compositeCap       = 0.75
)

// digestWidth is the fixed hex width of hashed fingerprint material.
const digestWidth = 16

// compositeMinSignals is the minimum number of semi-stable signals needed
// before a composite fingerprint is worth emitting.
const compositeMinSignals = 3

// Composite signal weights, in percent. Documented order: manufacturer id,
// category, appearance, tx power, service uuid hash, normalized name.
var compositeWeights = map[string]int{
	"mfr":        25,
	"category":   20,
	"appearance": 15,
	"txpower":    15,
	"services":   15,
	"name":       10,
}

// Generator derives the best available stable identifier for a sighting.
// It is deterministic: identical inputs always produce the identical
// fingerprint string and confidence.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Fingerprint tries the derivations in confidence order and returns the
// first that succeeds. ok is false when no stable identifier exists for
// this advertisement.
func (g *Generator) Fingerprint(s *models.Sighting, ident models.Identification) (models.Fingerprint, bool) {
	if fp, ok := protocolFingerprint(s); ok {
		return fp, true
	}
	if fp, ok := serviceFingerprint(s); ok {
		return fp, true
	}
	return compositeFingerprint(s, ident)
}

// protocolFingerprint extracts a stable byte window from manufacturer
// protocol fields known to identify trackers. Frame types that rotate
// synchronously with the hardware address (such as phone nearby-info
// broadcasts) must NOT be fingerprinted: the windows they would yield
// change with every rotation and produce false correlations.
func protocolFingerprint(s *models.Sighting) (models.Fingerprint, bool) {
	p := s.ManufacturerData
	if len(p) == 0 {
		return models.Fingerprint{}, false
	}
	switch s.ManufacturerID {
	case identify.ManufacturerApple:
		// Offline-finding frames carry key material that outlives the
		// address; everything else under this vendor rotates with it.
		if p[0] != 0x12 || len(p) < 8 {
			return models.Fingerprint{}, false
		}
		return models.Fingerprint{
			Value:      "fmy:" + hex.EncodeToString(p[2:8]),
			Confidence: protocolConfidence,
			Source:     models.SourceProtocolPayload,
		}, true
	case identify.ManufacturerSamsung:
		if p[0] != 0x02 || len(p) < 7 {
			return models.Fingerprint{}, false
		}
		return models.Fingerprint{
			Value:      "tag:" + hex.EncodeToString(p[2:7]),
			Confidence: protocolConfidence,
			Source:     models.SourceProtocolPayload,
		}, true
	}
	return models.Fingerprint{}, false
}

// serviceFingerprint keys on a known tracker product family plus a hash of
// the payload head, so co-present units of the same product still separate.
func serviceFingerprint(s *models.Sighting) (models.Fingerprint, bool) {
	family := trackerFamily(s.ServiceUUIDs)
	if family == "" {
		return models.Fingerprint{}, false
	}
	head := s.ManufacturerData
	if len(head) > 4 {
		head = head[:4]
	}
	return models.Fingerprint{
		Value:      "svc:" + family + ":" + digest(hex.EncodeToString(head)),
		Confidence: serviceConfidence,
		Source:     models.SourceServiceUUID,
	}, true
}

var serviceFamilies = map[string]string{
	"feed": "tile",
	"feec": "tile",
	"fd5a": "smarttag",
	"fe33": "chipolo",
}

func trackerFamily(uuids []string) string {
	for _, u := range uuids {
		u = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "0x"))
		if len(u) == 36 && strings.HasPrefix(u, "0000") {
			u = u[4:8]
		}
		if f, ok := serviceFamilies[u]; ok {
			return f
		}
	}
	return ""
}

// compositeFingerprint combines up to six semi-stable signals. It needs at
// least compositeMinSignals of them; confidence is the weight sum of the
// signals present, capped at compositeCap.
func compositeFingerprint(s *models.Sighting, ident models.Identification) (models.Fingerprint, bool) {
	parts := make([]string, 0, 6)
	weight := 0

	if s.ManufacturerID != 0 {
		parts = append(parts, fmt.Sprintf("mfr=%04x", s.ManufacturerID))
		weight += compositeWeights["mfr"]
	}
	if ident.Category != models.CategoryUnknown {
		parts = append(parts, "category="+string(ident.Category))
		weight += compositeWeights["category"]
	}
	if s.Appearance != 0 {
		parts = append(parts, fmt.Sprintf("appearance=%04x", s.Appearance))
		weight += compositeWeights["appearance"]
	}
	if s.TxPower != 0 {
		parts = append(parts, fmt.Sprintf("txpower=%d", normalizeTxPower(s.TxPower)))
		weight += compositeWeights["txpower"]
	}
	if len(s.ServiceUUIDs) > 0 {
		parts = append(parts, "services="+hashServiceUUIDs(s.ServiceUUIDs))
		weight += compositeWeights["services"]
	}
	if n := normalizeName(s.Name); n != "" {
		parts = append(parts, "name="+n)
		weight += compositeWeights["name"]
	}

	if len(parts) < compositeMinSignals {
		return models.Fingerprint{}, false
	}

	sort.Strings(parts)
	conf := float64(weight) / 100
	if conf > compositeCap {
		conf = compositeCap
	}
	return models.Fingerprint{
		Value:      "cmp:" + digest(strings.Join(parts, "|")),
		Confidence: conf,
		Source:     models.SourceComposite,
	}, true
}

// normalizeTxPower buckets advertised transmit power into 4 dBm steps so
// calibration jitter between sightings does not split fingerprints.
func normalizeTxPower(tx int) int {
	if tx < -127 {
		tx = -127
	}
	if tx > 20 {
		tx = 20
	}
	return tx / 4 * 4
}

func hashServiceUUIDs(uuids []string) string {
	sorted := make([]string, len(uuids))
	for i, u := range uuids {
		sorted[i] = strings.ToLower(strings.TrimSpace(u))
	}
	sort.Strings(sorted)
	return digest(strings.Join(sorted, ","))
}

var (
	nameDigits      = regexp.MustCompile(`\d+`)
	nameParens      = regexp.MustCompile(`\([^)]*\)`)
	nameMACLike     = regexp.MustCompile(`(?i)([0-9a-f]{2}[:-]){2,}[0-9a-f]{2}`)
	nameWhitespaces = regexp.MustCompile(`\s+`)
)

// normalizeName strips per-unit noise from advertised names: digits,
// parenthetical content and MAC-like substrings all vary between units or
// rotations of the same product line.
func normalizeName(name string) string {
	if name == "" {
		return ""
	}
	n := strings.ToLower(name)
	n = nameMACLike.ReplaceAllString(n, "")
	n = nameParens.ReplaceAllString(n, "")
	n = nameDigits.ReplaceAllString(n, "")
	n = nameWhitespaces.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

func digest(in string) string {
	sum := sha256.Sum256([]byte(in))
	return hex.EncodeToString(sum[:])[:digestWidth]
}
