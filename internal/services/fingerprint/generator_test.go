package fingerprint

import (
	"testing"

	"TagSentry/internal/domain/models"
	"TagSentry/internal/services/identify"
)

func findMySighting() *models.Sighting {
	return &models.Sighting{
		ManufacturerID:   identify.ManufacturerApple,
		ManufacturerData: []byte{0x12, 0x19, 0x04, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE},
	}
}

func TestProtocolFingerprintForOfflineFinding(t *testing.T) {
	g := NewGenerator()
	fp, ok := g.Fingerprint(findMySighting(), models.Identification{})
	if !ok {
		t.Fatalf("expected fingerprint")
	}
	if fp.Source != models.SourceProtocolPayload {
		t.Fatalf("expected protocol source, got %s", fp.Source)
	}
	if fp.Confidence != 0.95 {
		t.Fatalf("expected 0.95, got %v", fp.Confidence)
	}
	if fp.Value != "fmy:04aabbccddee" {
		t.Fatalf("unexpected value %q", fp.Value)
	}
}

func TestNearbyInfoYieldsNoProtocolFingerprint(t *testing.T) {
	g := NewGenerator()
	s := &models.Sighting{
		ManufacturerID:   identify.ManufacturerApple,
		ManufacturerData: []byte{0x10, 0x05, 0x10, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE},
	}
	fp, ok := g.Fingerprint(s, models.Identification{})
	if ok && fp.Source == models.SourceProtocolPayload {
		t.Fatalf("nearby-info frame must not yield a protocol fingerprint: %+v", fp)
	}
}

func TestServiceFingerprintFamily(t *testing.T) {
	g := NewGenerator()
	s := &models.Sighting{
		ServiceUUIDs:     []string{"0000feed-0000-1000-8000-00805f9b34fb"},
		ManufacturerData: []byte{0x01, 0x02, 0x03, 0x04, 0x05},
	}
	fp, ok := g.Fingerprint(s, models.Identification{})
	if !ok {
		t.Fatalf("expected fingerprint")
	}
	if fp.Source != models.SourceServiceUUID || fp.Confidence != 0.90 {
		t.Fatalf("unexpected fingerprint %+v", fp)
	}
	if fp.Value[:9] != "svc:tile:" {
		t.Fatalf("expected tile family prefix, got %q", fp.Value)
	}
}

func TestCompositeNeedsThreeSignals(t *testing.T) {
	g := NewGenerator()
	// Only two signals: manufacturer id and category.
	s := &models.Sighting{ManufacturerID: 0x0087}
	_, ok := g.Fingerprint(s, models.Identification{Category: models.CategoryWatch})
	if ok {
		t.Fatalf("composite with 2 signals must not fingerprint")
	}

	// Third signal (appearance) makes it viable.
	s.Appearance = 0x00C0
	fp, ok := g.Fingerprint(s, models.Identification{Category: models.CategoryWatch})
	if !ok {
		t.Fatalf("expected composite fingerprint")
	}
	if fp.Source != models.SourceComposite {
		t.Fatalf("expected composite source, got %s", fp.Source)
	}
	// mfr 25 + category 20 + appearance 15
	if fp.Confidence != 0.60 {
		t.Fatalf("expected confidence 0.60, got %v", fp.Confidence)
	}
}

func TestCompositeConfidenceCapped(t *testing.T) {
	g := NewGenerator()
	s := &models.Sighting{
		ManufacturerID: 0x0087,
		Appearance:     0x00C0,
		TxPower:        -8,
		ServiceUUIDs:   []string{"180f"},
		Name:           "Vivo Watch 3 (AB:CD:EF)",
	}
	fp, ok := g.Fingerprint(s, models.Identification{Category: models.CategoryWatch})
	if !ok {
		t.Fatalf("expected composite fingerprint")
	}
	if fp.Confidence != 0.75 {
		t.Fatalf("composite confidence must cap at 0.75, got %v", fp.Confidence)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	g := NewGenerator()
	ident := models.Identification{Category: models.CategoryTracker}
	a, okA := g.Fingerprint(findMySighting(), ident)
	b, okB := g.Fingerprint(findMySighting(), ident)
	if !okA || !okB {
		t.Fatalf("expected fingerprints")
	}
	if a.Value != b.Value || a.Confidence != b.Confidence {
		t.Fatalf("fingerprint not deterministic: %+v vs %+v", a, b)
	}
}

func TestNormalizeNameStripsNoise(t *testing.T) {
	got := normalizeName("Tile 123 (owner) AA:BB:CC:DD:EE:FF")
	if got != "tile" {
		t.Fatalf("normalizeName = %q, want %q", got, "tile")
	}
}

func TestDigestWidthFixed(t *testing.T) {
	if len(digest("anything")) != digestWidth {
		t.Fatalf("digest width must be %d", digestWidth)
	}
}
