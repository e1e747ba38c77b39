package identify

import (
	"testing"

	"TagSentry/internal/domain/models"
)

func TestServiceUUIDWinsOverPayload(t *testing.T) {
	id := NewIdentifier(nil)
	s := &models.Sighting{
		ManufacturerID:   ManufacturerApple,
		ManufacturerData: []byte{appleTypeNearbyInfo, 0x00},
		ServiceUUIDs:     []string{"0000feed-0000-1000-8000-00805f9b34fb"},
	}
	got := id.Identify(s)
	if got.Method != models.MethodServiceUUID {
		t.Fatalf("expected service uuid method, got %s", got.Method)
	}
	if !got.IsTracker || got.Category != models.CategoryTracker {
		t.Fatalf("expected tracker, got %+v", got)
	}
	if got.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", got.Confidence)
	}
}

func TestAppleOfflineFindingIsTracker(t *testing.T) {
	id := NewIdentifier(nil)
	s := &models.Sighting{
		ManufacturerID:   ManufacturerApple,
		ManufacturerData: []byte{appleTypeOfflineFinding, 0x19, appleSeparatedBit, 0xAA},
	}
	got := id.Identify(s)
	if !got.IsTracker {
		t.Fatalf("expected tracker, got %+v", got)
	}
	if !got.Separated {
		t.Fatalf("expected separated flag set")
	}
	if got.Confidence < 0.95 {
		t.Fatalf("expected high confidence, got %v", got.Confidence)
	}
}

func TestAppleNearbyInfoIsNotTracker(t *testing.T) {
	id := NewIdentifier(nil)
	s := &models.Sighting{
		ManufacturerID:   ManufacturerApple,
		ManufacturerData: []byte{appleTypeNearbyInfo, 0x05, 0x10},
	}
	got := id.Identify(s)
	if got.IsTracker {
		t.Fatalf("nearby info frame flagged as tracker: %+v", got)
	}
	if got.Category != models.CategoryPhone {
		t.Fatalf("expected phone category, got %s", got.Category)
	}
}

func TestEmptyPayloadReturnsUnknown(t *testing.T) {
	id := NewIdentifier(nil)
	got := id.Identify(&models.Sighting{ManufacturerID: ManufacturerApple})
	if got.Category != models.CategoryUnknown {
		t.Fatalf("expected unknown, got %s", got.Category)
	}
	if got.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", got.Confidence)
	}
	if got.Method != models.MethodNone {
		t.Fatalf("expected no method, got %s", got.Method)
	}
}

func TestAppearanceTagCategory(t *testing.T) {
	id := NewIdentifier(nil)
	// appearance 0x0200 = generic tag category (0x0200 >> 6 == 0x008)
	got := id.Identify(&models.Sighting{Appearance: 0x0200})
	if got.Category != models.CategoryTracker {
		t.Fatalf("expected tracker from tag appearance, got %s", got.Category)
	}
	if got.Method != models.MethodAppearance {
		t.Fatalf("expected appearance method, got %s", got.Method)
	}
	if got.Confidence != 0.80 {
		t.Fatalf("expected 0.80, got %v", got.Confidence)
	}
}

func TestNamePatternLastResort(t *testing.T) {
	id := NewIdentifier(nil)
	got := id.Identify(&models.Sighting{Name: "My AirTag (2)"})
	if got.Method != models.MethodName {
		t.Fatalf("expected name method, got %s", got.Method)
	}
	if got.Confidence != 0.50 {
		t.Fatalf("expected 0.50, got %v", got.Confidence)
	}
}

func TestSiliconVendorNameSuppressed(t *testing.T) {
	id := NewIdentifier(nil)
	got := id.Identify(&models.Sighting{ManufacturerID: 0x0059, Name: "nRF module"})
	if got.ManufacturerName != "" {
		t.Fatalf("silicon vendor name must be suppressed, got %q", got.ManufacturerName)
	}
}

func TestSamsungSmartTagFrame(t *testing.T) {
	id := NewIdentifier(nil)
	got := id.Identify(&models.Sighting{
		ManufacturerID:   ManufacturerSamsung,
		ManufacturerData: []byte{samsungTypeSmartTag, samsungSeparatedBit},
	})
	if !got.IsTracker || !got.Separated {
		t.Fatalf("expected separated smarttag, got %+v", got)
	}
}

func TestSamsungPhoneFrameLowStakes(t *testing.T) {
	id := NewIdentifier(nil)
	got := id.Identify(&models.Sighting{
		ManufacturerID:   ManufacturerSamsung,
		ManufacturerData: []byte{samsungTypeGalaxy, 0x00},
	})
	if got.IsTracker {
		t.Fatalf("galaxy phone frame flagged as tracker")
	}
	if got.Confidence != 0.50 {
		t.Fatalf("expected 0.50, got %v", got.Confidence)
	}
}

func TestShortUUIDForms(t *testing.T) {
	cases := map[string]string{
		"FEED":     "feed",
		"0xfd5a":   "fd5a",
		"0000fe33-0000-1000-8000-00805f9b34fb": "fe33",
		"custom-uuid":                          "custom-uuid",
	}
	for in, want := range cases {
		if got := shortUUID(in); got != want {
			t.Fatalf("shortUUID(%q) = %q, want %q", in, got, want)
		}
	}
}
